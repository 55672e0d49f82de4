package ports

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/packhound/packhound/pkg/domain"
)

// RunStoreContract verifies that a RunStore implementation adheres to the
// interface contract. Adapter tests call it against their store.
func RunStoreContract(t *testing.T, store RunStore) {
	ctx := context.Background()
	runID := "contract-test-run-" + time.Now().Format("20060102150405")

	newRecord := func(id string) *domain.RunRecord {
		now := time.Now().UTC().Truncate(time.Second)
		return &domain.RunRecord{
			ID:          id,
			PackageName: "suspicious-pkg",
			Status:      domain.RunRunning,
			CreatedAt:   now,
			UpdatedAt:   now,
			State: domain.NewAnalysisState("suspicious-pkg", "August 29, 2026", []domain.SourceUnit{
				{Filename: "setup.py", Code: "print('hi')"},
			}),
		}
	}

	t.Run("Save and Load", func(t *testing.T) {
		rec := newRecord(runID)
		rec.State.History = append(rec.State.History, domain.HistoryEntry{
			Role:   domain.RoleResearcher,
			Task:   "check registry",
			Result: "nothing adverse",
		})

		require.NoError(t, store.Save(ctx, rec), "Save should not return error")

		loaded, err := store.Load(ctx, runID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, rec.PackageName, loaded.PackageName)
		assert.Equal(t, domain.RunRunning, loaded.Status)
		require.NotNil(t, loaded.State)
		require.Len(t, loaded.State.History, 1)
		assert.Equal(t, "nothing adverse", loaded.State.History[0].Result)
	})

	t.Run("Save overwrites", func(t *testing.T) {
		rec := newRecord(runID)
		rec.Status = domain.RunComplete
		require.NoError(t, store.Save(ctx, rec))

		loaded, err := store.Load(ctx, runID)
		require.NoError(t, err)
		assert.Equal(t, domain.RunComplete, loaded.Status)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+runID)
		assert.ErrorIs(t, err, domain.ErrRunNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, newRecord(runID)))
		require.NoError(t, store.Delete(ctx, runID), "Delete should not return error")

		_, err := store.Load(ctx, runID)
		assert.ErrorIs(t, err, domain.ErrRunNotFound, "Load after Delete should return ErrRunNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := runID + "-1"
		id2 := runID + "-2"
		_ = store.Save(ctx, newRecord(id1))
		_ = store.Save(ctx, newRecord(id2))
		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, id1)
		assert.Contains(t, ids, id2)
	})
}
