package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/packhound/packhound/pkg/domain"
	"github.com/packhound/packhound/pkg/ports"
)

func newServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := New(Config{BaseURL: srv.URL, APIKey: "test-key", Model: "test-model"})
	return srv, c
}

func completion(content string) string {
	resp := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"role": "assistant", "content": content}, "finish_reason": "stop"},
		},
	}
	data, _ := json.Marshal(resp)
	return string(data)
}

func TestCompleteSendsChatRequest(t *testing.T) {
	var captured chatRequest
	_, c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Write([]byte(completion("hello")))
	})

	out, err := c.Complete(context.Background(), []domain.Message{
		{Role: "system", Content: "be brief"},
		{Role: "user", Content: "hi"},
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
	assert.Equal(t, "test-model", captured.Model)
	require.Len(t, captured.Messages, 2)
	assert.Equal(t, "system", captured.Messages[0].Role)
}

func TestCompleteSurfacesHTTPError(t *testing.T) {
	_, c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	})

	_, err := c.Complete(context.Background(), []domain.Message{{Role: "user", Content: "hi"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.NotErrorIs(t, err, domain.ErrSchemaMismatch)
}

func TestReasonBuildsSystemAndUserMessages(t *testing.T) {
	var captured chatRequest
	_, c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Write([]byte(completion("thought through")))
	})

	out, err := c.Reason(context.Background(), ports.Prompt{System: "sys", User: "usr"})
	require.NoError(t, err)
	assert.Equal(t, "thought through", out)
	require.Len(t, captured.Messages, 2)
	assert.Equal(t, "sys", captured.Messages[0].Content)
	assert.Equal(t, "usr", captured.Messages[1].Content)
}

func TestFormatDecodesFencedJSON(t *testing.T) {
	_, c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(completion("<think>shaping</think>```json\n{\"verdict\":\"benign\",\"behavior\":\"utility\"}\n```")))
	})

	var report domain.FinalReport
	require.NoError(t, c.Format(context.Background(), "convert", &report))
	assert.Equal(t, domain.VerdictBenign, report.Verdict)
	assert.Equal(t, "utility", report.Behavior)
}

func TestFormatUnknownFieldIsSchemaMismatch(t *testing.T) {
	_, c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(completion(`{"verdict":"benign","behavior":"x","surprise":true}`)))
	})

	var report domain.FinalReport
	err := c.Format(context.Background(), "convert", &report)
	require.ErrorIs(t, err, domain.ErrSchemaMismatch)
}

func TestFormatNonJSONIsSchemaMismatch(t *testing.T) {
	_, c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(completion("I cannot convert this plan, sorry.")))
	})

	var report domain.FinalReport
	err := c.Format(context.Background(), "convert", &report)
	require.ErrorIs(t, err, domain.ErrSchemaMismatch)
}

func TestFormatTransportErrorIsNotSchemaMismatch(t *testing.T) {
	srv, c := newServer(t, func(w http.ResponseWriter, r *http.Request) {})
	srv.Close()

	var report domain.FinalReport
	err := c.Format(context.Background(), "convert", &report)
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrSchemaMismatch)
}
