package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/packhound/packhound/internal/logging"
	"github.com/packhound/packhound/pkg/domain"
)

// SignalContext wraps a context and captures the signal that cancelled it.
type SignalContext struct {
	context.Context
	Cancel func()
	start  sync.Once
	stop   sync.Once
	sigCh  chan os.Signal
	sigVal os.Signal
	mu     sync.Mutex
}

// NewSignalContext creates a context that is cancelled on SIGINT or SIGTERM.
// It acts as a drop-in replacement for signal.NotifyContext but allows
// retrieving the signal.
func NewSignalContext(parent context.Context) *SignalContext {
	ctx, cancel := context.WithCancel(parent)
	sc := &SignalContext{
		Context: ctx,
		Cancel:  cancel,
		sigCh:   make(chan os.Signal, 1),
	}

	sc.start.Do(func() {
		signal.Notify(sc.sigCh, os.Interrupt, syscall.SIGTERM)
		go func() {
			select {
			case sig := <-sc.sigCh:
				sc.mu.Lock()
				sc.sigVal = sig
				sc.mu.Unlock()
				sc.Cancel()
			case <-sc.Context.Done():
				// Context cancelled elsewhere
			}
			sc.stop.Do(func() {
				signal.Stop(sc.sigCh)
			})
		}()
	})

	return sc
}

// Signal returns the signal that caused the context to be cancelled, or nil.
func (sc *SignalContext) Signal() os.Signal {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.sigVal
}

// createLogger configures the application logger.
// In debug mode, it writes to Stderr (to separate from Stdout flow UI).
func createLogger(debug bool) *slog.Logger {
	if debug {
		return logging.New(slog.LevelDebug)
	}
	return logging.NewNop()
}

// debugHooks traces run progress through the logger.
func debugHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeEnter: func(_ context.Context, e *domain.NodeEvent) {
			logger.Debug("node enter", "node", e.Node, "package", e.PackageName)
		},
		OnPlanCommit: func(_ context.Context, e *domain.PlanEvent) {
			logger.Debug("plan committed", "steps", e.Steps, "remaining_tasks", e.RemainingTasks)
		},
		OnWorkerReturn: func(_ context.Context, e *domain.WorkerEvent) {
			logger.Debug("worker returned", "role", e.Role, "truncated", e.Truncated)
		},
		OnFormatRetry: func(_ context.Context, e *domain.RetryEvent) {
			logger.Debug("structured output retry", "attempt", e.Attempt)
		},
		OnRunFinish: func(_ context.Context, e *domain.RunEvent) {
			logger.Debug("run finished", "outcome", e.Outcome, "duration", e.Duration)
		},
	}
}

// mergeHooks chains two hook sets, calling a then b for each event.
func mergeHooks(a, b domain.LifecycleHooks) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeEnter:    chainHook(a.OnNodeEnter, b.OnNodeEnter),
		OnNodeLeave:    chainHook(a.OnNodeLeave, b.OnNodeLeave),
		OnPlanCommit:   chainHook(a.OnPlanCommit, b.OnPlanCommit),
		OnWorkerReturn: chainHook(a.OnWorkerReturn, b.OnWorkerReturn),
		OnFormatRetry:  chainHook(a.OnFormatRetry, b.OnFormatRetry),
		OnRunFinish:    chainHook(a.OnRunFinish, b.OnRunFinish),
	}
}

func chainHook[E any](a, b func(context.Context, *E)) func(context.Context, *E) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx context.Context, e *E) {
		a(ctx, e)
		b(ctx, e)
	}
}
