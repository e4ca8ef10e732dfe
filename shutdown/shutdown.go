// Package shutdown cancels a context when the process is asked to stop, after
// running any registered hooks.
package shutdown

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

type ctxKey struct{}

// Handler watches for stop signals. The context returned with it is
// canceled once the hooks have run.
type Handler struct {
	mu      sync.Mutex
	hooks   []func()
	sig     os.Signal
	signals chan os.Signal
	cancel  context.CancelFunc
	once    sync.Once
}

// SetupHandler starts watching for sigs, or SIGINT and SIGTERM when none are
// given. The returned context carries the handler, see BeforeShutdown.
func SetupHandler(parent context.Context, sigs ...os.Signal) (context.Context, *Handler) {
	if len(sigs) == 0 {
		sigs = []os.Signal{os.Interrupt, syscall.SIGTERM}
	}

	ctx, cancel := context.WithCancel(parent)

	h := &Handler{
		signals: make(chan os.Signal, 1),
		cancel:  cancel,
	}

	signal.Notify(h.signals, sigs...)

	go func() {
		select {
		case sig := <-h.signals:
			slog.Warn("Received " + sig.String() + ", shutting down...")
			h.finish(sig)
		case <-ctx.Done():
			h.Stop()
		}
	}()

	return context.WithValue(ctx, ctxKey{}, h), h
}

// BeforeShutdown registers a function to be called before the context is
// canceled. The context is still alive while hooks run.
func (h *Handler) BeforeShutdown(hook func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.hooks = append(h.hooks, hook)
}

// Shutdown triggers the shutdown process as if os.Interrupt was received.
func (h *Handler) Shutdown() {
	select {
	case h.signals <- os.Interrupt:
	default:
	}
}

// Signal returns the signal that triggered shutdown, or nil.
func (h *Handler) Signal() os.Signal {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.sig
}

// Stop stops watching and cancels the context without running hooks.
func (h *Handler) Stop() {
	h.once.Do(func() {
		signal.Stop(h.signals)
		h.cancel()
	})
}

func (h *Handler) finish(sig os.Signal) {
	h.once.Do(func() {
		signal.Stop(h.signals)

		h.mu.Lock()
		h.sig = sig
		hooks := h.hooks
		h.hooks = nil
		h.mu.Unlock()

		for _, hook := range hooks {
			hook()
		}

		h.cancel()
	})
}

// BeforeShutdown registers hook with the handler carried by ctx. It reports
// false when ctx has no handler.
func BeforeShutdown(ctx context.Context, hook func()) bool {
	h, ok := ctx.Value(ctxKey{}).(*Handler)
	if !ok {
		return false
	}

	h.BeforeShutdown(hook)

	return true
}
