package widget

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// Loader makes sure the widget script is present exactly once and keeps the
// widget in step with placeholders inserted after load.
type Loader struct {
	page     Page
	logger   *slog.Logger
	opts     Options
	watching atomic.Bool
}

// NewLoader creates a loader for page.
func NewLoader(page Page, logger *slog.Logger, opts Options) *Loader {
	return &Loader{page: page, logger: logger, opts: opts.withDefaults()}
}

// EnsureLoaded injects the widget script unless the page already carries it.
// Load failures are logged and swallowed; callers find out through
// WaitReady.
func (l *Loader) EnsureLoaded(ctx context.Context) {
	present, err := l.page.HasElement(ctx, ScriptElementID)
	if err != nil {
		l.logger.Warn("widget script check failed", "error", err)
		return
	}
	if present {
		return
	}
	if l.opts.ScriptSrc == "" {
		l.logger.Warn("widget script source not configured")
		return
	}

	loadCtx, cancel := context.WithTimeout(ctx, l.opts.ScriptLoadTimeout)
	defer cancel()

	start := time.Now()
	if err := l.page.AppendScript(loadCtx, ScriptElementID, l.opts.ScriptSrc); err != nil {
		l.logger.Warn("widget script failed to load", "src", l.opts.ScriptSrc, "error", err)
		return
	}
	l.logger.Info("widget script loaded", "duration_ms", time.Since(start).Milliseconds())
}

// Watch installs a document-wide observer that sends a refresh signal each
// time a new placeholder appears. Installed at most once per loader.
func (l *Loader) Watch(ctx context.Context) error {
	if !l.watching.CompareAndSwap(false, true) {
		return nil
	}

	// The observer outlives the call that installed it.
	bg := context.WithoutCancel(ctx)
	err := l.page.ObserveInsertions(ctx, "."+PlaceholderClass, func() {
		cbCtx, cancel := context.WithTimeout(bg, 2*time.Second)
		defer cancel()
		RefreshSignal(cbCtx, l.page, l.logger)
	})
	if err != nil {
		l.watching.Store(false)
		return err
	}
	return nil
}

// WaitReady polls for the widget handle until it appears or the ready
// timeout passes.
func (l *Loader) WaitReady(ctx context.Context) bool {
	deadline := time.Now().Add(l.opts.ReadyTimeout)
	for {
		if Discover(ctx, l.page, l.logger) != nil {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		if err := sleep(ctx, l.opts.ReadyInterval); err != nil {
			return false
		}
	}
}
