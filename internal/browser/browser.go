// Package browser implements widget.Page on a Chrome tab driven over the
// DevTools protocol.
package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"rentsync/internal/widget"
)

var errDetached = errors.New("element is no longer attached to the document")

// Options configures the Chrome instance.
type Options struct {
	Headless          bool
	UserAgent         string
	NavigationTimeout time.Duration
}

// Browser is one Chrome tab. It is safe for concurrent use.
type Browser struct {
	logger      *slog.Logger
	opts        Options
	allocCancel context.CancelFunc
	tabCtx      context.Context
	tabCancel   context.CancelFunc

	mu       sync.Mutex
	bindings int
	handlers map[string]func()
}

var _ widget.Page = (*Browser)(nil)

// Launch starts Chrome with a single tab. The browser lives until Close or
// until ctx is cancelled.
func Launch(ctx context.Context, logger *slog.Logger, opts Options) (*Browser, error) {
	if opts.NavigationTimeout <= 0 {
		opts.NavigationTimeout = 30 * time.Second
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:], chromedp.Flag("headless", opts.Headless))
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)

	tabCtx, tabCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			logger.Debug(fmt.Sprintf(format, args...), "component", "chromedp")
		}),
		chromedp.WithErrorf(func(format string, args ...any) {
			logger.Warn(fmt.Sprintf(format, args...), "component", "chromedp")
		}),
	)

	b := &Browser{
		logger:      logger,
		opts:        opts,
		allocCancel: allocCancel,
		tabCtx:      tabCtx,
		tabCancel:   tabCancel,
		handlers:    make(map[string]func()),
	}
	chromedp.ListenTarget(tabCtx, b.onEvent)

	if err := chromedp.Run(tabCtx); err != nil {
		b.Close()
		return nil, fmt.Errorf("starting browser: %w", err)
	}
	return b, nil
}

// Close shuts the tab and the browser process.
func (b *Browser) Close() {
	b.tabCancel()
	b.allocCancel()
}

// Open navigates the tab to rawURL and waits for the body to be ready.
func (b *Browser) Open(ctx context.Context, rawURL string) error {
	navCtx, cancel := context.WithTimeout(ctx, b.opts.NavigationTimeout)
	defer cancel()

	start := time.Now()
	if err := b.run(navCtx, chromedp.Navigate(rawURL), chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		return fmt.Errorf("opening %s: %w", rawURL, err)
	}
	b.logger.Info("page opened", "url", rawURL, "duration_ms", time.Since(start).Milliseconds())
	return nil
}

func (b *Browser) onEvent(ev any) {
	e, ok := ev.(*runtime.EventBindingCalled)
	if !ok {
		return
	}
	b.mu.Lock()
	fn := b.handlers[e.Name]
	b.mu.Unlock()
	if fn != nil {
		// Listeners must not block the event loop.
		go fn()
	}
}

// run executes actions on the tab, honoring ctx for cancellation.
func (b *Browser) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(b.tabCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}
	return nil
}

func expression(fn string, args ...any) (string, error) {
	if args == nil {
		args = []any{}
	}
	data, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("encoding arguments: %w", err)
	}
	return fmt.Sprintf("(function(){%s\nreturn (%s).apply(null, %s);})()", resolvePrelude, fn, data), nil
}

func (b *Browser) eval(ctx context.Context, res any, fn string, args ...any) error {
	expr, err := expression(fn, args...)
	if err != nil {
		return err
	}
	return b.run(ctx, chromedp.Evaluate(expr, res))
}

func (b *Browser) evalAwait(ctx context.Context, res any, fn string, args ...any) error {
	expr, err := expression(fn, args...)
	if err != nil {
		return err
	}
	return b.run(ctx, chromedp.Evaluate(expr, res, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
		return p.WithAwaitPromise(true)
	}))
}

func (b *Browser) Lookup(ctx context.Context, path string) (widget.Kind, error) {
	var kind string
	if err := b.eval(ctx, &kind, lookupJS, path); err != nil {
		return widget.KindAbsent, err
	}
	switch kind {
	case "function":
		return widget.KindFunction, nil
	case "object":
		return widget.KindObject, nil
	case "value":
		return widget.KindValue, nil
	default:
		return widget.KindAbsent, nil
	}
}

func (b *Browser) Invoke(ctx context.Context, path string, args ...any) error {
	if args == nil {
		args = []any{}
	}
	var out struct {
		State   string `json:"state"`
		Message string `json:"message"`
	}
	if err := b.eval(ctx, &out, invokeJS, path, args); err != nil {
		return err
	}
	switch out.State {
	case "ok":
		return nil
	case "threw":
		return &widget.InvocationError{Path: path, Message: out.Message}
	default:
		return fmt.Errorf("%s: %w", path, widget.ErrAbsent)
	}
}

func (b *Browser) Value(ctx context.Context, path string, dst any) (bool, error) {
	var out struct {
		Found bool   `json:"found"`
		JSON  string `json:"json"`
	}
	if err := b.eval(ctx, &out, valueJS, path); err != nil {
		return false, err
	}
	if !out.Found {
		return false, nil
	}
	if err := json.Unmarshal([]byte(out.JSON), dst); err != nil {
		return false, fmt.Errorf("decoding %s: %w", path, err)
	}
	return true, nil
}

func (b *Browser) HasElement(ctx context.Context, id string) (bool, error) {
	var found bool
	err := b.eval(ctx, &found, hasElementJS, id)
	return found, err
}

func (b *Browser) AppendScript(ctx context.Context, id, src string) error {
	var out struct {
		OK      bool   `json:"ok"`
		Message string `json:"message"`
	}
	if err := b.evalAwait(ctx, &out, appendScriptJS, id, src); err != nil {
		return err
	}
	if !out.OK {
		return errors.New(out.Message)
	}
	return nil
}

func (b *Browser) ObserveInsertions(ctx context.Context, selector string, fn func()) error {
	b.mu.Lock()
	b.bindings++
	name := fmt.Sprintf("__rentsyncInserted%d", b.bindings)
	b.handlers[name] = fn
	b.mu.Unlock()

	if err := b.run(ctx, runtime.AddBinding(name)); err != nil {
		b.dropHandler(name)
		return fmt.Errorf("adding binding: %w", err)
	}
	var ok bool
	if err := b.eval(ctx, &ok, observeJS, selector, name); err != nil {
		b.dropHandler(name)
		return fmt.Errorf("installing observer: %w", err)
	}
	return nil
}

func (b *Browser) dropHandler(name string) {
	b.mu.Lock()
	delete(b.handlers, name)
	b.mu.Unlock()
}

func (b *Browser) QueryNode(ctx context.Context, selector string) (widget.Node, bool, error) {
	return b.query(ctx, "", selector)
}

func (b *Browser) QueryWithin(ctx context.Context, parent widget.Node, selector string) (widget.Node, bool, error) {
	return b.query(ctx, string(parent), selector)
}

func (b *Browser) query(ctx context.Context, parent, selector string) (widget.Node, bool, error) {
	var id string
	if err := b.eval(ctx, &id, queryJS, parent, selector); err != nil {
		return "", false, err
	}
	if id == "" {
		return "", false, nil
	}
	return widget.Node(id), true, nil
}

func (b *Browser) InlineStyle(ctx context.Context, n widget.Node) (string, error) {
	var out struct {
		Found bool   `json:"found"`
		Style string `json:"style"`
	}
	if err := b.eval(ctx, &out, getStyleJS, string(n)); err != nil {
		return "", err
	}
	if !out.Found {
		return "", errDetached
	}
	return out.Style, nil
}

func (b *Browser) SetInlineStyle(ctx context.Context, n widget.Node, style string) error {
	return b.nodeAction(ctx, setStyleJS, string(n), style)
}

func (b *Browser) Dispatch(ctx context.Context, n widget.Node, eventType string) error {
	return b.nodeAction(ctx, dispatchJS, string(n), eventType)
}

func (b *Browser) Click(ctx context.Context, n widget.Node) error {
	return b.nodeAction(ctx, clickJS, string(n))
}

func (b *Browser) nodeAction(ctx context.Context, fn string, args ...any) error {
	var ok bool
	if err := b.eval(ctx, &ok, fn, args...); err != nil {
		return err
	}
	if !ok {
		return errDetached
	}
	return nil
}

func (b *Browser) Markup(ctx context.Context) (string, error) {
	var html string
	err := b.eval(ctx, &html, markupJS)
	return html, err
}

func (b *Browser) URL(ctx context.Context) (*url.URL, error) {
	var href string
	if err := b.eval(ctx, &href, locationJS); err != nil {
		return nil, err
	}
	return url.Parse(href)
}

func (b *Browser) ReplaceURL(ctx context.Context, u *url.URL) error {
	var ok bool
	return b.eval(ctx, &ok, replaceURLJS, u.String())
}
