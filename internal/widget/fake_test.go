package widget

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testOptions() Options {
	return Options{
		ScriptSrc:          "https://widget.example/boot.js",
		ScriptLoadTimeout:  time.Second,
		ReadyTimeout:       50 * time.Millisecond,
		ReadyInterval:      5 * time.Millisecond,
		EnhanceAttempts:    3,
		EnhanceBaseDelay:   2 * time.Millisecond,
		EnhanceGrowth:      1.5,
		TierAConfirmWindow: 30 * time.Millisecond,
		ChangeTimeout:      100 * time.Millisecond,
		ChangeInterval:     5 * time.Millisecond,
		RefreshEvery:       2,
	}
}

type fakeGlobal struct {
	kind Kind
	fn   func(args ...any) error
	get  func() any
}

type fakeCall struct {
	Path string
	Args []any
}

type fakeEvent struct {
	Node Node
	Type string
}

// fakePage is an in-memory Page backed by a goquery document.
type fakePage struct {
	mu        sync.Mutex
	globals   map[string]*fakeGlobal
	doc       *goquery.Document
	loc       *url.URL
	calls     []fakeCall
	events    []fakeEvent
	styles    map[Node][]string
	observers []func()
	nextNode  int

	urlWrites    int
	scripts      []string
	onScriptLoad func()
	scriptErr    error
	onActivate   func(placeholderID string)
}

func newFakePage(t *testing.T, body string) *fakePage {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<html><head></head><body>" + body + "</body></html>"))
	if err != nil {
		t.Fatalf("parse fixture: %v", err)
	}
	loc, _ := url.Parse("https://shop.example/checkout?ref=summer")
	return &fakePage{
		globals: make(map[string]*fakeGlobal),
		doc:     doc,
		loc:     loc,
		styles:  make(map[Node][]string),
	}
}

func (p *fakePage) define(path string, g *fakeGlobal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.globals[path] = g
}

func (p *fakePage) defineObject(path string) {
	p.define(path, &fakeGlobal{kind: KindObject})
}

func (p *fakePage) defineFunc(path string, fn func(args ...any) error) {
	p.define(path, &fakeGlobal{kind: KindFunction, fn: fn})
}

// throws returns a function that always throws.
func throws(msg string) func(args ...any) error {
	return func(args ...any) error { return &InvocationError{Message: msg} }
}

func accepts(args ...any) error { return nil }

func (p *fakePage) callsTo(path string) []fakeCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []fakeCall
	for _, c := range p.calls {
		if c.Path == path {
			out = append(out, c)
		}
	}
	return out
}

func (p *fakePage) callPaths() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.calls))
	for _, c := range p.calls {
		out = append(out, c.Path)
	}
	return out
}

func (p *fakePage) eventCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

func (p *fakePage) Lookup(ctx context.Context, path string) (Kind, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if g, ok := p.globals[path]; ok {
		return g.kind, nil
	}
	return KindAbsent, nil
}

func (p *fakePage) Invoke(ctx context.Context, path string, args ...any) error {
	p.mu.Lock()
	g, ok := p.globals[path]
	if !ok || g.kind != KindFunction {
		p.mu.Unlock()
		return fmt.Errorf("%s: %w", path, ErrAbsent)
	}
	p.calls = append(p.calls, fakeCall{Path: path, Args: args})
	p.mu.Unlock()

	if err := g.fn(args...); err != nil {
		if inv, ok := err.(*InvocationError); ok && inv.Path == "" {
			inv.Path = path
		}
		return err
	}
	return nil
}

func (p *fakePage) Value(ctx context.Context, path string, dst any) (bool, error) {
	p.mu.Lock()
	g, ok := p.globals[path]
	p.mu.Unlock()
	if !ok || g.get == nil {
		return false, nil
	}
	v := g.get()
	if v == nil {
		return false, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(data, dst)
}

func (p *fakePage) HasElement(ctx context.Context, id string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.doc.Find("#"+id).Length() > 0, nil
}

func (p *fakePage) AppendScript(ctx context.Context, id, src string) error {
	p.mu.Lock()
	p.doc.Find("head").AppendHtml(fmt.Sprintf(`<script id="%s" src="%s"></script>`, id, src))
	p.scripts = append(p.scripts, src)
	hook, loadErr := p.onScriptLoad, p.scriptErr
	p.mu.Unlock()

	if loadErr != nil {
		return loadErr
	}
	if hook != nil {
		hook()
	}
	return nil
}

func (p *fakePage) ObserveInsertions(ctx context.Context, selector string, fn func()) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, fn)
	return nil
}

// insert appends markup to the body and notifies observers.
func (p *fakePage) insert(markup string) {
	p.mu.Lock()
	p.doc.Find("body").AppendHtml(markup)
	observers := append([]func(){}, p.observers...)
	p.mu.Unlock()
	for _, fn := range observers {
		fn()
	}
}

func (p *fakePage) nodeFor(sel *goquery.Selection) Node {
	if id, ok := sel.Attr("data-fake-node"); ok {
		return Node(id)
	}
	p.nextNode++
	id := fmt.Sprintf("n%d", p.nextNode)
	sel.SetAttr("data-fake-node", id)
	return Node(id)
}

func (p *fakePage) find(n Node) *goquery.Selection {
	return p.doc.Find(fmt.Sprintf(`[data-fake-node="%s"]`, n))
}

func (p *fakePage) QueryNode(ctx context.Context, selector string) (Node, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sel := p.doc.Find(selector).First()
	if sel.Length() == 0 {
		return "", false, nil
	}
	return p.nodeFor(sel), true, nil
}

func (p *fakePage) QueryWithin(ctx context.Context, parent Node, selector string) (Node, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sel := p.find(parent).Find(selector).First()
	if sel.Length() == 0 {
		return "", false, nil
	}
	return p.nodeFor(sel), true, nil
}

func (p *fakePage) InlineStyle(ctx context.Context, n Node) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	style, _ := p.find(n).Attr("style")
	return style, nil
}

func (p *fakePage) SetInlineStyle(ctx context.Context, n Node, style string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.find(n).SetAttr("style", style)
	p.styles[n] = append(p.styles[n], style)
	return nil
}

func (p *fakePage) Dispatch(ctx context.Context, n Node, eventType string) error {
	p.mu.Lock()
	p.events = append(p.events, fakeEvent{Node: n, Type: eventType})
	placeholder, _ := p.find(n).Closest("." + PlaceholderClass).Attr(AttrProductID)
	activate := p.onActivate
	p.mu.Unlock()

	if eventType == "click" && activate != nil {
		activate(placeholder)
	}
	return nil
}

func (p *fakePage) Click(ctx context.Context, n Node) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, fakeEvent{Node: n, Type: "native-click"})
	return nil
}

func (p *fakePage) Markup(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.doc.Html()
}

func (p *fakePage) URL(ctx context.Context) (*url.URL, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	u := *p.loc
	return &u, nil
}

func (p *fakePage) ReplaceURL(ctx context.Context, u *url.URL) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loc = u
	p.urlWrites++
	return nil
}

func (p *fakePage) enhance() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.doc.Find("." + PlaceholderClass).Each(func(_ int, s *goquery.Selection) {
		if s.Find("button").Length() == 0 {
			s.AppendHtml("<button>Add to cart</button>")
		}
	})
}

// fakeCart is the widget's cart state.
type fakeCart struct {
	mu    sync.Mutex
	order []string
	qty   map[string]int
}

func newFakeCart() *fakeCart {
	return &fakeCart{qty: make(map[string]int)}
}

func (c *fakeCart) add(id string, n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.qty[id]; !ok {
		c.order = append(c.order, id)
	}
	c.qty[id] += n
}

func (c *fakeCart) items() any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]map[string]any, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, map[string]any{"product_id": id, "quantity": c.qty[id]})
	}
	return out
}

func (c *fakeCart) total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, q := range c.qty {
		n += q
	}
	return n
}

type widgetSetup struct {
	cart          *fakeCart
	noCart        bool
	hideCartData  bool
	enhance       bool
	clicksAddItem bool
	clickDelay    time.Duration
}

// installWidget defines the widget global on p: refresh and trigger always,
// a cart object unless noCart, structured cart data unless hideCartData.
func installWidget(p *fakePage, w widgetSetup) {
	p.defineObject(GlobalName)
	p.defineFunc(GlobalName+".refresh", func(args ...any) error {
		if w.enhance {
			p.enhance()
		}
		return nil
	})
	p.defineFunc(GlobalName+".trigger", accepts)
	if !w.noCart {
		p.defineObject(GlobalName + ".cart")
	}
	if !w.hideCartData && w.cart != nil {
		p.define(GlobalName+".cartData.items", &fakeGlobal{kind: KindObject, get: w.cart.items})
	}
	if w.clicksAddItem && w.cart != nil {
		p.mu.Lock()
		p.onActivate = func(id string) {
			if id == "" {
				return
			}
			if w.clickDelay > 0 {
				time.AfterFunc(w.clickDelay, func() { w.cart.add(id, 1) })
				return
			}
			w.cart.add(id, 1)
		}
		p.mu.Unlock()
	}
}

func placeholder(id, slug string) string {
	return fmt.Sprintf(`<div class="%s" data-id="%s" data-slug="%s" style="display:none"></div>`, PlaceholderClass, id, slug)
}
