package widget

import (
	"context"
	"errors"
	"testing"
)

func TestEnsureLoaded_InsertsOnce(t *testing.T) {
	p := newFakePage(t, "")
	l := NewLoader(p, testLogger(), testOptions())

	l.EnsureLoaded(context.Background())
	l.EnsureLoaded(context.Background())

	if len(p.scripts) != 1 {
		t.Fatalf("scripts inserted = %d, want 1", len(p.scripts))
	}
	if p.scripts[0] != testOptions().ScriptSrc {
		t.Errorf("script src = %q", p.scripts[0])
	}
}

func TestEnsureLoaded_ExistingScriptTag(t *testing.T) {
	p := newFakePage(t, `<script id="`+ScriptElementID+`" src="https://cdn.example/other.js"></script>`)
	NewLoader(p, testLogger(), testOptions()).EnsureLoaded(context.Background())

	if len(p.scripts) != 0 {
		t.Errorf("scripts inserted = %d, want 0", len(p.scripts))
	}
}

func TestEnsureLoaded_FailureIsSilent(t *testing.T) {
	p := newFakePage(t, "")
	p.scriptErr = errors.New("net::ERR_BLOCKED_BY_CLIENT")
	l := NewLoader(p, testLogger(), testOptions())

	l.EnsureLoaded(context.Background())
	if l.WaitReady(context.Background()) {
		t.Error("WaitReady = true after a failed load")
	}
}

func TestWaitReady_AfterLoad(t *testing.T) {
	p := newFakePage(t, "")
	p.onScriptLoad = func() { installWidget(p, widgetSetup{}) }
	l := NewLoader(p, testLogger(), testOptions())

	l.EnsureLoaded(context.Background())
	if !l.WaitReady(context.Background()) {
		t.Error("WaitReady = false, want true once the script installed the global")
	}
}

func TestWatch_RefreshesOnNewPlaceholder(t *testing.T) {
	p := newFakePage(t, "")
	installWidget(p, widgetSetup{enhance: true})
	l := NewLoader(p, testLogger(), testOptions())

	if err := l.Watch(context.Background()); err != nil {
		t.Fatalf("Watch: %v", err)
	}
	if err := l.Watch(context.Background()); err != nil {
		t.Fatalf("second Watch: %v", err)
	}
	if len(p.observers) != 1 {
		t.Fatalf("observers = %d, want 1", len(p.observers))
	}

	p.insert(placeholder("uuid-late", "late"))

	if len(p.callsTo(GlobalName+".refresh")) != 1 {
		t.Error("expected one refresh per inserted placeholder")
	}
	node, ok, _ := p.QueryNode(context.Background(), `.booqable-product-button[data-id="uuid-late"] button`)
	if !ok || node == "" {
		t.Error("late placeholder was not enhanced")
	}
}
