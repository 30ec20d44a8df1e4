package widget

import (
	"context"
	"errors"
	"testing"
)

func TestDiscover_Absent(t *testing.T) {
	p := newFakePage(t, "")
	if h := Discover(context.Background(), p, testLogger()); h != nil {
		t.Fatal("expected nil handle when widget global is missing")
	}
}

func TestDiscover_ValueIsNotAHandle(t *testing.T) {
	p := newFakePage(t, "")
	p.define(GlobalName, &fakeGlobal{kind: KindValue})
	if h := Discover(context.Background(), p, testLogger()); h != nil {
		t.Fatal("expected nil handle for a scalar global")
	}
}

func TestDiscover_WithCart(t *testing.T) {
	p := newFakePage(t, "")
	installWidget(p, widgetSetup{})
	p.defineFunc(GlobalName+".cart.addItems", accepts)

	h := Discover(context.Background(), p, testLogger())
	if h == nil {
		t.Fatal("expected handle")
	}
	if !h.HasCart() {
		t.Error("HasCart = false, want true")
	}
	if !h.Can(context.Background(), "cart.addItems") {
		t.Error("Can(cart.addItems) = false, want true")
	}
	if h.Can(context.Background(), "cart.addLines") {
		t.Error("Can(cart.addLines) = true, want false")
	}
}

func TestHandle_InvokeMissingIsAbsent(t *testing.T) {
	p := newFakePage(t, "")
	installWidget(p, widgetSetup{})

	h := Discover(context.Background(), p, testLogger())
	err := h.Invoke(context.Background(), "cart.setDates", "a", "b")
	if !errors.Is(err, ErrAbsent) {
		t.Errorf("Invoke error = %v, want ErrAbsent", err)
	}
	if len(p.callsTo(GlobalName+".cart.setDates")) != 0 {
		t.Error("absent method must not be called")
	}
}

func TestHandle_InvokeThrows(t *testing.T) {
	p := newFakePage(t, "")
	installWidget(p, widgetSetup{})
	p.defineFunc(GlobalName+".cart.add", throws("bad arguments"))

	h := Discover(context.Background(), p, testLogger())
	err := h.Invoke(context.Background(), "cart.add", "x", 1)
	if !IsInvocationError(err) {
		t.Errorf("Invoke error = %v, want InvocationError", err)
	}
}

func TestHandle_CartItemsIDFields(t *testing.T) {
	p := newFakePage(t, "")
	installWidget(p, widgetSetup{})
	p.define(GlobalName+".cartData.items", &fakeGlobal{kind: KindObject, get: func() any {
		return []map[string]any{
			{"product_id": "p1", "quantity": 2},
			{"item_id": "p2"},
			{"productId": "p3", "quantity": 1},
			{"id": "p4", "quantity": 4},
			{"name": "no id"},
		}
	}})

	lines, ok := Discover(context.Background(), p, testLogger()).CartItems(context.Background())
	if !ok {
		t.Fatal("expected structured cart data")
	}
	want := []CartLine{{"p1", 2}, {"p2", 1}, {"p3", 1}, {"p4", 4}}
	if len(lines) != len(want) {
		t.Fatalf("lines = %+v, want %+v", lines, want)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("lines[%d] = %+v, want %+v", i, lines[i], want[i])
		}
	}
}

func TestRefreshSignal(t *testing.T) {
	t.Run("no-op without widget", func(t *testing.T) {
		p := newFakePage(t, "")
		RefreshSignal(context.Background(), p, testLogger())
		if len(p.callPaths()) != 0 {
			t.Errorf("calls = %v, want none", p.callPaths())
		}
	})

	t.Run("calls refresh and trigger", func(t *testing.T) {
		p := newFakePage(t, "")
		installWidget(p, widgetSetup{})
		RefreshSignal(context.Background(), p, testLogger())

		if len(p.callsTo(GlobalName+".refresh")) != 1 {
			t.Error("refresh not called")
		}
		trig := p.callsTo(GlobalName + ".trigger")
		if len(trig) != 1 || trig[0].Args[0] != PageChangeEvent {
			t.Errorf("trigger calls = %+v, want one page-change", trig)
		}
	})

	t.Run("throwing refresh is ignored", func(t *testing.T) {
		p := newFakePage(t, "")
		p.defineObject(GlobalName)
		p.defineFunc(GlobalName+".refresh", throws("not ready"))
		RefreshSignal(context.Background(), p, testLogger())
	})
}
