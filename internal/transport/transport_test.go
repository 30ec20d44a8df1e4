package transport

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// stubRoundTripper records calls and returns a fixed outcome.
type stubRoundTripper struct {
	calls  int
	bodies []string
	err    error
}

func (s *stubRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	s.calls++
	if req.Body != nil {
		b, _ := io.ReadAll(req.Body)
		s.bodies = append(s.bodies, string(b))
	}
	if s.err != nil {
		return nil, s.err
	}
	return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody, Request: req}, nil
}

func TestChromeTransport_PlainHTTP(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		got = string(b)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	client := &http.Client{Transport: NewChromeTransport(5 * time.Second)}
	resp, err := client.Post(srv.URL+"/orders", "application/json", strings.NewReader(`{"order":{}}`))
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusCreated || got != `{"order":{}}` {
		t.Errorf("status = %d, body = %q", resp.StatusCode, got)
	}
}

func TestChromeTransport_FallbackReplaysBody(t *testing.T) {
	h2 := &stubRoundTripper{err: errors.New("http2: server does not support")}
	h1 := &stubRoundTripper{}
	tr := &chromeTransport{h2: h2, h1: h1}

	req, _ := http.NewRequest(http.MethodPost, "https://acme.example/api/1/orders", bytes.NewReader([]byte("payload")))
	if _, err := tr.RoundTrip(req); err != nil {
		t.Fatalf("RoundTrip: %v", err)
	}
	if h1.calls != 1 || h1.bodies[0] != "payload" {
		t.Errorf("h1 calls = %d, bodies = %q", h1.calls, h1.bodies)
	}

	// The host is remembered; HTTP/2 is not tried again.
	req2, _ := http.NewRequest(http.MethodGet, "https://acme.example/api/1/orders/1", nil)
	if _, err := tr.RoundTrip(req2); err != nil {
		t.Fatalf("RoundTrip: %v", err)
	}
	if h2.calls != 1 || h1.calls != 2 {
		t.Errorf("h2 calls = %d, h1 calls = %d", h2.calls, h1.calls)
	}
}

func TestChromeTransport_NoReplayWithoutGetBody(t *testing.T) {
	h2 := &stubRoundTripper{err: errors.New("connection reset")}
	h1 := &stubRoundTripper{}
	tr := &chromeTransport{h2: h2, h1: h1}

	req, _ := http.NewRequest(http.MethodPost, "https://acme.example/api/1/orders", io.NopCloser(strings.NewReader("x")))
	req.GetBody = nil

	_, err := tr.RoundTrip(req)
	if err == nil || !strings.Contains(err.Error(), "not retried") {
		t.Errorf("err = %v", err)
	}
	if h1.calls != 0 {
		t.Errorf("h1 calls = %d, want 0", h1.calls)
	}
}

func TestChromeTransport_NoReplayAfterCancel(t *testing.T) {
	h2 := &stubRoundTripper{err: context.Canceled}
	h1 := &stubRoundTripper{}
	tr := &chromeTransport{h2: h2, h1: h1}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, "https://acme.example/", nil)

	if _, err := tr.RoundTrip(req); err == nil {
		t.Error("expected error")
	}
	if h1.calls != 0 {
		t.Errorf("h1 calls = %d, want 0", h1.calls)
	}
}
