package httpx

import (
	"context"
	"errors"
	"net"
	"net/http"
	"testing"
	"time"
)

func TestDoReturnsHTTPError(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v0/cat" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("arg") != "abc" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"Message":"boom"}`))
	})
	srv := newLocalServer(t, handler)
	defer srv.Close()

	client, err := NewClient(srv.URL + "/api/v0")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	_, err = client.Do(context.Background(), &Request{
		Method: http.MethodPost,
		Path:   "cat",
		Query:  map[string][]string{"arg": {"abc"}},
	})
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected *HTTPError, got %v", err)
	}
	if httpErr.StatusCode != http.StatusInternalServerError {
		t.Fatalf("unexpected status: %d", httpErr.StatusCode)
	}
	if string(httpErr.Body) != `{"Message":"boom"}` {
		t.Fatalf("unexpected body: %s", httpErr.Body)
	}
	if httpErr.JSON == nil {
		t.Fatalf("expected decoded JSON body")
	}
}

func TestDoEnforcesTimeout(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	srv := newLocalServer(t, handler)
	defer srv.Close()

	client, err := NewClient(srv.URL, WithTimeout(50*time.Millisecond))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	start := time.Now()
	_, err = client.Do(context.Background(), &Request{Method: http.MethodPost, Path: "slow"})
	if err == nil {
		t.Fatalf("expected timeout error")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("timeout fired too late: %v", elapsed)
	}
}

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient(""); err == nil {
		t.Fatalf("expected error for empty base URL")
	}
	client, err := NewClient("http://127.0.0.1:5001/api/v0")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, err := client.Do(context.Background(), nil); err == nil {
		t.Fatalf("expected error for nil request")
	}
	if _, err := client.Do(context.Background(), &Request{}); err == nil {
		t.Fatalf("expected error for missing method")
	}
}

type testServer struct {
	URL      string
	listener net.Listener
	server   *http.Server
}

func (s *testServer) Close() {
	_ = s.server.Shutdown(context.Background())
	_ = s.listener.Close()
}

func newLocalServer(t *testing.T, handler http.Handler) *testServer {
	t.Helper()
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Skipf("network disabled for tests: %v", err)
	}
	srv := &http.Server{Handler: handler}
	ts := &testServer{
		URL:      "http://" + ln.Addr().String(),
		listener: ln,
		server:   srv,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			t.Logf("test server serve error: %v", err)
		}
	}()
	return ts
}
