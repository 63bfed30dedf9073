package httpx

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

func testLogger() *zap.Logger {
	return zap.NewNop()
}

func TestDoSucceedsFirstTry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := New(Options{BaseURL: srv.URL, Timeout: 2 * time.Second, MaxRetries: 2, RetryWaitMin: 10 * time.Millisecond, RetryWaitMax: 100 * time.Millisecond, TLSVerify: true}, testLogger())

	resp, err := c.Do(t.Context(), &Request{Method: http.MethodGet, Path: "/ping"})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want 200", resp.StatusCode)
	}
}

func TestDoRetriesOn503ThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(Options{BaseURL: srv.URL, Timeout: 2 * time.Second, MaxRetries: 5, RetryWaitMin: 1 * time.Millisecond, RetryWaitMax: 10 * time.Millisecond, TLSVerify: true}, testLogger())

	resp, err := c.Do(t.Context(), &Request{Method: http.MethodGet, Path: "/flaky"})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want 200", resp.StatusCode)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDoGivesUpAfterMaxRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(Options{BaseURL: srv.URL, Timeout: 2 * time.Second, MaxRetries: 2, RetryWaitMin: 1 * time.Millisecond, RetryWaitMax: 5 * time.Millisecond, TLSVerify: true}, testLogger())

	_, err := c.Do(t.Context(), &Request{Method: http.MethodGet, Path: "/always-down"})
	if err == nil {
		t.Fatal("Do() expected error, got nil")
	}
}

func TestDoHonorsRetryAfterSeconds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(Options{BaseURL: srv.URL, Timeout: 2 * time.Second, MaxRetries: 2, RetryWaitMin: 1 * time.Millisecond, RetryWaitMax: 50 * time.Millisecond, TLSVerify: true}, testLogger())

	resp, err := c.Do(t.Context(), &Request{Method: http.MethodGet, Path: "/rate-limited"})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want 200", resp.StatusCode)
	}
}

func TestShouldRetry(t *testing.T) {
	cases := map[int]bool{
		200: false, 400: false, 404: false,
		429: true, 500: true, 502: true, 503: true, 504: true,
	}
	for code, want := range cases {
		if got := shouldRetry(code); got != want {
			t.Errorf("shouldRetry(%d) = %v, want %v", code, got, want)
		}
	}
}

func TestPingReturnsErrorOn5xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(Options{BaseURL: srv.URL, Timeout: time.Second, MaxRetries: 0, RetryWaitMin: time.Millisecond, RetryWaitMax: time.Millisecond, TLSVerify: true}, testLogger())

	if err := c.Ping(t.Context(), "/health"); err == nil {
		t.Error("Ping() expected error for 503 response")
	}
}

func TestAuthHeaderInjected(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(Options{
		BaseURL: srv.URL, Timeout: time.Second, MaxRetries: 0,
		RetryWaitMin: time.Millisecond, RetryWaitMax: time.Millisecond, TLSVerify: true,
		AuthHeader: map[string]string{"Authorization": "Bearer sk-test"},
	}, testLogger())

	if _, err := c.Do(t.Context(), &Request{Method: http.MethodGet, Path: "/secure"}); err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if gotAuth != "Bearer sk-test" {
		t.Errorf("Authorization header = %q, want %q", gotAuth, "Bearer sk-test")
	}
}
