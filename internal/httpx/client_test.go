package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	clierr "github.com/ggonzalez94/aptos-agent-cli/internal/errors"
)

func TestDoJSONRetriesServerError(t *testing.T) {
	var count int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&count, 1)
		if n == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"x"}`))
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	client := New(2*time.Second, 1)
	var out map[string]any
	if _, err := GetJSON(context.Background(), client, srv.URL, nil, &out); err != nil {
		t.Fatalf("GetJSON failed: %v", err)
	}
	if out["ok"] != true {
		t.Fatalf("unexpected response: %#v", out)
	}
}

func TestDoJSONRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := New(time.Second, 0)
	_, err := GetJSON(context.Background(), client, srv.URL, nil, nil)
	cErr, ok := clierr.As(err)
	if !ok || cErr.Code != clierr.CodeRateLimited {
		t.Fatalf("expected rate-limited error, got %v", err)
	}
}

func TestPostJSONReplaysBodyAcrossRetries(t *testing.T) {
	var count int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&count, 1)
		var body map[string]any
		if err := decodeBody(r, &body); err != nil || body["amount"] != "100" {
			t.Errorf("attempt %d: body not replayed: %v %v", n, body, err)
		}
		if n == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"done":true}`))
	}))
	defer srv.Close()

	client := New(2*time.Second, 1)
	var out map[string]any
	if _, err := PostJSON(context.Background(), client, srv.URL, map[string]string{"amount": "100"}, map[string]string{"x-api-key": "k"}, &out); err != nil {
		t.Fatalf("PostJSON failed: %v", err)
	}
	if out["done"] != true {
		t.Fatalf("unexpected response: %#v", out)
	}
}

func TestDoJSONAuthFailureIsNotRetried(t *testing.T) {
	var count int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&count, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := New(time.Second, 2)
	_, err := GetJSON(context.Background(), client, srv.URL, nil, nil)
	cErr, ok := clierr.As(err)
	if !ok || cErr.Code != clierr.CodeAuth {
		t.Fatalf("expected auth error, got %v", err)
	}
	if atomic.LoadInt32(&count) != 1 {
		t.Fatalf("auth failure retried %d times", count)
	}
}

func decodeBody(r *http.Request, out any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(out)
}
