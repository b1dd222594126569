package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ggonzalez94/aptos-agent-cli/internal/cache"
	clierr "github.com/ggonzalez94/aptos-agent-cli/internal/errors"
	"github.com/ggonzalez94/aptos-agent-cli/internal/httpx"
	"github.com/ggonzalez94/aptos-agent-cli/internal/id"
)

func TestResolveAssetFromBuiltins(t *testing.T) {
	s := New(httpx.New(time.Second, 0), "", nil, zerolog.Nop())

	apt, err := s.ResolveAsset(context.Background(), "apt")
	if err != nil {
		t.Fatalf("ResolveAsset(apt) failed: %v", err)
	}
	if !apt.IsNative() {
		t.Fatal("APT should resolve to the native asset")
	}

	alias, err := s.ResolveAsset(context.Background(), "0xa")
	if err != nil {
		t.Fatalf("ResolveAsset(0xa) failed: %v", err)
	}
	if !id.Same(apt, alias) {
		t.Fatal("alias and symbol resolution should agree")
	}

	_, err = s.ResolveAsset(context.Background(), "NOPE")
	cErr, ok := clierr.As(err)
	if !ok || cErr.Code != clierr.CodeUnsupported {
		t.Fatalf("expected unsupported error, got %v", err)
	}
}

func TestTokensCacheAside(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"symbol":"FOO","fa_address":"0x123","decimals":6}]`))
	}))
	defer srv.Close()

	dir := t.TempDir()
	store, err := cache.Open(filepath.Join(dir, "cache.db"), filepath.Join(dir, "cache.lock"))
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	defer store.Close()

	s := New(httpx.New(2*time.Second, 0), srv.URL, store, zerolog.Nop())
	for i := 0; i < 3; i++ {
		tokens, err := s.Tokens(context.Background())
		if err != nil {
			t.Fatalf("Tokens failed: %v", err)
		}
		if len(tokens) != 1 || tokens[0].Symbol != "FOO" {
			t.Fatalf("unexpected tokens: %+v", tokens)
		}
	}
	if calls.Load() != 1 {
		t.Fatalf("expected one upstream fetch, got %d", calls.Load())
	}
}

func TestTokensFallBackWhenCatalogDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := New(httpx.New(time.Second, 0), srv.URL, nil, zerolog.Nop())
	tokens, err := s.Tokens(context.Background())
	if err != nil {
		t.Fatalf("Tokens failed: %v", err)
	}
	if len(tokens) == 0 {
		t.Fatal("expected built-in tokens on catalog outage")
	}
}
