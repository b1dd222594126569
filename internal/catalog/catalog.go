package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ggonzalez94/aptos-agent-cli/internal/cache"
	clierr "github.com/ggonzalez94/aptos-agent-cli/internal/errors"
	"github.com/ggonzalez94/aptos-agent-cli/internal/httpx"
	"github.com/ggonzalez94/aptos-agent-cli/internal/id"
	"github.com/ggonzalez94/aptos-agent-cli/internal/registry"
)

const listTTL = 5 * time.Minute

// Service resolves token and venue metadata. With no catalog endpoint
// configured it serves the built-in registry tables; with one configured it
// reads through the sqlite cache with a 5 minute TTL and degrades to the
// built-ins when the endpoint is unreachable.
type Service struct {
	http    *httpx.Client
	baseURL string
	cache   *cache.Store
	log     zerolog.Logger
}

func New(httpClient *httpx.Client, baseURL string, store *cache.Store, log zerolog.Logger) *Service {
	return &Service{
		http:    httpClient,
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		cache:   store,
		log:     log,
	}
}

func (s *Service) Tokens(ctx context.Context) ([]id.Asset, error) {
	if s.baseURL == "" {
		return registry.DefaultTokens(), nil
	}

	var tokens []id.Asset
	if s.cached(ctx, "catalog|tokens", &tokens) && len(tokens) > 0 {
		return tokens, nil
	}
	if _, err := httpx.GetJSON(ctx, s.http, s.baseURL+"/tokens", nil, &tokens); err != nil {
		s.log.Warn().Err(err).Msg("token catalog unavailable, serving built-in table")
		return registry.DefaultTokens(), nil
	}
	s.store(ctx, "catalog|tokens", tokens)
	return tokens, nil
}

func (s *Service) DEXes(ctx context.Context) ([]registry.DEX, error) {
	if s.baseURL == "" {
		return registry.DefaultDEXes(), nil
	}

	var dexes []registry.DEX
	if s.cached(ctx, "catalog|dexes", &dexes) && len(dexes) > 0 {
		return dexes, nil
	}
	if _, err := httpx.GetJSON(ctx, s.http, s.baseURL+"/dexes", nil, &dexes); err != nil {
		s.log.Warn().Err(err).Msg("venue catalog unavailable, serving built-in table")
		return registry.DefaultDEXes(), nil
	}
	s.store(ctx, "catalog|dexes", dexes)
	return dexes, nil
}

// ResolveAsset turns raw user input (symbol, coin type, or FA address) into
// a catalog asset with metadata.
func (s *Service) ResolveAsset(ctx context.Context, input string) (id.Asset, error) {
	ref, err := id.ParseRef(input)
	if err != nil {
		return id.Asset{}, err
	}
	tokens, err := s.Tokens(ctx)
	if err != nil {
		return id.Asset{}, err
	}
	for _, token := range tokens {
		if ref.Matches(token) {
			return token, nil
		}
	}
	return id.Asset{}, clierr.New(clierr.CodeUnsupported, fmt.Sprintf("unknown asset: %s", input))
}

func (s *Service) cached(_ context.Context, key string, out any) bool {
	if s.cache == nil {
		return false
	}
	hit, err := s.cache.GetJSON(key, out)
	if err != nil {
		s.log.Debug().Err(err).Str("key", key).Msg("catalog cache read failed")
		return false
	}
	return hit
}

func (s *Service) store(_ context.Context, key string, value any) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetJSON(key, value, listTTL); err != nil {
		s.log.Debug().Err(err).Str("key", key).Msg("catalog cache write failed")
	}
}
