package wallet

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	clierr "github.com/ggonzalez94/aptos-agent-cli/internal/errors"
	"github.com/ggonzalez94/aptos-agent-cli/internal/httpx"
	"github.com/ggonzalez94/aptos-agent-cli/internal/id"
)

// Wallet is a key record returned by the custodial wallet service.
type Wallet struct {
	UserID     string `json:"user_id"`
	Address    string `json:"address"`
	PublicKey  string `json:"public_key"`
	PrivateKey string `json:"private_key"`
}

type Client struct {
	http    *httpx.Client
	baseURL string
}

func NewClient(httpClient *httpx.Client, baseURL string) *Client {
	return &Client{
		http:    httpClient,
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
	}
}

func (c *Client) Configured() bool {
	return c != nil && c.baseURL != ""
}

// Wallet fetches the key record for a user id.
func (c *Client) Wallet(ctx context.Context, userID string) (Wallet, error) {
	if !c.Configured() {
		return Wallet{}, clierr.New(clierr.CodeUsage, "wallet service is not configured (set APT_WALLET_SERVICE_URL)")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Wallet{}, clierr.New(clierr.CodeUsage, "--user is required")
	}

	var w Wallet
	endpoint := fmt.Sprintf("%s/wallets/%s", c.baseURL, url.PathEscape(userID))
	if _, err := httpx.GetJSON(ctx, c.http, endpoint, nil, &w); err != nil {
		return Wallet{}, err
	}
	if strings.TrimSpace(w.Address) == "" || strings.TrimSpace(w.PrivateKey) == "" {
		return Wallet{}, clierr.New(clierr.CodeSigner, "wallet service returned an incomplete key record")
	}
	addr, err := id.NormalizeAddress(w.Address)
	if err != nil {
		return Wallet{}, clierr.Wrap(clierr.CodeSigner, "wallet service returned invalid address", err)
	}
	w.Address = addr
	return w, nil
}
