package wallet

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"os"
	"strings"

	"golang.org/x/crypto/sha3"

	clierr "github.com/ggonzalez94/aptos-agent-cli/internal/errors"
	"github.com/ggonzalez94/aptos-agent-cli/internal/id"
)

const (
	EnvPrivateKey = "APT_PRIVATE_KEY"

	ed25519Scheme = 0x00
)

// LocalSigner signs node-encoded signing messages with an ed25519 key held
// in memory.
type LocalSigner struct {
	key     ed25519.PrivateKey
	address string
}

// NewSigner builds a signer from a hex private key (32-byte seed or 64-byte
// expanded key). When address is empty the single-key auth address is
// derived from the public key.
func NewSigner(privateKeyHex, address string) (*LocalSigner, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x"))
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeSigner, "decode private key", err)
	}

	var key ed25519.PrivateKey
	switch len(raw) {
	case ed25519.SeedSize:
		key = ed25519.NewKeyFromSeed(raw)
	case ed25519.PrivateKeySize:
		key = ed25519.PrivateKey(raw)
	default:
		return nil, clierr.New(clierr.CodeSigner, "private key must be a 32-byte seed or 64-byte ed25519 key")
	}

	if strings.TrimSpace(address) == "" {
		address = deriveAddress(key.Public().(ed25519.PublicKey))
	}
	norm, err := id.NormalizeAddress(address)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeSigner, "invalid signer address", err)
	}
	return &LocalSigner{key: key, address: norm}, nil
}

// SignerForUser resolves a signer: the wallet service record for the user
// when one is configured, otherwise the APT_PRIVATE_KEY environment key.
func SignerForUser(ctx context.Context, c *Client, userID string) (*LocalSigner, error) {
	if c.Configured() && strings.TrimSpace(userID) != "" {
		w, err := c.Wallet(ctx, userID)
		if err != nil {
			return nil, err
		}
		return NewSigner(w.PrivateKey, w.Address)
	}
	if keyHex := strings.TrimSpace(os.Getenv(EnvPrivateKey)); keyHex != "" {
		return NewSigner(keyHex, "")
	}
	return nil, clierr.New(clierr.CodeSigner, "no signing key available: configure the wallet service or set APT_PRIVATE_KEY")
}

func (s *LocalSigner) Address() string {
	return s.address
}

func (s *LocalSigner) PublicKeyHex() string {
	return "0x" + hex.EncodeToString(s.key.Public().(ed25519.PublicKey))
}

func (s *LocalSigner) Sign(message []byte) (string, error) {
	if s == nil || len(s.key) == 0 {
		return "", clierr.New(clierr.CodeSigner, "signer is not initialized")
	}
	return "0x" + hex.EncodeToString(ed25519.Sign(s.key, message)), nil
}

// deriveAddress is the single-key account address: sha3-256(pubkey || scheme).
func deriveAddress(pub ed25519.PublicKey) string {
	h := sha3.New256()
	h.Write(pub)
	h.Write([]byte{ed25519Scheme})
	return "0x" + hex.EncodeToString(h.Sum(nil))
}
