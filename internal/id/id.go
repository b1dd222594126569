package id

import (
	"fmt"
	"strings"

	clierr "github.com/ggonzalez94/aptos-agent-cli/internal/errors"
)

const (
	// NativeCoinType is the legacy coin-standard identity of the gas asset.
	NativeCoinType = "0x1::aptos_coin::AptosCoin"
	// NativeFAAlias is the short fungible-asset address of the gas asset.
	NativeFAAlias  = "0xa"
	NativeSymbol   = "APT"
	NativeDecimals = 8

	addressHexLen = 64
)

// NativeFAAddress is NativeFAAlias in canonical long form.
var NativeFAAddress = mustNormalizeAddress(NativeFAAlias)

// Asset is a ledger asset under dual addressing: a legacy coin type, a
// fungible-asset metadata address, or both for migrated assets.
type Asset struct {
	Symbol    string `json:"symbol"`
	Name      string `json:"name,omitempty"`
	CoinType  string `json:"coin_type,omitempty"`
	FAAddress string `json:"fa_address,omitempty"`
	Decimals  int    `json:"decimals"`
}

func (a Asset) IsNative() bool {
	if NormalizeCoinType(a.CoinType) == NativeCoinType {
		return true
	}
	norm, err := NormalizeAddress(a.FAAddress)
	return err == nil && norm == NativeFAAddress
}

// Keys returns every canonical identity of the asset. The native asset
// always carries both conventions so alias forms compare equal.
func (a Asset) Keys() []string {
	keys := make([]string, 0, 2)
	if ct := NormalizeCoinType(a.CoinType); ct != "" {
		keys = append(keys, strings.ToLower(ct))
	}
	if fa, err := NormalizeAddress(a.FAAddress); err == nil && a.FAAddress != "" {
		keys = append(keys, fa)
	}
	if a.IsNative() {
		keys = appendMissing(keys, strings.ToLower(NativeCoinType), NativeFAAddress)
	}
	return keys
}

// Same reports whether two asset references identify the same asset under
// either addressing convention.
func Same(a, b Asset) bool {
	for _, ka := range a.Keys() {
		for _, kb := range b.Keys() {
			if ka == kb {
				return true
			}
		}
	}
	return false
}

// SamePair reports whether the (in, out) pairs match, in either direction.
func SamePair(aIn, aOut, bIn, bOut Asset) bool {
	if Same(aIn, bIn) && Same(aOut, bOut) {
		return true
	}
	return Same(aIn, bOut) && Same(aOut, bIn)
}

// NormalizeAddress canonicalizes a ledger address to lowercase 0x-prefixed
// 64-hex form. It is idempotent: long-form input passes through unchanged.
func NormalizeAddress(addr string) (string, error) {
	clean := strings.ToLower(strings.TrimSpace(addr))
	if clean == "" {
		return "", clierr.New(clierr.CodeUsage, "address is required")
	}
	clean = strings.TrimPrefix(clean, "0x")
	if clean == "" || len(clean) > addressHexLen {
		return "", clierr.New(clierr.CodeUsage, fmt.Sprintf("invalid ledger address: %s", addr))
	}
	for _, c := range clean {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return "", clierr.New(clierr.CodeUsage, fmt.Sprintf("invalid ledger address: %s", addr))
		}
	}
	return "0x" + strings.Repeat("0", addressHexLen-len(clean)) + clean, nil
}

// ShortAddress trims leading zeros, the display convention for well-known
// addresses like 0x1.
func ShortAddress(addr string) string {
	norm, err := NormalizeAddress(addr)
	if err != nil {
		return addr
	}
	trimmed := strings.TrimLeft(strings.TrimPrefix(norm, "0x"), "0")
	if trimmed == "" {
		trimmed = "0"
	}
	return "0x" + trimmed
}

// IsCoinType reports whether input looks like a Move struct tag
// (address::module::Name) rather than a bare address.
func IsCoinType(input string) bool {
	return strings.Contains(input, "::")
}

// NormalizeCoinType canonicalizes the address component of a coin struct tag
// to short form, preserving module and struct casing. Invalid input is
// returned unchanged; it will simply never match a canonical key.
func NormalizeCoinType(coinType string) string {
	clean := strings.TrimSpace(coinType)
	if clean == "" {
		return ""
	}
	parts := strings.SplitN(clean, "::", 3)
	if len(parts) != 3 {
		return clean
	}
	return ShortAddress(parts[0]) + "::" + parts[1] + "::" + parts[2]
}

// ParseRef classifies raw user input as a coin type, fungible-asset address,
// or symbol to resolve against the token catalog.
type Ref struct {
	CoinType  string
	FAAddress string
	Symbol    string
}

func ParseRef(input string) (Ref, error) {
	clean := strings.TrimSpace(input)
	if clean == "" {
		return Ref{}, clierr.New(clierr.CodeUsage, "asset is required")
	}
	if IsCoinType(clean) {
		return Ref{CoinType: NormalizeCoinType(clean)}, nil
	}
	if strings.HasPrefix(strings.ToLower(clean), "0x") {
		addr, err := NormalizeAddress(clean)
		if err != nil {
			return Ref{}, err
		}
		return Ref{FAAddress: addr}, nil
	}
	return Ref{Symbol: strings.ToUpper(clean)}, nil
}

// Matches reports whether the reference identifies the asset. Symbol refs
// compare case-insensitively; address and coin-type refs compare by
// canonical key.
func (r Ref) Matches(a Asset) bool {
	if r.Symbol != "" {
		return strings.EqualFold(r.Symbol, a.Symbol)
	}
	probe := Asset{CoinType: r.CoinType, FAAddress: r.FAAddress}
	return Same(probe, a)
}

func appendMissing(keys []string, candidates ...string) []string {
	for _, c := range candidates {
		found := false
		for _, k := range keys {
			if k == c {
				found = true
				break
			}
		}
		if !found {
			keys = append(keys, c)
		}
	}
	return keys
}

func mustNormalizeAddress(addr string) string {
	norm, err := NormalizeAddress(addr)
	if err != nil {
		panic(err)
	}
	return norm
}
