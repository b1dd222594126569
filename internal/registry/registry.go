package registry

import (
	"fmt"
	"strings"

	"github.com/ggonzalez94/aptos-agent-cli/internal/id"
)

const (
	DEXKindSinglePool     = "single_pool"
	DEXKindPathRouter     = "path_router"
	DEXKindExternalRouter = "external_router"
)

// DEX describes a venue the swap aggregator can route through.
type DEX struct {
	Name   string `json:"name"`
	Kind   string `json:"kind"`
	Router string `json:"router,omitempty"`
}

const (
	CellanaRouter    = "0x4bf51972879e3b95c4781a5cdcb9e1ee24ef483e7d22f2d903626f126df62bd1"
	LiquidswapRouter = "0x190d44266241744264b964a37b8f09863167a12d3e70cda39376cfb4e3561e12"
)

// DefaultTokens is the built-in token table used when no catalog service is
// configured. Entries carry whichever addressing conventions the asset has on
// mainnet; migrated assets carry both.
func DefaultTokens() []id.Asset {
	return []id.Asset{
		{Symbol: "APT", Name: "Aptos Coin", CoinType: id.NativeCoinType, FAAddress: id.NativeFAAlias, Decimals: 8},
		{Symbol: "USDC", Name: "USD Coin", FAAddress: "0xbae207659db88bea0cbead6da0ed00aac12edcdda169e591cd41c94180b46f3b", Decimals: 6},
		{Symbol: "USDT", Name: "Tether USD", FAAddress: "0x357b0b74bc833e95a115ad22604854d6b0fca151cecd94111770e5d6ffc9dc2b", Decimals: 6},
		{Symbol: "ZUSDC", Name: "USD Coin (LayerZero)", CoinType: "0xf22bede237a07e121b56d91a491eb7bcdfd1f5907926a9e58338f964a01b17fa::asset::USDC", Decimals: 6},
		{Symbol: "ZUSDT", Name: "Tether USD (LayerZero)", CoinType: "0xf22bede237a07e121b56d91a491eb7bcdfd1f5907926a9e58338f964a01b17fa::asset::USDT", Decimals: 6},
		{Symbol: "AMAPT", Name: "Amnis Aptos", CoinType: "0x111ae3e5bc816a5e63c2da97d0aa3886519e0cd5e4b046659fa35796bd11542a::amapt_token::AmnisApt", Decimals: 8},
		{Symbol: "THL", Name: "Thala Token", CoinType: "0x7fd500c11216f0fe3095d0c4b8aa4d64a4e2e04f83758462f2b127255643615::thl_coin::THL", Decimals: 8},
		{Symbol: "CELL", Name: "Cellana", FAAddress: "0x2ebb2ccac5e027a87fa0e2e5f656a3a4238d6a48d93ec9b610d570fc0aa0df12", Decimals: 8},
	}
}

// DefaultDEXes lists the venues wired into the aggregator by default.
func DefaultDEXes() []DEX {
	return []DEX{
		{Name: "cellana", Kind: DEXKindSinglePool, Router: CellanaRouter},
		{Name: "liquidswap", Kind: DEXKindPathRouter, Router: LiquidswapRouter},
		{Name: "panora", Kind: DEXKindExternalRouter},
	}
}

func ExplorerTxURL(base, hash string) string {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" || strings.TrimSpace(hash) == "" {
		return ""
	}
	return fmt.Sprintf("%s/txn/%s?network=mainnet", base, hash)
}

func ExplorerAccountURL(base, address string) string {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" || strings.TrimSpace(address) == "" {
		return ""
	}
	return fmt.Sprintf("%s/account/%s?network=mainnet", base, address)
}
