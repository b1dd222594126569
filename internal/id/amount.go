package id

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"

	clierr "github.com/ggonzalez94/aptos-agent-cli/internal/errors"
)

const (
	MinSlippagePct     = 0.1
	MaxSlippagePct     = 50.0
	DefaultSlippagePct = 0.5
)

// ToBaseUnits converts a human decimal amount into the asset's smallest
// unit: round(amount * 10^decimals), half up.
func ToBaseUnits(amountDecimal string, decimals int) (string, error) {
	clean := strings.TrimSpace(amountDecimal)
	if clean == "" {
		return "", clierr.New(clierr.CodeUsage, "amount is required")
	}
	if decimals < 0 {
		return "", clierr.New(clierr.CodeUsage, "decimals must be >= 0")
	}
	d, err := decimal.NewFromString(clean)
	if err != nil {
		return "", clierr.New(clierr.CodeUsage, "amount must be in decimal form like 1.23")
	}
	if d.IsNegative() {
		return "", clierr.New(clierr.CodeUsage, "amount must be non-negative")
	}
	return d.Shift(int32(decimals)).Round(0).BigInt().String(), nil
}

// FromBaseUnits renders a base-unit integer string as a decimal amount.
func FromBaseUnits(baseUnits string, decimals int) string {
	d, err := decimal.NewFromString(strings.TrimSpace(baseUnits))
	if err != nil {
		return baseUnits
	}
	return d.Shift(int32(-decimals)).String()
}

// ParseBaseUnits validates a non-negative base-unit integer string.
func ParseBaseUnits(raw string) (*big.Int, error) {
	clean := strings.TrimSpace(raw)
	if clean == "" {
		return big.NewInt(0), nil
	}
	v, ok := new(big.Int).SetString(clean, 10)
	if !ok {
		return nil, clierr.New(clierr.CodeUsage, fmt.Sprintf("invalid base-units amount: %s", raw))
	}
	if v.Sign() < 0 {
		return nil, clierr.New(clierr.CodeUsage, "amount must be non-negative")
	}
	return v, nil
}

// ValidateSlippage bounds the tolerance percentage to [0.1, 50].
func ValidateSlippage(pct float64) error {
	if pct < MinSlippagePct || pct > MaxSlippagePct {
		return clierr.New(clierr.CodeUsage, fmt.Sprintf("slippage must be between %.1f and %.0f percent", MinSlippagePct, MaxSlippagePct))
	}
	return nil
}

// MinOut computes the slippage floor: floor(estimatedOut * (1 - pct/100)).
func MinOut(estimatedOut string, slippagePct float64) (string, error) {
	if err := ValidateSlippage(slippagePct); err != nil {
		return "", err
	}
	out, err := decimal.NewFromString(strings.TrimSpace(estimatedOut))
	if err != nil {
		return "", clierr.New(clierr.CodeUsage, fmt.Sprintf("invalid estimated output: %s", estimatedOut))
	}
	keep := decimal.NewFromInt(1).Sub(decimal.NewFromFloat(slippagePct).Div(decimal.NewFromInt(100)))
	return out.Mul(keep).Floor().BigInt().String(), nil
}

// FallbackQuote is the deterministic degraded estimate used when a venue
// cannot be queried: floor(0.9 * amountIn).
func FallbackQuote(amountIn string) string {
	in, err := decimal.NewFromString(strings.TrimSpace(amountIn))
	if err != nil {
		return "0"
	}
	return in.Mul(decimal.NewFromFloat(0.9)).Floor().BigInt().String()
}
