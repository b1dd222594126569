package ledger

import (
	"context"
	"math"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/ggonzalez94/aptos-agent-cli/internal/id"
)

const (
	// OctaPerNative converts gas-fee base units into native units.
	OctaPerNative = 100_000_000

	gasUnitBuffer    = 1.2
	maxGasUnitsCap   = 200_000
	simulateMaxGas   = maxGasUnitsCap
	defaultUnitPrice = 100
	defaultGasUsed   = 1_500
	defaultMaxGas    = 20_000

	// Spend ceilings: 0.05 native for the expected fee, 0.1 for the cap.
	totalOctaCap = 5_000_000
	maxOctaCap   = 10_000_000
)

// Estimate is the fee projection attached to a prepared transaction.
type Estimate struct {
	UnitPrice   uint64 `json:"unit_price"`
	GasUsed     uint64 `json:"gas_used"`
	MaxGasUnits uint64 `json:"max_gas_units"`
	TotalOcta   uint64 `json:"total_octa"`
	MaxOcta     uint64 `json:"max_octa"`
	TotalNative string `json:"total_native"`
	MaxNative   string `json:"max_native"`
	Simulated   bool   `json:"simulated"`
}

// Estimator derives gas estimates by simulating against the node, degrading
// to fixed conservative defaults when simulation is unavailable.
type Estimator struct {
	client *Client
	log    zerolog.Logger
}

func NewEstimator(client *Client, log zerolog.Logger) *Estimator {
	return &Estimator{client: client, log: log}
}

// EstimateEntryFunction never fails: a transaction that cannot be simulated
// still gets a usable, capped estimate.
func (e *Estimator) EstimateEntryFunction(ctx context.Context, sender Signer, entry EntryFunction) Estimate {
	unitPrice := uint64(defaultUnitPrice)
	if price, err := e.client.EstimateGasPrice(ctx); err == nil {
		unitPrice = price
	} else {
		e.log.Warn().Err(err).Msg("gas price estimate unavailable, using default")
	}

	sim, err := e.client.Simulate(ctx, sender, entry, simulateMaxGas, unitPrice)
	if err != nil || !sim.Success {
		if err != nil {
			e.log.Warn().Err(err).Msg("simulation unavailable, using conservative gas defaults")
		} else {
			e.log.Warn().Str("vm_status", sim.VMStatus).Msg("simulation rejected, using conservative gas defaults")
		}
		return finalize(unitPrice, defaultGasUsed, defaultMaxGas, false)
	}

	gasUsed := parseUintOrDefault(sim.GasUsed, defaultGasUsed)
	simMax := parseUintOrDefault(sim.MaxGasAmount, defaultMaxGas)
	if price := parseUintOrDefault(sim.GasUnitPrice, 0); price > 0 {
		unitPrice = price
	}
	maxGas := uint64(math.Ceil(float64(simMax) * gasUnitBuffer))
	return finalize(unitPrice, gasUsed, maxGas, true)
}

func finalize(unitPrice, gasUsed, maxGas uint64, simulated bool) Estimate {
	if maxGas > maxGasUnitsCap {
		maxGas = maxGasUnitsCap
	}
	if maxGas < gasUsed {
		maxGas = gasUsed
	}
	total := unitPrice * gasUsed
	if total > totalOctaCap {
		total = totalOctaCap
	}
	maxFee := unitPrice * maxGas
	if maxFee > maxOctaCap {
		maxFee = maxOctaCap
	}
	return Estimate{
		UnitPrice:   unitPrice,
		GasUsed:     gasUsed,
		MaxGasUnits: maxGas,
		TotalOcta:   total,
		MaxOcta:     maxFee,
		TotalNative: id.FromBaseUnits(strconv.FormatUint(total, 10), 8),
		MaxNative:   id.FromBaseUnits(strconv.FormatUint(maxFee, 10), 8),
		Simulated:   simulated,
	}
}

func parseUintOrDefault(raw string, fallback uint64) uint64 {
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || v == 0 {
		return fallback
	}
	return v
}
