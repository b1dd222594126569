package ledger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func gasNode(t *testing.T, gasEstimate uint64, sim *SimulationResult) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/estimate_gas_price":
			if gasEstimate == 0 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.Write([]byte(`{"gas_estimate":` + jsonUint(gasEstimate) + `}`))
		case strings.HasPrefix(r.URL.Path, "/accounts/"):
			json.NewEncoder(w).Encode(Account{SequenceNumber: "0"})
		case r.URL.Path == "/transactions/simulate":
			if sim == nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			json.NewEncoder(w).Encode([]SimulationResult{*sim})
		default:
			http.NotFound(w, r)
		}
	}))
}

func jsonUint(v uint64) string {
	raw, _ := json.Marshal(v)
	return string(raw)
}

func estimate(t *testing.T, server *httptest.Server) Estimate {
	t.Helper()
	e := NewEstimator(newTestClient(server.URL), zerolog.Nop())
	return e.EstimateEntryFunction(context.Background(), &stubSigner{addr: "0x42"}, EntryFunction{Function: "0x1::x::y"})
}

func TestEstimateBuffersAndCapsGasUnits(t *testing.T) {
	server := gasNode(t, 100, &SimulationResult{Success: true, GasUsed: "2000", GasUnitPrice: "100", MaxGasAmount: "180000"})
	defer server.Close()

	est := estimate(t, server)
	if !est.Simulated {
		t.Fatal("expected a simulated estimate")
	}
	// 180000 * 1.2 exceeds the unit cap.
	if est.MaxGasUnits != 200_000 {
		t.Fatalf("max gas units should be capped at 200000, got %d", est.MaxGasUnits)
	}
	if est.TotalOcta != 200_000 {
		t.Fatalf("unexpected expected fee: %d", est.TotalOcta)
	}
	if est.MaxOcta != 10_000_000 {
		t.Fatalf("max fee should be capped at 0.1 native, got %d", est.MaxOcta)
	}
	if est.MaxNative != "0.1" {
		t.Fatalf("unexpected native rendering: %s", est.MaxNative)
	}
}

func TestEstimateCapsExpectedFee(t *testing.T) {
	server := gasNode(t, 10_000, &SimulationResult{Success: true, GasUsed: "100000", GasUnitPrice: "10000", MaxGasAmount: "100000"})
	defer server.Close()

	est := estimate(t, server)
	if est.TotalOcta != 5_000_000 {
		t.Fatalf("expected fee should be capped at 0.05 native, got %d", est.TotalOcta)
	}
	if est.MaxOcta != 10_000_000 {
		t.Fatalf("max fee should be capped at 0.1 native, got %d", est.MaxOcta)
	}
}

func TestEstimateDefaultsWhenSimulationUnavailable(t *testing.T) {
	server := gasNode(t, 120, nil)
	defer server.Close()

	est := estimate(t, server)
	if est.Simulated {
		t.Fatal("estimate should be marked unsimulated")
	}
	if est.GasUsed != 1_500 || est.MaxGasUnits != 20_000 {
		t.Fatalf("expected conservative defaults, got %+v", est)
	}
	if est.UnitPrice != 120 {
		t.Fatalf("node gas price should still be used: %d", est.UnitPrice)
	}
}

func TestEstimateDefaultsWhenSimulationRejected(t *testing.T) {
	server := gasNode(t, 100, &SimulationResult{Success: false, VMStatus: "ABORTED"})
	defer server.Close()

	est := estimate(t, server)
	if est.Simulated || est.GasUsed != 1_500 {
		t.Fatalf("rejected simulation should fall back to defaults: %+v", est)
	}
}

func TestEstimateDefaultsWhenGasPriceUnavailable(t *testing.T) {
	server := gasNode(t, 0, nil)
	defer server.Close()

	est := estimate(t, server)
	if est.UnitPrice != 100 {
		t.Fatalf("expected default unit price, got %d", est.UnitPrice)
	}
	if est.TotalOcta != 100*1_500 {
		t.Fatalf("unexpected expected fee: %d", est.TotalOcta)
	}
}
