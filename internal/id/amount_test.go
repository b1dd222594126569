package id

import "testing"

func TestToBaseUnits(t *testing.T) {
	cases := []struct {
		amount   string
		decimals int
		want     string
	}{
		{"1", 8, "100000000"},
		{"0.5", 8, "50000000"},
		{"1.23", 6, "1230000"},
		{"0.0000001", 6, "0"},
		{"0.00000051", 6, "1"},
		{"0", 8, "0"},
	}
	for _, tc := range cases {
		got, err := ToBaseUnits(tc.amount, tc.decimals)
		if err != nil {
			t.Fatalf("ToBaseUnits(%s, %d) failed: %v", tc.amount, tc.decimals, err)
		}
		if got != tc.want {
			t.Fatalf("ToBaseUnits(%s, %d) = %s, want %s", tc.amount, tc.decimals, got, tc.want)
		}
	}
}

func TestToBaseUnitsRejectsInvalid(t *testing.T) {
	if _, err := ToBaseUnits("", 8); err == nil {
		t.Fatal("expected error for empty amount")
	}
	if _, err := ToBaseUnits("abc", 8); err == nil {
		t.Fatal("expected error for non-decimal amount")
	}
	if _, err := ToBaseUnits("-1", 8); err == nil {
		t.Fatal("expected error for negative amount")
	}
}

func TestFromBaseUnits(t *testing.T) {
	if got := FromBaseUnits("100000000", 8); got != "1" {
		t.Fatalf("unexpected decimal render: %s", got)
	}
	if got := FromBaseUnits("995000", 6); got != "0.995" {
		t.Fatalf("unexpected decimal render: %s", got)
	}
}

func TestMinOut(t *testing.T) {
	got, err := MinOut("1000000", 0.5)
	if err != nil {
		t.Fatalf("MinOut failed: %v", err)
	}
	if got != "995000" {
		t.Fatalf("MinOut(1000000, 0.5) = %s, want 995000", got)
	}

	// Floor, never round up.
	got, err = MinOut("999", 0.1)
	if err != nil {
		t.Fatalf("MinOut failed: %v", err)
	}
	if got != "998" {
		t.Fatalf("MinOut(999, 0.1) = %s, want 998", got)
	}
}

func TestMinOutSlippageBounds(t *testing.T) {
	if _, err := MinOut("1000", 0.05); err == nil {
		t.Fatal("expected error below minimum slippage")
	}
	if _, err := MinOut("1000", 51); err == nil {
		t.Fatal("expected error above maximum slippage")
	}
	if _, err := MinOut("1000", 50); err != nil {
		t.Fatalf("50 percent should be accepted: %v", err)
	}
}

func TestFallbackQuote(t *testing.T) {
	if got := FallbackQuote("1000"); got != "900" {
		t.Fatalf("FallbackQuote(1000) = %s, want 900", got)
	}
	if got := FallbackQuote("15"); got != "13" {
		t.Fatalf("FallbackQuote(15) = %s, want 13", got)
	}
}
