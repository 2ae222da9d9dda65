package estimation

import (
	"errors"
	"testing"

	"estimator/internal/apperror"

	"github.com/shopspring/decimal"
)

func TestRoundRate(t *testing.T) {
	tests := []struct {
		name   string
		rate   string
		expect string
	}{
		{"already on step", "100", "100"},
		{"just above upper half rounds up", "100.03", "100.05"},
		{"below midpoint rounds down", "100.02", "100"},
		{"midpoint rounds down", "100.025", "100"},
		{"just past midpoint rounds up", "100.026", "100.05"},
		{"upper step", "100.07", "100.05"},
		{"upper step past midpoint", "100.08", "100.1"},
		{"zero", "0", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertDecimal(t, "RoundRate("+tt.rate+")", RoundRate(d(tt.rate)), d(tt.expect))
		})
	}
}

func TestEvaluateWithoutEntries(t *testing.T) {
	for base, want := range map[string]string{"100": "100.00", "100.03": "100.05", "100.02": "100.00"} {
		res := Evaluate(d(base), nil)
		assertDecimal(t, "CalculatedRate", res.CalculatedRate, d(base))
		if got := res.FinalRate.StringFixed(2); got != want {
			t.Errorf("Evaluate(%s).FinalRate = %s, want %s", base, got, want)
		}
	}
}

func TestEntryAmounts(t *testing.T) {
	base := d("100")
	tests := []struct {
		name   string
		kind   EntryType
		value  string
		factor string
		expect string
	}{
		{"tax", EntryTax, "18", "1", "18"},
		{"addition with factor", EntryAddition, "50", "2", "100"},
		{"deletion", EntryDeletion, "10", "1", "-10"},
		{"tax with factor", EntryTax, "5", "0.5", "2.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := NewEntry(tt.kind, tt.name, d(tt.value), d(tt.factor))
			if err != nil {
				t.Fatalf("NewEntry: %v", err)
			}
			if e.Type() != tt.kind {
				t.Errorf("Type() = %s, want %s", e.Type(), tt.kind)
			}
			assertDecimal(t, "Amount", e.Amount(base), d(tt.expect))
		})
	}
}

func TestEvaluateAggregates(t *testing.T) {
	entries := []Entry{
		Addition{Name: "carriage", Value: d("50"), Factor: d("2")},
		Deletion{Name: "salvage", Value: d("10"), Factor: d("1")},
		Tax{Name: "GST", Percent: d("18"), Factor: d("1")},
		Addition{Name: "loading", Value: d("0.01"), Factor: d("1")},
	}

	res := Evaluate(d("100"), entries)
	assertDecimal(t, "Additions", res.Additions, d("100.01"))
	assertDecimal(t, "Deletions", res.Deletions, d("10"))
	assertDecimal(t, "Taxes", res.Taxes, d("18"))
	assertDecimal(t, "CalculatedRate", res.CalculatedRate, d("208.01"))
	assertDecimal(t, "FinalRate", res.FinalRate, d("208"))
	assertDecimal(t, "TotalRate", res.TotalRate, d("208"))
	if res.HasFinalTax {
		t.Error("HasFinalTax should be false before WithFinalTax")
	}
	if len(res.Amounts) != 4 {
		t.Fatalf("len(Amounts) = %d, want 4", len(res.Amounts))
	}
	assertDecimal(t, "deletion amount", res.Amounts[1], d("-10"))
}

func TestTaxFollowsBaseRate(t *testing.T) {
	entries := []Entry{Tax{Name: "GST", Percent: d("10"), Factor: d("1")}}

	first := Evaluate(d("100"), entries)
	second := Evaluate(d("250"), entries)
	assertDecimal(t, "tax on 100", first.Taxes, d("10"))
	assertDecimal(t, "tax on 250", second.Taxes, d("25"))
}

func TestWithFinalTax(t *testing.T) {
	res := Evaluate(d("100.03"), nil).WithFinalTax(d("12"))
	assertDecimal(t, "FinalRate", res.FinalRate, d("100.05"))
	assertDecimal(t, "FinalTaxAmount", res.FinalTaxAmount, d("12.006"))
	assertDecimal(t, "TotalRate is not rounded", res.TotalRate, d("112.056"))
	if !res.HasFinalTax {
		t.Error("HasFinalTax = false, want true")
	}
}

func TestNewEntryValidation(t *testing.T) {
	tests := []struct {
		name   string
		kind   EntryType
		value  string
		factor string
	}{
		{"zero value", EntryAddition, "0", "1"},
		{"zero factor", EntryTax, "18", "0"},
		{"unknown type", EntryType("discount"), "5", "1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEntry(tt.kind, tt.name, d(tt.value), d(tt.factor))
			if !errors.Is(err, apperror.ErrValidation) {
				t.Fatalf("err = %v, want ErrValidation", err)
			}
		})
	}
}

func TestResolveBaseRate(t *testing.T) {
	saved, selected, fallback := dp("90"), dp("80"), dp("70")

	tests := []struct {
		name     string
		saved    *decimal.Decimal
		selected *decimal.Decimal
		fallback *decimal.Decimal
		expect   string
	}{
		{"saved wins", saved, selected, fallback, "90"},
		{"selected rate next", nil, selected, fallback, "80"},
		{"caller default next", nil, nil, fallback, "70"},
		{"zero when nothing", nil, nil, nil, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertDecimal(t, "ResolveBaseRate", ResolveBaseRate(tt.saved, tt.selected, tt.fallback), d(tt.expect))
		})
	}
}
