package estimation

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestSumSigned(t *testing.T) {
	tests := []struct {
		name   string
		rows   []SignedQuantity
		expect string
	}{
		{"deduction subtracts", []SignedQuantity{{Quantity: d("10")}, {Quantity: d("3"), IsDeduction: true}}, "7"},
		{"negative deduction still subtracts magnitude", []SignedQuantity{{Quantity: d("10")}, {Quantity: d("-3"), IsDeduction: true}}, "7"},
		{"no rows", nil, "0"},
		{"only deductions", []SignedQuantity{{Quantity: d("2"), IsDeduction: true}}, "-2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertDecimal(t, "SumSigned", SumSigned(tt.rows), d(tt.expect))
		})
	}
}

func TestApplyOperation(t *testing.T) {
	tests := []struct {
		name   string
		op     Operation
		value  string
		expect string
	}{
		{"none", OperationNone, "5", "20"},
		{"multiply", OperationMultiply, "1.5", "30"},
		{"divide", OperationDivide, "4", "5"},
		{"divide by zero is a no-op", OperationDivide, "0", "20"},
		{"add", OperationAdd, "2.5", "22.5"},
		{"subtract", OperationSubtract, "25", "-5"},
		{"unknown leaves value", Operation("square"), "3", "20"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertDecimal(t, "ApplyOperation", ApplyOperation(d("20"), tt.op, d(tt.value)), d(tt.expect))
		})
	}
}

func TestParseOperation(t *testing.T) {
	if op, err := ParseOperation(""); err != nil || op != OperationNone {
		t.Fatalf("ParseOperation(\"\") = %q, %v", op, err)
	}
	if op, err := ParseOperation("divide"); err != nil || op != OperationDivide {
		t.Fatalf("ParseOperation(divide) = %q, %v", op, err)
	}
	if _, err := ParseOperation("modulo"); err == nil {
		t.Fatal("expected error for unknown operation")
	}
}

func TestAggregateItem(t *testing.T) {
	rows := []SignedQuantity{{Quantity: d("1500")}, {Quantity: d("700")}, {Quantity: d("200"), IsDeduction: true}}

	tests := []struct {
		name      string
		settings  ItemSettings
		expectTot string
		expectFin string
	}{
		{"no operation no conversion", ItemSettings{Operation: OperationNone, UnitConversionFactor: d("1")}, "2000", "2000"},
		{"kilograms to tonnes", ItemSettings{Operation: OperationNone, UnitConversionFactor: d("1000")}, "2000", "2"},
		{"multiply then convert", ItemSettings{Operation: OperationMultiply, OperationValue: d("7.85"), UnitConversionFactor: d("1000")}, "2000", "15.7"},
		{"zero conversion factor ignored", ItemSettings{Operation: OperationAdd, OperationValue: d("5"), UnitConversionFactor: d("0")}, "2000", "2005"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AggregateItem(rows, tt.settings)
			assertDecimal(t, "TotalQuantity", got.TotalQuantity, d(tt.expectTot))
			assertDecimal(t, "FinalQuantity", got.FinalQuantity, d(tt.expectFin))
		})
	}
}

func TestPriceRates(t *testing.T) {
	amounts, total := PriceRates([]decimal.Decimal{d("100"), d("12.5")}, d("4"))
	if len(amounts) != 2 {
		t.Fatalf("len(amounts) = %d, want 2", len(amounts))
	}
	assertDecimal(t, "first amount", amounts[0], d("400"))
	assertDecimal(t, "second amount", amounts[1], d("50"))
	assertDecimal(t, "total", total, d("450"))

	_, empty := PriceRates(nil, d("4"))
	assertDecimal(t, "empty total", empty, d("0"))
}
