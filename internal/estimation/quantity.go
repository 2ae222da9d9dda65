// Package estimation holds the pure arithmetic behind an estimate: measurement quantities,
// item aggregation and rate analysis. Nothing here touches storage.
package estimation

import "github.com/shopspring/decimal"

// RawMeasurement is a measurement row as entered. Nil fields were left blank.
type RawMeasurement struct {
	Factor           *decimal.Decimal
	NoOfUnits        *decimal.Decimal
	Length           *decimal.Decimal
	Width            *decimal.Decimal
	Height           *decimal.Decimal
	IsManualQuantity bool
	ManualQuantity   *decimal.Decimal
}

// Measurement is a measurement row with blanks resolved: factor defaults to 1, everything else to 0.
type Measurement struct {
	Factor           decimal.Decimal
	NoOfUnits        decimal.Decimal
	Length           decimal.Decimal
	Width            decimal.Decimal
	Height           decimal.Decimal
	IsManualQuantity bool
	ManualQuantity   decimal.Decimal
}

func (r RawMeasurement) Normalize() Measurement {
	return Measurement{
		Factor:           valueOr(r.Factor, decimal.NewFromInt(1)),
		NoOfUnits:        valueOr(r.NoOfUnits, decimal.Zero),
		Length:           valueOr(r.Length, decimal.Zero),
		Width:            valueOr(r.Width, decimal.Zero),
		Height:           valueOr(r.Height, decimal.Zero),
		IsManualQuantity: r.IsManualQuantity,
		ManualQuantity:   valueOr(r.ManualQuantity, decimal.Zero),
	}
}

// ComputeQuantity returns the unsigned quantity of one row. A manual quantity replaces the
// dimensional product entirely. A blank dimension collapses the product to 0, and negative
// dimensions are multiplied through as entered.
func ComputeQuantity(m Measurement) decimal.Decimal {
	if m.IsManualQuantity {
		return m.ManualQuantity
	}
	return m.Factor.Mul(m.NoOfUnits).Mul(m.Length).Mul(m.Width).Mul(m.Height)
}

// LineAmount prices a row quantity at the given rate. Deductions are negated.
func LineAmount(quantity, rate decimal.Decimal, isDeduction bool) decimal.Decimal {
	amount := quantity.Mul(rate)
	if isDeduction {
		return amount.Neg()
	}
	return amount
}

// RateRef is the slice of a Rate the calculator needs.
type RateRef struct {
	ID       string
	Position int
	Rate     decimal.Decimal
}

// EffectiveRate picks the rate a row is priced at: the referenced rate when it exists,
// otherwise the item's default (lowest position) rate, otherwise 0.
func EffectiveRate(rates []RateRef, referencedID string) decimal.Decimal {
	if referencedID != "" {
		for _, r := range rates {
			if r.ID == referencedID {
				return r.Rate
			}
		}
	}
	if def, ok := DefaultRate(rates); ok {
		return def.Rate
	}
	return decimal.Zero
}

// DefaultRate returns the lowest-position rate.
func DefaultRate(rates []RateRef) (RateRef, bool) {
	if len(rates) == 0 {
		return RateRef{}, false
	}
	def := rates[0]
	for _, r := range rates[1:] {
		if r.Position < def.Position {
			def = r
		}
	}
	return def, true
}

func valueOr(v *decimal.Decimal, fallback decimal.Decimal) decimal.Decimal {
	if v == nil {
		return fallback
	}
	return *v
}
