package estimation

import (
	"estimator/internal/apperror"

	"github.com/shopspring/decimal"
)

// EntryType names the three kinds of rate-analysis adjustment.
type EntryType string

const (
	EntryAddition EntryType = "addition"
	EntryDeletion EntryType = "deletion"
	EntryTax      EntryType = "tax"
)

var (
	hundred     = decimal.NewFromInt(100)
	roundStep   = decimal.New(5, -2)  // 0.05
	roundOffset = decimal.New(25, -3) // 0.025
)

// Entry is one adjustment in a rate analysis. Amount is always derived from the base rate
// passed in, never cached.
type Entry interface {
	Type() EntryType
	Label() string
	Amount(baseRate decimal.Decimal) decimal.Decimal
}

// Addition adds value × factor to the rate.
type Addition struct {
	Name   string
	Value  decimal.Decimal
	Factor decimal.Decimal
}

func (a Addition) Type() EntryType { return EntryAddition }
func (a Addition) Label() string   { return a.Name }
func (a Addition) Amount(decimal.Decimal) decimal.Decimal {
	return a.Value.Mul(a.Factor)
}

// Deletion removes value × factor from the rate. Its amount is negative.
type Deletion struct {
	Name   string
	Value  decimal.Decimal
	Factor decimal.Decimal
}

func (d Deletion) Type() EntryType { return EntryDeletion }
func (d Deletion) Label() string   { return d.Name }
func (d Deletion) Amount(decimal.Decimal) decimal.Decimal {
	return d.Value.Mul(d.Factor).Neg()
}

// Tax charges (percent × factor)% of the base rate.
type Tax struct {
	Name    string
	Percent decimal.Decimal
	Factor  decimal.Decimal
}

func (t Tax) Type() EntryType { return EntryTax }
func (t Tax) Label() string   { return t.Name }
func (t Tax) Amount(baseRate decimal.Decimal) decimal.Decimal {
	return baseRate.Mul(t.Percent.Mul(t.Factor)).Div(hundred)
}

// NewEntry builds the variant for a stored (type, value, factor) triple. Zero value or zero
// factor is rejected since the entry would contribute nothing.
func NewEntry(kind EntryType, label string, value, factor decimal.Decimal) (Entry, error) {
	if value.IsZero() {
		return nil, apperror.Validation("entry %q: value must be non-zero", label)
	}
	if factor.IsZero() {
		return nil, apperror.Validation("entry %q: factor must be non-zero", label)
	}
	switch kind {
	case EntryAddition:
		return Addition{Name: label, Value: value, Factor: factor}, nil
	case EntryDeletion:
		return Deletion{Name: label, Value: value, Factor: factor}, nil
	case EntryTax:
		return Tax{Name: label, Percent: value, Factor: factor}, nil
	default:
		return nil, apperror.Validation("entry %q: unknown type %q", label, kind)
	}
}

// Result is a fully evaluated rate analysis.
type Result struct {
	BaseRate       decimal.Decimal
	Amounts        []decimal.Decimal // per entry, in entry order
	Additions      decimal.Decimal
	Deletions      decimal.Decimal // sum of magnitudes
	Taxes          decimal.Decimal
	CalculatedRate decimal.Decimal
	FinalRate      decimal.Decimal

	HasFinalTax     bool
	FinalTaxPercent decimal.Decimal
	FinalTaxAmount  decimal.Decimal
	TotalRate       decimal.Decimal
}

// Evaluate re-derives every entry amount from baseRate and rounds the result. The returned
// TotalRate equals FinalRate until WithFinalTax is applied.
func Evaluate(baseRate decimal.Decimal, entries []Entry) Result {
	res := Result{
		BaseRate:  baseRate,
		Amounts:   make([]decimal.Decimal, len(entries)),
		Additions: decimal.Zero,
		Deletions: decimal.Zero,
		Taxes:     decimal.Zero,
	}
	for i, e := range entries {
		amt := e.Amount(baseRate)
		res.Amounts[i] = amt
		switch e.Type() {
		case EntryAddition:
			res.Additions = res.Additions.Add(amt)
		case EntryDeletion:
			res.Deletions = res.Deletions.Add(amt.Abs())
		case EntryTax:
			res.Taxes = res.Taxes.Add(amt)
		}
	}
	res.CalculatedRate = baseRate.Add(res.Additions).Sub(res.Deletions).Add(res.Taxes)
	res.FinalRate = RoundRate(res.CalculatedRate)
	res.FinalTaxAmount = decimal.Zero
	res.TotalRate = res.FinalRate
	return res
}

// RoundRate snaps a rate to a 0.05 step: ceil((rate - 0.025) / 0.05) * 0.05.
// A rate sitting exactly on the 0.025 midpoint goes to the lower step.
func RoundRate(rate decimal.Decimal) decimal.Decimal {
	return rate.Sub(roundOffset).Div(roundStep).Ceil().Mul(roundStep)
}

// WithFinalTax applies a single tax on top of the rounded rate. The total is not rounded again.
func (r Result) WithFinalTax(percent decimal.Decimal) Result {
	r.HasFinalTax = true
	r.FinalTaxPercent = percent
	r.FinalTaxAmount = r.FinalRate.Mul(percent).Div(hundred)
	r.TotalRate = r.FinalRate.Add(r.FinalTaxAmount)
	return r
}

// ResolveBaseRate picks the first available of: the analysis' saved base rate, the selected
// Rate's value, a caller supplied default. Zero when none is set.
func ResolveBaseRate(saved, selected, fallback *decimal.Decimal) decimal.Decimal {
	for _, v := range []*decimal.Decimal{saved, selected, fallback} {
		if v != nil {
			return *v
		}
	}
	return decimal.Zero
}
