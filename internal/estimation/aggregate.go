package estimation

import (
	"estimator/internal/apperror"

	"github.com/shopspring/decimal"
)

// Operation is the item-level adjustment applied to the summed measurement quantity.
type Operation string

const (
	OperationNone     Operation = "none"
	OperationMultiply Operation = "multiply"
	OperationDivide   Operation = "divide"
	OperationAdd      Operation = "add"
	OperationSubtract Operation = "subtract"
)

// ParseOperation accepts the stored operation codes. An empty string means none.
func ParseOperation(s string) (Operation, error) {
	switch op := Operation(s); op {
	case "":
		return OperationNone, nil
	case OperationNone, OperationMultiply, OperationDivide, OperationAdd, OperationSubtract:
		return op, nil
	default:
		return "", apperror.Validation("unknown operation type %q", s)
	}
}

// ItemSettings are the per-item knobs applied after summing the rows.
type ItemSettings struct {
	Operation            Operation
	OperationValue       decimal.Decimal
	UnitConversionFactor decimal.Decimal
}

// SignedQuantity is one row's contribution to the item total.
type SignedQuantity struct {
	Quantity    decimal.Decimal
	IsDeduction bool
}

// Aggregate is the outcome of summing an item.
type Aggregate struct {
	TotalQuantity decimal.Decimal // signed sum of rows, before operation and conversion
	FinalQuantity decimal.Decimal
}

// SumSigned adds the rows, subtracting the magnitude of every deduction.
func SumSigned(rows []SignedQuantity) decimal.Decimal {
	total := decimal.Zero
	for _, r := range rows {
		if r.IsDeduction {
			total = total.Sub(r.Quantity.Abs())
			continue
		}
		total = total.Add(r.Quantity)
	}
	return total
}

// ApplyOperation applies the item operation. Dividing by zero leaves the total unchanged.
func ApplyOperation(total decimal.Decimal, op Operation, value decimal.Decimal) decimal.Decimal {
	switch op {
	case OperationMultiply:
		return total.Mul(value)
	case OperationDivide:
		if value.IsZero() {
			return total
		}
		return total.Div(value)
	case OperationAdd:
		return total.Add(value)
	case OperationSubtract:
		return total.Sub(value)
	default:
		return total
	}
}

// ConvertUnit divides by the conversion factor unless it is 1. A zero factor is ignored.
func ConvertUnit(quantity, factor decimal.Decimal) decimal.Decimal {
	if factor.IsZero() || factor.Equal(decimal.NewFromInt(1)) {
		return quantity
	}
	return quantity.Div(factor)
}

func AggregateItem(rows []SignedQuantity, settings ItemSettings) Aggregate {
	total := SumSigned(rows)
	final := ApplyOperation(total, settings.Operation, settings.OperationValue)
	final = ConvertUnit(final, settings.UnitConversionFactor)
	return Aggregate{TotalQuantity: total, FinalQuantity: final}
}

// PriceRates re-prices every rate at the final quantity and returns each amount and their sum.
func PriceRates(rates []decimal.Decimal, finalQuantity decimal.Decimal) ([]decimal.Decimal, decimal.Decimal) {
	amounts := make([]decimal.Decimal, len(rates))
	total := decimal.Zero
	for i, r := range rates {
		amounts[i] = r.Mul(finalQuantity)
		total = total.Add(amounts[i])
	}
	return amounts, total
}
