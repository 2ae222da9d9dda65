package repository

import (
	"estimator/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// nextNumber returns MAX(column)+1 over the scoped query, 1 when the scope is empty.
func nextNumber(scope *gorm.DB, column string) (int, error) {
	var maxNo int64
	if err := scope.Select("COALESCE(MAX(" + column + "), 0)").Scan(&maxNo).Error; err != nil {
		return 0, err
	}
	return int(maxNo) + 1, nil
}

func sumItemAmounts(items []model.LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.TotalAmount)
	}
	return total
}
