package service

import (
	"context"
	"fmt"

	"estimator/internal/estimation"
	"estimator/internal/model"
	"estimator/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Recomputer re-derives the stored quantities and amounts of an item from its measurements,
// operation settings and rates. Every run overwrites the previous values.
type Recomputer interface {
	RecomputeItem(ctx context.Context, itemID uuid.UUID) (*model.LineItem, error)
}

type recomputer struct {
	itemRepo        repository.ItemRepository
	rateRepo        repository.RateRepository
	measurementRepo repository.MeasurementRepository
	workRepo        repository.WorkRepository
	txManager       repository.TransactionManager
	log             *zap.Logger
}

func NewRecomputer(
	itemRepo repository.ItemRepository,
	rateRepo repository.RateRepository,
	measurementRepo repository.MeasurementRepository,
	workRepo repository.WorkRepository,
	txManager repository.TransactionManager,
	log *zap.Logger,
) Recomputer {
	return &recomputer{
		itemRepo:        itemRepo,
		rateRepo:        rateRepo,
		measurementRepo: measurementRepo,
		workRepo:        workRepo,
		txManager:       txManager,
		log:             log,
	}
}

func (r *recomputer) RecomputeItem(ctx context.Context, itemID uuid.UUID) (*model.LineItem, error) {
	var item *model.LineItem
	err := r.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		loaded, err := r.itemRepo.FindByIDWithRelations(txCtx, itemID)
		if err != nil {
			return lookupErr(err, "item", itemID)
		}
		item = loaded

		refs := rateRefs(item.Rates)
		rows := make([]estimation.SignedQuantity, 0, len(item.Measurements))
		for i := range item.Measurements {
			m := &item.Measurements[i]
			qty := estimation.ComputeQuantity(measurementOf(m))
			rateID := ""
			if m.RateID != nil {
				rateID = m.RateID.String()
			}
			amount := estimation.LineAmount(qty, estimation.EffectiveRate(refs, rateID), m.IsDeduction)
			if !qty.Equal(m.CalculatedQuantity) || !amount.Equal(m.LineAmount) {
				if err := r.measurementRepo.UpdateComputed(txCtx, m.ID, qty, amount); err != nil {
					return fmt.Errorf("failed to update measurement %s: %w", m.ID, err)
				}
				m.CalculatedQuantity, m.LineAmount = qty, amount
			}
			rows = append(rows, estimation.SignedQuantity{Quantity: qty, IsDeduction: m.IsDeduction})
		}

		op, err := estimation.ParseOperation(item.OperationType)
		if err != nil {
			return err
		}
		agg := estimation.AggregateItem(rows, estimation.ItemSettings{
			Operation:            op,
			OperationValue:       item.OperationValue,
			UnitConversionFactor: item.UnitConversionFactor,
		})

		values := make([]decimal.Decimal, len(item.Rates))
		for i, rate := range item.Rates {
			values[i] = rate.Rate
		}
		amounts, total := estimation.PriceRates(values, agg.FinalQuantity)
		for i := range item.Rates {
			if err := r.rateRepo.UpdatePricing(txCtx, item.Rates[i].ID, agg.FinalQuantity, amounts[i]); err != nil {
				return fmt.Errorf("failed to price rate %s: %w", item.Rates[i].ID, err)
			}
			item.Rates[i].Quantity, item.Rates[i].TotalAmount = agg.FinalQuantity, amounts[i]
		}

		item.TotalQuantity = agg.TotalQuantity
		item.FinalQuantity = agg.FinalQuantity
		item.TotalAmount = total
		if err := r.itemRepo.UpdateDerived(txCtx, item); err != nil {
			return fmt.Errorf("failed to update item totals: %w", err)
		}
		if err := r.workRepo.UpdateSubWorkTotal(txCtx, item.SubWorkID); err != nil {
			return fmt.Errorf("failed to update sub-work total: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.log.Debug("item recomputed",
		zap.String("item_id", item.ID.String()),
		zap.String("final_quantity", item.FinalQuantity.String()),
		zap.String("total_amount", item.TotalAmount.String()))
	return item, nil
}

func rateRefs(rates []model.Rate) []estimation.RateRef {
	refs := make([]estimation.RateRef, len(rates))
	for i, r := range rates {
		refs[i] = estimation.RateRef{ID: r.ID.String(), Position: r.Position, Rate: r.Rate}
	}
	return refs
}

func measurementOf(m *model.MeasurementRow) estimation.Measurement {
	return estimation.Measurement{
		Factor:           m.Factor,
		NoOfUnits:        m.NoOfUnits,
		Length:           m.Length,
		Width:            m.Width,
		Height:           m.Height,
		IsManualQuantity: m.IsManualQuantity,
		ManualQuantity:   m.ManualQuantity,
	}
}
