package repository

import (
	"context"

	"estimator/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type RateRepository interface {
	Create(ctx context.Context, rate *model.Rate) error
	Update(ctx context.Context, rate *model.Rate) error
	// Delete removes the rate and its analysis, and detaches measurements priced at it.
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Rate, error)
	NextPosition(ctx context.Context, itemID uuid.UUID) (int, error)
	UpdateRateValue(ctx context.Context, id uuid.UUID, rate decimal.Decimal) error
	UpdatePricing(ctx context.Context, id uuid.UUID, quantity, total decimal.Decimal) error
}

type rateRepository struct {
	db *gorm.DB
}

func NewRateRepository(db *gorm.DB) RateRepository {
	return &rateRepository{db: db}
}

func (r *rateRepository) Create(ctx context.Context, rate *model.Rate) error {
	return GetDB(ctx, r.db).Create(rate).Error
}

func (r *rateRepository) Update(ctx context.Context, rate *model.Rate) error {
	return GetDB(ctx, r.db).Save(rate).Error
}

func (r *rateRepository) Delete(ctx context.Context, id uuid.UUID) error {
	db := GetDB(ctx, r.db)
	analyses := db.Model(&model.RateAnalysis{}).Select("id").Where("rate_id = ?", id)
	if err := db.Where("rate_analysis_id IN (?)", analyses).Delete(&model.RateAnalysisEntry{}).Error; err != nil {
		return err
	}
	if err := db.Where("rate_id = ?", id).Delete(&model.RateAnalysis{}).Error; err != nil {
		return err
	}
	if err := db.Model(&model.MeasurementRow{}).Where("rate_id = ?", id).Update("rate_id", nil).Error; err != nil {
		return err
	}
	return db.Where("id = ?", id).Delete(&model.Rate{}).Error
}

func (r *rateRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Rate, error) {
	var rate model.Rate
	if err := GetDB(ctx, r.db).First(&rate, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &rate, nil
}

func (r *rateRepository) NextPosition(ctx context.Context, itemID uuid.UUID) (int, error) {
	return nextNumber(GetDB(ctx, r.db).Model(&model.Rate{}).Where("line_item_id = ?", itemID), "position")
}

func (r *rateRepository) UpdateRateValue(ctx context.Context, id uuid.UUID, rate decimal.Decimal) error {
	return GetDB(ctx, r.db).Model(&model.Rate{}).Where("id = ?", id).Update("rate", rate).Error
}

func (r *rateRepository) UpdatePricing(ctx context.Context, id uuid.UUID, quantity, total decimal.Decimal) error {
	return GetDB(ctx, r.db).Model(&model.Rate{}).Where("id = ?", id).Updates(map[string]interface{}{
		"quantity":     quantity,
		"total_amount": total,
	}).Error
}
