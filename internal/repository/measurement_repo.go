package repository

import (
	"context"

	"estimator/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type MeasurementRepository interface {
	Create(ctx context.Context, row *model.MeasurementRow) error
	Update(ctx context.Context, row *model.MeasurementRow) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.MeasurementRow, error)
	ListByItem(ctx context.Context, itemID uuid.UUID) ([]model.MeasurementRow, error)
	NextSequenceNo(ctx context.Context, itemID uuid.UUID) (int, error)
	// UpdateComputed writes only the derived quantity and amount of a row.
	UpdateComputed(ctx context.Context, id uuid.UUID, quantity, amount decimal.Decimal) error
}

type measurementRepository struct {
	db *gorm.DB
}

func NewMeasurementRepository(db *gorm.DB) MeasurementRepository {
	return &measurementRepository{db: db}
}

func (r *measurementRepository) Create(ctx context.Context, row *model.MeasurementRow) error {
	return GetDB(ctx, r.db).Create(row).Error
}

func (r *measurementRepository) Update(ctx context.Context, row *model.MeasurementRow) error {
	return GetDB(ctx, r.db).Save(row).Error
}

func (r *measurementRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.MeasurementRow{}).Error
}

func (r *measurementRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.MeasurementRow, error) {
	var row model.MeasurementRow
	if err := GetDB(ctx, r.db).First(&row, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *measurementRepository) ListByItem(ctx context.Context, itemID uuid.UUID) ([]model.MeasurementRow, error) {
	var rows []model.MeasurementRow
	if err := GetDB(ctx, r.db).Where("line_item_id = ?", itemID).Order("sequence_no ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *measurementRepository) NextSequenceNo(ctx context.Context, itemID uuid.UUID) (int, error) {
	return nextNumber(GetDB(ctx, r.db).Model(&model.MeasurementRow{}).Where("line_item_id = ?", itemID), "sequence_no")
}

func (r *measurementRepository) UpdateComputed(ctx context.Context, id uuid.UUID, quantity, amount decimal.Decimal) error {
	return GetDB(ctx, r.db).Model(&model.MeasurementRow{}).Where("id = ?", id).Updates(map[string]interface{}{
		"calculated_quantity": quantity,
		"line_amount":         amount,
	}).Error
}
