package repository

import (
	"context"

	"estimator/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ItemRepository interface {
	Create(ctx context.Context, item *model.LineItem) error
	Update(ctx context.Context, item *model.LineItem) error
	// Delete removes the item with its rates, measurements and analyses.
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.LineItem, error)
	FindByIDWithRelations(ctx context.Context, id uuid.UUID) (*model.LineItem, error)
	ListBySubWork(ctx context.Context, subWorkID uuid.UUID) ([]model.LineItem, error)
	NextItemNo(ctx context.Context, subWorkID uuid.UUID) (int, error)
	WorkIDOf(ctx context.Context, itemID uuid.UUID) (uuid.UUID, error)
	UpdateDerived(ctx context.Context, item *model.LineItem) error
}

type itemRepository struct {
	db *gorm.DB
}

func NewItemRepository(db *gorm.DB) ItemRepository {
	return &itemRepository{db: db}
}

func (r *itemRepository) Create(ctx context.Context, item *model.LineItem) error {
	return GetDB(ctx, r.db).Omit("Rates", "Measurements").Create(item).Error
}

func (r *itemRepository) Update(ctx context.Context, item *model.LineItem) error {
	return GetDB(ctx, r.db).Omit("Rates", "Measurements").Save(item).Error
}

func (r *itemRepository) Delete(ctx context.Context, id uuid.UUID) error {
	db := GetDB(ctx, r.db)
	analyses := db.Model(&model.RateAnalysis{}).Select("id").Where("line_item_id = ?", id)
	if err := db.Where("rate_analysis_id IN (?)", analyses).Delete(&model.RateAnalysisEntry{}).Error; err != nil {
		return err
	}
	if err := db.Where("line_item_id = ?", id).Delete(&model.RateAnalysis{}).Error; err != nil {
		return err
	}
	if err := db.Where("line_item_id = ?", id).Delete(&model.MeasurementRow{}).Error; err != nil {
		return err
	}
	if err := db.Where("line_item_id = ?", id).Delete(&model.Rate{}).Error; err != nil {
		return err
	}
	return db.Where("id = ?", id).Delete(&model.LineItem{}).Error
}

func (r *itemRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.LineItem, error) {
	var item model.LineItem
	if err := GetDB(ctx, r.db).First(&item, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *itemRepository) FindByIDWithRelations(ctx context.Context, id uuid.UUID) (*model.LineItem, error) {
	var item model.LineItem
	err := GetDB(ctx, r.db).
		Preload("Rates", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Measurements", func(db *gorm.DB) *gorm.DB { return db.Order("sequence_no ASC") }).
		First(&item, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *itemRepository) ListBySubWork(ctx context.Context, subWorkID uuid.UUID) ([]model.LineItem, error) {
	var items []model.LineItem
	err := GetDB(ctx, r.db).
		Preload("Rates", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("sub_work_id = ?", subWorkID).
		Order("item_no ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *itemRepository) NextItemNo(ctx context.Context, subWorkID uuid.UUID) (int, error) {
	return nextNumber(GetDB(ctx, r.db).Model(&model.LineItem{}).Where("sub_work_id = ?", subWorkID), "item_no")
}

// WorkIDOf resolves the estimate an item belongs to.
func (r *itemRepository) WorkIDOf(ctx context.Context, itemID uuid.UUID) (uuid.UUID, error) {
	var sub model.SubWork
	err := GetDB(ctx, r.db).
		Select("sub_works.work_id").
		Joins("JOIN line_items ON line_items.sub_work_id = sub_works.id").
		Where("line_items.id = ?", itemID).
		First(&sub).Error
	if err != nil {
		return uuid.Nil, err
	}
	return sub.WorkID, nil
}

// UpdateDerived writes only the recomputed quantity and amount columns.
func (r *itemRepository) UpdateDerived(ctx context.Context, item *model.LineItem) error {
	return GetDB(ctx, r.db).Model(&model.LineItem{}).Where("id = ?", item.ID).Updates(map[string]interface{}{
		"total_quantity": item.TotalQuantity,
		"final_quantity": item.FinalQuantity,
		"total_amount":   item.TotalAmount,
	}).Error
}
