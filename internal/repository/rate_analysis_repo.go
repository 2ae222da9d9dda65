package repository

import (
	"context"

	"estimator/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RateAnalysisRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.RateAnalysis, error)
	FindByItemAndRate(ctx context.Context, itemID, rateID uuid.UUID) (*model.RateAnalysis, error)
	Create(ctx context.Context, analysis *model.RateAnalysis) error
	// SaveTotals writes the evaluated snapshot and the saved inputs of an analysis.
	SaveTotals(ctx context.Context, analysis *model.RateAnalysis) error

	CreateEntry(ctx context.Context, entry *model.RateAnalysisEntry) error
	UpdateEntry(ctx context.Context, entry *model.RateAnalysisEntry) error
	DeleteEntry(ctx context.Context, id uuid.UUID) error
	FindEntry(ctx context.Context, id uuid.UUID) (*model.RateAnalysisEntry, error)
	// ShiftPositions moves every entry at or after from by delta.
	ShiftPositions(ctx context.Context, analysisID uuid.UUID, from, delta int) error
	NextPosition(ctx context.Context, analysisID uuid.UUID) (int, error)
}

type rateAnalysisRepository struct {
	db *gorm.DB
}

func NewRateAnalysisRepository(db *gorm.DB) RateAnalysisRepository {
	return &rateAnalysisRepository{db: db}
}

func (r *rateAnalysisRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.RateAnalysis, error) {
	var analysis model.RateAnalysis
	err := GetDB(ctx, r.db).
		Preload("Entries", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		First(&analysis, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &analysis, nil
}

func (r *rateAnalysisRepository) FindByItemAndRate(ctx context.Context, itemID, rateID uuid.UUID) (*model.RateAnalysis, error) {
	var analysis model.RateAnalysis
	err := GetDB(ctx, r.db).
		Preload("Entries", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		First(&analysis, "line_item_id = ? AND rate_id = ?", itemID, rateID).Error
	if err != nil {
		return nil, err
	}
	return &analysis, nil
}

func (r *rateAnalysisRepository) Create(ctx context.Context, analysis *model.RateAnalysis) error {
	return GetDB(ctx, r.db).Omit("Entries").Create(analysis).Error
}

func (r *rateAnalysisRepository) SaveTotals(ctx context.Context, analysis *model.RateAnalysis) error {
	return GetDB(ctx, r.db).Model(&model.RateAnalysis{}).Where("id = ?", analysis.ID).Updates(map[string]interface{}{
		"base_rate":         analysis.BaseRate,
		"final_tax_percent": analysis.FinalTaxPercent,
		"source_rate":       analysis.SourceRate,
		"applied_rate":      analysis.AppliedRate,
		"total_additions":   analysis.TotalAdditions,
		"total_deletions":   analysis.TotalDeletions,
		"total_taxes":       analysis.TotalTaxes,
		"calculated_rate":   analysis.CalculatedRate,
		"final_rate":        analysis.FinalRate,
		"final_tax_amount":  analysis.FinalTaxAmount,
		"total_rate":        analysis.TotalRate,
	}).Error
}

func (r *rateAnalysisRepository) CreateEntry(ctx context.Context, entry *model.RateAnalysisEntry) error {
	return GetDB(ctx, r.db).Create(entry).Error
}

func (r *rateAnalysisRepository) UpdateEntry(ctx context.Context, entry *model.RateAnalysisEntry) error {
	return GetDB(ctx, r.db).Save(entry).Error
}

func (r *rateAnalysisRepository) DeleteEntry(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.RateAnalysisEntry{}).Error
}

func (r *rateAnalysisRepository) FindEntry(ctx context.Context, id uuid.UUID) (*model.RateAnalysisEntry, error) {
	var entry model.RateAnalysisEntry
	if err := GetDB(ctx, r.db).First(&entry, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *rateAnalysisRepository) ShiftPositions(ctx context.Context, analysisID uuid.UUID, from, delta int) error {
	return GetDB(ctx, r.db).Model(&model.RateAnalysisEntry{}).
		Where("rate_analysis_id = ? AND position >= ?", analysisID, from).
		Update("position", gorm.Expr("position + ?", delta)).Error
}

func (r *rateAnalysisRepository) NextPosition(ctx context.Context, analysisID uuid.UUID) (int, error) {
	return nextNumber(GetDB(ctx, r.db).Model(&model.RateAnalysisEntry{}).Where("rate_analysis_id = ?", analysisID), "position")
}
