package repository

import (
	"context"

	"estimator/internal/apperror"
	"estimator/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// WorkflowFilter narrows the approval inbox listing.
type WorkflowFilter struct {
	Status   string
	Approver string
}

type WorkflowRepository interface {
	Create(ctx context.Context, wf *model.ApprovalWorkflow) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.ApprovalWorkflow, error)
	FindByWorkID(ctx context.Context, workID uuid.UUID) (*model.ApprovalWorkflow, error)
	// Transition writes next only if the stored row still matches prev's status, level and
	// version. A lost race returns apperror.ErrConflict.
	Transition(ctx context.Context, prev, next *model.ApprovalWorkflow) error
	AppendHistory(ctx context.Context, entry *model.ApprovalHistoryEntry) error
	NextSequence(ctx context.Context, workflowID uuid.UUID) (int, error)
	ListHistory(ctx context.Context, workflowID uuid.UUID) ([]model.ApprovalHistoryEntry, error)
	List(ctx context.Context, filter WorkflowFilter, page, limit int) ([]model.ApprovalWorkflow, int64, error)
}

type workflowRepository struct {
	db *gorm.DB
}

func NewWorkflowRepository(db *gorm.DB) WorkflowRepository {
	return &workflowRepository{db: db}
}

func (r *workflowRepository) Create(ctx context.Context, wf *model.ApprovalWorkflow) error {
	return GetDB(ctx, r.db).Omit("Work", "History").Create(wf).Error
}

func (r *workflowRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.ApprovalWorkflow, error) {
	var wf model.ApprovalWorkflow
	if err := GetDB(ctx, r.db).First(&wf, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &wf, nil
}

func (r *workflowRepository) FindByWorkID(ctx context.Context, workID uuid.UUID) (*model.ApprovalWorkflow, error) {
	var wf model.ApprovalWorkflow
	if err := GetDB(ctx, r.db).First(&wf, "work_id = ?", workID).Error; err != nil {
		return nil, err
	}
	return &wf, nil
}

func (r *workflowRepository) Transition(ctx context.Context, prev, next *model.ApprovalWorkflow) error {
	result := GetDB(ctx, r.db).Model(&model.ApprovalWorkflow{}).
		Where("id = ? AND status = ? AND current_level = ? AND version = ?", prev.ID, prev.Status, prev.CurrentLevel, prev.Version).
		Updates(map[string]interface{}{
			"status":           next.Status,
			"current_level":    next.CurrentLevel,
			"current_approver": next.CurrentApprover,
			"cycle":            next.Cycle,
			"initiated_by":     next.InitiatedBy,
			"initiated_at":     next.InitiatedAt,
			"version":          prev.Version + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperror.Conflict("workflow %s was changed by another approver", prev.ID)
	}
	next.Version = prev.Version + 1
	return nil
}

func (r *workflowRepository) AppendHistory(ctx context.Context, entry *model.ApprovalHistoryEntry) error {
	return GetDB(ctx, r.db).Create(entry).Error
}

func (r *workflowRepository) NextSequence(ctx context.Context, workflowID uuid.UUID) (int, error) {
	return nextNumber(GetDB(ctx, r.db).Model(&model.ApprovalHistoryEntry{}).Where("workflow_id = ?", workflowID), "sequence")
}

func (r *workflowRepository) ListHistory(ctx context.Context, workflowID uuid.UUID) ([]model.ApprovalHistoryEntry, error) {
	var history []model.ApprovalHistoryEntry
	if err := GetDB(ctx, r.db).Where("workflow_id = ?", workflowID).Order("sequence ASC").Find(&history).Error; err != nil {
		return nil, err
	}
	return history, nil
}

func (r *workflowRepository) List(ctx context.Context, filter WorkflowFilter, page, limit int) ([]model.ApprovalWorkflow, int64, error) {
	var workflows []model.ApprovalWorkflow
	var total int64

	db := GetDB(ctx, r.db)
	scope := func(q *gorm.DB) *gorm.DB {
		if filter.Status != "" {
			q = q.Where("status = ?", filter.Status)
		}
		if filter.Approver != "" {
			q = q.Where("current_approver = ?", filter.Approver)
		}
		return q
	}

	if err := db.Model(&model.ApprovalWorkflow{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.Preload("Work").Scopes(scope).Order("updated_at DESC").Offset(offset).Limit(limit).Find(&workflows).Error; err != nil {
		return nil, 0, err
	}
	return workflows, total, nil
}
