package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"estimator/internal/apperror"
	"estimator/internal/model"
	"estimator/internal/repository"
	"estimator/internal/workflow"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func parseID(raw, what string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperror.Validation("invalid %s id %q", what, raw)
	}
	return id, nil
}

// lookupErr turns a missing row into apperror.ErrNotFound and wraps anything else.
func lookupErr(err error, what string, id interface{}) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperror.NotFound("%s %v not found", what, id)
	}
	return fmt.Errorf("failed to load %s: %w", what, err)
}

func writeAudit(ctx context.Context, repo repository.AuditRepository, userID, action, entityID, entityName string, details interface{}) error {
	raw, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("failed to encode audit details: %w", err)
	}
	entry := &model.AuditLog{
		UserID:     userID,
		Action:     action,
		EntityID:   entityID,
		EntityName: entityName,
		Details:    datatypes.JSON(raw),
	}
	if err := repo.Log(ctx, entry); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

// editGuard refuses content changes while an estimate is under review or closed.
type editGuard struct {
	workflowRepo repository.WorkflowRepository
}

func (g editGuard) ensureEditable(ctx context.Context, workID uuid.UUID) error {
	wf, err := g.workflowRepo.FindByWorkID(ctx, workID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return fmt.Errorf("failed to load approval workflow: %w", err)
	}
	if workflow.Status(wf.Status) == workflow.StatusSentBack {
		return nil
	}
	return apperror.Conflict("estimate is %s and cannot be edited", wf.Status)
}

func normalizePage(page, limit int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}
	return page, limit
}
