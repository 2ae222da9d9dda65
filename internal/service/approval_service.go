package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"estimator/internal/apperror"
	"estimator/internal/model"
	"estimator/internal/repository"
	"estimator/internal/workflow"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// --- DTOs ---

type ApprovalActionRequest struct {
	Action  string `json:"action" binding:"required"`
	Comment string `json:"comment"`
}

type ApprovalFilter struct {
	Status   string // pending_approval, approved, rejected, sent_back or empty for all
	Approver string // role code or user id currently holding the estimate
	Page     int
	Limit    int
}

type ApprovalHistoryResponse struct {
	ID           uuid.UUID `json:"id"`
	Sequence     int       `json:"sequence"`
	Cycle        int       `json:"cycle"`
	Level        int       `json:"level"`
	ApproverID   string    `json:"approver_id"`
	ApproverRole string    `json:"approver_role"`
	Action       string    `json:"action"`
	Comment      string    `json:"comment"`
	CreatedAt    time.Time `json:"created_at"`
}

type WorkflowResponse struct {
	ID              uuid.UUID                 `json:"id"`
	WorkID          uuid.UUID                 `json:"work_id"`
	WorkNo          string                    `json:"work_no,omitempty"`
	Status          string                    `json:"status"`
	CurrentLevel    int                       `json:"current_level"`
	CurrentApprover string                    `json:"current_approver"`
	InitiatedBy     string                    `json:"initiated_by"`
	InitiatedAt     time.Time                 `json:"initiated_at"`
	Cycle           int                       `json:"cycle"`
	Version         int                       `json:"version"`
	History         []ApprovalHistoryResponse `json:"history,omitempty"`
	UpdatedAt       time.Time                 `json:"updated_at"`
}

// ApprovalEvent is pushed to connected clients after every committed transition.
type ApprovalEvent struct {
	Type            string `json:"type"`
	WorkflowID      string `json:"workflow_id"`
	WorkID          string `json:"work_id"`
	Action          string `json:"action"`
	Status          string `json:"status"`
	CurrentLevel    int    `json:"current_level"`
	CurrentApprover string `json:"current_approver"`
	ActorID         string `json:"actor_id"`
}

// EventPublisher delivers approval events; the websocket hub implements it.
type EventPublisher interface {
	Publish(event interface{})
}

// --- Interface ---

type ApprovalService interface {
	SubmitApproval(ctx context.Context, workID string, actor workflow.Actor) (WorkflowResponse, error)
	ActOnApproval(ctx context.Context, workflowID string, req ApprovalActionRequest, actor workflow.Actor) (WorkflowResponse, error)
	GetByWork(ctx context.Context, workID string) (WorkflowResponse, error)
	GetHistory(ctx context.Context, workflowID string) ([]ApprovalHistoryResponse, error)
	ListWorkflows(ctx context.Context, filter ApprovalFilter) ([]WorkflowResponse, int64, error)
}

type approvalService struct {
	workRepo     repository.WorkRepository
	workflowRepo repository.WorkflowRepository
	auditRepo    repository.AuditRepository
	txManager    repository.TransactionManager
	events       EventPublisher
	log          *zap.Logger
}

func NewApprovalService(
	workRepo repository.WorkRepository,
	workflowRepo repository.WorkflowRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	events EventPublisher,
	log *zap.Logger,
) ApprovalService {
	return &approvalService{
		workRepo:     workRepo,
		workflowRepo: workflowRepo,
		auditRepo:    auditRepo,
		txManager:    txManager,
		events:       events,
		log:          log,
	}
}

// --- Implementation ---

func (s *approvalService) SubmitApproval(ctx context.Context, workID string, actor workflow.Actor) (WorkflowResponse, error) {
	wid, err := parseID(workID, "work")
	if err != nil {
		return WorkflowResponse{}, err
	}

	var wf *model.ApprovalWorkflow
	var history workflow.HistoryAction
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		work, err := s.workRepo.FindByID(txCtx, wid)
		if err != nil {
			return lookupErr(err, "work", wid)
		}

		existing, err := s.workflowRepo.FindByWorkID(txCtx, wid)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to load approval workflow: %w", err)
		}
		cur := workflow.State{}
		if existing != nil {
			cur = stateOf(existing)
		}

		out, err := workflow.Submit(cur, actor)
		if err != nil {
			return err
		}
		history = out.History

		if existing == nil {
			wf = &model.ApprovalWorkflow{
				WorkID:      wid,
				InitiatedAt: time.Now().UTC(),
				Version:     1,
			}
			applyState(wf, out.Next)
			if err := s.workflowRepo.Create(txCtx, wf); err != nil {
				return mapWriteErr(err, "failed to create approval workflow")
			}
		} else {
			next := *existing
			applyState(&next, out.Next)
			next.InitiatedAt = time.Now().UTC()
			if err := s.workflowRepo.Transition(txCtx, existing, &next); err != nil {
				return err
			}
			wf = &next
		}

		if err := s.appendHistory(txCtx, wf, out, actor, ""); err != nil {
			return err
		}
		return writeAudit(txCtx, s.auditRepo, actor.ID, model.ActionSubmitApproval, wf.ID.String(), work.WorkNo, map[string]interface{}{
			"cycle": wf.Cycle,
		})
	})
	if err != nil {
		return WorkflowResponse{}, err
	}

	s.publish(wf, history, actor)
	return s.GetByWork(ctx, workID)
}

func (s *approvalService) ActOnApproval(ctx context.Context, workflowID string, req ApprovalActionRequest, actor workflow.Actor) (WorkflowResponse, error) {
	wfID, err := parseID(workflowID, "workflow")
	if err != nil {
		return WorkflowResponse{}, err
	}
	action, err := workflow.ParseAction(strings.TrimSpace(req.Action))
	if err != nil {
		return WorkflowResponse{}, err
	}

	var wf *model.ApprovalWorkflow
	var history workflow.HistoryAction
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		cur := workflow.State{}
		existing, err := s.workflowRepo.FindByID(txCtx, wfID)
		switch {
		case err == nil:
			cur = stateOf(existing)
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return fmt.Errorf("failed to load approval workflow: %w", err)
		}

		out, err := workflow.Act(cur, action, actor)
		if err != nil {
			return err
		}
		history = out.History

		next := *existing
		applyState(&next, out.Next)
		if err := s.workflowRepo.Transition(txCtx, existing, &next); err != nil {
			return err
		}
		wf = &next

		if err := s.appendHistory(txCtx, wf, out, actor, req.Comment); err != nil {
			return err
		}
		return writeAudit(txCtx, s.auditRepo, actor.ID, model.ActionApprovalTransition, wf.ID.String(), string(out.History), map[string]interface{}{
			"action":     string(action),
			"from_level": out.ActedAtLevel,
			"to_level":   wf.CurrentLevel,
			"status":     wf.Status,
			"comment":    req.Comment,
		})
	})
	if err != nil {
		return WorkflowResponse{}, err
	}

	s.log.Info("approval transition",
		zap.String("workflow_id", wf.ID.String()),
		zap.String("action", string(history)),
		zap.String("status", wf.Status),
		zap.Int("level", wf.CurrentLevel),
		zap.String("actor", actor.ID))
	s.publish(wf, history, actor)
	return s.load(ctx, wf.ID)
}

func (s *approvalService) GetByWork(ctx context.Context, workID string) (WorkflowResponse, error) {
	wid, err := parseID(workID, "work")
	if err != nil {
		return WorkflowResponse{}, err
	}
	wf, err := s.workflowRepo.FindByWorkID(ctx, wid)
	if err != nil {
		return WorkflowResponse{}, lookupErr(err, "approval workflow of work", wid)
	}
	return s.load(ctx, wf.ID)
}

func (s *approvalService) GetHistory(ctx context.Context, workflowID string) ([]ApprovalHistoryResponse, error) {
	wfID, err := parseID(workflowID, "workflow")
	if err != nil {
		return nil, err
	}
	if _, err := s.workflowRepo.FindByID(ctx, wfID); err != nil {
		return nil, lookupErr(err, "approval workflow", wfID)
	}
	entries, err := s.workflowRepo.ListHistory(ctx, wfID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch approval history: %w", err)
	}
	return toHistoryResponses(entries), nil
}

func (s *approvalService) ListWorkflows(ctx context.Context, filter ApprovalFilter) ([]WorkflowResponse, int64, error) {
	if filter.Status != "" {
		switch workflow.Status(filter.Status) {
		case workflow.StatusPendingApproval, workflow.StatusApproved, workflow.StatusRejected, workflow.StatusSentBack:
		default:
			return nil, 0, apperror.Validation("unknown approval status %q", filter.Status)
		}
	}
	page, limit := normalizePage(filter.Page, filter.Limit)

	workflows, total, err := s.workflowRepo.List(ctx, repository.WorkflowFilter{
		Status:   filter.Status,
		Approver: filter.Approver,
	}, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch approval workflows: %w", err)
	}

	res := make([]WorkflowResponse, 0, len(workflows))
	for _, wf := range workflows {
		res = append(res, toWorkflowResponse(wf, nil))
	}
	return res, total, nil
}

// --- Helpers ---

func (s *approvalService) load(ctx context.Context, id uuid.UUID) (WorkflowResponse, error) {
	wf, err := s.workflowRepo.FindByID(ctx, id)
	if err != nil {
		return WorkflowResponse{}, lookupErr(err, "approval workflow", id)
	}
	entries, err := s.workflowRepo.ListHistory(ctx, id)
	if err != nil {
		return WorkflowResponse{}, fmt.Errorf("failed to fetch approval history: %w", err)
	}
	res := toWorkflowResponse(*wf, entries)
	if work, err := s.workRepo.FindByID(ctx, wf.WorkID); err == nil {
		res.WorkNo = work.WorkNo
	}
	return res, nil
}

func (s *approvalService) appendHistory(ctx context.Context, wf *model.ApprovalWorkflow, out workflow.Outcome, actor workflow.Actor, comment string) error {
	seq, err := s.workflowRepo.NextSequence(ctx, wf.ID)
	if err != nil {
		return fmt.Errorf("failed to sequence approval history: %w", err)
	}
	entry := &model.ApprovalHistoryEntry{
		WorkflowID:   wf.ID,
		Sequence:     seq,
		Cycle:        wf.Cycle,
		Level:        out.ActedAtLevel,
		ApproverID:   actor.ID,
		ApproverRole: actingRole(actor, out.ActedAtLevel),
		Action:       string(out.History),
		Comment:      comment,
	}
	if err := s.workflowRepo.AppendHistory(ctx, entry); err != nil {
		return mapWriteErr(err, "failed to append approval history")
	}
	return nil
}

func (s *approvalService) publish(wf *model.ApprovalWorkflow, action workflow.HistoryAction, actor workflow.Actor) {
	if s.events == nil || wf == nil {
		return
	}
	s.events.Publish(ApprovalEvent{
		Type:            "approval." + string(action),
		WorkflowID:      wf.ID.String(),
		WorkID:          wf.WorkID.String(),
		Action:          string(action),
		Status:          wf.Status,
		CurrentLevel:    wf.CurrentLevel,
		CurrentApprover: wf.CurrentApprover,
		ActorID:         actor.ID,
	})
}

// actingRole is the chain role the actor holds at level, else its first role.
func actingRole(actor workflow.Actor, level int) string {
	if role := workflow.RoleForLevel(level); actor.HasRole(role) {
		return role
	}
	if len(actor.Roles) > 0 {
		return actor.Roles[0]
	}
	return ""
}

// mapWriteErr reports unique-index violations (a racing submit or history append) as conflicts.
func mapWriteErr(err error, msg string) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) || isUniqueViolation(err) {
		return apperror.Conflict("%s: concurrent update", msg)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func isUniqueViolation(err error) bool {
	text := strings.ToLower(err.Error())
	return strings.Contains(text, "unique constraint") || strings.Contains(text, "duplicate key")
}

func stateOf(wf *model.ApprovalWorkflow) workflow.State {
	return workflow.State{
		Exists:          true,
		Status:          workflow.Status(wf.Status),
		CurrentLevel:    wf.CurrentLevel,
		CurrentApprover: wf.CurrentApprover,
		InitiatedBy:     wf.InitiatedBy,
		Cycle:           wf.Cycle,
	}
}

func applyState(wf *model.ApprovalWorkflow, st workflow.State) {
	wf.Status = string(st.Status)
	wf.CurrentLevel = st.CurrentLevel
	wf.CurrentApprover = st.CurrentApprover
	wf.InitiatedBy = st.InitiatedBy
	wf.Cycle = st.Cycle
}

func toWorkflowResponse(wf model.ApprovalWorkflow, history []model.ApprovalHistoryEntry) WorkflowResponse {
	res := WorkflowResponse{
		ID:              wf.ID,
		WorkID:          wf.WorkID,
		Status:          wf.Status,
		CurrentLevel:    wf.CurrentLevel,
		CurrentApprover: wf.CurrentApprover,
		InitiatedBy:     wf.InitiatedBy,
		InitiatedAt:     wf.InitiatedAt,
		Cycle:           wf.Cycle,
		Version:         wf.Version,
		UpdatedAt:       wf.UpdatedAt,
	}
	if wf.Work != nil {
		res.WorkNo = wf.Work.WorkNo
	}
	if history != nil {
		res.History = toHistoryResponses(history)
	}
	return res
}

func toHistoryResponses(entries []model.ApprovalHistoryEntry) []ApprovalHistoryResponse {
	res := make([]ApprovalHistoryResponse, 0, len(entries))
	for _, h := range entries {
		res = append(res, ApprovalHistoryResponse{
			ID:           h.ID,
			Sequence:     h.Sequence,
			Cycle:        h.Cycle,
			Level:        h.Level,
			ApproverID:   h.ApproverID,
			ApproverRole: h.ApproverRole,
			Action:       h.Action,
			Comment:      h.Comment,
			CreatedAt:    h.CreatedAt,
		})
	}
	return res
}
