package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"estimator/internal/apperror"
	"estimator/internal/estimation"
	"estimator/internal/model"
	"estimator/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const statusDraft = "draft"

// --- Interface ---

type EstimateService interface {
	CreateWork(ctx context.Context, req CreateWorkRequest, userID string) (WorkResponse, error)
	UpdateWork(ctx context.Context, id string, req UpdateWorkRequest, userID string) (WorkResponse, error)
	DeleteWork(ctx context.Context, id string, userID string) error
	GetWork(ctx context.Context, id string) (WorkResponse, error)
	ListWorks(ctx context.Context, search string, page, limit int) ([]WorkResponse, int64, error)

	CreateSubWork(ctx context.Context, workID string, req SubWorkRequest, userID string) (SubWorkResponse, error)
	UpdateSubWork(ctx context.Context, id string, req SubWorkRequest, userID string) (SubWorkResponse, error)
	DeleteSubWork(ctx context.Context, id string, userID string) error

	CreateItem(ctx context.Context, subWorkID string, req CreateItemRequest, userID string) (ItemResponse, error)
	UpdateItem(ctx context.Context, id string, req UpdateItemRequest, userID string) (ItemResponse, error)
	SetItemOperation(ctx context.Context, id string, req ItemOperationRequest, userID string) (ItemResponse, error)
	DeleteItem(ctx context.Context, id string, userID string) error
	GetItem(ctx context.Context, id string) (ItemResponse, error)
	RecomputeItem(ctx context.Context, id string) (ItemResponse, error)

	CreateRate(ctx context.Context, itemID string, req RateRequest, userID string) (RateResponse, error)
	UpdateRate(ctx context.Context, id string, req RateRequest, userID string) (RateResponse, error)
	DeleteRate(ctx context.Context, id string, userID string) error
}

// --- Implementation ---

type estimateService struct {
	workRepo     repository.WorkRepository
	itemRepo     repository.ItemRepository
	rateRepo     repository.RateRepository
	workflowRepo repository.WorkflowRepository
	auditRepo    repository.AuditRepository
	txManager    repository.TransactionManager
	recomputer   Recomputer
	guard        editGuard
	log          *zap.Logger
}

func NewEstimateService(
	workRepo repository.WorkRepository,
	itemRepo repository.ItemRepository,
	rateRepo repository.RateRepository,
	workflowRepo repository.WorkflowRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	recomputer Recomputer,
	log *zap.Logger,
) EstimateService {
	return &estimateService{
		workRepo:     workRepo,
		itemRepo:     itemRepo,
		rateRepo:     rateRepo,
		workflowRepo: workflowRepo,
		auditRepo:    auditRepo,
		txManager:    txManager,
		recomputer:   recomputer,
		guard:        editGuard{workflowRepo: workflowRepo},
		log:          log,
	}
}

// --- Works ---

func (s *estimateService) CreateWork(ctx context.Context, req CreateWorkRequest, userID string) (WorkResponse, error) {
	workNo := strings.TrimSpace(req.WorkNo)
	if workNo == "" {
		return WorkResponse{}, apperror.Validation("work_no is required")
	}
	if strings.TrimSpace(req.Name) == "" {
		return WorkResponse{}, apperror.Validation("name is required")
	}

	work := &model.Work{
		WorkNo:      workNo,
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		CreatedBy:   userID,
	}
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		exists, err := s.workRepo.ExistsByWorkNo(txCtx, workNo, nil)
		if err != nil {
			return fmt.Errorf("failed to check work number: %w", err)
		}
		if exists {
			return apperror.Conflict("work number %s is already used", workNo)
		}
		if err := s.workRepo.Create(txCtx, work); err != nil {
			return fmt.Errorf("failed to create work: %w", err)
		}
		return writeAudit(txCtx, s.auditRepo, userID, model.ActionCreateWork, work.ID.String(), work.WorkNo, req)
	})
	if err != nil {
		return WorkResponse{}, err
	}

	s.log.Info("work created", zap.String("work_id", work.ID.String()), zap.String("work_no", work.WorkNo))
	return toWorkResponse(*work, statusDraft), nil
}

func (s *estimateService) UpdateWork(ctx context.Context, id string, req UpdateWorkRequest, userID string) (WorkResponse, error) {
	workID, err := parseID(id, "work")
	if err != nil {
		return WorkResponse{}, err
	}

	var work *model.Work
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		found, err := s.workRepo.FindByID(txCtx, workID)
		if err != nil {
			return lookupErr(err, "work", workID)
		}
		work = found
		if err := s.guard.ensureEditable(txCtx, workID); err != nil {
			return err
		}
		if req.Name != nil {
			if strings.TrimSpace(*req.Name) == "" {
				return apperror.Validation("name cannot be empty")
			}
			work.Name = strings.TrimSpace(*req.Name)
		}
		if req.Description != nil {
			work.Description = *req.Description
		}
		if err := s.workRepo.Update(txCtx, work); err != nil {
			return fmt.Errorf("failed to update work: %w", err)
		}
		return writeAudit(txCtx, s.auditRepo, userID, model.ActionUpdateWork, work.ID.String(), work.WorkNo, req)
	})
	if err != nil {
		return WorkResponse{}, err
	}
	return s.GetWork(ctx, id)
}

func (s *estimateService) DeleteWork(ctx context.Context, id string, userID string) error {
	workID, err := parseID(id, "work")
	if err != nil {
		return err
	}
	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		work, err := s.workRepo.FindByID(txCtx, workID)
		if err != nil {
			return lookupErr(err, "work", workID)
		}
		if err := s.guard.ensureEditable(txCtx, workID); err != nil {
			return err
		}
		if err := s.workRepo.Delete(txCtx, workID); err != nil {
			return fmt.Errorf("failed to delete work: %w", err)
		}
		return writeAudit(txCtx, s.auditRepo, userID, model.ActionDeleteWork, work.ID.String(), work.WorkNo, nil)
	})
}

func (s *estimateService) GetWork(ctx context.Context, id string) (WorkResponse, error) {
	workID, err := parseID(id, "work")
	if err != nil {
		return WorkResponse{}, err
	}
	work, err := s.workRepo.FindByIDWithTree(ctx, workID)
	if err != nil {
		return WorkResponse{}, lookupErr(err, "work", workID)
	}
	status, err := s.approvalStatus(ctx, workID)
	if err != nil {
		return WorkResponse{}, err
	}
	return toWorkResponse(*work, status), nil
}

func (s *estimateService) ListWorks(ctx context.Context, search string, page, limit int) ([]WorkResponse, int64, error) {
	page, limit = normalizePage(page, limit)
	works, total, err := s.workRepo.List(ctx, search, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch works: %w", err)
	}

	res := make([]WorkResponse, 0, len(works))
	for _, w := range works {
		status, err := s.approvalStatus(ctx, w.ID)
		if err != nil {
			return nil, 0, err
		}
		res = append(res, toWorkResponse(w, status))
	}
	return res, total, nil
}

func (s *estimateService) approvalStatus(ctx context.Context, workID uuid.UUID) (string, error) {
	wf, err := s.workflowRepo.FindByWorkID(ctx, workID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return statusDraft, nil
		}
		return "", fmt.Errorf("failed to load approval workflow: %w", err)
	}
	return wf.Status, nil
}

// --- Sub-works ---

func (s *estimateService) CreateSubWork(ctx context.Context, workID string, req SubWorkRequest, userID string) (SubWorkResponse, error) {
	wid, err := parseID(workID, "work")
	if err != nil {
		return SubWorkResponse{}, err
	}
	if strings.TrimSpace(req.Name) == "" {
		return SubWorkResponse{}, apperror.Validation("name is required")
	}

	sub := &model.SubWork{WorkID: wid, Name: strings.TrimSpace(req.Name), TotalAmount: decimal.Zero}
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.workRepo.FindByID(txCtx, wid); err != nil {
			return lookupErr(err, "work", wid)
		}
		if err := s.guard.ensureEditable(txCtx, wid); err != nil {
			return err
		}
		no, err := s.workRepo.NextSubWorkNo(txCtx, wid)
		if err != nil {
			return fmt.Errorf("failed to number sub-work: %w", err)
		}
		sub.SubWorkNo = no
		if err := s.workRepo.CreateSubWork(txCtx, sub); err != nil {
			return fmt.Errorf("failed to create sub-work: %w", err)
		}
		return writeAudit(txCtx, s.auditRepo, userID, model.ActionCreateSubWork, sub.ID.String(), sub.Name, req)
	})
	if err != nil {
		return SubWorkResponse{}, err
	}
	return toSubWorkResponse(*sub), nil
}

func (s *estimateService) UpdateSubWork(ctx context.Context, id string, req SubWorkRequest, userID string) (SubWorkResponse, error) {
	subID, err := parseID(id, "sub-work")
	if err != nil {
		return SubWorkResponse{}, err
	}
	if strings.TrimSpace(req.Name) == "" {
		return SubWorkResponse{}, apperror.Validation("name is required")
	}

	var sub *model.SubWork
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		found, err := s.workRepo.FindSubWork(txCtx, subID)
		if err != nil {
			return lookupErr(err, "sub-work", subID)
		}
		sub = found
		if err := s.guard.ensureEditable(txCtx, sub.WorkID); err != nil {
			return err
		}
		sub.Name = strings.TrimSpace(req.Name)
		if err := s.workRepo.UpdateSubWork(txCtx, sub); err != nil {
			return fmt.Errorf("failed to update sub-work: %w", err)
		}
		return writeAudit(txCtx, s.auditRepo, userID, model.ActionUpdateSubWork, sub.ID.String(), sub.Name, req)
	})
	if err != nil {
		return SubWorkResponse{}, err
	}
	return toSubWorkResponse(*sub), nil
}

func (s *estimateService) DeleteSubWork(ctx context.Context, id string, userID string) error {
	subID, err := parseID(id, "sub-work")
	if err != nil {
		return err
	}
	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		sub, err := s.workRepo.FindSubWork(txCtx, subID)
		if err != nil {
			return lookupErr(err, "sub-work", subID)
		}
		if err := s.guard.ensureEditable(txCtx, sub.WorkID); err != nil {
			return err
		}
		items, err := s.itemRepo.ListBySubWork(txCtx, subID)
		if err != nil {
			return fmt.Errorf("failed to load sub-work items: %w", err)
		}
		for _, it := range items {
			if err := s.itemRepo.Delete(txCtx, it.ID); err != nil {
				return fmt.Errorf("failed to delete item %s: %w", it.ID, err)
			}
		}
		if err := s.workRepo.DeleteSubWork(txCtx, subID); err != nil {
			return fmt.Errorf("failed to delete sub-work: %w", err)
		}
		return writeAudit(txCtx, s.auditRepo, userID, model.ActionDeleteSubWork, sub.ID.String(), sub.Name, map[string]int{"items": len(items)})
	})
}

// --- Items ---

func (s *estimateService) CreateItem(ctx context.Context, subWorkID string, req CreateItemRequest, userID string) (ItemResponse, error) {
	subID, err := parseID(subWorkID, "sub-work")
	if err != nil {
		return ItemResponse{}, err
	}
	if strings.TrimSpace(req.Description) == "" {
		return ItemResponse{}, apperror.Validation("description is required")
	}
	op, err := estimation.ParseOperation(req.OperationType)
	if err != nil {
		return ItemResponse{}, err
	}

	item := &model.LineItem{
		SubWorkID:            subID,
		Description:          strings.TrimSpace(req.Description),
		Category:             req.Category,
		Unit:                 req.Unit,
		FinalUnit:            req.FinalUnit,
		OperationType:        string(op),
		OperationValue:       decimalOr(req.OperationValue, decimal.Zero),
		UnitConversionFactor: decimalOr(req.UnitConversionFactor, decimal.NewFromInt(1)),
		TotalQuantity:        decimal.Zero,
		FinalQuantity:        decimal.Zero,
		TotalAmount:          decimal.Zero,
	}
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		sub, err := s.workRepo.FindSubWork(txCtx, subID)
		if err != nil {
			return lookupErr(err, "sub-work", subID)
		}
		if err := s.guard.ensureEditable(txCtx, sub.WorkID); err != nil {
			return err
		}
		no, err := s.itemRepo.NextItemNo(txCtx, subID)
		if err != nil {
			return fmt.Errorf("failed to number item: %w", err)
		}
		item.ItemNo = no
		if err := s.itemRepo.Create(txCtx, item); err != nil {
			return fmt.Errorf("failed to create item: %w", err)
		}
		return writeAudit(txCtx, s.auditRepo, userID, model.ActionCreateItem, item.ID.String(), item.Description, req)
	})
	if err != nil {
		return ItemResponse{}, err
	}
	return toItemResponse(*item), nil
}

func (s *estimateService) UpdateItem(ctx context.Context, id string, req UpdateItemRequest, userID string) (ItemResponse, error) {
	itemID, err := parseID(id, "item")
	if err != nil {
		return ItemResponse{}, err
	}
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		item, err := s.lockedItem(txCtx, itemID)
		if err != nil {
			return err
		}
		if req.Description != nil {
			if strings.TrimSpace(*req.Description) == "" {
				return apperror.Validation("description cannot be empty")
			}
			item.Description = strings.TrimSpace(*req.Description)
		}
		if req.Category != nil {
			item.Category = *req.Category
		}
		if req.Unit != nil {
			item.Unit = *req.Unit
		}
		if err := s.itemRepo.Update(txCtx, item); err != nil {
			return fmt.Errorf("failed to update item: %w", err)
		}
		return writeAudit(txCtx, s.auditRepo, userID, model.ActionUpdateItem, item.ID.String(), item.Description, req)
	})
	if err != nil {
		return ItemResponse{}, err
	}
	return s.GetItem(ctx, id)
}

// SetItemOperation stores new operation settings and re-derives the item in the same transaction.
func (s *estimateService) SetItemOperation(ctx context.Context, id string, req ItemOperationRequest, userID string) (ItemResponse, error) {
	itemID, err := parseID(id, "item")
	if err != nil {
		return ItemResponse{}, err
	}
	op, err := estimation.ParseOperation(req.OperationType)
	if err != nil {
		return ItemResponse{}, err
	}

	var updated *model.LineItem
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		item, err := s.lockedItem(txCtx, itemID)
		if err != nil {
			return err
		}
		item.OperationType = string(op)
		item.OperationValue = decimalOr(req.OperationValue, decimal.Zero)
		if req.UnitConversionFactor != nil {
			item.UnitConversionFactor = *req.UnitConversionFactor
		}
		if req.FinalUnit != nil {
			item.FinalUnit = *req.FinalUnit
		}
		if err := s.itemRepo.Update(txCtx, item); err != nil {
			return fmt.Errorf("failed to update item operation: %w", err)
		}
		if updated, err = s.recomputer.RecomputeItem(txCtx, itemID); err != nil {
			return err
		}
		return writeAudit(txCtx, s.auditRepo, userID, model.ActionUpdateItem, item.ID.String(), item.Description, req)
	})
	if err != nil {
		return ItemResponse{}, err
	}
	return toItemResponse(*updated), nil
}

func (s *estimateService) DeleteItem(ctx context.Context, id string, userID string) error {
	itemID, err := parseID(id, "item")
	if err != nil {
		return err
	}
	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		item, err := s.lockedItem(txCtx, itemID)
		if err != nil {
			return err
		}
		if err := s.itemRepo.Delete(txCtx, itemID); err != nil {
			return fmt.Errorf("failed to delete item: %w", err)
		}
		if err := s.workRepo.UpdateSubWorkTotal(txCtx, item.SubWorkID); err != nil {
			return fmt.Errorf("failed to update sub-work total: %w", err)
		}
		return writeAudit(txCtx, s.auditRepo, userID, model.ActionDeleteItem, item.ID.String(), item.Description, nil)
	})
}

func (s *estimateService) GetItem(ctx context.Context, id string) (ItemResponse, error) {
	itemID, err := parseID(id, "item")
	if err != nil {
		return ItemResponse{}, err
	}
	item, err := s.itemRepo.FindByIDWithRelations(ctx, itemID)
	if err != nil {
		return ItemResponse{}, lookupErr(err, "item", itemID)
	}
	return toItemResponse(*item), nil
}

func (s *estimateService) RecomputeItem(ctx context.Context, id string) (ItemResponse, error) {
	itemID, err := parseID(id, "item")
	if err != nil {
		return ItemResponse{}, err
	}
	item, err := s.recomputer.RecomputeItem(ctx, itemID)
	if err != nil {
		return ItemResponse{}, err
	}
	return toItemResponse(*item), nil
}

// lockedItem loads an item and fails when its estimate may not be edited.
func (s *estimateService) lockedItem(ctx context.Context, itemID uuid.UUID) (*model.LineItem, error) {
	item, err := s.itemRepo.FindByID(ctx, itemID)
	if err != nil {
		return nil, lookupErr(err, "item", itemID)
	}
	workID, err := s.itemRepo.WorkIDOf(ctx, itemID)
	if err != nil {
		return nil, lookupErr(err, "work of item", itemID)
	}
	if err := s.guard.ensureEditable(ctx, workID); err != nil {
		return nil, err
	}
	return item, nil
}

// --- Rates ---

func (s *estimateService) CreateRate(ctx context.Context, itemID string, req RateRequest, userID string) (RateResponse, error) {
	iid, err := parseID(itemID, "item")
	if err != nil {
		return RateResponse{}, err
	}
	if err := validateRate(req); err != nil {
		return RateResponse{}, err
	}

	rate := &model.Rate{
		LineItemID:  iid,
		Description: strings.TrimSpace(req.Description),
		Rate:        req.Rate,
		Unit:        req.Unit,
		Quantity:    decimal.Zero,
		TotalAmount: decimal.Zero,
	}
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.lockedItem(txCtx, iid); err != nil {
			return err
		}
		pos, err := s.rateRepo.NextPosition(txCtx, iid)
		if err != nil {
			return fmt.Errorf("failed to position rate: %w", err)
		}
		rate.Position = pos
		if err := s.rateRepo.Create(txCtx, rate); err != nil {
			return fmt.Errorf("failed to create rate: %w", err)
		}
		if err := s.repriceRate(txCtx, rate); err != nil {
			return err
		}
		return writeAudit(txCtx, s.auditRepo, userID, model.ActionSaveRate, rate.ID.String(), rate.Description, req)
	})
	if err != nil {
		return RateResponse{}, err
	}
	return toRateResponse(*rate), nil
}

func (s *estimateService) UpdateRate(ctx context.Context, id string, req RateRequest, userID string) (RateResponse, error) {
	rateID, err := parseID(id, "rate")
	if err != nil {
		return RateResponse{}, err
	}
	if err := validateRate(req); err != nil {
		return RateResponse{}, err
	}

	var rate *model.Rate
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		found, err := s.rateRepo.FindByID(txCtx, rateID)
		if err != nil {
			return lookupErr(err, "rate", rateID)
		}
		rate = found
		if _, err := s.lockedItem(txCtx, rate.LineItemID); err != nil {
			return err
		}
		rate.Description = strings.TrimSpace(req.Description)
		rate.Rate = req.Rate
		rate.Unit = req.Unit
		if err := s.rateRepo.Update(txCtx, rate); err != nil {
			return fmt.Errorf("failed to update rate: %w", err)
		}
		if err := s.repriceRate(txCtx, rate); err != nil {
			return err
		}
		return writeAudit(txCtx, s.auditRepo, userID, model.ActionSaveRate, rate.ID.String(), rate.Description, req)
	})
	if err != nil {
		return RateResponse{}, err
	}
	return toRateResponse(*rate), nil
}

func (s *estimateService) DeleteRate(ctx context.Context, id string, userID string) error {
	rateID, err := parseID(id, "rate")
	if err != nil {
		return err
	}
	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		rate, err := s.rateRepo.FindByID(txCtx, rateID)
		if err != nil {
			return lookupErr(err, "rate", rateID)
		}
		if _, err := s.lockedItem(txCtx, rate.LineItemID); err != nil {
			return err
		}
		if err := s.rateRepo.Delete(txCtx, rateID); err != nil {
			return fmt.Errorf("failed to delete rate: %w", err)
		}
		if _, err := s.recomputer.RecomputeItem(txCtx, rate.LineItemID); err != nil {
			return err
		}
		return writeAudit(txCtx, s.auditRepo, userID, model.ActionDeleteRate, rate.ID.String(), rate.Description, nil)
	})
}

// repriceRate recomputes the owning item and copies the new pricing back onto rate.
func (s *estimateService) repriceRate(ctx context.Context, rate *model.Rate) error {
	item, err := s.recomputer.RecomputeItem(ctx, rate.LineItemID)
	if err != nil {
		return err
	}
	for _, r := range item.Rates {
		if r.ID == rate.ID {
			rate.Quantity, rate.TotalAmount = r.Quantity, r.TotalAmount
		}
	}
	return nil
}

func validateRate(req RateRequest) error {
	if strings.TrimSpace(req.Description) == "" {
		return apperror.Validation("description is required")
	}
	if req.Rate.IsNegative() {
		return apperror.Validation("rate cannot be negative")
	}
	return nil
}

func decimalOr(v *decimal.Decimal, fallback decimal.Decimal) decimal.Decimal {
	if v == nil {
		return fallback
	}
	return *v
}
