package service

import (
	"context"
	"fmt"
	"time"

	"estimator/internal/apperror"
	"estimator/internal/estimation"
	"estimator/internal/model"
	"estimator/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// --- DTOs ---

// MeasurementRequest mirrors a measurement row as typed in. Blank numeric fields are nil.
type MeasurementRequest struct {
	RateID           *string          `json:"rate_id"`
	Header           string           `json:"header"`
	Description      string           `json:"description"`
	Unit             string           `json:"unit"`
	Factor           *decimal.Decimal `json:"factor"`
	NoOfUnits        *decimal.Decimal `json:"no_of_units"`
	Length           *decimal.Decimal `json:"length"`
	Width            *decimal.Decimal `json:"width"`
	Height           *decimal.Decimal `json:"height"`
	IsManualQuantity bool             `json:"is_manual_quantity"`
	ManualQuantity   *decimal.Decimal `json:"manual_quantity"`
	IsDeduction      bool             `json:"is_deduction"`
}

type MeasurementResponse struct {
	ID                 uuid.UUID       `json:"id"`
	LineItemID         uuid.UUID       `json:"line_item_id"`
	RateID             *uuid.UUID      `json:"rate_id"`
	SequenceNo         int             `json:"sequence_no"`
	Header             string          `json:"header"`
	Description        string          `json:"description"`
	Unit               string          `json:"unit"`
	Factor             decimal.Decimal `json:"factor"`
	NoOfUnits          decimal.Decimal `json:"no_of_units"`
	Length             decimal.Decimal `json:"length"`
	Width              decimal.Decimal `json:"width"`
	Height             decimal.Decimal `json:"height"`
	IsManualQuantity   bool            `json:"is_manual_quantity"`
	ManualQuantity     decimal.Decimal `json:"manual_quantity"`
	IsDeduction        bool            `json:"is_deduction"`
	CalculatedQuantity decimal.Decimal `json:"calculated_quantity"`
	LineAmount         decimal.Decimal `json:"line_amount"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// MeasurementResult is a saved row together with the re-derived item it belongs to.
type MeasurementResult struct {
	Measurement MeasurementResponse `json:"measurement"`
	Item        ItemResponse        `json:"item"`
}

// --- Interface ---

type MeasurementService interface {
	CreateMeasurement(ctx context.Context, itemID string, req MeasurementRequest, userID string) (MeasurementResult, error)
	UpdateMeasurement(ctx context.Context, id string, req MeasurementRequest, userID string) (MeasurementResult, error)
	DeleteMeasurement(ctx context.Context, id string, userID string) (ItemResponse, error)
	ListMeasurements(ctx context.Context, itemID string) ([]MeasurementResponse, error)
}

type measurementService struct {
	measurementRepo repository.MeasurementRepository
	itemRepo        repository.ItemRepository
	rateRepo        repository.RateRepository
	auditRepo       repository.AuditRepository
	txManager       repository.TransactionManager
	recomputer      Recomputer
	guard           editGuard
	log             *zap.Logger
}

func NewMeasurementService(
	measurementRepo repository.MeasurementRepository,
	itemRepo repository.ItemRepository,
	rateRepo repository.RateRepository,
	workflowRepo repository.WorkflowRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	recomputer Recomputer,
	log *zap.Logger,
) MeasurementService {
	return &measurementService{
		measurementRepo: measurementRepo,
		itemRepo:        itemRepo,
		rateRepo:        rateRepo,
		auditRepo:       auditRepo,
		txManager:       txManager,
		recomputer:      recomputer,
		guard:           editGuard{workflowRepo: workflowRepo},
		log:             log,
	}
}

// --- Implementation ---

func (s *measurementService) CreateMeasurement(ctx context.Context, itemID string, req MeasurementRequest, userID string) (MeasurementResult, error) {
	iid, err := parseID(itemID, "item")
	if err != nil {
		return MeasurementResult{}, err
	}

	row := &model.MeasurementRow{LineItemID: iid}
	var item *model.LineItem
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.ensureItemEditable(txCtx, iid); err != nil {
			return err
		}
		if err := s.apply(txCtx, row, req); err != nil {
			return err
		}
		seq, err := s.measurementRepo.NextSequenceNo(txCtx, iid)
		if err != nil {
			return fmt.Errorf("failed to number measurement: %w", err)
		}
		row.SequenceNo = seq
		if err := s.measurementRepo.Create(txCtx, row); err != nil {
			return fmt.Errorf("failed to create measurement: %w", err)
		}
		if item, err = s.recomputer.RecomputeItem(txCtx, iid); err != nil {
			return err
		}
		return writeAudit(txCtx, s.auditRepo, userID, model.ActionSaveMeasurement, row.ID.String(), row.Description, req)
	})
	if err != nil {
		return MeasurementResult{}, err
	}
	return s.result(row.ID, item), nil
}

func (s *measurementService) UpdateMeasurement(ctx context.Context, id string, req MeasurementRequest, userID string) (MeasurementResult, error) {
	rowID, err := parseID(id, "measurement")
	if err != nil {
		return MeasurementResult{}, err
	}

	var item *model.LineItem
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		row, err := s.measurementRepo.FindByID(txCtx, rowID)
		if err != nil {
			return lookupErr(err, "measurement", rowID)
		}
		if err := s.ensureItemEditable(txCtx, row.LineItemID); err != nil {
			return err
		}
		if err := s.apply(txCtx, row, req); err != nil {
			return err
		}
		if err := s.measurementRepo.Update(txCtx, row); err != nil {
			return fmt.Errorf("failed to update measurement: %w", err)
		}
		if item, err = s.recomputer.RecomputeItem(txCtx, row.LineItemID); err != nil {
			return err
		}
		return writeAudit(txCtx, s.auditRepo, userID, model.ActionSaveMeasurement, row.ID.String(), row.Description, req)
	})
	if err != nil {
		return MeasurementResult{}, err
	}
	return s.result(rowID, item), nil
}

func (s *measurementService) DeleteMeasurement(ctx context.Context, id string, userID string) (ItemResponse, error) {
	rowID, err := parseID(id, "measurement")
	if err != nil {
		return ItemResponse{}, err
	}

	var item *model.LineItem
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		row, err := s.measurementRepo.FindByID(txCtx, rowID)
		if err != nil {
			return lookupErr(err, "measurement", rowID)
		}
		if err := s.ensureItemEditable(txCtx, row.LineItemID); err != nil {
			return err
		}
		if err := s.measurementRepo.Delete(txCtx, rowID); err != nil {
			return fmt.Errorf("failed to delete measurement: %w", err)
		}
		if item, err = s.recomputer.RecomputeItem(txCtx, row.LineItemID); err != nil {
			return err
		}
		return writeAudit(txCtx, s.auditRepo, userID, model.ActionDeleteMeasurement, row.ID.String(), row.Description, nil)
	})
	if err != nil {
		return ItemResponse{}, err
	}
	return toItemResponse(*item), nil
}

func (s *measurementService) ListMeasurements(ctx context.Context, itemID string) ([]MeasurementResponse, error) {
	iid, err := parseID(itemID, "item")
	if err != nil {
		return nil, err
	}
	if _, err := s.itemRepo.FindByID(ctx, iid); err != nil {
		return nil, lookupErr(err, "item", iid)
	}
	rows, err := s.measurementRepo.ListByItem(ctx, iid)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch measurements: %w", err)
	}
	res := make([]MeasurementResponse, 0, len(rows))
	for _, r := range rows {
		res = append(res, toMeasurementResponse(r))
	}
	return res, nil
}

func (s *measurementService) ensureItemEditable(ctx context.Context, itemID uuid.UUID) error {
	workID, err := s.itemRepo.WorkIDOf(ctx, itemID)
	if err != nil {
		return lookupErr(err, "item", itemID)
	}
	return s.guard.ensureEditable(ctx, workID)
}

// apply copies the request onto row with blanks resolved and computes its quantity.
// The line amount is left to the recompute that follows every write.
func (s *measurementService) apply(ctx context.Context, row *model.MeasurementRow, req MeasurementRequest) error {
	row.RateID = nil
	if req.RateID != nil && *req.RateID != "" {
		rateID, err := parseID(*req.RateID, "rate")
		if err != nil {
			return err
		}
		rate, err := s.rateRepo.FindByID(ctx, rateID)
		if err != nil {
			return lookupErr(err, "rate", rateID)
		}
		if rate.LineItemID != row.LineItemID {
			return apperror.Validation("rate %s does not belong to item %s", rateID, row.LineItemID)
		}
		row.RateID = &rateID
	}

	m := estimation.RawMeasurement{
		Factor:           req.Factor,
		NoOfUnits:        req.NoOfUnits,
		Length:           req.Length,
		Width:            req.Width,
		Height:           req.Height,
		IsManualQuantity: req.IsManualQuantity,
		ManualQuantity:   req.ManualQuantity,
	}.Normalize()

	row.Header = req.Header
	row.Description = req.Description
	row.Unit = req.Unit
	row.Factor = m.Factor
	row.NoOfUnits = m.NoOfUnits
	row.Length = m.Length
	row.Width = m.Width
	row.Height = m.Height
	row.IsManualQuantity = m.IsManualQuantity
	row.ManualQuantity = m.ManualQuantity
	row.IsDeduction = req.IsDeduction
	row.CalculatedQuantity = estimation.ComputeQuantity(m)
	return nil
}

func (s *measurementService) result(rowID uuid.UUID, item *model.LineItem) MeasurementResult {
	res := MeasurementResult{Item: toItemResponse(*item)}
	for _, m := range item.Measurements {
		if m.ID == rowID {
			res.Measurement = toMeasurementResponse(m)
		}
	}
	return res
}

func toMeasurementResponse(m model.MeasurementRow) MeasurementResponse {
	return MeasurementResponse{
		ID:                 m.ID,
		LineItemID:         m.LineItemID,
		RateID:             m.RateID,
		SequenceNo:         m.SequenceNo,
		Header:             m.Header,
		Description:        m.Description,
		Unit:               m.Unit,
		Factor:             m.Factor,
		NoOfUnits:          m.NoOfUnits,
		Length:             m.Length,
		Width:              m.Width,
		Height:             m.Height,
		IsManualQuantity:   m.IsManualQuantity,
		ManualQuantity:     m.ManualQuantity,
		IsDeduction:        m.IsDeduction,
		CalculatedQuantity: m.CalculatedQuantity,
		LineAmount:         m.LineAmount,
		UpdatedAt:          m.UpdatedAt,
	}
}
