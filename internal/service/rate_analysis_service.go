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

// --- DTOs ---

type RateAnalysisEntryRequest struct {
	Label     string           `json:"label" binding:"required"`
	EntryType string           `json:"entry_type" binding:"required,oneof=addition deletion tax"`
	Value     decimal.Decimal  `json:"value"`
	Factor    *decimal.Decimal `json:"factor"` // defaults to 1
	// AfterPosition inserts the entry after the given position; 0 puts it first, nil appends.
	AfterPosition *int `json:"after_position"`
}

type SaveRateAnalysisRequest struct {
	BaseRate        *decimal.Decimal `json:"base_rate"`
	FinalTaxPercent *decimal.Decimal `json:"final_tax_percent"`
	ClearFinalTax   bool             `json:"clear_final_tax"`
}

type EvaluateRateAnalysisRequest struct {
	DefaultRate *decimal.Decimal `json:"default_rate"`
}

type RateAnalysisEntryResponse struct {
	ID        uuid.UUID       `json:"id"`
	Position  int             `json:"position"`
	Label     string          `json:"label"`
	EntryType string          `json:"entry_type"`
	Value     decimal.Decimal `json:"value"`
	Factor    decimal.Decimal `json:"factor"`
	Amount    decimal.Decimal `json:"amount"`
}

type RateAnalysisResponse struct {
	ID              *uuid.UUID                  `json:"id"` // nil until the analysis is first saved
	LineItemID      uuid.UUID                   `json:"line_item_id"`
	RateID          uuid.UUID                   `json:"rate_id"`
	BaseRate        decimal.Decimal             `json:"base_rate"`
	Entries         []RateAnalysisEntryResponse `json:"entries"`
	TotalAdditions  decimal.Decimal             `json:"total_additions"`
	TotalDeletions  decimal.Decimal             `json:"total_deletions"`
	TotalTaxes      decimal.Decimal             `json:"total_taxes"`
	CalculatedRate  decimal.Decimal             `json:"calculated_rate"`
	FinalRate       decimal.Decimal             `json:"final_rate"`
	FinalTaxPercent *decimal.Decimal            `json:"final_tax_percent"`
	FinalTaxAmount  decimal.Decimal             `json:"final_tax_amount"`
	TotalRate       decimal.Decimal             `json:"total_rate"`
	AppliedRate     decimal.Decimal             `json:"applied_rate"` // the rate's current value
}

// --- Interface ---

type RateAnalysisService interface {
	GetRateAnalysis(ctx context.Context, itemID, rateID string) (RateAnalysisResponse, error)
	SaveRateAnalysis(ctx context.Context, itemID, rateID string, req SaveRateAnalysisRequest, userID string) (RateAnalysisResponse, error)
	AddEntry(ctx context.Context, itemID, rateID string, req RateAnalysisEntryRequest, userID string) (RateAnalysisResponse, error)
	UpdateEntry(ctx context.Context, entryID string, req RateAnalysisEntryRequest, userID string) (RateAnalysisResponse, error)
	DeleteEntry(ctx context.Context, entryID string, userID string) (RateAnalysisResponse, error)
	// EvaluateRateAnalysis persists the evaluated analysis, makes its final (or taxed total) rate
	// the rate's value and re-prices the item.
	EvaluateRateAnalysis(ctx context.Context, itemID, rateID string, defaultRate *decimal.Decimal, userID string) (RateAnalysisResponse, error)
}

type rateAnalysisService struct {
	analysisRepo repository.RateAnalysisRepository
	rateRepo     repository.RateRepository
	itemRepo     repository.ItemRepository
	auditRepo    repository.AuditRepository
	txManager    repository.TransactionManager
	recomputer   Recomputer
	guard        editGuard
	log          *zap.Logger
}

func NewRateAnalysisService(
	analysisRepo repository.RateAnalysisRepository,
	rateRepo repository.RateRepository,
	itemRepo repository.ItemRepository,
	workflowRepo repository.WorkflowRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	recomputer Recomputer,
	log *zap.Logger,
) RateAnalysisService {
	return &rateAnalysisService{
		analysisRepo: analysisRepo,
		rateRepo:     rateRepo,
		itemRepo:     itemRepo,
		auditRepo:    auditRepo,
		txManager:    txManager,
		recomputer:   recomputer,
		guard:        editGuard{workflowRepo: workflowRepo},
		log:          log,
	}
}

// --- Implementation ---

func (s *rateAnalysisService) GetRateAnalysis(ctx context.Context, itemID, rateID string) (RateAnalysisResponse, error) {
	iid, rid, err := parseItemRate(itemID, rateID)
	if err != nil {
		return RateAnalysisResponse{}, err
	}
	rate, err := s.rateOfItem(ctx, iid, rid)
	if err != nil {
		return RateAnalysisResponse{}, err
	}

	analysis, err := s.analysisRepo.FindByItemAndRate(ctx, iid, rid)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return RateAnalysisResponse{}, fmt.Errorf("failed to load rate analysis: %w", err)
		}
		// Nothing saved yet: evaluate an empty analysis on the rate's value.
		analysis = &model.RateAnalysis{LineItemID: iid, RateID: rid}
		res, err := evaluateAnalysis(analysis, rate, nil)
		if err != nil {
			return RateAnalysisResponse{}, err
		}
		return toRateAnalysisResponse(analysis, res, rate, false), nil
	}

	res, err := evaluateAnalysis(analysis, rate, nil)
	if err != nil {
		return RateAnalysisResponse{}, err
	}
	return toRateAnalysisResponse(analysis, res, rate, true), nil
}

func (s *rateAnalysisService) SaveRateAnalysis(ctx context.Context, itemID, rateID string, req SaveRateAnalysisRequest, userID string) (RateAnalysisResponse, error) {
	iid, rid, err := parseItemRate(itemID, rateID)
	if err != nil {
		return RateAnalysisResponse{}, err
	}
	if req.BaseRate != nil && req.BaseRate.IsNegative() {
		return RateAnalysisResponse{}, apperror.Validation("base_rate cannot be negative")
	}

	var out RateAnalysisResponse
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		rate, analysis, err := s.editableAnalysis(txCtx, iid, rid)
		if err != nil {
			return err
		}
		if req.BaseRate != nil {
			analysis.BaseRate = decimal.NewNullDecimal(*req.BaseRate)
		}
		switch {
		case req.ClearFinalTax:
			analysis.FinalTaxPercent = decimal.NullDecimal{}
		case req.FinalTaxPercent != nil:
			analysis.FinalTaxPercent = decimal.NewNullDecimal(*req.FinalTaxPercent)
		}
		if out, err = s.persist(txCtx, analysis, rate); err != nil {
			return err
		}
		return writeAudit(txCtx, s.auditRepo, userID, model.ActionSaveRateAnalysis, analysis.ID.String(), rate.Description, req)
	})
	return out, err
}

func (s *rateAnalysisService) AddEntry(ctx context.Context, itemID, rateID string, req RateAnalysisEntryRequest, userID string) (RateAnalysisResponse, error) {
	iid, rid, err := parseItemRate(itemID, rateID)
	if err != nil {
		return RateAnalysisResponse{}, err
	}
	entry, err := entryFromRequest(req)
	if err != nil {
		return RateAnalysisResponse{}, err
	}

	var out RateAnalysisResponse
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		rate, analysis, err := s.editableAnalysis(txCtx, iid, rid)
		if err != nil {
			return err
		}
		next, err := s.analysisRepo.NextPosition(txCtx, analysis.ID)
		if err != nil {
			return fmt.Errorf("failed to position entry: %w", err)
		}
		entry.RateAnalysisID = analysis.ID
		entry.Position = next
		if req.AfterPosition != nil && *req.AfterPosition < next-1 {
			at := *req.AfterPosition + 1
			if at < 1 {
				at = 1
			}
			if err := s.analysisRepo.ShiftPositions(txCtx, analysis.ID, at, 1); err != nil {
				return fmt.Errorf("failed to make room for entry: %w", err)
			}
			entry.Position = at
		}
		if err := s.analysisRepo.CreateEntry(txCtx, entry); err != nil {
			return fmt.Errorf("failed to create entry: %w", err)
		}
		if analysis, err = s.analysisRepo.FindByID(txCtx, analysis.ID); err != nil {
			return fmt.Errorf("failed to reload rate analysis: %w", err)
		}
		if out, err = s.persist(txCtx, analysis, rate); err != nil {
			return err
		}
		return writeAudit(txCtx, s.auditRepo, userID, model.ActionSaveRateAnalysis, analysis.ID.String(), entry.Label, req)
	})
	return out, err
}

func (s *rateAnalysisService) UpdateEntry(ctx context.Context, entryID string, req RateAnalysisEntryRequest, userID string) (RateAnalysisResponse, error) {
	eid, err := parseID(entryID, "entry")
	if err != nil {
		return RateAnalysisResponse{}, err
	}
	changes, err := entryFromRequest(req)
	if err != nil {
		return RateAnalysisResponse{}, err
	}

	var out RateAnalysisResponse
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		entry, err := s.analysisRepo.FindEntry(txCtx, eid)
		if err != nil {
			return lookupErr(err, "entry", eid)
		}
		rate, analysis, err := s.analysisOfEntry(txCtx, entry)
		if err != nil {
			return err
		}
		entry.Label = changes.Label
		entry.EntryType = changes.EntryType
		entry.Value = changes.Value
		entry.Factor = changes.Factor
		if err := s.analysisRepo.UpdateEntry(txCtx, entry); err != nil {
			return fmt.Errorf("failed to update entry: %w", err)
		}
		if analysis, err = s.analysisRepo.FindByID(txCtx, analysis.ID); err != nil {
			return fmt.Errorf("failed to reload rate analysis: %w", err)
		}
		if out, err = s.persist(txCtx, analysis, rate); err != nil {
			return err
		}
		return writeAudit(txCtx, s.auditRepo, userID, model.ActionSaveRateAnalysis, analysis.ID.String(), entry.Label, req)
	})
	return out, err
}

func (s *rateAnalysisService) DeleteEntry(ctx context.Context, entryID string, userID string) (RateAnalysisResponse, error) {
	eid, err := parseID(entryID, "entry")
	if err != nil {
		return RateAnalysisResponse{}, err
	}

	var out RateAnalysisResponse
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		entry, err := s.analysisRepo.FindEntry(txCtx, eid)
		if err != nil {
			return lookupErr(err, "entry", eid)
		}
		rate, analysis, err := s.analysisOfEntry(txCtx, entry)
		if err != nil {
			return err
		}
		if err := s.analysisRepo.DeleteEntry(txCtx, eid); err != nil {
			return fmt.Errorf("failed to delete entry: %w", err)
		}
		if err := s.analysisRepo.ShiftPositions(txCtx, analysis.ID, entry.Position+1, -1); err != nil {
			return fmt.Errorf("failed to renumber entries: %w", err)
		}
		if analysis, err = s.analysisRepo.FindByID(txCtx, analysis.ID); err != nil {
			return fmt.Errorf("failed to reload rate analysis: %w", err)
		}
		if out, err = s.persist(txCtx, analysis, rate); err != nil {
			return err
		}
		return writeAudit(txCtx, s.auditRepo, userID, model.ActionSaveRateAnalysis, analysis.ID.String(), entry.Label, map[string]string{"deleted_entry": eid.String()})
	})
	return out, err
}

func (s *rateAnalysisService) EvaluateRateAnalysis(ctx context.Context, itemID, rateID string, defaultRate *decimal.Decimal, userID string) (RateAnalysisResponse, error) {
	iid, rid, err := parseItemRate(itemID, rateID)
	if err != nil {
		return RateAnalysisResponse{}, err
	}

	var out RateAnalysisResponse
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		rate, err := s.rateOfItem(txCtx, iid, rid)
		if err != nil {
			return err
		}
		if err := s.ensureEditable(txCtx, iid); err != nil {
			return err
		}
		analysis, err := s.findOrCreate(txCtx, iid, rate)
		if err != nil {
			return err
		}
		res, err := evaluateAnalysis(analysis, rate, defaultRate)
		if err != nil {
			return err
		}
		applied := res.TotalRate
		analysis.SourceRate = decimal.NewNullDecimal(res.BaseRate)
		analysis.AppliedRate = decimal.NewNullDecimal(applied)
		if err := s.saveEvaluation(txCtx, analysis, res); err != nil {
			return err
		}

		if err := s.rateRepo.UpdateRateValue(txCtx, rate.ID, applied); err != nil {
			return fmt.Errorf("failed to apply analysed rate: %w", err)
		}
		rate.Rate = applied
		if _, err := s.recomputer.RecomputeItem(txCtx, iid); err != nil {
			return err
		}

		out = toRateAnalysisResponse(analysis, res, rate, true)
		return writeAudit(txCtx, s.auditRepo, userID, model.ActionApplyRateAnalysis, analysis.ID.String(), rate.Description, map[string]string{
			"final_rate": res.FinalRate.String(),
			"total_rate": res.TotalRate.String(),
		})
	})
	if err != nil {
		return RateAnalysisResponse{}, err
	}

	s.log.Info("rate analysis applied",
		zap.String("item_id", iid.String()),
		zap.String("rate_id", rid.String()),
		zap.String("applied_rate", out.AppliedRate.String()))
	return out, nil
}

// --- Helpers ---

func (s *rateAnalysisService) rateOfItem(ctx context.Context, itemID, rateID uuid.UUID) (*model.Rate, error) {
	rate, err := s.rateRepo.FindByID(ctx, rateID)
	if err != nil {
		return nil, lookupErr(err, "rate", rateID)
	}
	if rate.LineItemID != itemID {
		return nil, apperror.NotFound("rate %s not found on item %s", rateID, itemID)
	}
	return rate, nil
}

func (s *rateAnalysisService) ensureEditable(ctx context.Context, itemID uuid.UUID) error {
	workID, err := s.itemRepo.WorkIDOf(ctx, itemID)
	if err != nil {
		return lookupErr(err, "item", itemID)
	}
	return s.guard.ensureEditable(ctx, workID)
}

func (s *rateAnalysisService) editableAnalysis(ctx context.Context, itemID, rateID uuid.UUID) (*model.Rate, *model.RateAnalysis, error) {
	rate, err := s.rateOfItem(ctx, itemID, rateID)
	if err != nil {
		return nil, nil, err
	}
	if err := s.ensureEditable(ctx, itemID); err != nil {
		return nil, nil, err
	}
	analysis, err := s.findOrCreate(ctx, itemID, rate)
	if err != nil {
		return nil, nil, err
	}
	return rate, analysis, nil
}

func (s *rateAnalysisService) analysisOfEntry(ctx context.Context, entry *model.RateAnalysisEntry) (*model.Rate, *model.RateAnalysis, error) {
	analysis, err := s.analysisRepo.FindByID(ctx, entry.RateAnalysisID)
	if err != nil {
		return nil, nil, lookupErr(err, "rate analysis", entry.RateAnalysisID)
	}
	rate, err := s.rateOfItem(ctx, analysis.LineItemID, analysis.RateID)
	if err != nil {
		return nil, nil, err
	}
	if err := s.ensureEditable(ctx, analysis.LineItemID); err != nil {
		return nil, nil, err
	}
	return rate, analysis, nil
}

// findOrCreate loads the analysis of (item, rate), creating an empty one on first use.
func (s *rateAnalysisService) findOrCreate(ctx context.Context, itemID uuid.UUID, rate *model.Rate) (*model.RateAnalysis, error) {
	analysis, err := s.analysisRepo.FindByItemAndRate(ctx, itemID, rate.ID)
	if err == nil {
		return analysis, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to load rate analysis: %w", err)
	}

	analysis = &model.RateAnalysis{LineItemID: itemID, RateID: rate.ID}
	if err := s.analysisRepo.Create(ctx, analysis); err != nil {
		return nil, fmt.Errorf("failed to create rate analysis: %w", err)
	}
	return analysis, nil
}

func (s *rateAnalysisService) persist(ctx context.Context, analysis *model.RateAnalysis, rate *model.Rate) (RateAnalysisResponse, error) {
	res, err := evaluateAnalysis(analysis, rate, nil)
	if err != nil {
		return RateAnalysisResponse{}, err
	}
	if err := s.saveEvaluation(ctx, analysis, res); err != nil {
		return RateAnalysisResponse{}, err
	}
	return toRateAnalysisResponse(analysis, res, rate, true), nil
}

// saveEvaluation stores the evaluated totals and refreshes every stale entry amount.
func (s *rateAnalysisService) saveEvaluation(ctx context.Context, analysis *model.RateAnalysis, res estimation.Result) error {
	for i := range analysis.Entries {
		e := &analysis.Entries[i]
		if e.Amount.Equal(res.Amounts[i]) {
			continue
		}
		e.Amount = res.Amounts[i]
		if err := s.analysisRepo.UpdateEntry(ctx, e); err != nil {
			return fmt.Errorf("failed to update entry amount: %w", err)
		}
	}
	analysis.TotalAdditions = res.Additions
	analysis.TotalDeletions = res.Deletions
	analysis.TotalTaxes = res.Taxes
	analysis.CalculatedRate = res.CalculatedRate
	analysis.FinalRate = res.FinalRate
	analysis.FinalTaxAmount = res.FinalTaxAmount
	analysis.TotalRate = res.TotalRate
	if err := s.analysisRepo.SaveTotals(ctx, analysis); err != nil {
		return fmt.Errorf("failed to save rate analysis: %w", err)
	}
	return nil
}

// evaluateAnalysis re-derives an analysis from its stored inputs.
func evaluateAnalysis(analysis *model.RateAnalysis, rate *model.Rate, fallback *decimal.Decimal) (estimation.Result, error) {
	var saved *decimal.Decimal
	if analysis.BaseRate.Valid {
		v := analysis.BaseRate.Decimal
		saved = &v
	}
	base := estimation.ResolveBaseRate(saved, analysedRate(analysis, rate), fallback)

	entries := make([]estimation.Entry, 0, len(analysis.Entries))
	for _, e := range analysis.Entries {
		entry, err := estimation.NewEntry(estimation.EntryType(e.EntryType), e.Label, e.Value, e.Factor)
		if err != nil {
			return estimation.Result{}, err
		}
		entries = append(entries, entry)
	}

	res := estimation.Evaluate(base, entries)
	if analysis.FinalTaxPercent.Valid {
		res = res.WithFinalTax(analysis.FinalTaxPercent.Decimal)
	}
	return res, nil
}

// analysedRate is the selected rate as the analysis sees it. A rate still holding the value the
// analysis last wrote to it resolves to the base that evaluation ran on, so re-evaluating does not
// compound. Any other value was priced by hand and is taken as is.
func analysedRate(analysis *model.RateAnalysis, rate *model.Rate) *decimal.Decimal {
	if rate != nil && analysis.AppliedRate.Valid && rate.Rate.Equal(analysis.AppliedRate.Decimal) {
		if !analysis.SourceRate.Valid || analysis.SourceRate.Decimal.IsZero() {
			return nil
		}
		v := analysis.SourceRate.Decimal
		return &v
	}
	return selectedRate(rate)
}

// selectedRate is the rate's own value, or nil when it was never priced.
func selectedRate(rate *model.Rate) *decimal.Decimal {
	if rate == nil || rate.Rate.IsZero() {
		return nil
	}
	v := rate.Rate
	return &v
}

func entryFromRequest(req RateAnalysisEntryRequest) (*model.RateAnalysisEntry, error) {
	label := strings.TrimSpace(req.Label)
	if label == "" {
		return nil, apperror.Validation("label is required")
	}
	factor := decimalOr(req.Factor, decimal.NewFromInt(1))
	if _, err := estimation.NewEntry(estimation.EntryType(req.EntryType), label, req.Value, factor); err != nil {
		return nil, err
	}
	return &model.RateAnalysisEntry{
		Label:     label,
		EntryType: req.EntryType,
		Value:     req.Value,
		Factor:    factor,
		Amount:    decimal.Zero,
	}, nil
}

func parseItemRate(itemID, rateID string) (uuid.UUID, uuid.UUID, error) {
	iid, err := parseID(itemID, "item")
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	rid, err := parseID(rateID, "rate")
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return iid, rid, nil
}

func toRateAnalysisResponse(a *model.RateAnalysis, res estimation.Result, rate *model.Rate, saved bool) RateAnalysisResponse {
	out := RateAnalysisResponse{
		LineItemID:     a.LineItemID,
		RateID:         a.RateID,
		BaseRate:       res.BaseRate,
		Entries:        make([]RateAnalysisEntryResponse, 0, len(a.Entries)),
		TotalAdditions: res.Additions,
		TotalDeletions: res.Deletions,
		TotalTaxes:     res.Taxes,
		CalculatedRate: res.CalculatedRate,
		FinalRate:      res.FinalRate,
		FinalTaxAmount: res.FinalTaxAmount,
		TotalRate:      res.TotalRate,
		AppliedRate:    rate.Rate,
	}
	if saved {
		id := a.ID
		out.ID = &id
	}
	if res.HasFinalTax {
		pct := res.FinalTaxPercent
		out.FinalTaxPercent = &pct
	}
	for i, e := range a.Entries {
		out.Entries = append(out.Entries, RateAnalysisEntryResponse{
			ID:        e.ID,
			Position:  e.Position,
			Label:     e.Label,
			EntryType: e.EntryType,
			Value:     e.Value,
			Factor:    e.Factor,
			Amount:    res.Amounts[i],
		})
	}
	return out
}
