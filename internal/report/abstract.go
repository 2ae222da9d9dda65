// Package report builds read-only summaries of an estimate with plain SQL over the same
// connection pool gorm uses.
package report

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"estimator/internal/apperror"
	"estimator/internal/model"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

type AbstractLine struct {
	SubWorkNo   int             `db:"sub_work_no" json:"sub_work_no"`
	SubWorkName string          `db:"sub_work_name" json:"sub_work_name"`
	Category    string          `db:"category" json:"category"`
	ItemCount   int             `db:"item_count" json:"item_count"`
	TotalAmount decimal.Decimal `db:"total_amount" json:"total_amount"`
}

type SubWorkTotal struct {
	SubWorkNo   int             `json:"sub_work_no"`
	SubWorkName string          `json:"sub_work_name"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// WorkAbstract is the bill-of-quantities summary of one estimate.
type WorkAbstract struct {
	WorkID       uuid.UUID       `db:"id" json:"work_id"`
	WorkNo       string          `db:"work_no" json:"work_no"`
	Name         string          `db:"name" json:"name"`
	Lines        []AbstractLine  `json:"lines"`
	SubWorks     []SubWorkTotal  `json:"sub_works"`
	RoyaltyTotal decimal.Decimal `json:"royalty_total"`
	TestingTotal decimal.Decimal `json:"testing_total"`
	WorksTotal   decimal.Decimal `json:"works_total"` // everything that is neither royalty nor testing
	GrandTotal   decimal.Decimal `json:"grand_total"`
}

type Store struct {
	db *sqlx.DB
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

const workHeaderQuery = `
	SELECT id, work_no, name
	FROM works
	WHERE id = ? AND deleted_at IS NULL`

const abstractQuery = `
	SELECT
		s.sub_work_no AS sub_work_no,
		s.name AS sub_work_name,
		COALESCE(NULLIF(i.category, ''), 'general') AS category,
		COUNT(i.id) AS item_count,
		COALESCE(SUM(i.total_amount), 0) AS total_amount
	FROM sub_works s
	JOIN line_items i ON i.sub_work_id = s.id
	WHERE s.work_id = ?
	GROUP BY s.sub_work_no, s.name, COALESCE(NULLIF(i.category, ''), 'general')
	ORDER BY s.sub_work_no ASC, category ASC`

// WorkAbstract totals the items of a work per sub-work and category.
func (s *Store) WorkAbstract(ctx context.Context, workID uuid.UUID) (*WorkAbstract, error) {
	var abs WorkAbstract
	if err := s.db.GetContext(ctx, &abs, s.db.Rebind(workHeaderQuery), workID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("work %s not found", workID)
		}
		return nil, fmt.Errorf("failed to load work: %w", err)
	}

	if err := s.db.SelectContext(ctx, &abs.Lines, s.db.Rebind(abstractQuery), workID); err != nil {
		return nil, fmt.Errorf("failed to build work abstract: %w", err)
	}
	abs.summarize()
	return &abs, nil
}

func (a *WorkAbstract) summarize() {
	a.RoyaltyTotal = decimal.Zero
	a.TestingTotal = decimal.Zero
	a.WorksTotal = decimal.Zero
	a.GrandTotal = decimal.Zero
	if a.Lines == nil {
		a.Lines = []AbstractLine{}
	}
	a.SubWorks = []SubWorkTotal{}

	for _, l := range a.Lines {
		switch l.Category {
		case model.CategoryRoyalty:
			a.RoyaltyTotal = a.RoyaltyTotal.Add(l.TotalAmount)
		case model.CategoryTesting:
			a.TestingTotal = a.TestingTotal.Add(l.TotalAmount)
		default:
			a.WorksTotal = a.WorksTotal.Add(l.TotalAmount)
		}
		a.GrandTotal = a.GrandTotal.Add(l.TotalAmount)

		if n := len(a.SubWorks); n > 0 && a.SubWorks[n-1].SubWorkNo == l.SubWorkNo {
			a.SubWorks[n-1].TotalAmount = a.SubWorks[n-1].TotalAmount.Add(l.TotalAmount)
			continue
		}
		a.SubWorks = append(a.SubWorks, SubWorkTotal{SubWorkNo: l.SubWorkNo, SubWorkName: l.SubWorkName, TotalAmount: l.TotalAmount})
	}
}
