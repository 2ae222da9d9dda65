package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Rate analysis entry types
const (
	EntryTypeAddition = "addition"
	EntryTypeDeletion = "deletion"
	EntryTypeTax      = "tax"
)

// RateAnalysis derives the contractual rate of one (item, rate) pair. The totals are a snapshot
// of the last evaluation; reads always re-evaluate from the entries.
type RateAnalysis struct {
	ID              uuid.UUID           `gorm:"type:uuid;primaryKey" json:"id"`
	LineItemID      uuid.UUID           `gorm:"type:uuid;not null;uniqueIndex:idx_rate_analysis_item_rate" json:"line_item_id"`
	RateID          uuid.UUID           `gorm:"type:uuid;not null;uniqueIndex:idx_rate_analysis_item_rate" json:"rate_id"`
	BaseRate        decimal.NullDecimal `gorm:"type:decimal(18,4)" json:"base_rate"` // explicitly saved; null falls back to the rate's value
	// SourceRate is the base the last applied evaluation ran on and AppliedRate the value it wrote
	// to the rate. While the rate still holds AppliedRate, SourceRate stands in for it.
	SourceRate      decimal.NullDecimal `gorm:"type:decimal(18,4)" json:"source_rate"`
	AppliedRate     decimal.NullDecimal `gorm:"type:decimal(18,4)" json:"applied_rate"`
	FinalTaxPercent decimal.NullDecimal `gorm:"type:decimal(10,4)" json:"final_tax_percent"`
	TotalAdditions  decimal.Decimal     `gorm:"type:decimal(18,4);not null;default:0" json:"total_additions"`
	TotalDeletions  decimal.Decimal     `gorm:"type:decimal(18,4);not null;default:0" json:"total_deletions"`
	TotalTaxes      decimal.Decimal     `gorm:"type:decimal(18,4);not null;default:0" json:"total_taxes"`
	CalculatedRate  decimal.Decimal     `gorm:"type:decimal(18,4);not null;default:0" json:"calculated_rate"`
	FinalRate       decimal.Decimal     `gorm:"type:decimal(18,4);not null;default:0" json:"final_rate"`
	FinalTaxAmount  decimal.Decimal     `gorm:"type:decimal(18,4);not null;default:0" json:"final_tax_amount"`
	TotalRate       decimal.Decimal     `gorm:"type:decimal(18,4);not null;default:0" json:"total_rate"`
	Entries         []RateAnalysisEntry `gorm:"foreignKey:RateAnalysisID" json:"entries,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

func (RateAnalysis) TableName() string { return "rate_analyses" }

func (a *RateAnalysis) BeforeCreate(tx *gorm.DB) error {
	assignID(&a.ID)
	return nil
}

// RateAnalysisEntry is one addition, deletion or tax line of an analysis, kept in Position order.
type RateAnalysisEntry struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	RateAnalysisID uuid.UUID       `gorm:"type:uuid;not null;index" json:"rate_analysis_id"`
	Position       int             `gorm:"type:int;not null" json:"position"`
	Label          string          `gorm:"type:varchar(255);not null" json:"label"`
	EntryType      string          `gorm:"type:varchar(20);not null" json:"entry_type"` // addition, deletion, tax
	Value          decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"value"`
	Factor         decimal.Decimal `gorm:"type:decimal(18,6);not null;default:1" json:"factor"`
	Amount         decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"amount"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func (RateAnalysisEntry) TableName() string { return "rate_analysis_entries" }

func (e *RateAnalysisEntry) BeforeCreate(tx *gorm.DB) error {
	assignID(&e.ID)
	return nil
}
