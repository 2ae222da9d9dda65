package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// MeasurementRow is one dimensional measurement of a line item.
type MeasurementRow struct {
	ID                 uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	LineItemID         uuid.UUID       `gorm:"type:uuid;not null;index" json:"line_item_id"`
	RateID             *uuid.UUID      `gorm:"type:uuid;index" json:"rate_id"` // nil prices at the item's default rate
	SequenceNo         int             `gorm:"type:int;not null" json:"sequence_no"`
	Header             string          `gorm:"type:varchar(255)" json:"header"`
	Description        string          `gorm:"type:text" json:"description"`
	Unit               string          `gorm:"type:varchar(30)" json:"unit"`
	Factor             decimal.Decimal `gorm:"type:decimal(18,6);not null;default:1" json:"factor"`
	NoOfUnits          decimal.Decimal `gorm:"type:decimal(18,6);not null;default:0" json:"no_of_units"`
	Length             decimal.Decimal `gorm:"type:decimal(18,6);not null;default:0" json:"length"`
	Width              decimal.Decimal `gorm:"type:decimal(18,6);not null;default:0" json:"width"`
	Height             decimal.Decimal `gorm:"type:decimal(18,6);not null;default:0" json:"height"`
	IsManualQuantity   bool            `gorm:"default:false" json:"is_manual_quantity"`
	ManualQuantity     decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"manual_quantity"`
	IsDeduction        bool            `gorm:"default:false" json:"is_deduction"`
	CalculatedQuantity decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"calculated_quantity"`
	LineAmount         decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"line_amount"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

func (MeasurementRow) TableName() string { return "measurement_rows" }

func (m *MeasurementRow) BeforeCreate(tx *gorm.DB) error {
	assignID(&m.ID)
	return nil
}
