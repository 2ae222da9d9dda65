package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Special item categories. Any other text is a free-form category.
const (
	CategoryRoyalty = "royalty"
	CategoryTesting = "testing"
)

// LineItem is one priced item of a sub-work. TotalQuantity, FinalQuantity and TotalAmount are
// derived from the measurements and rates and only written by the recompute step.
type LineItem struct {
	ID                   uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	SubWorkID            uuid.UUID        `gorm:"type:uuid;not null;index" json:"sub_work_id"`
	ItemNo               int              `gorm:"type:int;not null" json:"item_no"`
	Description          string           `gorm:"type:text;not null" json:"description"`
	Category             string           `gorm:"type:varchar(50);index" json:"category"`
	Unit                 string           `gorm:"type:varchar(30)" json:"unit"`
	OperationType        string           `gorm:"type:varchar(20);not null;default:'none'" json:"operation_type"` // none, multiply, divide, add, subtract
	OperationValue       decimal.Decimal  `gorm:"type:decimal(18,6);not null;default:0" json:"operation_value"`
	UnitConversionFactor decimal.Decimal  `gorm:"type:decimal(18,6);not null;default:1" json:"unit_conversion_factor"`
	FinalUnit            string           `gorm:"type:varchar(30)" json:"final_unit"`
	TotalQuantity        decimal.Decimal  `gorm:"type:decimal(18,4);not null;default:0" json:"total_quantity"`
	FinalQuantity        decimal.Decimal  `gorm:"type:decimal(18,4);not null;default:0" json:"final_quantity"`
	TotalAmount          decimal.Decimal  `gorm:"type:decimal(18,4);not null;default:0" json:"total_amount"`
	Rates                []Rate           `gorm:"foreignKey:LineItemID" json:"rates,omitempty"`
	Measurements         []MeasurementRow `gorm:"foreignKey:LineItemID" json:"measurements,omitempty"`
	CreatedAt            time.Time        `json:"created_at"`
	UpdatedAt            time.Time        `json:"updated_at"`
}

func (LineItem) TableName() string { return "line_items" }

func (i *LineItem) BeforeCreate(tx *gorm.DB) error {
	assignID(&i.ID)
	return nil
}

// Rate prices a line item. An item may carry several independently priced rates; the one with
// the lowest Position is the default.
type Rate struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	LineItemID  uuid.UUID       `gorm:"type:uuid;not null;index" json:"line_item_id"`
	Position    int             `gorm:"type:int;not null" json:"position"`
	Description string          `gorm:"type:text;not null" json:"description"`
	Rate        decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"rate"`
	Unit        string          `gorm:"type:varchar(30)" json:"unit"`
	Quantity    decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"quantity"`
	TotalAmount decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"total_amount"` // = quantity * rate
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (Rate) TableName() string { return "rates" }

func (r *Rate) BeforeCreate(tx *gorm.DB) error {
	assignID(&r.ID)
	return nil
}
