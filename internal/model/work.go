package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Work is an estimate: the root of the works -> sub-works -> items hierarchy.
type Work struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	WorkNo      string         `gorm:"type:varchar(50);uniqueIndex;not null" json:"work_no"`
	Name        string         `gorm:"type:varchar(255);not null" json:"name"`
	Description string         `gorm:"type:text" json:"description"`
	CreatedBy   string         `gorm:"type:varchar(100);index" json:"created_by"`
	SubWorks    []SubWork      `gorm:"foreignKey:WorkID" json:"sub_works,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Work) TableName() string { return "works" }

func (w *Work) BeforeCreate(tx *gorm.DB) error {
	assignID(&w.ID)
	return nil
}

// SubWork groups line items inside a work.
type SubWork struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	WorkID      uuid.UUID       `gorm:"type:uuid;not null;index" json:"work_id"`
	SubWorkNo   int             `gorm:"type:int;not null" json:"sub_work_no"`
	Name        string          `gorm:"type:varchar(255);not null" json:"name"`
	TotalAmount decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"total_amount"`
	Items       []LineItem      `gorm:"foreignKey:SubWorkID" json:"items,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (SubWork) TableName() string { return "sub_works" }

func (s *SubWork) BeforeCreate(tx *gorm.DB) error {
	assignID(&s.ID)
	return nil
}
