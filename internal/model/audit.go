package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	ActionCreateWork         = "CREATE_WORK"
	ActionUpdateWork         = "UPDATE_WORK"
	ActionDeleteWork         = "DELETE_WORK"
	ActionCreateSubWork      = "CREATE_SUB_WORK"
	ActionUpdateSubWork      = "UPDATE_SUB_WORK"
	ActionDeleteSubWork      = "DELETE_SUB_WORK"
	ActionCreateItem         = "CREATE_ITEM"
	ActionUpdateItem         = "UPDATE_ITEM"
	ActionDeleteItem         = "DELETE_ITEM"
	ActionSaveRate           = "SAVE_RATE"
	ActionDeleteRate         = "DELETE_RATE"
	ActionSaveMeasurement    = "SAVE_MEASUREMENT"
	ActionDeleteMeasurement  = "DELETE_MEASUREMENT"
	ActionSaveRateAnalysis   = "SAVE_RATE_ANALYSIS"
	ActionApplyRateAnalysis  = "APPLY_RATE_ANALYSIS"
	ActionSubmitApproval     = "SUBMIT_APPROVAL"
	ActionApprovalTransition = "APPROVAL_TRANSITION"
)

// AuditLog tracks Who, What, and When for every change to an estimate
type AuditLog struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     string         `gorm:"type:varchar(100);index" json:"user_id"` // identity from the token subject; empty for system jobs
	Action     string         `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityID   string         `gorm:"type:varchar(50);index" json:"entity_id"`
	EntityName string         `gorm:"type:varchar(255)" json:"entity_name,omitempty"`
	Details    datatypes.JSON `gorm:"type:jsonb" json:"details"`
	CreatedAt  time.Time      `gorm:"index" json:"created_at"`
}

func (AuditLog) TableName() string { return "audit_logs" }

func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	assignID(&a.ID)
	return nil
}
