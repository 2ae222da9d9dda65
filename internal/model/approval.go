package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ApprovalWorkflow is the single mutable approval record of an estimate. Version is bumped on
// every transition and checked on write.
type ApprovalWorkflow struct {
	ID              uuid.UUID              `gorm:"type:uuid;primaryKey" json:"id"`
	WorkID          uuid.UUID              `gorm:"type:uuid;not null;uniqueIndex" json:"work_id"`
	Work            *Work                  `gorm:"foreignKey:WorkID" json:"work,omitempty"`
	CurrentLevel    int                    `gorm:"type:int;not null;default:1" json:"current_level"`
	CurrentApprover string                 `gorm:"type:varchar(100);index" json:"current_approver"` // role code of the level, or the initiator when sent back
	Status          string                 `gorm:"type:varchar(20);not null;index" json:"status"`
	InitiatedBy     string                 `gorm:"type:varchar(100);not null" json:"initiated_by"`
	InitiatedAt     time.Time              `json:"initiated_at"`
	Cycle           int                    `gorm:"type:int;not null;default:1" json:"cycle"`
	Version         int                    `gorm:"type:int;not null;default:1" json:"version"`
	History         []ApprovalHistoryEntry `gorm:"foreignKey:WorkflowID" json:"history,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
}

func (ApprovalWorkflow) TableName() string { return "approval_workflows" }

func (w *ApprovalWorkflow) BeforeCreate(tx *gorm.DB) error {
	assignID(&w.ID)
	return nil
}

// ApprovalHistoryEntry is append-only. Sequence orders entries within a workflow.
type ApprovalHistoryEntry struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	WorkflowID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_approval_history_seq" json:"workflow_id"`
	Sequence     int       `gorm:"type:int;not null;uniqueIndex:idx_approval_history_seq" json:"sequence"`
	Cycle        int       `gorm:"type:int;not null" json:"cycle"`
	Level        int       `gorm:"type:int;not null" json:"level"`
	ApproverID   string    `gorm:"type:varchar(100);not null" json:"approver_id"`
	ApproverRole string    `gorm:"type:varchar(50)" json:"approver_role"`
	Action       string    `gorm:"type:varchar(20);not null" json:"action"` // submitted, approved, rejected, sent_back, forwarded
	Comment      string    `gorm:"type:text" json:"comment"`
	CreatedAt    time.Time `gorm:"index" json:"created_at"`
}

func (ApprovalHistoryEntry) TableName() string { return "approval_history_entries" }

func (h *ApprovalHistoryEntry) BeforeCreate(tx *gorm.DB) error {
	assignID(&h.ID)
	return nil
}
