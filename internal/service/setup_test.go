package service

import (
	"context"
	"sync"
	"testing"

	"estimator/internal/database"
	"estimator/internal/repository"
	"estimator/internal/workflow"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []ApprovalEvent
}

func (p *recordingPublisher) Publish(event interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if e, ok := event.(ApprovalEvent); ok {
		p.events = append(p.events, e)
	}
}

type fixture struct {
	db           *gorm.DB
	estimates    EstimateService
	measurements MeasurementService
	analyses     RateAnalysisService
	approvals    ApprovalService
	audits       AuditService
	events       *recordingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	log := zap.NewNop()
	tx := repository.NewTransactionManager(db)
	workRepo := repository.NewWorkRepository(db)
	itemRepo := repository.NewItemRepository(db)
	rateRepo := repository.NewRateRepository(db)
	measurementRepo := repository.NewMeasurementRepository(db)
	analysisRepo := repository.NewRateAnalysisRepository(db)
	workflowRepo := repository.NewWorkflowRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	recomputer := NewRecomputer(itemRepo, rateRepo, measurementRepo, workRepo, tx, log)
	events := &recordingPublisher{}

	return &fixture{
		db:           db,
		estimates:    NewEstimateService(workRepo, itemRepo, rateRepo, workflowRepo, auditRepo, tx, recomputer, log),
		measurements: NewMeasurementService(measurementRepo, itemRepo, rateRepo, workflowRepo, auditRepo, tx, recomputer, log),
		analyses:     NewRateAnalysisService(analysisRepo, rateRepo, itemRepo, workflowRepo, auditRepo, tx, recomputer, log),
		approvals:    NewApprovalService(workRepo, workflowRepo, auditRepo, tx, events, log),
		audits:       NewAuditService(auditRepo),
		events:       events,
	}
}

var (
	clerk  = workflow.Actor{ID: "clerk-1", Roles: []string{"CLERK"}}
	jeUser = workflow.Actor{ID: "je-1", Roles: []string{"JE"}}
	sdeUsr = workflow.Actor{ID: "sde-1", Roles: []string{"SDE"}}
	eeUser = workflow.Actor{ID: "ee-1", Roles: []string{"EE"}, Override: true}
)

// seedItem creates a work with one sub-work and one item, returning their ids.
func (f *fixture) seedItem(t *testing.T, workNo string) (WorkResponse, SubWorkResponse, ItemResponse) {
	t.Helper()
	ctx := context.Background()
	work, err := f.estimates.CreateWork(ctx, CreateWorkRequest{WorkNo: workNo, Name: "Village road"}, clerk.ID)
	if err != nil {
		t.Fatalf("CreateWork: %v", err)
	}
	sub, err := f.estimates.CreateSubWork(ctx, work.ID.String(), SubWorkRequest{Name: "Earthwork"}, clerk.ID)
	if err != nil {
		t.Fatalf("CreateSubWork: %v", err)
	}
	item, err := f.estimates.CreateItem(ctx, sub.ID.String(), CreateItemRequest{Description: "Excavation", Unit: "cum"}, clerk.ID)
	if err != nil {
		t.Fatalf("CreateItem: %v", err)
	}
	return work, sub, item
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	v := dec(s)
	return &v
}

func assertDec(t *testing.T, name string, got, want decimal.Decimal) {
	t.Helper()
	if !got.Equal(want) {
		t.Errorf("%s = %s, want %s", name, got, want)
	}
}
