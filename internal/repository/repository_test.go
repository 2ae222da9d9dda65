package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"estimator/internal/apperror"
	"estimator/internal/database"
	"estimator/internal/model"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
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
	return db
}

func createWork(t *testing.T, db *gorm.DB, workNo string) *model.Work {
	t.Helper()
	work := &model.Work{WorkNo: workNo, Name: "Road " + workNo}
	if err := NewWorkRepository(db).Create(context.Background(), work); err != nil {
		t.Fatalf("create work: %v", err)
	}
	return work
}

func TestWorkflowTransitionConflict(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := NewWorkflowRepository(db)
	work := createWork(t, db, "W1")

	wf := &model.ApprovalWorkflow{
		WorkID:          work.ID,
		CurrentLevel:    1,
		CurrentApprover: "JE",
		Status:          "pending_approval",
		InitiatedBy:     "clerk-1",
		InitiatedAt:     time.Now(),
		Cycle:           1,
		Version:         1,
	}
	if err := repo.Create(ctx, wf); err != nil {
		t.Fatalf("Create: %v", err)
	}

	prev := *wf
	next := *wf
	next.CurrentLevel = 2
	next.CurrentApprover = "SDE"

	if err := repo.Transition(ctx, &prev, &next); err != nil {
		t.Fatalf("first Transition: %v", err)
	}
	if next.Version != 2 {
		t.Errorf("version = %d, want 2", next.Version)
	}

	stale := next
	stale.CurrentLevel = 3
	err := repo.Transition(ctx, &prev, &stale)
	if !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("second Transition error = %v, want conflict", err)
	}

	stored, err := repo.FindByID(ctx, wf.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if stored.CurrentLevel != 2 || stored.Version != 2 {
		t.Errorf("stored level=%d version=%d, want 2/2", stored.CurrentLevel, stored.Version)
	}
}

func TestWorkflowHistorySequence(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := NewWorkflowRepository(db)
	work := createWork(t, db, "W2")

	wf := &model.ApprovalWorkflow{WorkID: work.ID, Status: "pending_approval", InitiatedBy: "u1", InitiatedAt: time.Now(), CurrentLevel: 1, Cycle: 1, Version: 1}
	if err := repo.Create(ctx, wf); err != nil {
		t.Fatalf("Create: %v", err)
	}

	for _, action := range []string{"submitted", "forwarded", "approved"} {
		seq, err := repo.NextSequence(ctx, wf.ID)
		if err != nil {
			t.Fatalf("NextSequence: %v", err)
		}
		entry := &model.ApprovalHistoryEntry{WorkflowID: wf.ID, Sequence: seq, Cycle: 1, Level: 1, ApproverID: "u1", Action: action}
		if err := repo.AppendHistory(ctx, entry); err != nil {
			t.Fatalf("AppendHistory: %v", err)
		}
	}

	dup := &model.ApprovalHistoryEntry{WorkflowID: wf.ID, Sequence: 2, Cycle: 1, Level: 1, ApproverID: "u2", Action: "forwarded"}
	if err := repo.AppendHistory(ctx, dup); !errors.Is(err, gorm.ErrDuplicatedKey) {
		t.Errorf("duplicate sequence error = %v, want ErrDuplicatedKey", err)
	}

	history, err := repo.ListHistory(ctx, wf.ID)
	if err != nil {
		t.Fatalf("ListHistory: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("history len = %d, want 3", len(history))
	}
	for i, h := range history {
		if h.Sequence != i+1 {
			t.Errorf("history[%d].Sequence = %d", i, h.Sequence)
		}
	}
	if history[2].Action != "approved" {
		t.Errorf("last action = %s", history[2].Action)
	}
}

func TestWorkflowListFilters(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := NewWorkflowRepository(db)

	for i, status := range []string{"pending_approval", "pending_approval", "approved"} {
		work := createWork(t, db, []string{"A", "B", "C"}[i])
		wf := &model.ApprovalWorkflow{WorkID: work.ID, Status: status, CurrentApprover: "JE", InitiatedBy: "u1", InitiatedAt: time.Now(), CurrentLevel: 1, Cycle: 1, Version: 1}
		if err := repo.Create(ctx, wf); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	list, total, err := repo.List(ctx, WorkflowFilter{Status: "pending_approval"}, 1, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 2 || len(list) != 2 {
		t.Errorf("pending total=%d len=%d, want 2", total, len(list))
	}
	for _, wf := range list {
		if wf.Work == nil {
			t.Error("work not preloaded")
		}
	}

	_, total, err = repo.List(ctx, WorkflowFilter{}, 1, 10)
	if err != nil {
		t.Fatalf("List all: %v", err)
	}
	if total != 3 {
		t.Errorf("all total = %d, want 3", total)
	}
}

func TestWorkNoNeverReused(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := NewWorkRepository(db)
	work := createWork(t, db, "W9")

	if err := repo.Delete(ctx, work.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	exists, err := repo.ExistsByWorkNo(ctx, "W9", nil)
	if err != nil {
		t.Fatalf("ExistsByWorkNo: %v", err)
	}
	if !exists {
		t.Error("deleted work number should still be taken")
	}
	if _, err := repo.FindByID(ctx, work.ID); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Errorf("FindByID after delete = %v", err)
	}
}

func TestSubWorkNumberingAndTotal(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	works := NewWorkRepository(db)
	items := NewItemRepository(db)
	work := createWork(t, db, "W3")

	for want := 1; want <= 2; want++ {
		no, err := works.NextSubWorkNo(ctx, work.ID)
		if err != nil {
			t.Fatalf("NextSubWorkNo: %v", err)
		}
		if no != want {
			t.Fatalf("NextSubWorkNo = %d, want %d", no, want)
		}
		if err := works.CreateSubWork(ctx, &model.SubWork{WorkID: work.ID, SubWorkNo: no, Name: "Part"}); err != nil {
			t.Fatalf("CreateSubWork: %v", err)
		}
	}

	subs, err := works.ListSubWorks(ctx, work.ID)
	if err != nil {
		t.Fatalf("ListSubWorks: %v", err)
	}
	sub := subs[0]
	for i, amount := range []string{"100.50", "20.25"} {
		item := &model.LineItem{
			SubWorkID:            sub.ID,
			ItemNo:               i + 1,
			Description:          "Earthwork",
			OperationType:        "none",
			UnitConversionFactor: decimal.NewFromInt(1),
			TotalAmount:          decimal.RequireFromString(amount),
		}
		if err := items.Create(ctx, item); err != nil {
			t.Fatalf("create item: %v", err)
		}
	}

	if err := works.UpdateSubWorkTotal(ctx, sub.ID); err != nil {
		t.Fatalf("UpdateSubWorkTotal: %v", err)
	}
	stored, err := works.FindSubWork(ctx, sub.ID)
	if err != nil {
		t.Fatalf("FindSubWork: %v", err)
	}
	if !stored.TotalAmount.Equal(decimal.RequireFromString("120.75")) {
		t.Errorf("sub-work total = %s, want 120.75", stored.TotalAmount)
	}
}

func TestShiftEntryPositions(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := NewRateAnalysisRepository(db)
	work := createWork(t, db, "W4")
	sub := &model.SubWork{WorkID: work.ID, SubWorkNo: 1, Name: "Part"}
	if err := NewWorkRepository(db).CreateSubWork(ctx, sub); err != nil {
		t.Fatalf("CreateSubWork: %v", err)
	}
	item := &model.LineItem{SubWorkID: sub.ID, ItemNo: 1, Description: "Concrete", OperationType: "none", UnitConversionFactor: decimal.NewFromInt(1)}
	if err := NewItemRepository(db).Create(ctx, item); err != nil {
		t.Fatalf("create item: %v", err)
	}
	rate := &model.Rate{LineItemID: item.ID, Position: 1, Description: "SOR", Rate: decimal.NewFromInt(100)}
	if err := NewRateRepository(db).Create(ctx, rate); err != nil {
		t.Fatalf("create rate: %v", err)
	}

	analysis := &model.RateAnalysis{LineItemID: item.ID, RateID: rate.ID}
	if err := repo.Create(ctx, analysis); err != nil {
		t.Fatalf("Create analysis: %v", err)
	}
	for _, label := range []string{"a", "b", "c"} {
		pos, err := repo.NextPosition(ctx, analysis.ID)
		if err != nil {
			t.Fatalf("NextPosition: %v", err)
		}
		entry := &model.RateAnalysisEntry{RateAnalysisID: analysis.ID, Position: pos, Label: label, EntryType: model.EntryTypeAddition, Value: decimal.NewFromInt(1), Factor: decimal.NewFromInt(1)}
		if err := repo.CreateEntry(ctx, entry); err != nil {
			t.Fatalf("CreateEntry: %v", err)
		}
	}

	if err := repo.ShiftPositions(ctx, analysis.ID, 2, 1); err != nil {
		t.Fatalf("ShiftPositions: %v", err)
	}
	shifted, err := repo.FindByID(ctx, analysis.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	got := map[string]int{}
	for _, e := range shifted.Entries {
		got[e.Label] = e.Position
	}
	if got["a"] != 1 || got["b"] != 3 || got["c"] != 4 {
		t.Errorf("positions after shift = %v", got)
	}

	loaded, err := repo.FindByItemAndRate(ctx, item.ID, rate.ID)
	if err != nil {
		t.Fatalf("FindByItemAndRate: %v", err)
	}
	if len(loaded.Entries) != 3 || loaded.Entries[0].Label != "a" || loaded.Entries[2].Label != "c" {
		t.Errorf("preloaded entries out of order: %+v", loaded.Entries)
	}
}

func TestRunInTxRollback(t *testing.T) {
	db := openTestDB(t)
	tm := NewTransactionManager(db)
	repo := NewWorkRepository(db)
	boom := errors.New("boom")

	err := tm.RunInTx(context.Background(), func(txCtx context.Context) error {
		if err := repo.Create(txCtx, &model.Work{WorkNo: "TX1", Name: "rolled back"}); err != nil {
			return err
		}
		return tm.RunInTx(txCtx, func(inner context.Context) error { return boom })
	})
	if !errors.Is(err, boom) {
		t.Fatalf("RunInTx error = %v", err)
	}
	exists, err := repo.ExistsByWorkNo(context.Background(), "TX1", nil)
	if err != nil {
		t.Fatalf("ExistsByWorkNo: %v", err)
	}
	if exists {
		t.Error("work committed despite rollback")
	}
}
