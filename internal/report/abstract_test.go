package report

import (
	"context"
	"errors"
	"testing"

	"estimator/internal/apperror"
	"estimator/internal/database"
	"estimator/internal/model"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openStore(t *testing.T) (*gorm.DB, *Store) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
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
	return db, NewStore(sqlx.NewDb(sqlDB, "sqlite3"))
}

func seedItem(t *testing.T, db *gorm.DB, sub *model.SubWork, no int, category, amount string) {
	t.Helper()
	item := &model.LineItem{
		SubWorkID:            sub.ID,
		ItemNo:               no,
		Description:          "item",
		Category:             category,
		OperationType:        "none",
		UnitConversionFactor: decimal.NewFromInt(1),
		TotalAmount:          decimal.RequireFromString(amount),
	}
	if err := db.Create(item).Error; err != nil {
		t.Fatalf("create item: %v", err)
	}
}

func TestWorkAbstract(t *testing.T) {
	db, store := openStore(t)
	work := &model.Work{WorkNo: "W1", Name: "Canal lining"}
	if err := db.Create(work).Error; err != nil {
		t.Fatalf("create work: %v", err)
	}
	first := &model.SubWork{WorkID: work.ID, SubWorkNo: 1, Name: "Earthwork"}
	second := &model.SubWork{WorkID: work.ID, SubWorkNo: 2, Name: "Lining"}
	for _, s := range []*model.SubWork{first, second} {
		if err := db.Create(s).Error; err != nil {
			t.Fatalf("create sub-work: %v", err)
		}
	}
	seedItem(t, db, first, 1, "", "100")
	seedItem(t, db, first, 2, "", "50")
	seedItem(t, db, first, 3, model.CategoryRoyalty, "12")
	seedItem(t, db, second, 1, "", "300")
	seedItem(t, db, second, 2, model.CategoryTesting, "8")

	abs, err := store.WorkAbstract(context.Background(), work.ID)
	if err != nil {
		t.Fatalf("WorkAbstract: %v", err)
	}
	if abs.WorkNo != "W1" || abs.Name != "Canal lining" {
		t.Errorf("header = %s %s", abs.WorkNo, abs.Name)
	}
	if len(abs.Lines) != 4 {
		t.Fatalf("lines = %d, want 4: %+v", len(abs.Lines), abs.Lines)
	}
	if abs.Lines[0].Category != "general" || abs.Lines[0].ItemCount != 2 {
		t.Errorf("first line = %+v", abs.Lines[0])
	}

	checks := []struct {
		name string
		got  decimal.Decimal
		want string
	}{
		{"works", abs.WorksTotal, "450"},
		{"royalty", abs.RoyaltyTotal, "12"},
		{"testing", abs.TestingTotal, "8"},
		{"grand", abs.GrandTotal, "470"},
	}
	for _, c := range checks {
		if !c.got.Equal(decimal.RequireFromString(c.want)) {
			t.Errorf("%s total = %s, want %s", c.name, c.got, c.want)
		}
	}

	if len(abs.SubWorks) != 2 {
		t.Fatalf("sub-works = %+v", abs.SubWorks)
	}
	if !abs.SubWorks[0].TotalAmount.Equal(decimal.NewFromInt(162)) || !abs.SubWorks[1].TotalAmount.Equal(decimal.NewFromInt(308)) {
		t.Errorf("sub-work totals = %s, %s", abs.SubWorks[0].TotalAmount, abs.SubWorks[1].TotalAmount)
	}
}

func TestWorkAbstractEmptyAndMissing(t *testing.T) {
	db, store := openStore(t)
	work := &model.Work{WorkNo: "W2", Name: "Empty"}
	if err := db.Create(work).Error; err != nil {
		t.Fatalf("create work: %v", err)
	}

	abs, err := store.WorkAbstract(context.Background(), work.ID)
	if err != nil {
		t.Fatalf("WorkAbstract: %v", err)
	}
	if len(abs.Lines) != 0 || !abs.GrandTotal.IsZero() {
		t.Errorf("empty work abstract = %+v", abs)
	}

	if _, err := store.WorkAbstract(context.Background(), uuid.New()); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("missing work: err = %v, want not found", err)
	}
}
