package cash

import (
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/alfares/bakery-backend/internal/stock"
	"github.com/alfares/bakery-backend/pkg/apperr"
	"github.com/alfares/bakery-backend/pkg/database"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + t.Name() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// Seeds item A (Normal, price 100), 10 added, 2 returned, batch finished:
// available 8, expected contribution 800.
func seedFinishedDay(t *testing.T, db *gorm.DB) {
	t.Helper()
	if err := db.Create(&database.Item{Code: "A1", Name: "Bread", ItemType: database.ItemTypeNormal, Price: 100}).Error; err != nil {
		t.Fatalf("seed item: %v", err)
	}
	if _, err := stock.AddStock(db, "2024-01-01", "BranchX", "A1", 10); err != nil {
		t.Fatalf("add stock: %v", err)
	}
	if _, err := stock.ReturnStock(db, "2024-01-01", "BranchX", "A1", 2); err != nil {
		t.Fatalf("return stock: %v", err)
	}
	if err := stock.FinishBatch(db, "2024-01-01", "BranchX", "tester"); err != nil {
		t.Fatalf("finish: %v", err)
	}
}

func TestComputeExpectedFinishedStock(t *testing.T) {
	db := setupTestDB(t)
	seedFinishedDay(t, db)

	breakdown, err := ComputeExpected(db, "BranchX", "2024-01-01")
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if breakdown.NormalSales != 800 {
		t.Errorf("normal sales = %v, want 800", breakdown.NormalSales)
	}
	if breakdown.Total != 800 {
		t.Errorf("total = %v, want 800", breakdown.Total)
	}
}

func TestComputeExpectedIgnoresUnfinishedStock(t *testing.T) {
	db := setupTestDB(t)
	db.Create(&database.Item{Code: "A1", Name: "Bread", ItemType: database.ItemTypeNormal, Price: 100})
	if _, err := stock.AddStock(db, "2024-01-01", "BranchX", "A1", 10); err != nil {
		t.Fatalf("add stock: %v", err)
	}

	breakdown, err := ComputeExpected(db, "BranchX", "2024-01-01")
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if breakdown.Total != 0 {
		t.Errorf("total = %v, want 0 for an unfinished batch", breakdown.Total)
	}
}

func TestComputeExpectedSumsSaleSources(t *testing.T) {
	db := setupTestDB(t)
	seedFinishedDay(t, db)
	db.Create(&database.GrocerySale{Branch: "BranchX", Date: "2024-01-01", ItemCode: "G1", Quantity: 3, TotalCash: 45})
	db.Create(&database.MachineSale{Branch: "BranchX", Date: "2024-01-01", Quantity: 12, TotalCash: 120})
	// Other branch/date rows must not leak in.
	db.Create(&database.GrocerySale{Branch: "BranchY", Date: "2024-01-01", ItemCode: "G1", Quantity: 1, TotalCash: 500})
	db.Create(&database.MachineSale{Branch: "BranchX", Date: "2024-01-02", Quantity: 1, TotalCash: 500})

	breakdown, err := ComputeExpected(db, "BranchX", "2024-01-01")
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if breakdown.GrocerySales != 45 || breakdown.MachineSales != 120 {
		t.Errorf("grocery/machine = %v/%v, want 45/120", breakdown.GrocerySales, breakdown.MachineSales)
	}
	if breakdown.Total != 965 {
		t.Errorf("total = %v, want 965", breakdown.Total)
	}
}

func TestCreateClassifiesShortage(t *testing.T) {
	db := setupTestDB(t)
	seedFinishedDay(t, db)

	entry, err := Create(db, CreateRequest{
		Branch:      "BranchX",
		Date:        "2024-01-01",
		ActualCash:  700,
		CardPayment: 50,
		OperatorID:  "op-1",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if entry.Expected != 800 || entry.Actual != 750 || entry.Difference != -50 {
		t.Errorf("entry = %+v, want expected 800, actual 750, difference -50", entry)
	}
	if entry.Status != database.CashStatusShortage {
		t.Errorf("status = %s, want Shortage", entry.Status)
	}
}

func TestCreateClassifiesMatchAndOverage(t *testing.T) {
	db := setupTestDB(t)
	seedFinishedDay(t, db)

	entry, err := Create(db, CreateRequest{Branch: "BranchX", Date: "2024-01-01", ActualCash: 800})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if entry.Status != database.CashStatusMatch {
		t.Errorf("status = %s, want Match", entry.Status)
	}

	db2 := setupTestDB(t)
	seedFinishedDay(t, db2)
	entry2, err := Create(db2, CreateRequest{Branch: "BranchX", Date: "2024-01-01", ActualCash: 900})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if entry2.Status != database.CashStatusOverage {
		t.Errorf("status = %s, want Overage", entry2.Status)
	}
}

func TestCreateRejectsDuplicate(t *testing.T) {
	db := setupTestDB(t)
	seedFinishedDay(t, db)

	if _, err := Create(db, CreateRequest{Branch: "BranchX", Date: "2024-01-01", ActualCash: 800}); err != nil {
		t.Fatalf("first create: %v", err)
	}
	_, err := Create(db, CreateRequest{Branch: "BranchX", Date: "2024-01-01", ActualCash: 123})
	if apperr.KindOf(err) != apperr.KindConflict {
		t.Fatalf("expected conflict, got %v", err)
	}

	var count int64
	db.Model(&database.CashEntry{}).Count(&count)
	if count != 1 {
		t.Errorf("expected a single entry, got %d", count)
	}
}

func TestCreateRejectsWhenNoSales(t *testing.T) {
	db := setupTestDB(t)

	breakdown, err := ComputeExpected(db, "BranchX", "2024-01-01")
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if breakdown.Total != 0 {
		t.Fatalf("expected zero total, got %v", breakdown.Total)
	}

	_, err = Create(db, CreateRequest{Branch: "BranchX", Date: "2024-01-01", ActualCash: 100})
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("expected no-sales rejection, got %v", err)
	}
}

func TestCreateRejectsUnfinishedStock(t *testing.T) {
	db := setupTestDB(t)
	db.Create(&database.Item{Code: "A1", Name: "Bread", ItemType: database.ItemTypeNormal, Price: 100})
	if _, err := stock.AddStock(db, "2024-01-01", "BranchX", "A1", 10); err != nil {
		t.Fatalf("add stock: %v", err)
	}
	// Grocery revenue exists, so expected > 0; the precondition still blocks.
	db.Create(&database.GrocerySale{Branch: "BranchX", Date: "2024-01-01", ItemCode: "G1", Quantity: 1, TotalCash: 10})

	_, err := Create(db, CreateRequest{Branch: "BranchX", Date: "2024-01-01", ActualCash: 10})
	if apperr.KindOf(err) != apperr.KindPrecondition {
		t.Fatalf("expected precondition failure, got %v", err)
	}
}

func TestCreateRejectsActiveMachineBatch(t *testing.T) {
	db := setupTestDB(t)
	seedFinishedDay(t, db)
	db.Create(&database.MachineBatch{Branch: "BranchX", Date: "2024-01-01", MachineName: "oven-1", Status: database.MachineBatchActive})

	_, err := Create(db, CreateRequest{Branch: "BranchX", Date: "2024-01-01", ActualCash: 800})
	if apperr.KindOf(err) != apperr.KindPrecondition {
		t.Fatalf("expected precondition failure, got %v", err)
	}
}

func TestCreateRejectsIncompleteGroceryReturn(t *testing.T) {
	db := setupTestDB(t)
	seedFinishedDay(t, db)
	db.Create(&database.GroceryReturn{Branch: "BranchX", Date: "2024-01-01", ItemCode: "G1", Quantity: 1, Completed: false})

	_, err := Create(db, CreateRequest{Branch: "BranchX", Date: "2024-01-01", ActualCash: 800})
	if apperr.KindOf(err) != apperr.KindPrecondition {
		t.Fatalf("expected precondition failure, got %v", err)
	}
}
