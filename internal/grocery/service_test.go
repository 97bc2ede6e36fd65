package grocery

import (
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

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

func seedBatch(t *testing.T, db *gorm.DB, batchID, branch, code string, remaining float64, expiry, added string) database.GroceryBatch {
	t.Helper()
	batch := database.GroceryBatch{
		BatchID:    batchID,
		ItemCode:   code,
		Branch:     branch,
		Quantity:   remaining,
		Remaining:  remaining,
		ExpiryDate: expiry,
		AddedDate:  added,
	}
	if err := db.Create(&batch).Error; err != nil {
		t.Fatalf("seed batch: %v", err)
	}
	return batch
}

func TestConsumeFIFODrawsSoonestExpiryFirst(t *testing.T) {
	db := setupTestDB(t)
	b1 := seedBatch(t, db, "B1", "BranchX", "G1", 5, "2024-01-05", "2024-01-01")
	b2 := seedBatch(t, db, "B2", "BranchX", "G1", 10, "2024-01-10", "2024-01-01")

	draws, err := ConsumeFIFO(db, "BranchX", "G1", 3)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if len(draws) != 1 || draws[0].Batch.ID != b1.ID || draws[0].Amount != 3 {
		t.Fatalf("expected 3 units from the soonest batch, got %+v", draws)
	}

	var got1, got2 database.GroceryBatch
	db.First(&got1, "id = ?", b1.ID)
	db.First(&got2, "id = ?", b2.ID)
	if got1.Remaining != 2 || got2.Remaining != 10 {
		t.Errorf("remaining = %v/%v, want 2/10", got1.Remaining, got2.Remaining)
	}
}

func TestConsumeFIFOSpansBatches(t *testing.T) {
	db := setupTestDB(t)
	b1 := seedBatch(t, db, "B1", "BranchX", "G1", 5, "2024-01-05", "2024-01-01")
	b2 := seedBatch(t, db, "B2", "BranchX", "G1", 10, "2024-01-10", "2024-01-01")

	draws, err := ConsumeFIFO(db, "BranchX", "G1", 7)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if len(draws) != 2 {
		t.Fatalf("expected two draws, got %d", len(draws))
	}
	if draws[0].Batch.ID != b1.ID || draws[0].Amount != 5 {
		t.Errorf("first draw = %v from %v, want 5 from batch1", draws[0].Amount, draws[0].Batch.BatchID)
	}
	if draws[1].Batch.ID != b2.ID || draws[1].Amount != 2 {
		t.Errorf("second draw = %v from %v, want 2 from batch2", draws[1].Amount, draws[1].Batch.BatchID)
	}

	var got1, got2 database.GroceryBatch
	db.First(&got1, "id = ?", b1.ID)
	db.First(&got2, "id = ?", b2.ID)
	if got1.Remaining != 0 || got2.Remaining != 8 {
		t.Errorf("remaining = %v/%v, want 0/8", got1.Remaining, got2.Remaining)
	}
}

func TestConsumeFIFOTieBreaksOnAddedDate(t *testing.T) {
	db := setupTestDB(t)
	older := seedBatch(t, db, "B1", "BranchX", "G1", 4, "2024-01-05", "2024-01-01")
	seedBatch(t, db, "B2", "BranchX", "G1", 4, "2024-01-05", "2024-01-03")

	draws, err := ConsumeFIFO(db, "BranchX", "G1", 2)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if draws[0].Batch.ID != older.ID {
		t.Errorf("expected the oldest batch first, got %v", draws[0].Batch.BatchID)
	}
}

func TestConsumeFIFOInsufficient(t *testing.T) {
	db := setupTestDB(t)
	seedBatch(t, db, "B1", "BranchX", "G1", 5, "2024-01-05", "2024-01-01")

	_, err := ConsumeFIFO(db, "BranchX", "G1", 6)
	if apperr.KindOf(err) != apperr.KindInsufficientStock {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
}

func TestRecordSaleConsumesAndPersists(t *testing.T) {
	db := setupTestDB(t)
	b := seedBatch(t, db, "B1", "BranchX", "G1", 5, "2024-01-05", "2024-01-01")

	sale, err := RecordSale(db, "BranchX", "2024-01-02", "G1", 2, 40)
	if err != nil {
		t.Fatalf("record sale: %v", err)
	}
	if sale.TotalCash != 40 {
		t.Errorf("total cash = %v, want 40", sale.TotalCash)
	}

	var batch database.GroceryBatch
	db.First(&batch, "id = ?", b.ID)
	if batch.Remaining != 3 {
		t.Errorf("remaining = %v, want 3", batch.Remaining)
	}
}

func TestRecordSaleRollsBackOnInsufficient(t *testing.T) {
	db := setupTestDB(t)
	b := seedBatch(t, db, "B1", "BranchX", "G1", 5, "2024-01-05", "2024-01-01")

	if _, err := RecordSale(db, "BranchX", "2024-01-02", "G1", 9, 100); apperr.KindOf(err) != apperr.KindInsufficientStock {
		t.Fatalf("expected insufficient stock, got %v", err)
	}

	var batch database.GroceryBatch
	db.First(&batch, "id = ?", b.ID)
	if batch.Remaining != 5 {
		t.Errorf("failed sale mutated the batch: remaining = %v", batch.Remaining)
	}
	var sales int64
	db.Model(&database.GrocerySale{}).Count(&sales)
	if sales != 0 {
		t.Errorf("failed sale persisted a row")
	}
}

func TestRecordReturnStartsIncomplete(t *testing.T) {
	db := setupTestDB(t)
	seedBatch(t, db, "B1", "BranchX", "G1", 5, "2024-01-05", "2024-01-01")

	ret, err := RecordReturn(db, "BranchX", "2024-01-02", "G1", 1, "damaged")
	if err != nil {
		t.Fatalf("record return: %v", err)
	}
	if ret.Completed {
		t.Errorf("new return should start incomplete")
	}
}
