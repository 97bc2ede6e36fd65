package transfer

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
	for _, name := range []string{"BranchX", "BranchY"} {
		if err := db.Create(&database.Branch{Name: name, Address: "addr", Manager: "m"}).Error; err != nil {
			t.Fatalf("seed branch: %v", err)
		}
	}
	return db
}

func normalRequest(items ...ItemRequest) Request {
	return Request{
		Date:           "2024-01-01",
		SenderBranch:   "BranchX",
		ReceiverBranch: "BranchY",
		ItemType:       database.ItemTypeNormal,
		Items:          items,
		ProcessedBy:    "tester",
	}
}

func TestNormalTransferMovesCounters(t *testing.T) {
	db := setupTestDB(t)
	if _, err := stock.AddStock(db, "2024-01-01", "BranchX", "A1", 10); err != nil {
		t.Fatalf("seed stock: %v", err)
	}

	record, err := Execute(db, normalRequest(ItemRequest{ItemCode: "A1", Quantity: 4}))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(record.Items) != 1 {
		t.Fatalf("expected one transfer item, got %d", len(record.Items))
	}

	var sender, receiver database.StockEntry
	db.Where("branch = ? AND item_code = ?", "BranchX", "A1").First(&sender)
	db.Where("branch = ? AND item_code = ?", "BranchY", "A1").First(&receiver)

	if sender.Transferred != 4 || sender.Available() != 6 {
		t.Errorf("sender transferred=%v available=%v, want 4/6", sender.Transferred, sender.Available())
	}
	// Receiver side mirrors a fresh addition: only `added` grows.
	if receiver.Added != 4 || receiver.Transferred != 0 || receiver.Returned != 0 {
		t.Errorf("receiver = %+v, want added=4 and untouched counters", receiver)
	}

	var audits []database.ActivityLog
	db.Order("action ASC").Find(&audits)
	if len(audits) != 2 {
		t.Fatalf("expected paired audit entries, got %d", len(audits))
	}
	if audits[0].Action != "stock_received" || audits[0].Branch != "BranchY" {
		t.Errorf("unexpected first audit entry: %+v", audits[0])
	}
	if audits[1].Action != "stock_sent" || audits[1].Branch != "BranchX" {
		t.Errorf("unexpected second audit entry: %+v", audits[1])
	}
	for _, a := range audits {
		if a.EntryDate != "2024-01-01" {
			t.Errorf("audit entry date = %s, want the transfer date", a.EntryDate)
		}
	}
}

func TestTransferAtomicity(t *testing.T) {
	db := setupTestDB(t)
	if _, err := stock.AddStock(db, "2024-01-01", "BranchX", "A1", 10); err != nil {
		t.Fatalf("seed stock: %v", err)
	}
	if _, err := stock.AddStock(db, "2024-01-01", "BranchX", "A2", 1); err != nil {
		t.Fatalf("seed stock: %v", err)
	}

	_, err := Execute(db, normalRequest(
		ItemRequest{ItemCode: "A1", Quantity: 4},
		ItemRequest{ItemCode: "A2", Quantity: 5}, // exceeds available
	))
	if apperr.KindOf(err) != apperr.KindInsufficientStock {
		t.Fatalf("expected insufficient stock, got %v", err)
	}

	var sender database.StockEntry
	db.Where("branch = ? AND item_code = ?", "BranchX", "A1").First(&sender)
	if sender.Transferred != 0 {
		t.Errorf("first item applied despite failed transfer: transferred = %v", sender.Transferred)
	}

	var receiverRows, records, audits int64
	db.Model(&database.StockEntry{}).Where("branch = ?", "BranchY").Count(&receiverRows)
	db.Model(&database.TransferRecord{}).Count(&records)
	db.Model(&database.ActivityLog{}).Count(&audits)
	if receiverRows != 0 || records != 0 || audits != 0 {
		t.Errorf("partial writes visible after failed transfer: rows=%d records=%d audits=%d", receiverRows, records, audits)
	}
}

func TestTransferRejectedWhenEitherSideFinished(t *testing.T) {
	db := setupTestDB(t)
	if _, err := stock.AddStock(db, "2024-01-01", "BranchX", "A1", 10); err != nil {
		t.Fatalf("seed stock: %v", err)
	}
	if err := stock.FinishBatch(db, "2024-01-01", "BranchY", "tester"); err != nil {
		t.Fatalf("finish receiver: %v", err)
	}

	_, err := Execute(db, normalRequest(ItemRequest{ItemCode: "A1", Quantity: 1}))
	if apperr.KindOf(err) != apperr.KindConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestTransferRejectsSameBranch(t *testing.T) {
	db := setupTestDB(t)
	req := normalRequest(ItemRequest{ItemCode: "A1", Quantity: 1})
	req.ReceiverBranch = req.SenderBranch
	if _, err := Execute(db, req); apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestGroceryTransferFIFO(t *testing.T) {
	db := setupTestDB(t)
	batches := []database.GroceryBatch{
		{BatchID: "B1", ItemCode: "G1", Branch: "BranchX", Quantity: 5, Remaining: 5, ExpiryDate: "2024-01-05", AddedDate: "2024-01-01"},
		{BatchID: "B2", ItemCode: "G1", Branch: "BranchX", Quantity: 10, Remaining: 10, ExpiryDate: "2024-01-10", AddedDate: "2024-01-01"},
	}
	for i := range batches {
		if err := db.Create(&batches[i]).Error; err != nil {
			t.Fatalf("seed batch: %v", err)
		}
	}

	req := normalRequest(ItemRequest{ItemCode: "G1", Quantity: 7})
	req.ItemType = database.ItemTypeGrocery
	req.Date = "2024-01-02"
	if _, err := Execute(db, req); err != nil {
		t.Fatalf("execute: %v", err)
	}

	var b1, b2 database.GroceryBatch
	db.First(&b1, "id = ?", batches[0].ID)
	db.First(&b2, "id = ?", batches[1].ID)
	if b1.Remaining != 0 || b2.Remaining != 8 {
		t.Errorf("sender remaining = %v/%v, want 0/8", b1.Remaining, b2.Remaining)
	}

	var received []database.GroceryBatch
	db.Where("branch = ?", "BranchY").Order("expiry_date ASC").Find(&received)
	if len(received) != 2 {
		t.Fatalf("expected two receiver batches, got %d", len(received))
	}
	if received[0].Remaining != 5 || received[0].ExpiryDate != "2024-01-05" {
		t.Errorf("first receiver batch = %+v, want 5 units expiring 2024-01-05", received[0])
	}
	if received[1].Remaining != 2 || received[1].ExpiryDate != "2024-01-10" {
		t.Errorf("second receiver batch = %+v, want 2 units expiring 2024-01-10", received[1])
	}
	for _, b := range received {
		if b.AddedDate != "2024-01-02" {
			t.Errorf("receiver batch added date = %s, want the transfer date", b.AddedDate)
		}
	}
}
