package notification

import (
	"strings"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

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

func seedNotifiableItem(t *testing.T, db *gorm.DB, code, name string) {
	t.Helper()
	item := database.Item{Code: code, Name: name, ItemType: database.ItemTypeGrocery, Price: 10, NotifyExpiry: true}
	if err := db.Create(&item).Error; err != nil {
		t.Fatalf("seed item: %v", err)
	}
}

func dateOffset(today time.Time, days int) string {
	return today.AddDate(0, 0, days).Format(database.DateLayout)
}

func TestScanCreatesNotificationAndDedups(t *testing.T) {
	db := setupTestDB(t)
	today := time.Date(2024, 1, 3, 12, 0, 0, 0, time.UTC)
	seedNotifiableItem(t, db, "G1", "Cheese")
	db.Create(&database.GroceryBatch{
		BatchID: "B1", ItemCode: "G1", Branch: "BranchX",
		Quantity: 3, Remaining: 3,
		ExpiryDate: dateOffset(today, 2), AddedDate: dateOffset(today, -1),
	})

	summary := ScanExpiring(db, today)
	if summary.Error != "" {
		t.Fatalf("scan error: %s", summary.Error)
	}
	if summary.Checked != 1 || summary.Created != 1 {
		t.Fatalf("summary = %+v, want checked=1 created=1", summary)
	}

	var row database.Notification
	if err := db.First(&row).Error; err != nil {
		t.Fatalf("load notification: %v", err)
	}
	if !strings.Contains(row.Message, "in 2 days") {
		t.Errorf("message %q should mention \"in 2 days\"", row.Message)
	}
	if !strings.Contains(row.Message, "3 x Cheese") || !strings.Contains(row.Message, "BranchX") {
		t.Errorf("message %q should mention quantity, item and branch", row.Message)
	}

	// Second run the same day must not duplicate the alert.
	second := ScanExpiring(db, today)
	if second.Created != 0 {
		t.Errorf("second scan created %d notifications, want 0", second.Created)
	}
	var count int64
	db.Model(&database.Notification{}).Count(&count)
	if count != 1 {
		t.Errorf("notification count = %d, want 1", count)
	}
}

func TestScanExpiringTodaySaysToday(t *testing.T) {
	db := setupTestDB(t)
	today := time.Date(2024, 1, 3, 8, 30, 0, 0, time.UTC)
	seedNotifiableItem(t, db, "G1", "Milk")
	db.Create(&database.GroceryBatch{
		BatchID: "B1", ItemCode: "G1", Branch: "BranchX",
		Quantity: 2.5, Remaining: 2.5,
		ExpiryDate: dateOffset(today, 0), AddedDate: dateOffset(today, -3),
	})

	summary := ScanExpiring(db, today)
	if summary.Created != 1 {
		t.Fatalf("summary = %+v, want created=1", summary)
	}

	var row database.Notification
	db.First(&row)
	if !strings.Contains(row.Message, "expires today") {
		t.Errorf("message %q should say it expires today", row.Message)
	}
	if !strings.Contains(row.Message, "2.500 x Milk") {
		t.Errorf("message %q should format fractional quantity with 3 decimals", row.Message)
	}
}

func TestScanSkipsOutOfScopeBatches(t *testing.T) {
	db := setupTestDB(t)
	today := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)
	seedNotifiableItem(t, db, "G1", "Cheese")
	// Item without expiry alerts.
	db.Create(&database.Item{Code: "G2", Name: "Flour", ItemType: database.ItemTypeGrocery, NotifyExpiry: false})

	batches := []database.GroceryBatch{
		// Beyond the horizon.
		{BatchID: "B1", ItemCode: "G1", Branch: "BranchX", Quantity: 5, Remaining: 5, ExpiryDate: dateOffset(today, 3), AddedDate: dateOffset(today, -1)},
		// Fully consumed.
		{BatchID: "B2", ItemCode: "G1", Branch: "BranchX", Quantity: 5, Remaining: 0, ExpiryDate: dateOffset(today, 1), AddedDate: dateOffset(today, -1)},
		// Alerts disabled on the item.
		{BatchID: "B3", ItemCode: "G2", Branch: "BranchX", Quantity: 5, Remaining: 5, ExpiryDate: dateOffset(today, 1), AddedDate: dateOffset(today, -1)},
	}
	for i := range batches {
		if err := db.Create(&batches[i]).Error; err != nil {
			t.Fatalf("seed batch: %v", err)
		}
	}

	summary := ScanExpiring(db, today)
	if summary.Created != 0 {
		t.Errorf("created = %d, want 0", summary.Created)
	}
	// None of the batches is a real candidate, so none counts as checked.
	if summary.Checked != 0 {
		t.Errorf("checked = %d, want 0", summary.Checked)
	}
}

func TestScanSeparateBatchesGetSeparateAlerts(t *testing.T) {
	db := setupTestDB(t)
	today := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)
	seedNotifiableItem(t, db, "G1", "Cheese")
	db.Create(&database.GroceryBatch{BatchID: "B1", ItemCode: "G1", Branch: "BranchX", Quantity: 5, Remaining: 5, ExpiryDate: dateOffset(today, 1), AddedDate: dateOffset(today, -2)})
	db.Create(&database.GroceryBatch{BatchID: "B2", ItemCode: "G1", Branch: "BranchX", Quantity: 5, Remaining: 5, ExpiryDate: dateOffset(today, 2), AddedDate: dateOffset(today, -1)})

	summary := ScanExpiring(db, today)
	if summary.Created != 2 {
		t.Errorf("created = %d, want one alert per batch", summary.Created)
	}
}
