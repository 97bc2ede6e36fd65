package notification

import (
	"fmt"
	"math"
	"time"

	"gorm.io/gorm"

	"github.com/alfares/bakery-backend/pkg/database"
)

// expiryHorizonDays is how far ahead the scan alerts on grocery batches.
const expiryHorizonDays = 2

// Summary reports one scan run. Failures land in Error rather than being
// returned, since the scan runs unattended.
type Summary struct {
	Checked int    `json:"checked"`
	Created int    `json:"created"`
	Error   string `json:"error,omitempty"`
}

// ScanExpiring finds grocery batches expiring within the horizon and emits
// at most one notification per (type, item, branch, batch, expiry date).
func ScanExpiring(db *gorm.DB, today time.Time) Summary {
	day := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	from := day.Format(database.DateLayout)
	until := day.AddDate(0, 0, expiryHorizonDays).Format(database.DateLayout)

	var batches []database.GroceryBatch
	if err := db.Where("remaining > 0 AND expiry_date >= ? AND expiry_date <= ?", from, until).
		Find(&batches).Error; err != nil {
		return Summary{Error: err.Error()}
	}

	items, err := notifiableItems(db, batches)
	if err != nil {
		return Summary{Error: err.Error()}
	}

	var summary Summary
	for _, batch := range batches {
		item, ok := items[batch.ItemCode]
		if !ok {
			continue
		}
		summary.Checked++

		expiry, err := time.Parse(database.DateLayout, batch.ExpiryDate)
		if err != nil {
			continue
		}
		daysUntil := int(math.Ceil(expiry.Sub(day).Hours() / 24))
		if daysUntil < 0 || daysUntil > expiryHorizonDays {
			continue
		}

		var existing int64
		if err := db.Model(&database.Notification{}).
			Where("type = ? AND item_code = ? AND branch = ? AND batch_id = ? AND expiry_date = ?",
				"expiry", batch.ItemCode, batch.Branch, batch.BatchID, batch.ExpiryDate).
			Count(&existing).Error; err != nil {
			summary.Error = err.Error()
			continue
		}
		if existing > 0 {
			continue
		}

		row := database.Notification{
			Type:       "expiry",
			Message:    expiryMessage(item.Name, batch, daysUntil),
			Branch:     batch.Branch,
			ItemCode:   batch.ItemCode,
			BatchID:    batch.BatchID,
			ExpiryDate: batch.ExpiryDate,
		}
		if err := db.Create(&row).Error; err != nil {
			summary.Error = err.Error()
			continue
		}
		summary.Created++
	}

	return summary
}

func expiryMessage(itemName string, batch database.GroceryBatch, daysUntil int) string {
	qty := database.FormatQuantity(batch.Remaining)
	when := "today"
	if daysUntil == 1 {
		when = "in 1 day"
	} else if daysUntil > 1 {
		when = fmt.Sprintf("in %d days", daysUntil)
	}
	return fmt.Sprintf("%s x %s at %s expires %s", qty, itemName, batch.Branch, when)
}

// notifiableItems maps codes to the Grocery items with expiry alerts enabled.
func notifiableItems(db *gorm.DB, batches []database.GroceryBatch) (map[string]database.Item, error) {
	codes := make([]string, 0, len(batches))
	for _, b := range batches {
		codes = append(codes, b.ItemCode)
	}
	result := make(map[string]database.Item)
	if len(codes) == 0 {
		return result, nil
	}
	var items []database.Item
	if err := db.Where("code IN ? AND item_type = ? AND notify_expiry = ?", codes, database.ItemTypeGrocery, true).
		Find(&items).Error; err != nil {
		return nil, err
	}
	for _, item := range items {
		result[item.Code] = item
	}
	return result, nil
}
