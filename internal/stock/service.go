package stock

import (
	"errors"

	"gorm.io/gorm"

	"github.com/alfares/bakery-backend/pkg/apperr"
	"github.com/alfares/bakery-backend/pkg/database"
)

// IsFinished reports whether the (date, branch) batch has been closed.
func IsFinished(db *gorm.DB, date, branch string) (bool, error) {
	var count int64
	if err := db.Model(&database.FinishedBatch{}).
		Where("date = ? AND branch = ?", date, branch).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// AddStock upserts the (date, branch, item) ledger row and adds qty to it.
// Rejected once the day's batch is finished.
func AddStock(db *gorm.DB, date, branch, itemCode string, qty float64) (*database.StockEntry, error) {
	if qty <= 0 {
		return nil, apperr.Validation("quantity must be greater than zero")
	}

	var entry *database.StockEntry
	err := db.Transaction(func(tx *gorm.DB) error {
		finished, err := IsFinished(tx, date, branch)
		if err != nil {
			return err
		}
		if finished {
			return apperr.Conflict("stock batch for %s at %s is already finished", date, branch)
		}

		var row database.StockEntry
		err = tx.Where("date = ? AND branch = ? AND item_code = ?", date, branch, itemCode).
			First(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			row = database.StockEntry{Date: date, Branch: branch, ItemCode: itemCode, Added: qty}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
			entry = &row
			return nil
		}
		if err != nil {
			return err
		}

		row.Added += qty
		if err := tx.Save(&row).Error; err != nil {
			return err
		}
		entry = &row
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// ReturnStock records returned quantity against the ledger row. Rejected when
// qty exceeds what is still available or the batch is finished.
func ReturnStock(db *gorm.DB, date, branch, itemCode string, qty float64) (*database.StockEntry, error) {
	if qty <= 0 {
		return nil, apperr.Validation("quantity must be greater than zero")
	}

	var entry *database.StockEntry
	err := db.Transaction(func(tx *gorm.DB) error {
		finished, err := IsFinished(tx, date, branch)
		if err != nil {
			return err
		}
		if finished {
			return apperr.Conflict("stock batch for %s at %s is already finished", date, branch)
		}

		var row database.StockEntry
		err = tx.Where("date = ? AND branch = ? AND item_code = ?", date, branch, itemCode).
			First(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("no stock recorded for item %s on %s at %s", itemCode, date, branch)
		}
		if err != nil {
			return err
		}

		if qty > row.Available() {
			return apperr.InsufficientStock("return of %.3f exceeds available stock %.3f for item %s", qty, row.Available(), itemCode)
		}

		row.Returned += qty
		if err := tx.Save(&row).Error; err != nil {
			return err
		}
		entry = &row
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// FinishBatch closes the (date, branch) batch: idempotent marker insert plus
// a sold recomputation for every ledger row under the key. Further AddStock,
// ReturnStock, and Normal-item transfers for the key are rejected afterwards.
func FinishBatch(db *gorm.DB, date, branch, finishedBy string) error {
	return db.Transaction(func(tx *gorm.DB) error {
		finished, err := IsFinished(tx, date, branch)
		if err != nil {
			return err
		}
		if !finished {
			marker := database.FinishedBatch{Date: date, Branch: branch, FinishedBy: finishedBy}
			if err := tx.Create(&marker).Error; err != nil {
				return err
			}
		}

		var rows []database.StockEntry
		if err := tx.Where("date = ? AND branch = ?", date, branch).Find(&rows).Error; err != nil {
			return err
		}
		for i := range rows {
			rows[i].Sold = rows[i].Available()
			if err := tx.Save(&rows[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
