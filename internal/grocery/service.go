package grocery

import (
	"gorm.io/gorm"

	"github.com/alfares/bakery-backend/pkg/apperr"
	"github.com/alfares/bakery-backend/pkg/database"
)

// Draw is one batch consumption: Amount units taken from Batch.
type Draw struct {
	Batch  database.GroceryBatch
	Amount float64
}

// ConsumeFIFO draws qty from the branch's batches of itemCode, soonest expiry
// first (ties broken by oldest added date). Batches shrink in place; rows are
// never deleted. Fails with insufficient stock when the branch runs out before
// qty is satisfied — callers run this inside a transaction so nothing sticks.
func ConsumeFIFO(tx *gorm.DB, branch, itemCode string, qty float64) ([]Draw, error) {
	if qty <= 0 {
		return nil, apperr.Validation("quantity must be greater than zero")
	}

	var batches []database.GroceryBatch
	if err := tx.Where("branch = ? AND item_code = ? AND remaining > 0", branch, itemCode).
		Order("expiry_date ASC, added_date ASC").
		Find(&batches).Error; err != nil {
		return nil, err
	}

	remaining := qty
	var draws []Draw
	for i := range batches {
		if remaining <= 0 {
			break
		}
		amount := batches[i].Remaining
		if amount > remaining {
			amount = remaining
		}
		batches[i].Remaining -= amount
		if err := tx.Save(&batches[i]).Error; err != nil {
			return nil, err
		}
		draws = append(draws, Draw{Batch: batches[i], Amount: amount})
		remaining -= amount
	}

	if remaining > 0 {
		return nil, apperr.InsufficientStock("insufficient grocery stock for item %s at %s: short by %s", itemCode, branch, database.FormatQuantity(remaining))
	}
	return draws, nil
}

// RecordSale consumes stock FIFO and records the sale row.
func RecordSale(db *gorm.DB, branch, date, itemCode string, qty, totalCash float64) (*database.GrocerySale, error) {
	var sale *database.GrocerySale
	err := db.Transaction(func(tx *gorm.DB) error {
		if _, err := ConsumeFIFO(tx, branch, itemCode, qty); err != nil {
			return err
		}
		row := database.GrocerySale{
			Branch:    branch,
			Date:      date,
			ItemCode:  itemCode,
			Quantity:  qty,
			TotalCash: totalCash,
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		sale = &row
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sale, nil
}

// RecordReturn consumes stock FIFO and records the return row. The row stays
// incomplete until marked done, which blocks the day's cash entry.
func RecordReturn(db *gorm.DB, branch, date, itemCode string, qty float64, reason string) (*database.GroceryReturn, error) {
	var ret *database.GroceryReturn
	err := db.Transaction(func(tx *gorm.DB) error {
		if _, err := ConsumeFIFO(tx, branch, itemCode, qty); err != nil {
			return err
		}
		row := database.GroceryReturn{
			Branch:   branch,
			Date:     date,
			ItemCode: itemCode,
			Quantity: qty,
			Reason:   reason,
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		ret = &row
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ret, nil
}
