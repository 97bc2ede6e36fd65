package cash

import (
	"errors"

	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/alfares/bakery-backend/internal/stock"
	"github.com/alfares/bakery-backend/pkg/apperr"
	"github.com/alfares/bakery-backend/pkg/database"
)

// ExpectedBreakdown is the computed revenue a branch should have collected
// for a date, split by source.
type ExpectedBreakdown struct {
	NormalSales  float64 `json:"normal_sales"`
	GrocerySales float64 `json:"grocery_sales"`
	MachineSales float64 `json:"machine_sales"`
	Total        float64 `json:"total"`
}

type CreateRequest struct {
	Branch       string  `json:"branch" binding:"required"`
	Date         string  `json:"date" binding:"required"`
	ActualCash   float64 `json:"actualCash" binding:"min=0"`
	CardPayment  float64 `json:"cardPayment" binding:"min=0"`
	Notes        string  `json:"notes"`
	OperatorID   string  `json:"operatorId"`
	OperatorName string  `json:"operatorName"`
}

// ComputeExpected sums finished Normal-item stock at its close-of-day
// availability times item price, plus grocery and machine sale totals.
// Normal stock whose batch is not finished contributes nothing.
func ComputeExpected(db *gorm.DB, branch, date string) (*ExpectedBreakdown, error) {
	breakdown := &ExpectedBreakdown{}

	finished, err := stock.IsFinished(db, date, branch)
	if err != nil {
		return nil, err
	}
	if finished {
		var entries []database.StockEntry
		if err := db.Where("date = ? AND branch = ?", date, branch).Find(&entries).Error; err != nil {
			return nil, err
		}
		prices, err := pricesByCode(db, entries)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			breakdown.NormalSales += e.Available() * prices[e.ItemCode]
		}
	}

	if err := sumTotalCash(db, &database.GrocerySale{}, branch, date, &breakdown.GrocerySales); err != nil {
		return nil, err
	}
	if err := sumTotalCash(db, &database.MachineSale{}, branch, date, &breakdown.MachineSales); err != nil {
		return nil, err
	}

	breakdown.Total = breakdown.NormalSales + breakdown.GrocerySales + breakdown.MachineSales
	return breakdown, nil
}

// Create records the day's reconciliation. Entries are append-only; the
// (branch, date) unique index backs the duplicate check so concurrent
// submissions cannot slip past the application-level guard.
func Create(db *gorm.DB, req CreateRequest) (*database.CashEntry, error) {
	if !database.ValidDate(req.Date) {
		return nil, apperr.Validation("date must be in YYYY-MM-DD format")
	}
	if req.ActualCash < 0 || req.CardPayment < 0 {
		return nil, apperr.Validation("cash amounts cannot be negative")
	}

	var entry *database.CashEntry
	err := db.Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&database.CashEntry{}).
			Where("branch = ? AND date = ?", req.Branch, req.Date).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return apperr.Conflict("a cash entry already exists for %s on %s", req.Branch, req.Date)
		}

		if err := checkPreconditions(tx, req.Branch, req.Date); err != nil {
			return err
		}

		expected, err := ComputeExpected(tx, req.Branch, req.Date)
		if err != nil {
			return err
		}
		if expected.Total <= 0 {
			return apperr.Validation("no sales recorded for %s on %s", req.Branch, req.Date)
		}

		actual := req.ActualCash + req.CardPayment
		difference := actual - expected.Total
		status := database.CashStatusMatch
		if difference > 0 {
			status = database.CashStatusOverage
		} else if difference < 0 {
			status = database.CashStatusShortage
		}

		row := database.CashEntry{
			Branch:       req.Branch,
			Date:         req.Date,
			Expected:     expected.Total,
			ActualCash:   req.ActualCash,
			CardPayment:  req.CardPayment,
			Actual:       actual,
			Difference:   difference,
			Status:       status,
			OperatorID:   req.OperatorID,
			OperatorName: req.OperatorName,
			Notes:        req.Notes,
		}
		if err := tx.Create(&row).Error; err != nil {
			if isUniqueViolation(err) {
				return apperr.Conflict("a cash entry already exists for %s on %s", req.Branch, req.Date)
			}
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

// checkPreconditions gates entry creation: the day must be fully closed out.
func checkPreconditions(tx *gorm.DB, branch, date string) error {
	var addedRows int64
	if err := tx.Model(&database.StockEntry{}).
		Where("date = ? AND branch = ? AND added > 0", date, branch).
		Count(&addedRows).Error; err != nil {
		return err
	}
	if addedRows > 0 {
		finished, err := stock.IsFinished(tx, date, branch)
		if err != nil {
			return err
		}
		if !finished {
			return apperr.Precondition("stock batch for %s on %s must be finished before creating a cash entry", branch, date)
		}
	}

	var activeMachines int64
	if err := tx.Model(&database.MachineBatch{}).
		Where("branch = ? AND date = ? AND status = ?", branch, date, database.MachineBatchActive).
		Count(&activeMachines).Error; err != nil {
		return err
	}
	if activeMachines > 0 {
		return apperr.Precondition("an active machine batch for %s on %s must be finished first", branch, date)
	}

	var openReturns int64
	if err := tx.Model(&database.GroceryReturn{}).
		Where("branch = ? AND date = ? AND completed = ?", branch, date, false).
		Count(&openReturns).Error; err != nil {
		return err
	}
	if openReturns > 0 {
		return apperr.Precondition("grocery returns for %s on %s must be completed first", branch, date)
	}

	return nil
}

func sumTotalCash(db *gorm.DB, model interface{}, branch, date string, out *float64) error {
	var result struct {
		Total float64
	}
	if err := db.Model(model).
		Select("COALESCE(SUM(total_cash), 0) as total").
		Where("branch = ? AND date = ?", branch, date).
		Scan(&result).Error; err != nil {
		return err
	}
	*out = result.Total
	return nil
}

func pricesByCode(db *gorm.DB, entries []database.StockEntry) (map[string]float64, error) {
	codes := make([]string, 0, len(entries))
	for _, e := range entries {
		codes = append(codes, e.ItemCode)
	}
	prices := make(map[string]float64)
	if len(codes) == 0 {
		return prices, nil
	}
	var items []database.Item
	if err := db.Where("code IN ?", codes).Find(&items).Error; err != nil {
		return nil, err
	}
	for _, item := range items {
		prices[item.Code] = item.Price
	}
	return prices, nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
