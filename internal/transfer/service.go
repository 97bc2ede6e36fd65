// Package transfer moves stock between branches. Normal-item transfers add to
// the receiver's `added` counter rather than a dedicated transferred-in
// counter, so received stock is indistinguishable from organically added stock
// in later reporting. That matches the long-standing behavior of the system
// and is kept on purpose.
package transfer

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/alfares/bakery-backend/internal/grocery"
	"github.com/alfares/bakery-backend/internal/stock"
	"github.com/alfares/bakery-backend/pkg/apperr"
	"github.com/alfares/bakery-backend/pkg/database"
)

type ItemRequest struct {
	ItemCode string  `json:"itemCode" binding:"required"`
	Quantity float64 `json:"quantity" binding:"required,gt=0"`
}

type Request struct {
	Date           string        `json:"date" binding:"required"`
	SenderBranch   string        `json:"senderBranch" binding:"required"`
	ReceiverBranch string        `json:"receiverBranch" binding:"required"`
	ItemType       string        `json:"itemType" binding:"required"`
	Items          []ItemRequest `json:"items" binding:"required,min=1,dive"`
	ProcessedBy    string        `json:"processedBy"`
}

// Execute runs the whole transfer in one database transaction: ledger or
// batch mutations, the immutable transfer record, and the paired audit
// entries all commit together or not at all.
func Execute(db *gorm.DB, req Request) (*database.TransferRecord, error) {
	if err := validate(db, req); err != nil {
		return nil, err
	}

	var record *database.TransferRecord
	err := db.Transaction(func(tx *gorm.DB) error {
		switch req.ItemType {
		case database.ItemTypeNormal:
			if err := transferNormal(tx, req); err != nil {
				return err
			}
		case database.ItemTypeGrocery:
			if err := transferGrocery(tx, req); err != nil {
				return err
			}
		default:
			return apperr.Validation("unsupported item type %s for transfers", req.ItemType)
		}

		row := database.TransferRecord{
			Date:           req.Date,
			SenderBranch:   req.SenderBranch,
			ReceiverBranch: req.ReceiverBranch,
			ItemType:       req.ItemType,
			ProcessedBy:    req.ProcessedBy,
			ProcessedAt:    time.Now(),
		}
		for _, item := range req.Items {
			row.Items = append(row.Items, database.TransferItem{
				ItemCode: item.ItemCode,
				Quantity: item.Quantity,
			})
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		record = &row

		return writeAuditEntries(tx, req, row.ID)
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

func validate(db *gorm.DB, req Request) error {
	if !database.ValidDate(req.Date) {
		return apperr.Validation("date must be in YYYY-MM-DD format")
	}
	if req.SenderBranch == req.ReceiverBranch {
		return apperr.Validation("sender and receiver branch must differ")
	}
	for _, name := range []string{req.SenderBranch, req.ReceiverBranch} {
		var branch database.Branch
		if err := db.Where("name = ?", name).First(&branch).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("branch %s not found", name)
			}
			return err
		}
	}
	return nil
}

// transferNormal moves ledger quantities: the sender's transferred counter
// grows, the receiver's row is upserted with added += qty, mirroring a fresh
// addition on the receiving side.
func transferNormal(tx *gorm.DB, req Request) error {
	for _, name := range []string{req.SenderBranch, req.ReceiverBranch} {
		finished, err := stock.IsFinished(tx, req.Date, name)
		if err != nil {
			return err
		}
		if finished {
			return apperr.Conflict("stock batch for %s at %s is already finished; transfers must happen before day close", req.Date, name)
		}
	}

	for _, item := range req.Items {
		var sender database.StockEntry
		err := tx.Where("date = ? AND branch = ? AND item_code = ?", req.Date, req.SenderBranch, item.ItemCode).
			First(&sender).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.InsufficientStock("no stock of item %s at %s on %s", item.ItemCode, req.SenderBranch, req.Date)
		}
		if err != nil {
			return err
		}
		if item.Quantity > sender.Available() {
			return apperr.InsufficientStock("transfer of %s exceeds available stock %s for item %s",
				database.FormatQuantity(item.Quantity), database.FormatQuantity(sender.Available()), item.ItemCode)
		}

		sender.Transferred += item.Quantity
		if err := tx.Save(&sender).Error; err != nil {
			return err
		}

		var receiver database.StockEntry
		err = tx.Where("date = ? AND branch = ? AND item_code = ?", req.Date, req.ReceiverBranch, item.ItemCode).
			First(&receiver).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			receiver = database.StockEntry{
				Date:     req.Date,
				Branch:   req.ReceiverBranch,
				ItemCode: item.ItemCode,
				Added:    item.Quantity,
			}
			if err := tx.Create(&receiver).Error; err != nil {
				return err
			}
			continue
		}
		if err != nil {
			return err
		}
		receiver.Added += item.Quantity
		if err := tx.Save(&receiver).Error; err != nil {
			return err
		}
	}
	return nil
}

// transferGrocery consumes the sender's batches FIFO and mints one receiver
// batch per draw, inheriting the source batch's expiry date. The receiver
// batch's added date is the transfer date.
func transferGrocery(tx *gorm.DB, req Request) error {
	for _, item := range req.Items {
		draws, err := grocery.ConsumeFIFO(tx, req.SenderBranch, item.ItemCode, item.Quantity)
		if err != nil {
			return err
		}
		for _, draw := range draws {
			received := database.GroceryBatch{
				BatchID:    draw.Batch.BatchID,
				ItemCode:   item.ItemCode,
				Branch:     req.ReceiverBranch,
				Quantity:   draw.Amount,
				Remaining:  draw.Amount,
				ExpiryDate: draw.Batch.ExpiryDate,
				AddedDate:  req.Date,
			}
			if err := tx.Create(&received).Error; err != nil {
				return err
			}
		}
	}
	return nil
}

// writeAuditEntries emits the sent/received pair, dated with the transfer
// date so history orders by when stock actually moved.
func writeAuditEntries(tx *gorm.DB, req Request, transferID uuid.UUID) error {
	items, err := itemDetails(tx, req.Items)
	if err != nil {
		return err
	}
	detailsJSON, err := json.Marshal(map[string]interface{}{
		"sender_branch":   req.SenderBranch,
		"receiver_branch": req.ReceiverBranch,
		"item_type":       req.ItemType,
		"items":           items,
	})
	if err != nil {
		return err
	}

	for _, entry := range []database.ActivityLog{
		{Branch: req.SenderBranch, Action: "stock_sent"},
		{Branch: req.ReceiverBranch, Action: "stock_received"},
	} {
		entry.EntityType = "transfer"
		entry.EntityID = &transferID
		entry.Username = req.ProcessedBy
		entry.Details = string(detailsJSON)
		entry.EntryDate = req.Date
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}
	}
	return nil
}

type auditItem struct {
	ItemCode string  `json:"item_code"`
	ItemName string  `json:"item_name"`
	Quantity float64 `json:"quantity"`
}

func itemDetails(tx *gorm.DB, items []ItemRequest) ([]auditItem, error) {
	codes := make([]string, 0, len(items))
	for _, item := range items {
		codes = append(codes, item.ItemCode)
	}
	var rows []database.Item
	if err := tx.Where("code IN ?", codes).Find(&rows).Error; err != nil {
		return nil, err
	}
	names := make(map[string]string, len(rows))
	for _, row := range rows {
		names[row.Code] = row.Name
	}

	details := make([]auditItem, 0, len(items))
	for _, item := range items {
		name := names[item.ItemCode]
		if name == "" {
			name = item.ItemCode
		}
		details = append(details, auditItem{ItemCode: item.ItemCode, ItemName: name, Quantity: item.Quantity})
	}
	return details, nil
}
