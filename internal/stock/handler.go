package stock

import (
	"errors"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/alfares/bakery-backend/pkg/activitylog"
	"github.com/alfares/bakery-backend/pkg/apperr"
	"github.com/alfares/bakery-backend/pkg/database"
	"github.com/alfares/bakery-backend/pkg/response"
)

type Handler struct {
	db     *gorm.DB
	logger *activitylog.Logger
}

func NewHandler(db *gorm.DB) *Handler {
	return &Handler{
		db:     db,
		logger: activitylog.NewLogger(db),
	}
}

type MovementRequest struct {
	Date     string  `json:"date" binding:"required"`
	Branch   string  `json:"branch" binding:"required"`
	ItemCode string  `json:"itemCode" binding:"required"`
	Quantity float64 `json:"quantity" binding:"required"`
}

type FinishRequest struct {
	Date   string `json:"date" binding:"required"`
	Branch string `json:"branch" binding:"required"`
}

type StockRow struct {
	database.StockEntry
	ItemName  string  `json:"item_name"`
	Price     float64 `json:"price"`
	Available float64 `json:"available"`
	Finished  bool    `json:"finished"`
}

// List returns ledger rows for a date/branch with item details joined in
func (h *Handler) List(c *gin.Context) {
	date := c.Query("date")
	branch := c.Query("branch")

	query := h.db.Model(&database.StockEntry{})
	if date != "" {
		query = query.Where("date = ?", date)
	}
	if branch != "" {
		query = query.Where("branch = ?", branch)
	}

	var entries []database.StockEntry
	if err := query.Order("date DESC, item_code ASC").Find(&entries).Error; err != nil {
		response.Error(c, err)
		return
	}

	items, err := itemsByCode(h.db, codesOf(entries))
	if err != nil {
		response.Error(c, err)
		return
	}

	finished, err := finishedSet(h.db, date, branch)
	if err != nil {
		response.Error(c, err)
		return
	}

	rows := make([]StockRow, 0, len(entries))
	for _, e := range entries {
		row := StockRow{StockEntry: e, ItemName: e.ItemCode, Available: e.Available(), Finished: finished[e.Date+"|"+e.Branch]}
		if item, ok := items[e.ItemCode]; ok {
			row.ItemName = item.Name
			row.Price = item.Price
		}
		rows = append(rows, row)
	}

	response.OK(c, gin.H{"stocks": rows})
}

// Add records newly added stock for a Normal item
func (h *Handler) Add(c *gin.Context) {
	var req MovementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err)
		return
	}

	if err := h.validateRequest(req); err != nil {
		response.Error(c, err)
		return
	}

	entry, err := AddStock(h.db, req.Date, req.Branch, req.ItemCode, req.Quantity)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.logger.LogActivity(c, "stock_added", "stock", &entry.ID, req.Branch, req.Date, gin.H{
		"item_code": req.ItemCode,
		"quantity":  req.Quantity,
	})
	response.Created(c, gin.H{"stock": entry})
}

// Return records returned stock for a Normal item
func (h *Handler) Return(c *gin.Context) {
	var req MovementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err)
		return
	}

	if err := h.validateRequest(req); err != nil {
		response.Error(c, err)
		return
	}

	entry, err := ReturnStock(h.db, req.Date, req.Branch, req.ItemCode, req.Quantity)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.logger.LogActivity(c, "stock_returned", "stock", &entry.ID, req.Branch, req.Date, gin.H{
		"item_code": req.ItemCode,
		"quantity":  req.Quantity,
	})
	response.OK(c, gin.H{"stock": entry})
}

// Finish closes the day's batch for a branch
func (h *Handler) Finish(c *gin.Context) {
	var req FinishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err)
		return
	}
	if !database.ValidDate(req.Date) {
		response.Error(c, apperr.Validation("date must be in YYYY-MM-DD format"))
		return
	}

	if err := FinishBatch(h.db, req.Date, req.Branch, c.GetString("username")); err != nil {
		response.Error(c, err)
		return
	}

	h.logger.LogActivity(c, "batch_finished", "stock", nil, req.Branch, req.Date, nil)
	response.Message(c, "Stock batch finished")
}

func (h *Handler) validateRequest(req MovementRequest) error {
	if !database.ValidDate(req.Date) {
		return apperr.Validation("date must be in YYYY-MM-DD format")
	}

	var branch database.Branch
	if err := h.db.Where("name = ?", req.Branch).First(&branch).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("branch %s not found", req.Branch)
		}
		return err
	}

	var item database.Item
	if err := h.db.Where("code = ?", req.ItemCode).First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("item %s not found", req.ItemCode)
		}
		return err
	}
	if item.ItemType != database.ItemTypeNormal {
		return apperr.Validation("item %s is not a Normal item", req.ItemCode)
	}
	return nil
}

// finishedSet loads all finished markers matching the listing filters in one
// query, keyed "date|branch".
func finishedSet(db *gorm.DB, date, branch string) (map[string]bool, error) {
	query := db.Model(&database.FinishedBatch{})
	if date != "" {
		query = query.Where("date = ?", date)
	}
	if branch != "" {
		query = query.Where("branch = ?", branch)
	}

	var markers []database.FinishedBatch
	if err := query.Find(&markers).Error; err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(markers))
	for _, m := range markers {
		set[m.Date+"|"+m.Branch] = true
	}
	return set, nil
}

func codesOf(entries []database.StockEntry) []string {
	codes := make([]string, 0, len(entries))
	for _, e := range entries {
		codes = append(codes, e.ItemCode)
	}
	return codes
}

func itemsByCode(db *gorm.DB, codes []string) (map[string]database.Item, error) {
	result := make(map[string]database.Item)
	if len(codes) == 0 {
		return result, nil
	}
	var items []database.Item
	if err := db.Where("code IN ?", codes).Find(&items).Error; err != nil {
		return nil, err
	}
	for _, item := range items {
		result[item.Code] = item
	}
	return result, nil
}
