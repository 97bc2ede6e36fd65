package grocery

import (
	"errors"
	"time"

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

type CreateBatchRequest struct {
	BatchID    string  `json:"batchId" binding:"required"`
	ItemCode   string  `json:"itemCode" binding:"required"`
	Branch     string  `json:"branch" binding:"required"`
	Quantity   float64 `json:"quantity" binding:"required,gt=0"`
	ExpiryDate string  `json:"expiryDate" binding:"required"`
	AddedDate  string  `json:"addedDate"`
}

type SaleRequest struct {
	Branch    string  `json:"branch" binding:"required"`
	Date      string  `json:"date" binding:"required"`
	ItemCode  string  `json:"itemCode" binding:"required"`
	Quantity  float64 `json:"quantity" binding:"required,gt=0"`
	TotalCash float64 `json:"totalCash" binding:"min=0"`
}

type ReturnRequest struct {
	Branch   string  `json:"branch" binding:"required"`
	Date     string  `json:"date" binding:"required"`
	ItemCode string  `json:"itemCode" binding:"required"`
	Quantity float64 `json:"quantity" binding:"required,gt=0"`
	Reason   string  `json:"reason"`
}

// ListBatches returns grocery batches, optionally filtered by branch and item
func (h *Handler) ListBatches(c *gin.Context) {
	query := h.db.Model(&database.GroceryBatch{})
	if branch := c.Query("branch"); branch != "" {
		query = query.Where("branch = ?", branch)
	}
	if itemCode := c.Query("itemCode"); itemCode != "" {
		query = query.Where("item_code = ?", itemCode)
	}

	var batches []database.GroceryBatch
	if err := query.Order("expiry_date ASC, added_date ASC").Find(&batches).Error; err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{"batches": batches})
}

// CreateBatch adds a new grocery batch
func (h *Handler) CreateBatch(c *gin.Context) {
	var req CreateBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err)
		return
	}
	if !database.ValidDate(req.ExpiryDate) {
		response.Error(c, apperr.Validation("expiryDate must be in YYYY-MM-DD format"))
		return
	}
	if req.AddedDate == "" {
		req.AddedDate = time.Now().Format(database.DateLayout)
	} else if !database.ValidDate(req.AddedDate) {
		response.Error(c, apperr.Validation("addedDate must be in YYYY-MM-DD format"))
		return
	}

	item, err := h.groceryItem(req.ItemCode)
	if err != nil {
		response.Error(c, err)
		return
	}

	var branch database.Branch
	if err := h.db.Where("name = ?", req.Branch).First(&branch).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.Error(c, apperr.NotFound("branch %s not found", req.Branch))
			return
		}
		response.Error(c, err)
		return
	}

	batch := database.GroceryBatch{
		BatchID:    req.BatchID,
		ItemCode:   item.Code,
		Branch:     req.Branch,
		Quantity:   req.Quantity,
		Remaining:  req.Quantity,
		ExpiryDate: req.ExpiryDate,
		AddedDate:  req.AddedDate,
	}
	if err := h.db.Create(&batch).Error; err != nil {
		response.Error(c, err)
		return
	}

	h.logger.LogCreate(c, "grocery_batch", batch.ID, req.Branch, gin.H{
		"batch_id":  batch.BatchID,
		"item_code": batch.ItemCode,
		"quantity":  batch.Quantity,
		"expiry":    batch.ExpiryDate,
	})
	response.Created(c, gin.H{"batch": batch})
}

// CreateSale records a grocery sale, consuming stock FIFO
func (h *Handler) CreateSale(c *gin.Context) {
	var req SaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err)
		return
	}
	if !database.ValidDate(req.Date) {
		response.Error(c, apperr.Validation("date must be in YYYY-MM-DD format"))
		return
	}
	if _, err := h.groceryItem(req.ItemCode); err != nil {
		response.Error(c, err)
		return
	}

	sale, err := RecordSale(h.db, req.Branch, req.Date, req.ItemCode, req.Quantity, req.TotalCash)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.logger.LogCreate(c, "grocery_sale", sale.ID, req.Branch, gin.H{
		"item_code":  sale.ItemCode,
		"quantity":   sale.Quantity,
		"total_cash": sale.TotalCash,
	})
	response.Created(c, gin.H{"sale": sale})
}

// ListSales returns grocery sales for a branch/date
func (h *Handler) ListSales(c *gin.Context) {
	query := h.db.Model(&database.GrocerySale{})
	if branch := c.Query("branch"); branch != "" {
		query = query.Where("branch = ?", branch)
	}
	if date := c.Query("date"); date != "" {
		query = query.Where("date = ?", date)
	}

	var sales []database.GrocerySale
	if err := query.Order("created_at DESC").Find(&sales).Error; err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"sales": sales})
}

// CreateReturn records a grocery return, consuming stock FIFO
func (h *Handler) CreateReturn(c *gin.Context) {
	var req ReturnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err)
		return
	}
	if !database.ValidDate(req.Date) {
		response.Error(c, apperr.Validation("date must be in YYYY-MM-DD format"))
		return
	}
	if _, err := h.groceryItem(req.ItemCode); err != nil {
		response.Error(c, err)
		return
	}

	ret, err := RecordReturn(h.db, req.Branch, req.Date, req.ItemCode, req.Quantity, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.logger.LogCreate(c, "grocery_return", ret.ID, req.Branch, gin.H{
		"item_code": ret.ItemCode,
		"quantity":  ret.Quantity,
	})
	response.Created(c, gin.H{"return": ret})
}

// ListReturns returns grocery returns for a branch/date
func (h *Handler) ListReturns(c *gin.Context) {
	query := h.db.Model(&database.GroceryReturn{})
	if branch := c.Query("branch"); branch != "" {
		query = query.Where("branch = ?", branch)
	}
	if date := c.Query("date"); date != "" {
		query = query.Where("date = ?", date)
	}

	var returns []database.GroceryReturn
	if err := query.Order("created_at DESC").Find(&returns).Error; err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"returns": returns})
}

// CompleteReturn marks a return as completed, unblocking the day's cash entry
func (h *Handler) CompleteReturn(c *gin.Context) {
	id := c.Param("id")

	var ret database.GroceryReturn
	if err := h.db.Where("id = ?", id).First(&ret).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.Error(c, apperr.NotFound("grocery return not found"))
			return
		}
		response.Error(c, err)
		return
	}

	if !ret.Completed {
		ret.Completed = true
		if err := h.db.Save(&ret).Error; err != nil {
			response.Error(c, err)
			return
		}
	}

	response.OK(c, gin.H{"return": ret})
}

func (h *Handler) groceryItem(code string) (*database.Item, error) {
	var item database.Item
	if err := h.db.Where("code = ?", code).First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("item %s not found", code)
		}
		return nil, err
	}
	if item.ItemType != database.ItemTypeGrocery {
		return nil, apperr.Validation("item %s is not a Grocery item", code)
	}
	return &item, nil
}
