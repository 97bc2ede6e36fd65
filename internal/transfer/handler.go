package transfer

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/alfares/bakery-backend/pkg/database"
	"github.com/alfares/bakery-backend/pkg/response"
)

type Handler struct {
	db *gorm.DB
}

func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// List returns transfer history, optionally filtered by branch and date range
func (h *Handler) List(c *gin.Context) {
	query := h.db.Model(&database.TransferRecord{}).Preload("Items")

	if branch := c.Query("branch"); branch != "" {
		query = query.Where("sender_branch = ? OR receiver_branch = ?", branch, branch)
	}
	if start := c.Query("startDate"); start != "" {
		query = query.Where("date >= ?", start)
	}
	if end := c.Query("endDate"); end != "" {
		query = query.Where("date <= ?", end)
	}

	var transfers []database.TransferRecord
	if err := query.Order("date DESC, processed_at DESC").Find(&transfers).Error; err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{"transfers": transfers})
}

// Create executes a transfer between two branches
func (h *Handler) Create(c *gin.Context) {
	var req Request
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err)
		return
	}
	if req.ProcessedBy == "" {
		req.ProcessedBy = c.GetString("username")
	}

	record, err := Execute(h.db, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, gin.H{"transfer": record})
}
