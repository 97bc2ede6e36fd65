package cash

import (
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

// List returns cash entries, optionally filtered by branch and date range
func (h *Handler) List(c *gin.Context) {
	query := h.db.Model(&database.CashEntry{})
	if branch := c.Query("branch"); branch != "" {
		query = query.Where("branch = ?", branch)
	}
	if start := c.Query("startDate"); start != "" {
		query = query.Where("date >= ?", start)
	}
	if end := c.Query("endDate"); end != "" {
		query = query.Where("date <= ?", end)
	}

	var entries []database.CashEntry
	if err := query.Order("date DESC, branch ASC").Find(&entries).Error; err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"entries": entries})
}

// Expected returns the computed expected-cash breakdown for a branch/date
func (h *Handler) Expected(c *gin.Context) {
	branch := c.Query("branch")
	date := c.Query("date")
	if branch == "" || date == "" {
		response.Error(c, apperr.Validation("branch and date are required"))
		return
	}
	if !database.ValidDate(date) {
		response.Error(c, apperr.Validation("date must be in YYYY-MM-DD format"))
		return
	}

	breakdown, err := ComputeExpected(h.db, branch, date)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"expected": breakdown})
}

// Create records the day's cash reconciliation for a branch
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err)
		return
	}
	if req.OperatorID == "" {
		req.OperatorID = c.GetString("user_id")
	}
	if req.OperatorName == "" {
		req.OperatorName = c.GetString("username")
	}

	entry, err := Create(h.db, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.logger.LogCreate(c, "cash_entry", entry.ID, req.Branch, gin.H{
		"date":       entry.Date,
		"expected":   entry.Expected,
		"actual":     entry.Actual,
		"difference": entry.Difference,
		"status":     entry.Status,
	})
	response.Created(c, gin.H{"entry": entry})
}
