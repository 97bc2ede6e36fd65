package machine

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

type CreateBatchRequest struct {
	Branch       string  `json:"branch" binding:"required"`
	Date         string  `json:"date" binding:"required"`
	MachineName  string  `json:"machineName" binding:"required"`
	StartReading float64 `json:"startReading" binding:"min=0"`
}

type FinishBatchRequest struct {
	EndReading float64 `json:"endReading" binding:"min=0"`
	TotalCash  float64 `json:"totalCash" binding:"min=0"`
}

// ListBatches returns machine batches for a branch/date
func (h *Handler) ListBatches(c *gin.Context) {
	query := h.db.Model(&database.MachineBatch{})
	if branch := c.Query("branch"); branch != "" {
		query = query.Where("branch = ?", branch)
	}
	if date := c.Query("date"); date != "" {
		query = query.Where("date = ?", date)
	}

	var batches []database.MachineBatch
	if err := query.Order("date DESC, machine_name ASC").Find(&batches).Error; err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"batches": batches})
}

// CreateBatch opens an active machine batch
func (h *Handler) CreateBatch(c *gin.Context) {
	var req CreateBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err)
		return
	}
	if !database.ValidDate(req.Date) {
		response.Error(c, apperr.Validation("date must be in YYYY-MM-DD format"))
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

	batch := database.MachineBatch{
		Branch:       req.Branch,
		Date:         req.Date,
		MachineName:  req.MachineName,
		StartReading: req.StartReading,
		Status:       database.MachineBatchActive,
	}
	if err := h.db.Create(&batch).Error; err != nil {
		response.Error(c, err)
		return
	}

	h.logger.LogCreate(c, "machine_batch", batch.ID, req.Branch, gin.H{
		"machine":       batch.MachineName,
		"start_reading": batch.StartReading,
	})
	response.Created(c, gin.H{"batch": batch})
}

// FinishBatch closes a machine batch and records its metered sale
func (h *Handler) FinishBatch(c *gin.Context) {
	var req FinishBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err)
		return
	}

	var batch database.MachineBatch
	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", c.Param("id")).First(&batch).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("machine batch not found")
			}
			return err
		}
		if batch.Status == database.MachineBatchFinished {
			return apperr.Conflict("machine batch is already finished")
		}
		if req.EndReading < batch.StartReading {
			return apperr.Validation("end reading cannot be below start reading")
		}

		batch.EndReading = req.EndReading
		batch.Status = database.MachineBatchFinished
		if err := tx.Save(&batch).Error; err != nil {
			return err
		}

		sale := database.MachineSale{
			Branch:    batch.Branch,
			Date:      batch.Date,
			Quantity:  req.EndReading - batch.StartReading,
			TotalCash: req.TotalCash,
		}
		return tx.Create(&sale).Error
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	h.logger.LogActivity(c, "machine_batch_finished", "machine_batch", &batch.ID, batch.Branch, batch.Date, gin.H{
		"machine":     batch.MachineName,
		"end_reading": batch.EndReading,
		"total_cash":  req.TotalCash,
	})
	response.OK(c, gin.H{"batch": batch})
}

// ListSales returns machine sales for a branch/date
func (h *Handler) ListSales(c *gin.Context) {
	query := h.db.Model(&database.MachineSale{})
	if branch := c.Query("branch"); branch != "" {
		query = query.Where("branch = ?", branch)
	}
	if date := c.Query("date"); date != "" {
		query = query.Where("date = ?", date)
	}

	var sales []database.MachineSale
	if err := query.Order("date DESC").Find(&sales).Error; err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"sales": sales})
}
