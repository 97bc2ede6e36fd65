package branch

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

type CreateBranchRequest struct {
	Name    string `json:"name" binding:"required"`
	Address string `json:"address" binding:"required"`
	Manager string `json:"manager" binding:"required"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
}

type UpdateBranchRequest struct {
	Address string `json:"address"`
	Manager string `json:"manager"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
}

// List returns all branches
func (h *Handler) List(c *gin.Context) {
	var branches []database.Branch
	if err := h.db.Order("name ASC").Find(&branches).Error; err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"branches": branches})
}

// Get returns a single branch
func (h *Handler) Get(c *gin.Context) {
	var branch database.Branch
	if err := h.db.Where("id = ?", c.Param("id")).First(&branch).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.Error(c, apperr.NotFound("branch not found"))
			return
		}
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"branch": branch})
}

// Create adds a branch. The name is the key other records reference.
func (h *Handler) Create(c *gin.Context) {
	var req CreateBranchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err)
		return
	}

	var existing int64
	h.db.Model(&database.Branch{}).Where("name = ?", req.Name).Count(&existing)
	if existing > 0 {
		response.Error(c, apperr.Conflict("a branch named %s already exists", req.Name))
		return
	}

	branch := database.Branch{
		Name:    req.Name,
		Address: req.Address,
		Manager: req.Manager,
		Phone:   req.Phone,
		Email:   req.Email,
	}
	if err := h.db.Create(&branch).Error; err != nil {
		response.Error(c, err)
		return
	}

	h.logger.LogCreate(c, "branch", branch.ID, branch.Name, gin.H{"name": branch.Name, "manager": branch.Manager})
	response.Created(c, gin.H{"branch": branch})
}

// Update mutates branch details; the name stays fixed since ledgers key on it
func (h *Handler) Update(c *gin.Context) {
	var req UpdateBranchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err)
		return
	}

	var branch database.Branch
	if err := h.db.Where("id = ?", c.Param("id")).First(&branch).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.Error(c, apperr.NotFound("branch not found"))
			return
		}
		response.Error(c, err)
		return
	}

	if req.Address != "" {
		branch.Address = req.Address
	}
	if req.Manager != "" {
		branch.Manager = req.Manager
	}
	if req.Phone != "" {
		branch.Phone = req.Phone
	}
	if req.Email != "" {
		branch.Email = req.Email
	}

	if err := h.db.Save(&branch).Error; err != nil {
		response.Error(c, err)
		return
	}

	h.logger.LogUpdate(c, "branch", branch.ID, branch.Name, nil, gin.H{"manager": branch.Manager})
	response.OK(c, gin.H{"branch": branch})
}

// Delete removes a branch, refused while any ledger references its name
func (h *Handler) Delete(c *gin.Context) {
	var branch database.Branch
	if err := h.db.Where("id = ?", c.Param("id")).First(&branch).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.Error(c, apperr.NotFound("branch not found"))
			return
		}
		response.Error(c, err)
		return
	}

	var stockRows, cashRows, batchRows int64
	h.db.Model(&database.StockEntry{}).Where("branch = ?", branch.Name).Count(&stockRows)
	h.db.Model(&database.CashEntry{}).Where("branch = ?", branch.Name).Count(&cashRows)
	h.db.Model(&database.GroceryBatch{}).Where("branch = ?", branch.Name).Count(&batchRows)
	if stockRows+cashRows+batchRows > 0 {
		response.Error(c, apperr.Conflict("branch %s cannot be deleted while ledgers reference it", branch.Name))
		return
	}

	if err := h.db.Delete(&branch).Error; err != nil {
		response.Error(c, err)
		return
	}

	h.logger.LogDelete(c, "branch", branch.ID, branch.Name, gin.H{"name": branch.Name})
	response.Message(c, "Branch deleted")
}
