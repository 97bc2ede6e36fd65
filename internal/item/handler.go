package item

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

type CreateItemRequest struct {
	Code         string  `json:"code" binding:"required"`
	Name         string  `json:"name" binding:"required"`
	ItemType     string  `json:"itemType" binding:"required"`
	Category     string  `json:"category"`
	Subcategory  string  `json:"subcategory"`
	Price        float64 `json:"price" binding:"min=0"`
	SoldByWeight bool    `json:"soldByWeight"`
	NotifyExpiry bool    `json:"notifyExpiry"`
}

type UpdateItemRequest struct {
	Name         string   `json:"name"`
	Category     string   `json:"category"`
	Subcategory  string   `json:"subcategory"`
	Price        *float64 `json:"price"`
	SoldByWeight *bool    `json:"soldByWeight"`
	NotifyExpiry *bool    `json:"notifyExpiry"`
}

// List returns the item catalog, optionally filtered by type
func (h *Handler) List(c *gin.Context) {
	query := h.db.Model(&database.Item{})
	if itemType := c.Query("itemType"); itemType != "" {
		query = query.Where("item_type = ?", itemType)
	}
	if category := c.Query("category"); category != "" {
		query = query.Where("category = ?", category)
	}

	var items []database.Item
	if err := query.Order("name ASC").Find(&items).Error; err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"items": items})
}

// Get returns a single item by id
func (h *Handler) Get(c *gin.Context) {
	var item database.Item
	if err := h.db.Where("id = ?", c.Param("id")).First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.Error(c, apperr.NotFound("item not found"))
			return
		}
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"item": item})
}

// Create adds a catalog item. The code is immutable afterwards.
func (h *Handler) Create(c *gin.Context) {
	var req CreateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err)
		return
	}
	if !validItemType(req.ItemType) {
		response.Error(c, apperr.Validation("itemType must be Normal, Grocery or Machine"))
		return
	}

	var existing int64
	h.db.Model(&database.Item{}).Where("code = ?", req.Code).Count(&existing)
	if existing > 0 {
		response.Error(c, apperr.Conflict("an item with code %s already exists", req.Code))
		return
	}

	item := database.Item{
		Code:         req.Code,
		Name:         req.Name,
		ItemType:     req.ItemType,
		Category:     req.Category,
		Subcategory:  req.Subcategory,
		Price:        req.Price,
		SoldByWeight: req.SoldByWeight,
		NotifyExpiry: req.NotifyExpiry,
	}
	if err := h.db.Create(&item).Error; err != nil {
		response.Error(c, err)
		return
	}

	h.logger.LogCreate(c, "item", item.ID, "", gin.H{"code": item.Code, "name": item.Name})
	response.Created(c, gin.H{"item": item})
}

// Update mutates the item's mutable fields; code and type stay fixed
func (h *Handler) Update(c *gin.Context) {
	var req UpdateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err)
		return
	}

	var item database.Item
	if err := h.db.Where("id = ?", c.Param("id")).First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.Error(c, apperr.NotFound("item not found"))
			return
		}
		response.Error(c, err)
		return
	}

	old := item
	if req.Name != "" {
		item.Name = req.Name
	}
	if req.Category != "" {
		item.Category = req.Category
	}
	if req.Subcategory != "" {
		item.Subcategory = req.Subcategory
	}
	if req.Price != nil {
		if *req.Price < 0 {
			response.Error(c, apperr.Validation("price cannot be negative"))
			return
		}
		item.Price = *req.Price
	}
	if req.SoldByWeight != nil {
		item.SoldByWeight = *req.SoldByWeight
	}
	if req.NotifyExpiry != nil {
		item.NotifyExpiry = *req.NotifyExpiry
	}

	if err := h.db.Save(&item).Error; err != nil {
		response.Error(c, err)
		return
	}

	h.logger.LogUpdate(c, "item", item.ID, "", gin.H{"name": old.Name, "price": old.Price}, gin.H{"name": item.Name, "price": item.Price})
	response.OK(c, gin.H{"item": item})
}

// Delete removes an item, refused while any ledger still references its code
func (h *Handler) Delete(c *gin.Context) {
	var item database.Item
	if err := h.db.Where("id = ?", c.Param("id")).First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.Error(c, apperr.NotFound("item not found"))
			return
		}
		response.Error(c, err)
		return
	}

	referencers := []struct {
		model interface{}
		label string
	}{
		{&database.StockEntry{}, "stock entries"},
		{&database.GroceryBatch{}, "grocery batches"},
		{&database.GrocerySale{}, "grocery sales"},
		{&database.TransferItem{}, "transfers"},
	}
	for _, ref := range referencers {
		var count int64
		if err := h.db.Model(ref.model).Where("item_code = ?", item.Code).Count(&count).Error; err != nil {
			response.Error(c, err)
			return
		}
		if count > 0 {
			response.Error(c, apperr.Conflict("item %s cannot be deleted: %s reference it", item.Code, ref.label))
			return
		}
	}

	if err := h.db.Delete(&item).Error; err != nil {
		response.Error(c, err)
		return
	}

	h.logger.LogDelete(c, "item", item.ID, "", gin.H{"code": item.Code, "name": item.Name})
	response.Message(c, "Item deleted")
}

func validItemType(t string) bool {
	switch t {
	case database.ItemTypeNormal, database.ItemTypeGrocery, database.ItemTypeMachine:
		return true
	}
	return false
}
