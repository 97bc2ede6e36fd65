package notification

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/alfares/bakery-backend/pkg/apperr"
	"github.com/alfares/bakery-backend/pkg/database"
	"github.com/alfares/bakery-backend/pkg/response"
)

type Handler struct {
	db *gorm.DB
}

func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

type NotificationView struct {
	database.Notification
	ReadBy []string `json:"read_by"`
	Read   bool     `json:"read"`
}

// List returns notifications visible to the caller. Admins see everything;
// custom users see only their assigned branches.
func (h *Handler) List(c *gin.Context) {
	query := h.db.Model(&database.Notification{})

	if branch := c.Query("branch"); branch != "" {
		query = query.Where("branch = ?", branch)
	}

	// The token's role is authoritative. The userRole param can only narrow
	// the view (an admin previewing the restricted list), never widen it.
	userRole := c.GetString("role")
	if userRole == "" {
		userRole = c.Query("userRole")
	} else if param := c.Query("userRole"); param != "" && param != "admin" {
		userRole = param
	}
	if userRole != "admin" {
		var assigned []string
		if raw := c.Query("assignedBranches"); raw != "" {
			if err := json.Unmarshal([]byte(raw), &assigned); err != nil {
				response.Error(c, apperr.Validation("assignedBranches must be a JSON array of branch names"))
				return
			}
		}
		if len(assigned) == 0 {
			response.OK(c, gin.H{"notifications": []NotificationView{}})
			return
		}
		query = query.Where("branch IN ?", assigned)
	}

	var rows []database.Notification
	if err := query.Order("created_at DESC").Limit(200).Find(&rows).Error; err != nil {
		response.Error(c, err)
		return
	}

	userID := c.Query("userId")
	if userID == "" {
		userID = c.GetString("user_id")
	}

	views := make([]NotificationView, 0, len(rows))
	for _, row := range rows {
		view := NotificationView{Notification: row, ReadBy: readByList(row)}
		for _, id := range view.ReadBy {
			if id == userID {
				view.Read = true
				break
			}
		}
		views = append(views, view)
	}

	response.OK(c, gin.H{"notifications": views})
}

type MarkReadRequest struct {
	UserID string `json:"userId"`
}

// MarkRead adds the caller to the notification's read set. Idempotent.
func (h *Handler) MarkRead(c *gin.Context) {
	var req MarkReadRequest
	// body is optional; fall back to the token identity
	_ = c.ShouldBindJSON(&req)
	userID := req.UserID
	if userID == "" {
		userID = c.GetString("user_id")
	}
	if userID == "" {
		response.Error(c, apperr.Validation("userId is required"))
		return
	}

	var row database.Notification
	if err := h.db.Where("id = ?", c.Param("id")).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.Error(c, apperr.NotFound("notification not found"))
			return
		}
		response.Error(c, err)
		return
	}

	readBy := readByList(row)
	for _, id := range readBy {
		if id == userID {
			response.OK(c, gin.H{"notification": NotificationView{Notification: row, ReadBy: readBy, Read: true}})
			return
		}
	}
	readBy = append(readBy, userID)
	encoded, err := json.Marshal(readBy)
	if err != nil {
		response.Error(c, err)
		return
	}
	row.ReadBy = string(encoded)
	if err := h.db.Save(&row).Error; err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{"notification": NotificationView{Notification: row, ReadBy: readBy, Read: true}})
}

// Scan triggers one expiry scan on demand
func (h *Handler) Scan(c *gin.Context) {
	summary := ScanExpiring(h.db, time.Now())
	response.OK(c, gin.H{"summary": summary})
}

func readByList(row database.Notification) []string {
	var readBy []string
	if row.ReadBy != "" {
		_ = json.Unmarshal([]byte(row.ReadBy), &readBy)
	}
	if readBy == nil {
		readBy = []string{}
	}
	return readBy
}
