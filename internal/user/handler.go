package user

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
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

type CreateUserRequest struct {
	Username         string   `json:"username" binding:"required"`
	FullName         string   `json:"fullName" binding:"required"`
	Email            string   `json:"email"`
	Password         string   `json:"password" binding:"required,min=6"`
	Role             string   `json:"role" binding:"required,oneof=admin custom"`
	Accesses         []string `json:"accesses"`
	AssignedBranches []string `json:"assignedBranches"`
}

type UpdateUserRequest struct {
	FullName         string    `json:"fullName"`
	Email            string    `json:"email"`
	Password         string    `json:"password"`
	Role             string    `json:"role"`
	Accesses         *[]string `json:"accesses"`
	AssignedBranches *[]string `json:"assignedBranches"`
	Status           string    `json:"status"`
}

// UserView exposes the JSON-array fields decoded
type UserView struct {
	database.User
	Accesses         []string `json:"accesses"`
	AssignedBranches []string `json:"assigned_branches"`
}

// List returns all users
func (h *Handler) List(c *gin.Context) {
	var users []database.User
	if err := h.db.Order("username ASC").Find(&users).Error; err != nil {
		response.Error(c, err)
		return
	}

	views := make([]UserView, 0, len(users))
	for _, u := range users {
		views = append(views, toView(u))
	}
	response.OK(c, gin.H{"users": views})
}

// Create provisions a user. Usernames are case-insensitive and unique.
func (h *Handler) Create(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err)
		return
	}

	username := strings.ToLower(strings.TrimSpace(req.Username))
	var existing int64
	h.db.Model(&database.User{}).Where("username = ?", username).Count(&existing)
	if existing > 0 {
		response.Error(c, apperr.Conflict("username %s is already taken", username))
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		response.Error(c, err)
		return
	}

	user := database.User{
		Username:         username,
		FullName:         req.FullName,
		Email:            req.Email,
		PasswordHash:     string(hashed),
		Role:             req.Role,
		Accesses:         encodeList(req.Accesses),
		AssignedBranches: encodeList(req.AssignedBranches),
		Status:           "active",
	}
	if err := h.db.Create(&user).Error; err != nil {
		response.Error(c, err)
		return
	}

	h.logger.LogCreate(c, "user", user.ID, "", gin.H{"username": user.Username, "role": user.Role})
	response.Created(c, gin.H{"user": toView(user)})
}

// Update mutates a user's profile, capabilities, or password
func (h *Handler) Update(c *gin.Context) {
	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err)
		return
	}

	var user database.User
	if err := h.db.Where("id = ?", c.Param("id")).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.Error(c, apperr.NotFound("user not found"))
			return
		}
		response.Error(c, err)
		return
	}

	if req.FullName != "" {
		user.FullName = req.FullName
	}
	if req.Email != "" {
		user.Email = req.Email
	}
	if req.Role != "" {
		if req.Role != "admin" && req.Role != "custom" {
			response.Error(c, apperr.Validation("role must be admin or custom"))
			return
		}
		user.Role = req.Role
	}
	if req.Status != "" {
		if req.Status != "active" && req.Status != "disabled" {
			response.Error(c, apperr.Validation("status must be active or disabled"))
			return
		}
		user.Status = req.Status
	}
	if req.Accesses != nil {
		user.Accesses = encodeList(*req.Accesses)
	}
	if req.AssignedBranches != nil {
		user.AssignedBranches = encodeList(*req.AssignedBranches)
	}
	if req.Password != "" {
		if len(req.Password) < 6 {
			response.Error(c, apperr.Validation("password must be at least 6 characters"))
			return
		}
		hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			response.Error(c, err)
			return
		}
		user.PasswordHash = string(hashed)
	}

	if err := h.db.Save(&user).Error; err != nil {
		response.Error(c, err)
		return
	}

	h.logger.LogUpdate(c, "user", user.ID, "", nil, gin.H{"role": user.Role, "status": user.Status})
	response.OK(c, gin.H{"user": toView(user)})
}

// Delete removes a user
func (h *Handler) Delete(c *gin.Context) {
	var user database.User
	if err := h.db.Where("id = ?", c.Param("id")).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.Error(c, apperr.NotFound("user not found"))
			return
		}
		response.Error(c, err)
		return
	}

	if user.ID.String() == c.GetString("user_id") {
		response.Error(c, apperr.Validation("you cannot delete your own account"))
		return
	}

	if err := h.db.Delete(&user).Error; err != nil {
		response.Error(c, err)
		return
	}

	h.logger.LogDelete(c, "user", user.ID, "", gin.H{"username": user.Username})
	response.Message(c, "User deleted")
}

// ListActivityLogs returns the audit trail, newest business date first
func (h *Handler) ListActivityLogs(c *gin.Context) {
	query := h.db.Model(&database.ActivityLog{})
	if branch := c.Query("branch"); branch != "" {
		query = query.Where("branch = ?", branch)
	}
	if action := c.Query("action"); action != "" {
		query = query.Where("action = ?", action)
	}

	var logs []database.ActivityLog
	if err := query.Order("entry_date DESC, created_at DESC").Limit(500).Find(&logs).Error; err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"logs": logs})
}

func toView(u database.User) UserView {
	return UserView{
		User:             u,
		Accesses:         decodeList(u.Accesses),
		AssignedBranches: decodeList(u.AssignedBranches),
	}
}

func encodeList(list []string) string {
	if list == nil {
		list = []string{}
	}
	encoded, _ := json.Marshal(list)
	return string(encoded)
}

func decodeList(raw string) []string {
	var list []string
	if raw != "" {
		_ = json.Unmarshal([]byte(raw), &list)
	}
	if list == nil {
		list = []string{}
	}
	return list
}
