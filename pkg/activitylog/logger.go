package activitylog

import (
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/alfares/bakery-backend/pkg/database"
)

// Logger handles activity logging for audit trail
type Logger struct {
	db *gorm.DB
}

// NewLogger creates a new activity logger
func NewLogger(db *gorm.DB) *Logger {
	return &Logger{db: db}
}

// LogActivity creates an activity log entry. entryDate is the business date
// the action belongs to; pass "" to use today.
func (l *Logger) LogActivity(c *gin.Context, action, entityType string, entityID *uuid.UUID, branch, entryDate string, details interface{}) error {
	var userID *uuid.UUID
	if parsed, err := uuid.Parse(c.GetString("user_id")); err == nil {
		userID = &parsed
	}

	if entryDate == "" {
		entryDate = time.Now().Format(database.DateLayout)
	}

	detailsJSON := ""
	if details != nil {
		if jsonBytes, err := json.Marshal(details); err == nil {
			detailsJSON = string(jsonBytes)
		}
	}

	entry := database.ActivityLog{
		UserID:     userID,
		Username:   c.GetString("username"),
		Branch:     branch,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Details:    detailsJSON,
		IPAddress:  c.ClientIP(),
		EntryDate:  entryDate,
	}

	return l.db.Create(&entry).Error
}

// LogCreate logs a create action
func (l *Logger) LogCreate(c *gin.Context, entityType string, entityID uuid.UUID, branch string, newData interface{}) error {
	return l.LogActivity(c, "create", entityType, &entityID, branch, "", map[string]interface{}{
		"new": newData,
	})
}

// LogUpdate logs an update action with old and new values
func (l *Logger) LogUpdate(c *gin.Context, entityType string, entityID uuid.UUID, branch string, oldData, newData interface{}) error {
	return l.LogActivity(c, "update", entityType, &entityID, branch, "", map[string]interface{}{
		"old": oldData,
		"new": newData,
	})
}

// LogDelete logs a delete action
func (l *Logger) LogDelete(c *gin.Context, entityType string, entityID uuid.UUID, branch string, oldData interface{}) error {
	return l.LogActivity(c, "delete", entityType, &entityID, branch, "", map[string]interface{}{
		"deleted": oldData,
	})
}
