package reports

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/alfares/bakery-backend/pkg/response"
)

type Handler struct {
	db *gorm.DB
}

func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// Generate builds a report from the posted filters
func (h *Handler) Generate(c *gin.Context) {
	var req Request
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err)
		return
	}

	report, err := BuildReport(h.db, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"report": report})
}
