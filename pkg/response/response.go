package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/alfares/bakery-backend/pkg/apperr"
)

// All API responses use the envelope {success, message?, <dataKey>...}.

// OK writes a 200 envelope with the given data keys merged in.
func OK(c *gin.Context, data gin.H) {
	write(c, http.StatusOK, data)
}

// Created writes a 201 envelope with the given data keys merged in.
func Created(c *gin.Context, data gin.H) {
	write(c, http.StatusCreated, data)
}

// Message writes a 200 envelope carrying only a message.
func Message(c *gin.Context, message string) {
	c.JSON(http.StatusOK, gin.H{"success": true, "message": message})
}

// Error converts an application error into the failure envelope. Unclassified
// errors are logged and surface as a generic 500 message.
func Error(c *gin.Context, err error) {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		c.JSON(ae.HTTPStatus(), gin.H{"success": false, "message": ae.Message})
		return
	}
	log.Error().Err(err).Str("path", c.FullPath()).Msg("unhandled error")
	c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Something went wrong"})
}

// ValidationError is a shortcut for request binding failures.
func ValidationError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
}

func write(c *gin.Context, status int, data gin.H) {
	payload := gin.H{"success": true}
	for k, v := range data {
		payload[k] = v
	}
	c.JSON(status, payload)
}
