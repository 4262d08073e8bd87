package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"ta-signal-bot/internal/configstore"
)

// Error codes surfaced in the error envelope.
const (
	codeValidation = "VALIDATION_ERROR"
	codeNotFound   = "NOT_FOUND"
	codeBadRequest = "BAD_REQUEST"
	codeInternal   = "INTERNAL_ERROR"
)

// respond writes the success envelope.
func respond(c *gin.Context, status int, data interface{}, metadata gin.H) {
	body := gin.H{"success": true, "data": data}
	if metadata != nil {
		body["metadata"] = metadata
	}
	c.JSON(status, body)
}

// respondError writes the error envelope.
func respondError(c *gin.Context, status int, code, message string, details interface{}) {
	errBody := gin.H{"code": code, "message": message}
	if details != nil {
		errBody["details"] = details
	}
	c.JSON(status, gin.H{"success": false, "error": errBody})
}

// respondFromErr maps the config layer's error types onto envelopes.
func respondFromErr(c *gin.Context, err error) {
	var verr *configstore.ValidationError
	switch {
	case errors.As(err, &verr):
		respondError(c, http.StatusBadRequest, codeValidation, "configuration rejected", verr.Details)
	case errors.Is(err, configstore.ErrNotFound):
		respondError(c, http.StatusNotFound, codeNotFound, "config not found", nil)
	default:
		respondError(c, http.StatusInternalServerError, codeInternal, err.Error(), nil)
	}
}
