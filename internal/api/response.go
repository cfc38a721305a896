package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/energizer-project/craftcon/internal/client"
)

// ok writes the success envelope.
func ok(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

// fail writes the error envelope.
func fail(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"success": false, "error": message})
}

// failErr maps a console error to a status code and writes the envelope.
func failErr(c *gin.Context, what string, err error) {
	c.JSON(statusFor(err), gin.H{
		"success": false,
		"error":   fmt.Sprintf("%s: %v", what, err),
		"kind":    client.ErrorKind(err),
	})
}

func statusFor(err error) int {
	if errors.Is(err, client.ErrEmptyPlayerName) {
		return http.StatusBadRequest
	}
	switch client.ErrorKind(err) {
	case "unknown_action", "invalid_payload":
		return http.StatusBadRequest
	case "dial", "auth", "malformed", "closed":
		return http.StatusBadGateway
	case "timeout":
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
