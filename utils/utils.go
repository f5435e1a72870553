package utils

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

const genericServerError = "An unexpected error occurred. Please try again later."

// SendJSONError sends a standardized JSON error response and logs the internal error.
// For 5xx errors with no public message, or one that repeats the internal error, a generic
// message is sent instead. Extra fields are merged into the response body.
func SendJSONError(c *gin.Context, statusCode int, publicMsg string, internalError error, fields ...gin.H) {
	response := gin.H{"error": publicMsg}
	for _, extra := range fields {
		for k, v := range extra {
			response[k] = v
		}
	}

	if internalError != nil {
		log.Printf("ERROR: Handler error: status_code=%d, public_message='%s', internal_error='%v', path='%s'",
			statusCode, publicMsg, internalError, c.Request.URL.Path)
	} else {
		log.Printf("INFO: Handler response: status_code=%d, public_message='%s', path='%s'",
			statusCode, publicMsg, c.Request.URL.Path)
	}

	if statusCode >= http.StatusInternalServerError {
		if publicMsg == "" {
			response["error"] = genericServerError
		} else if internalError != nil && publicMsg == internalError.Error() {
			response["error"] = genericServerError
			log.Printf("WARN: For 5xx error, public message was same as internal error. Replaced with generic message for client.")
		}
	}

	c.AbortWithStatusJSON(statusCode, response)
}
