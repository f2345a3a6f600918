package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/joshu-sajeev/queuectl/common"
)

// ErrorHandler renders the last error a handler attached to the context.
// Errors that already carry a status keep it; anything else is mapped
// through statuses and the shared store errors, falling back to 500.
func ErrorHandler(statuses ...common.ErrorStatus) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		apiErr := common.Classify(c.Errors.Last().Err, statuses...)

		response := gin.H{"error": apiErr.Message}
		if len(apiErr.Fields) > 0 {
			response["fields"] = apiErr.Fields
		}
		c.JSON(apiErr.Status, response)
	}
}
