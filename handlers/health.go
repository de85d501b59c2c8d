package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Health returns a simple health check handler
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"graph":    Graphs != nil,
		"database": Teams != nil,
		"billing":  Webhook != nil,
		"ai":       AI != nil,
	})
}
