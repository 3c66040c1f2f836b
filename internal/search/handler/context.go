package handler

import (
	"context"

	"crm_search_backend/platform/logger"

	"github.com/gin-gonic/gin"
)

// requestContext tags the request context with the search session so
// orchestrator logs can be correlated with it.
func requestContext(c *gin.Context, sessionID string) context.Context {
	ctx := c.Request.Context()
	if sessionID != "" {
		ctx = context.WithValue(ctx, logger.SessionIDKey, sessionID)
	}
	return ctx
}
