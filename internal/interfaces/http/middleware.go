package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/garyjia/sitequote/internal/application/port"
	"github.com/garyjia/sitequote/internal/application/service"
	"github.com/garyjia/sitequote/internal/domain/entity"
)

const (
	actorKey     = "actor"
	requestIDKey = "request_id"

	// RequestIDHeader carries the request id in both directions
	RequestIDHeader = "X-Request-ID"
)

// RequestIDMiddleware tags each request with the caller's X-Request-ID or a
// fresh one. The id is echoed back and attached to the request context so
// workflow effects can be correlated with the request that caused them.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(RequestIDHeader))
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}

		c.Set(requestIDKey, id)
		c.Writer.Header().Set(RequestIDHeader, id)
		c.Request = c.Request.WithContext(service.WithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

// AuthMiddleware resolves the bearer token into an actor; requests
// without a valid token are rejected with 401
func AuthMiddleware(resolver port.IdentityResolver, logger Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			abortUnauthorized(c, "missing bearer token")
			return
		}

		actor, err := resolver.Resolve(c.Request.Context(), strings.TrimSpace(token))
		if err != nil {
			logger.Info("Rejected token", "path", c.Request.URL.Path, "error", err)
			abortUnauthorized(c, "invalid token")
			return
		}

		c.Set(actorKey, actor)
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
		Success: false,
		Error:   &ErrorBody{Kind: "Unauthenticated", Message: message},
	})
}

// actorFrom returns the actor set by AuthMiddleware
func actorFrom(c *gin.Context) *entity.Actor {
	v, ok := c.Get(actorKey)
	if !ok {
		return nil
	}
	actor, _ := v.(*entity.Actor)
	return actor
}

// CORSMiddleware adds permissive CORS headers and answers preflight requests
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
