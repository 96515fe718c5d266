package bridge

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

// Middleware resolves the principal and always continues the chain.
func (g *Guard) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		g.Resolve(c)
		c.Next()
	}
}

// RequireAuth aborts anonymous requests with 401.
func (g *Guard) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if g.Resolve(c) == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{Error: errorPayload{
				Type:    "unauthorized",
				Message: "unauthorized",
			}})
			return
		}
		c.Next()
	}
}
