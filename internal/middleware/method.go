package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/petri/petri-go/internal/model"
)

// RequirePOST 只放行 POST，其余方法返回 405 并回显请求方法
func RequirePOST() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost {
			c.AbortWithStatusJSON(http.StatusMethodNotAllowed, model.ErrorResponse{
				Error:  "Method not allowed",
				Method: c.Request.Method,
			})
			return
		}
		c.Next()
	}
}
