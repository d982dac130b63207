package middleware

import (
	"log"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
)

// Recovery はパニックからの回復を行うGinミドルウェアを返す。
// パニック発生時にスタックトレースをログに出力し、
// {"error": errorMessage, "details": {"message": ...}} の形式で500エラーを返す。
func Recovery(errorMessage string) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[PANIC] request_id=%s %s %s: %v\n%s",
					GetRequestID(c), c.Request.Method, c.Request.URL.Path, r, debug.Stack())
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error":   errorMessage,
					"details": gin.H{
						"message": "internal server error",
					},
				})
			}
		}()
		c.Next()
	}
}
