package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORS はクロスオリジンポリシーを適用するGinミドルウェアを返す。
// 許可するメソッドはPOSTとプリフライトのOPTIONSのみ、許可するヘッダーは
// Content-TypeとAuthorizationのみ。allowedOriginsが空の場合はすべてのオリジンを許可する。
// 許可されていないオリジンからのリクエストは403で打ち切られる。
func CORS(allowedOrigins []string) (gin.HandlerFunc, error) {
	config := cors.Config{
		AllowMethods: []string{http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:       24 * time.Hour,
	}
	if len(allowedOrigins) == 0 {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = allowedOrigins
	}

	// cors.New は不正な設定でパニックするため事前に検証する
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("CORS設定が不正: %w", err)
	}
	return cors.New(config), nil
}
