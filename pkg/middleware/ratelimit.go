package middleware

import (
	"log"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/deepl-proxy/pkg/ratelimit"
)

// RateLimitMessage はレート制限で拒否したリクエストに返すメッセージ。
const RateLimitMessage = "Too many requests, please try again later."

// RateLimit はクライアントIPごとにリクエスト数を制限するGinミドルウェアを返す。
// 上限を超えたリクエストは429で打ち切られる。カウンターの更新に失敗した場合は
// ログを出力してリクエストを通過させる。
func RateLimit(limiter *ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		res, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			log.Printf("[RateLimit] client=%s: %v", key, err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(res.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))

		if !res.Allowed {
			retryAfter := int(math.Ceil(time.Until(res.ResetAt).Seconds()))
			c.Header("Retry-After", strconv.Itoa(max(retryAfter, 0)))
			c.String(http.StatusTooManyRequests, RateLimitMessage)
			c.Abort()
			return
		}
		c.Next()
	}
}
