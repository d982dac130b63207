package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/deepl-proxy/pkg/ratelimit"
)

// failingStore は常にエラーを返すratelimit.Store。
type failingStore struct{}

func (failingStore) Increment(context.Context, string, time.Time, time.Duration) (ratelimit.Counter, error) {
	return ratelimit.Counter{}, errors.New("store unavailable")
}

func (failingStore) Close() error { return nil }

// newRateLimitRouter はRateLimitミドルウェアを適用したテスト用ルーターを生成する。
func newRateLimitRouter(t *testing.T, store ratelimit.Store, limit int) *gin.Engine {
	t.Helper()

	limiter, err := ratelimit.New(store, limit, 15*time.Minute)
	if err != nil {
		t.Fatalf("ratelimit.New()でエラーが発生: %v", err)
	}
	router := gin.New()
	router.Use(RateLimit(limiter))
	router.POST("/api/translate", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return router
}

// postFrom は指定したクライアントアドレスからPOSTリクエストを送信する。
func postFrom(router *gin.Engine, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/translate", nil)
	req.RemoteAddr = remoteAddr
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// TestRateLimit はRateLimitミドルウェアを検証する。
func TestRateLimit(t *testing.T) {
	t.Parallel()

	t.Run("上限を超えたリクエストは429で打ち切られること", func(t *testing.T) {
		t.Parallel()

		router := newRateLimitRouter(t, ratelimit.NewMemoryStore(), 100)

		for i := 1; i <= 100; i++ {
			w := postFrom(router, "192.0.2.10:12345")
			if w.Code != http.StatusOK {
				t.Fatalf("%d回目のステータスコード = %d, want %d", i, w.Code, http.StatusOK)
			}
		}

		w := postFrom(router, "192.0.2.10:12345")
		if w.Code != http.StatusTooManyRequests {
			t.Errorf("101回目のステータスコード = %d, want %d", w.Code, http.StatusTooManyRequests)
		}
		if w.Body.String() != RateLimitMessage {
			t.Errorf("レスポンスボディ = %q, want %q", w.Body.String(), RateLimitMessage)
		}
		retryAfter, err := strconv.Atoi(w.Header().Get("Retry-After"))
		if err != nil {
			t.Fatalf("Retry-Afterのパースに失敗: %v", err)
		}
		if retryAfter <= 0 || retryAfter > int((15*time.Minute).Seconds()) {
			t.Errorf("Retry-After = %d, 0より大きく900以下であるべき", retryAfter)
		}
	})

	t.Run("レート制限ヘッダーが設定されること", func(t *testing.T) {
		t.Parallel()

		router := newRateLimitRouter(t, ratelimit.NewMemoryStore(), 3)

		w := postFrom(router, "192.0.2.11:1")
		if got := w.Header().Get("X-RateLimit-Limit"); got != "3" {
			t.Errorf("X-RateLimit-Limit = %q, want %q", got, "3")
		}
		if got := w.Header().Get("X-RateLimit-Remaining"); got != "2" {
			t.Errorf("X-RateLimit-Remaining = %q, want %q", got, "2")
		}
		if got := w.Header().Get("X-RateLimit-Reset"); got == "" {
			t.Error("X-RateLimit-Resetが設定されていない")
		}
	})

	t.Run("別のクライアントアドレスは独立してカウントされること", func(t *testing.T) {
		t.Parallel()

		router := newRateLimitRouter(t, ratelimit.NewMemoryStore(), 1)

		if w := postFrom(router, "192.0.2.20:1"); w.Code != http.StatusOK {
			t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
		}
		if w := postFrom(router, "192.0.2.20:2"); w.Code != http.StatusTooManyRequests {
			t.Errorf("同一アドレスの2回目のステータスコード = %d, want %d", w.Code, http.StatusTooManyRequests)
		}
		if w := postFrom(router, "192.0.2.21:1"); w.Code != http.StatusOK {
			t.Errorf("別アドレスのステータスコード = %d, want %d", w.Code, http.StatusOK)
		}
	})

	t.Run("ストアのエラー時はリクエストを通過させること", func(t *testing.T) {
		t.Parallel()

		router := newRateLimitRouter(t, failingStore{}, 1)

		for i := 0; i < 3; i++ {
			if w := postFrom(router, "192.0.2.30:1"); w.Code != http.StatusOK {
				t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
			}
		}
	})
}
