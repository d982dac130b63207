package translate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/deepl-proxy/internal/config"
	"github.com/nao1215/deepl-proxy/pkg/deepl"
	"github.com/nao1215/deepl-proxy/pkg/middleware"
	"github.com/nao1215/deepl-proxy/pkg/ratelimit"
)

// shutdownTimeout はサーバー停止時に処理中のリクエストを待つ最大時間。
const shutdownTimeout = 10 * time.Second

// Translator は翻訳プロバイダーを表す。
type Translator interface {
	// Translate はauthKeyを認証情報としてテキストを翻訳する。
	Translate(ctx context.Context, authKey string, req deepl.Request) ([]deepl.Translation, error)
}

// Server は翻訳プロキシサービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// translator は翻訳プロバイダーのクライアント。
	translator Translator
	// limiter はプロセス全体で共有するレート制限。
	limiter *ratelimit.Limiter
	// maxBodyBytes はリクエストボディの最大バイト数。
	maxBodyBytes int64
}

// NewServer は新しい翻訳プロキシサーバーを生成する。
// limiterはプロセス起動時に1つだけ生成し、ここで渡したものを全リクエストで共有する。
func NewServer(cfg config.Config, translator Translator, limiter *ratelimit.Limiter) (*Server, error) {
	if translator == nil {
		return nil, errors.New("翻訳プロバイダーが指定されていません")
	}
	if limiter == nil {
		return nil, errors.New("レート制限が指定されていません")
	}

	router := gin.New()
	if err := router.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, fmt.Errorf("信頼するプロキシの設定に失敗: %w", err)
	}
	router.Use(middleware.Recovery(translationFailed))
	router.Use(middleware.RequestID())
	router.Use(gin.Logger())

	cors, err := middleware.CORS(cfg.AllowedOrigins)
	if err != nil {
		return nil, fmt.Errorf("CORSミドルウェアの初期化に失敗: %w", err)
	}

	s := &Server{
		router:       router,
		port:         cfg.Port,
		translator:   translator,
		limiter:      limiter,
		maxBodyBytes: cfg.MaxBodyBytes,
	}
	s.setupRoutes(cors)

	return s, nil
}

// Handler はサーバーのHTTPハンドラーを返す。
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run はHTTPサーバーを起動する。
// ctxがキャンセルされると処理中のリクエストの完了を待ってから停止する。
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", s.port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("サーバーの停止に失敗: %w", err)
		}
		return nil
	}
}

// setupRoutes はAPIルーティングを設定する。
// /api 以下はCORS、レート制限の順にゲートを通過したリクエストのみハンドラーに到達する。
func (s *Server) setupRoutes(cors gin.HandlerFunc) {
	api := s.router.Group("/api", cors, middleware.RateLimit(s.limiter))
	{
		// POST以外のメソッドもハンドラーで405を返すためすべてのメソッドを登録する
		api.Any("/translate", s.handleTranslate())
	}

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "translate"})
	})
}
