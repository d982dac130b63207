// 翻訳プロキシサービスのエントリポイント。
// ブラウザなどのクライアントからの翻訳リクエストを検証し、DeepL APIへ中継する。
// DeepLの認証キーはクライアントがリクエストごとに送信し、サービスは保持しない。
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nao1215/deepl-proxy/internal/config"
	"github.com/nao1215/deepl-proxy/internal/translate"
	"github.com/nao1215/deepl-proxy/pkg/deepl"
	"github.com/nao1215/deepl-proxy/pkg/httpclient"
	"github.com/nao1215/deepl-proxy/pkg/ratelimit"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

// newRootCommand はルートコマンドを生成する。
func newRootCommand() *cobra.Command {
	v := viper.New()
	var cfgFile string

	cmd := &cobra.Command{
		Use:           "translate",
		Short:         "DeepL APIへの翻訳プロキシサーバー",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := readConfigFile(v, cfgFile); err != nil {
				log.Printf("設定ファイルの読み込みに失敗: %v", err)
				return err
			}
			cfg, err := config.Load(v)
			if err != nil {
				log.Printf("設定が不正です: %v", err)
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := run(ctx, cfg); err != nil {
				log.Printf("翻訳サービスの起動に失敗: %v", err)
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&cfgFile, "config", "", "設定ファイルのパス (デフォルト: ./deepl-proxy.yaml)")
	if err := config.BindFlags(cmd.Flags(), v); err != nil {
		log.Fatalf("フラグの初期化に失敗: %v", err)
	}
	return cmd
}

// readConfigFile はYAML設定ファイルを読み込む。
// パスが指定されていない場合、カレントディレクトリの deepl-proxy.yaml が無くてもエラーにしない。
func readConfigFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName("deepl-proxy")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path == "" && errors.As(err, &notFound) {
			return nil
		}
		return err
	}
	log.Printf("設定ファイルを使用します: %s", v.ConfigFileUsed())
	return nil
}

// run はレート制限とDeepLクライアントを組み立ててサーバーを起動し、ctxがキャンセルされるまで待つ。
func run(ctx context.Context, cfg config.Config) error {
	store, err := newStore(ctx, cfg)
	if err != nil {
		return err
	}
	limiter, err := ratelimit.New(store, cfg.RateLimitMax, cfg.RateLimitWindow)
	if err != nil {
		store.Close()
		return fmt.Errorf("レート制限の初期化に失敗: %w", err)
	}
	defer func() {
		if err := limiter.Close(); err != nil {
			log.Printf("レート制限ストアのクローズに失敗: %v", err)
		}
	}()

	client := deepl.New(cfg.DeepLURL, httpclient.WithTimeout(cfg.DeepLTimeout))
	server, err := translate.NewServer(cfg, client, limiter)
	if err != nil {
		return fmt.Errorf("サーバーの初期化に失敗: %w", err)
	}

	log.Printf("翻訳サービスを起動します: :%s (upstream=%s, ratelimit=%d/%s, store=%s)",
		cfg.Port, cfg.DeepLURL, cfg.RateLimitMax, cfg.RateLimitWindow, cfg.RateLimitStore)
	if err := server.Run(ctx); err != nil {
		return err
	}
	log.Println("翻訳サービスを停止しました")
	return nil
}

// newStore は設定に応じたレート制限ストアを生成する。
func newStore(ctx context.Context, cfg config.Config) (ratelimit.Store, error) {
	switch cfg.RateLimitStore {
	case config.StoreSQLite:
		store, err := ratelimit.OpenSQLiteStore(ctx, cfg.RateLimitSQLitePath)
		if err != nil {
			return nil, fmt.Errorf("SQLiteストアの初期化に失敗: %w", err)
		}
		return store, nil
	default:
		return ratelimit.NewMemoryStore(), nil
	}
}
