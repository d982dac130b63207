// Package config は翻訳プロキシサービスの設定を管理する。
//
// 設定値はコマンドラインフラグ、DEEPL_PROXY_ プレフィックス付きの環境変数、
// YAML設定ファイルの順に優先して読み込む。DeepLの認証キーはリクエストごとに
// クライアントから受け取るため、設定には含まれない。
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/nao1215/deepl-proxy/pkg/deepl"
	"github.com/nao1215/deepl-proxy/pkg/httpclient"
	"github.com/nao1215/deepl-proxy/pkg/ratelimit"
)

// EnvPrefix は環境変数のプレフィックス。
const EnvPrefix = "DEEPL_PROXY"

const (
	// StoreMemory はプロセス内メモリにレート制限カウンターを保持する。
	StoreMemory = "memory"
	// StoreSQLite はSQLiteデータベースにレート制限カウンターを保持する。
	StoreSQLite = "sqlite"
)

// 設定キー。
const (
	keyPort            = "port"
	keyDeepLURL        = "deepl.url"
	keyDeepLTimeout    = "deepl.timeout"
	keyAllowedOrigins  = "cors.allowed_origins"
	keyRateLimitMax    = "ratelimit.max"
	keyRateLimitWindow = "ratelimit.window"
	keyRateLimitStore  = "ratelimit.store"
	keyRateLimitSQLite = "ratelimit.sqlite_path"
	keyTrustedProxies  = "trusted_proxies"
	keyMaxBodyBytes    = "max_body_bytes"
)

// Config は翻訳プロキシサービスの設定。
type Config struct {
	// Port はHTTPサーバーのリッスンポート。
	Port string
	// DeepLURL はDeepL APIのベースURL。
	DeepLURL string
	// DeepLTimeout はDeepL API呼び出しのタイムアウト。
	DeepLTimeout time.Duration
	// AllowedOrigins はCORSで許可するオリジン。空の場合はすべて許可する。
	AllowedOrigins []string
	// RateLimitMax はウィンドウ内でクライアントごとに許可するリクエスト数。
	RateLimitMax int
	// RateLimitWindow はレート制限のウィンドウ幅。
	RateLimitWindow time.Duration
	// RateLimitStore はレート制限カウンターの保存先（memory または sqlite）。
	RateLimitStore string
	// RateLimitSQLitePath はsqliteストア使用時のデータベースファイルパス。
	RateLimitSQLitePath string
	// TrustedProxies はクライアントIPの判定で信頼するプロキシのアドレス。
	// 空の場合はTCP接続元のアドレスをクライアントIPとする。
	TrustedProxies []string
	// MaxBodyBytes はリクエストボディの最大バイト数。
	MaxBodyBytes int64
}

// Default はデフォルトの設定を返す。
func Default() Config {
	return Config{
		Port:                "8080",
		DeepLURL:            deepl.DefaultBaseURL,
		DeepLTimeout:        httpclient.DefaultTimeout,
		RateLimitMax:        ratelimit.DefaultMax,
		RateLimitWindow:     ratelimit.DefaultWindow,
		RateLimitStore:      StoreMemory,
		RateLimitSQLitePath: "ratelimit.db",
		MaxBodyBytes:        1 << 20,
	}
}

// BindFlags はフラグを定義し、viperに紐付ける。
// 環境変数は DEEPL_PROXY_RATELIMIT_MAX のように、キーの "." を "_" に置き換えた名前で参照する。
// ポートのみ、他のサービスと同様に PORT 環境変数も参照する。
func BindFlags(fs *pflag.FlagSet, v *viper.Viper) error {
	d := Default()
	fs.String(keyPort, d.Port, "HTTPサーバーのリッスンポート")
	fs.String("deepl-url", d.DeepLURL, "DeepL APIのベースURL")
	fs.Duration("deepl-timeout", d.DeepLTimeout, "DeepL API呼び出しのタイムアウト")
	fs.StringSlice("allowed-origins", nil, "CORSで許可するオリジン（未指定の場合はすべて許可）")
	fs.Int("ratelimit-max", d.RateLimitMax, "ウィンドウ内でクライアントごとに許可するリクエスト数")
	fs.Duration("ratelimit-window", d.RateLimitWindow, "レート制限のウィンドウ幅")
	fs.String("ratelimit-store", d.RateLimitStore, "レート制限カウンターの保存先（memory または sqlite）")
	fs.String("ratelimit-sqlite-path", d.RateLimitSQLitePath, "sqliteストア使用時のデータベースファイルパス")
	fs.StringSlice("trusted-proxies", nil, "クライアントIPの判定で信頼するプロキシのアドレス")
	fs.Int64("max-body-bytes", d.MaxBodyBytes, "リクエストボディの最大バイト数")

	bindings := map[string]string{
		keyPort:            keyPort,
		keyDeepLURL:        "deepl-url",
		keyDeepLTimeout:    "deepl-timeout",
		keyAllowedOrigins:  "allowed-origins",
		keyRateLimitMax:    "ratelimit-max",
		keyRateLimitWindow: "ratelimit-window",
		keyRateLimitStore:  "ratelimit-store",
		keyRateLimitSQLite: "ratelimit-sqlite-path",
		keyTrustedProxies:  "trusted-proxies",
		keyMaxBodyBytes:    "max-body-bytes",
	}
	for key, flag := range bindings {
		if err := v.BindPFlag(key, fs.Lookup(flag)); err != nil {
			return fmt.Errorf("フラグ %s の紐付けに失敗: %w", flag, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv(keyPort, EnvPrefix+"_PORT", "PORT"); err != nil {
		return fmt.Errorf("環境変数の紐付けに失敗: %w", err)
	}
	return nil
}

// Load はviperから設定を読み込み、検証する。
// viperに値が無いキーはデフォルト値を使用する。
func Load(v *viper.Viper) (Config, error) {
	d := Default()
	v.SetDefault(keyPort, d.Port)
	v.SetDefault(keyDeepLURL, d.DeepLURL)
	v.SetDefault(keyDeepLTimeout, d.DeepLTimeout)
	v.SetDefault(keyRateLimitMax, d.RateLimitMax)
	v.SetDefault(keyRateLimitWindow, d.RateLimitWindow)
	v.SetDefault(keyRateLimitStore, d.RateLimitStore)
	v.SetDefault(keyRateLimitSQLite, d.RateLimitSQLitePath)
	v.SetDefault(keyMaxBodyBytes, d.MaxBodyBytes)

	cfg := Config{
		Port:                v.GetString(keyPort),
		DeepLURL:            v.GetString(keyDeepLURL),
		DeepLTimeout:        v.GetDuration(keyDeepLTimeout),
		AllowedOrigins:      splitList(v.GetStringSlice(keyAllowedOrigins)),
		RateLimitMax:        v.GetInt(keyRateLimitMax),
		RateLimitWindow:     v.GetDuration(keyRateLimitWindow),
		RateLimitStore:      strings.ToLower(v.GetString(keyRateLimitStore)),
		RateLimitSQLitePath: v.GetString(keyRateLimitSQLite),
		TrustedProxies:      splitList(v.GetStringSlice(keyTrustedProxies)),
		MaxBodyBytes:        v.GetInt64(keyMaxBodyBytes),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate は設定値を検証する。
func (c Config) Validate() error {
	var errs []error
	if c.Port == "" {
		errs = append(errs, errors.New("ポートが指定されていません"))
	}
	if c.DeepLURL == "" {
		errs = append(errs, errors.New("DeepL APIのURLが指定されていません"))
	}
	if c.DeepLTimeout <= 0 {
		errs = append(errs, fmt.Errorf("DeepL APIのタイムアウトは正の値である必要があります: %s", c.DeepLTimeout))
	}
	if c.RateLimitMax <= 0 {
		errs = append(errs, fmt.Errorf("レート制限の上限は1以上である必要があります: %d", c.RateLimitMax))
	}
	if c.RateLimitWindow <= 0 {
		errs = append(errs, fmt.Errorf("レート制限のウィンドウ幅は正の値である必要があります: %s", c.RateLimitWindow))
	}
	switch c.RateLimitStore {
	case StoreMemory:
	case StoreSQLite:
		if c.RateLimitSQLitePath == "" {
			errs = append(errs, errors.New("sqliteストアのデータベースファイルパスが指定されていません"))
		}
	default:
		errs = append(errs, fmt.Errorf("不明なレート制限ストア: %q", c.RateLimitStore))
	}
	if c.MaxBodyBytes <= 0 {
		errs = append(errs, fmt.Errorf("リクエストボディの最大バイト数は正の値である必要があります: %d", c.MaxBodyBytes))
	}
	if len(errs) > 0 {
		return fmt.Errorf("設定が不正: %w", errors.Join(errs...))
	}
	return nil
}

// splitList はカンマ区切りの値を含むリストを平坦化し、空要素を取り除く。
// 環境変数から読み込んだ "a,b" のような値に対応するために使用する。
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}
