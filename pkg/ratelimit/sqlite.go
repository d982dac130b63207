package ratelimit

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log"
	"sync"
	"time"

	// SQLiteドライバー
	_ "modernc.org/sqlite"

	"github.com/nao1215/deepl-proxy/pkg/migration"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// incrementQuery はカウンターの増加とウィンドウの切り替えを1文で行う。
// UPSERTは行ロックの下で実行されるため、同じキーへの並行更新でも古い値を観測しない。
const incrementQuery = `
INSERT INTO rate_limit_counters (client_key, hits, reset_at)
VALUES (?1, 1, ?2)
ON CONFLICT (client_key) DO UPDATE SET
    hits = CASE WHEN rate_limit_counters.reset_at <= ?3 THEN 1 ELSE rate_limit_counters.hits + 1 END,
    reset_at = CASE WHEN rate_limit_counters.reset_at <= ?3 THEN excluded.reset_at ELSE rate_limit_counters.reset_at END
RETURNING hits, reset_at`

// SQLiteStore はSQLiteデータベースでカウンターを保持するStore。
// 同じデータベースファイルを参照する複数のプロセスでカウンターを共有できる。
type SQLiteStore struct {
	db *sql.DB

	mu        sync.Mutex
	nextPrune time.Time
}

// OpenSQLiteStore はpathのSQLiteデータベースを開き、SQLiteStoreを生成する。
func OpenSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}
	store, err := NewSQLiteStore(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// NewSQLiteStore は接続済みのデータベースにスキーマを適用し、SQLiteStoreを生成する。
func NewSQLiteStore(ctx context.Context, db *sql.DB) (*SQLiteStore, error) {
	if err := migration.Run(ctx, db, migrationsFS, "migrations"); err != nil {
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Increment はkeyのカウンターを1増やす。
func (s *SQLiteStore) Increment(ctx context.Context, key string, now time.Time, window time.Duration) (Counter, error) {
	s.prune(ctx, now, window)

	var (
		hits    int
		resetAt int64
	)
	row := s.db.QueryRowContext(ctx, incrementQuery, key, now.Add(window).UnixMilli(), now.UnixMilli())
	if err := row.Scan(&hits, &resetAt); err != nil {
		return Counter{}, fmt.Errorf("カウンターの更新に失敗: %w", err)
	}
	return Counter{Hits: hits, ResetAt: time.UnixMilli(resetAt)}, nil
}

// prune は期限切れのカウンターを削除する。ウィンドウ幅に1回だけ実行する。
func (s *SQLiteStore) prune(ctx context.Context, now time.Time, window time.Duration) {
	s.mu.Lock()
	if now.Before(s.nextPrune) {
		s.mu.Unlock()
		return
	}
	s.nextPrune = now.Add(window)
	s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, "DELETE FROM rate_limit_counters WHERE reset_at <= ?", now.UnixMilli()); err != nil {
		log.Printf("[RateLimit] 期限切れカウンターの削除に失敗: %v", err)
	}
}

// Close はデータベース接続を閉じる。
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
