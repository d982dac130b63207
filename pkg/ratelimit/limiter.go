package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	// DefaultMax はウィンドウ内で許可するリクエスト数のデフォルト値。
	DefaultMax = 100
	// DefaultWindow はカウントを集計するウィンドウ幅のデフォルト値。
	DefaultWindow = 15 * time.Minute
)

// Counter はあるクライアントの現在のウィンドウにおけるカウント。
type Counter struct {
	// Hits は現在のウィンドウ内のリクエスト数（今回のリクエストを含む）。
	Hits int
	// ResetAt は現在のウィンドウが終了する時刻。
	ResetAt time.Time
}

// Store はレート制限のカウンターを保持する。
// Increment はキーごとにアトミックでなければならない。同じキーへの並行呼び出しが
// 同じ古いカウントを観測してはならない。
type Store interface {
	// Increment はkeyのカウンターを1増やし、増加後の値を返す。
	// ウィンドウが終了していれば now から window の新しいウィンドウを開始する。
	Increment(ctx context.Context, key string, now time.Time, window time.Duration) (Counter, error)
	// Close はストアが保持するリソースを解放する。
	Close() error
}

// Result はレート制限の判定結果。
type Result struct {
	// Allowed はリクエストを通過させてよいかどうか。
	Allowed bool
	// Limit はウィンドウ内の上限リクエスト数。
	Limit int
	// Remaining はウィンドウ内で残っているリクエスト数。
	Remaining int
	// ResetAt は現在のウィンドウが終了する時刻。
	ResetAt time.Time
}

// Limiter はクライアント単位でリクエスト数を制限する。
type Limiter struct {
	store  Store
	max    int
	window time.Duration
	now    func() time.Time
}

// New は新しいLimiterを生成する。
func New(store Store, limit int, window time.Duration) (*Limiter, error) {
	if store == nil {
		return nil, errors.New("ストアが指定されていません")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("上限リクエスト数は1以上である必要があります: %d", limit)
	}
	if window <= 0 {
		return nil, fmt.Errorf("ウィンドウ幅は正の値である必要があります: %s", window)
	}
	return &Limiter{
		store:  store,
		max:    limit,
		window: window,
		now:    time.Now,
	}, nil
}

// Allow はkeyのカウンターを増やし、上限を超えていないかを判定する。
// ウィンドウ内で max 回目までのリクエストは許可され、max+1 回目以降は拒否される。
func (l *Limiter) Allow(ctx context.Context, key string) (Result, error) {
	counter, err := l.store.Increment(ctx, key, l.now(), l.window)
	if err != nil {
		return Result{}, fmt.Errorf("レート制限カウンターの更新に失敗: %w", err)
	}
	return Result{
		Allowed:   counter.Hits <= l.max,
		Limit:     l.max,
		Remaining: max(l.max-counter.Hits, 0),
		ResetAt:   counter.ResetAt,
	}, nil
}

// Close は内部のストアを閉じる。
func (l *Limiter) Close() error {
	return l.store.Close()
}
