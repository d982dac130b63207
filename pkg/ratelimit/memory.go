package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore はプロセス内のマップでカウンターを保持するStore。
// プロセスを再起動するとカウンターは失われる。
type MemoryStore struct {
	mu        sync.Mutex
	counters  map[string]Counter
	nextSweep time.Time
}

// NewMemoryStore は新しいMemoryStoreを生成する。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		counters: make(map[string]Counter),
	}
}

// Increment はkeyのカウンターを1増やす。
func (s *MemoryStore) Increment(_ context.Context, key string, now time.Time, window time.Duration) (Counter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweep(now, window)

	c, ok := s.counters[key]
	if !ok || !now.Before(c.ResetAt) {
		c = Counter{ResetAt: now.Add(window)}
	}
	c.Hits++
	s.counters[key] = c
	return c, nil
}

// sweep は期限切れのカウンターを削除する。ウィンドウ幅に1回だけ実行する。
func (s *MemoryStore) sweep(now time.Time, window time.Duration) {
	if now.Before(s.nextSweep) {
		return
	}
	for key, c := range s.counters {
		if !now.Before(c.ResetAt) {
			delete(s.counters, key)
		}
	}
	s.nextSweep = now.Add(window)
}

// Len は保持しているカウンターの数を返す。
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.counters)
}

// Close は何もしない。
func (s *MemoryStore) Close() error {
	return nil
}
