// Package ratelimit はクライアント単位の固定ウィンドウ方式のレート制限を提供する。
//
// カウンターの保存先は Store インターフェースで抽象化されている。単一プロセスでは
// MemoryStore を、複数インスタンスで同じカウンターを共有する場合は SQLiteStore を使用する。
// Limiter はプロセス起動時に1つだけ生成し、すべてのリクエストで共有する。
package ratelimit
