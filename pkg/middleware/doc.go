// Package middleware はGinベースのHTTP APIで使用する共通ミドルウェアを提供する。
//
// CORS設定、クライアント単位のレート制限、リクエストIDの付与、パニックリカバリなど、
// ハンドラーより前段でリクエストを通過させるか打ち切るかを決めるゲートを含む。
package middleware
