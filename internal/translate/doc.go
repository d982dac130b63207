// Package translate は翻訳プロキシサービスの内部実装を提供する。
//
// POST /api/translate で受け取ったテキストを検証し、クライアントが送ってきた
// DeepLの認証キーを使ってDeepLへ転送する。CORSとレート制限のゲートを通過した
// リクエストのみを処理し、DeepLのレスポンスとエラーを安定したJSON形式に正規化して返す。
package translate
