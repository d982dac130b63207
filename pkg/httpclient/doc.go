// Package httpclient は外部APIとのJSON形式のHTTP通信を行うクライアントを提供する。
//
// 翻訳プロバイダーへのリクエスト送信に使用する。2xx以外のレスポンスは
// ステータスコードと生のレスポンスボディを保持した StatusError として返し、
// 呼び出し側がプロバイダー固有のエラーペイロードを解釈できるようにする。
package httpclient
