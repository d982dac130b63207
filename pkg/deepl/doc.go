// Package deepl はDeepL翻訳APIのクライアントを提供する。
//
// 呼び出し元から受け取った認証キーをそのままDeepLへ転送する。
// サーバー側で認証情報を保持することはない。
package deepl
