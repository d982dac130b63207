package translate

import (
	"strings"
	"unicode/utf8"
)

// 検証エラーのメッセージ。
const (
	reasonEmptyText          = "text must not be empty"
	reasonInvalidTargetLang  = "invalid target language code"
	reasonInvalidArray       = "array contains invalid content"
	reasonInvalidTextType    = "text must be a string or an array of strings"
	reasonInvalidSourceLang  = "invalid source language code"
	reasonInvalidRequestBody = "invalid request body"
)

// langCodeLength は言語コードの文字数。
const langCodeLength = 2

// RequestBody はクライアントから受け取った未検証のリクエストボディ。
// textは文字列または文字列の配列のいずれかを受け付けるため、型を固定せずにデコードする。
type RequestBody struct {
	Text       any `json:"text"`
	TargetLang any `json:"target_lang"`
	SourceLang any `json:"source_lang"`
}

// TranslationRequest は検証済みの翻訳リクエスト。
type TranslationRequest struct {
	// Texts は翻訳対象のテキスト。単一の文字列も1要素の配列に正規化される。
	Texts []string
	// TargetLang は翻訳先の言語コード。
	TargetLang string
	// SourceLang は翻訳元の言語コード。空の場合は自動検出。
	SourceLang string
}

// Validate はリクエストボディを検証し、TranslationRequestに変換する。
// 最初に違反したルールの理由を持つ *RequestError を返す。
//  1. textが存在し空でないこと
//  2. target_langが2文字の文字列であること
//  3. textが文字列、または空白以外を含む文字列のみの配列であること
//  4. source_langが指定されている場合は2文字の文字列であること
func Validate(body RequestBody) (TranslationRequest, error) {
	if isEmptyText(body.Text) {
		return TranslationRequest{}, validationError(reasonEmptyText)
	}

	target, ok := body.TargetLang.(string)
	if !ok || utf8.RuneCountInString(target) != langCodeLength {
		return TranslationRequest{}, validationError(reasonInvalidTargetLang)
	}

	var texts []string
	switch text := body.Text.(type) {
	case string:
		texts = []string{text}
	case []any:
		texts = make([]string, 0, len(text))
		for _, elem := range text {
			s, ok := elem.(string)
			if !ok || strings.TrimSpace(s) == "" {
				return TranslationRequest{}, validationError(reasonInvalidArray)
			}
			texts = append(texts, s)
		}
	default:
		return TranslationRequest{}, validationError(reasonInvalidTextType)
	}

	var source string
	switch s := body.SourceLang.(type) {
	case nil:
	case string:
		if s != "" && utf8.RuneCountInString(s) != langCodeLength {
			return TranslationRequest{}, validationError(reasonInvalidSourceLang)
		}
		source = s
	default:
		return TranslationRequest{}, validationError(reasonInvalidSourceLang)
	}

	return TranslationRequest{
		Texts:      texts,
		TargetLang: target,
		SourceLang: source,
	}, nil
}

// isEmptyText はtextが空かどうかを判定する。
// 未指定、null、空文字列、0、falseに加えて、翻訳対象の無い空配列も空として扱う。
func isEmptyText(text any) bool {
	switch t := text.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case float64:
		return t == 0
	case bool:
		return !t
	case []any:
		return len(t) == 0
	default:
		return false
	}
}
