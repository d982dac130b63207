package translate

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/nao1215/deepl-proxy/pkg/deepl"
)

// ErrorKind はエラーの分類を表す。
type ErrorKind string

const (
	// KindMethod は許可されていないHTTPメソッドを表す。
	KindMethod ErrorKind = "method"
	// KindCredential はAuthorizationヘッダーの欠落または形式不正を表す。
	KindCredential ErrorKind = "credential"
	// KindValidation はリクエストボディの検証エラーを表す。
	KindValidation ErrorKind = "validation"
	// KindUpstream はDeepLがエラーステータスを返したことを表す。
	KindUpstream ErrorKind = "upstream"
	// KindUnknown はその他の予期しないエラーを表す。
	KindUnknown ErrorKind = "unknown"
)

// translationFailed は500エラーのerrorフィールドの値。
const translationFailed = "Translation failed"

// RequestError はクライアントのリクエストに起因するエラー。
// 405、401、400 のいずれかのステータスで応答する。
type RequestError struct {
	// Kind はエラーの分類。
	Kind ErrorKind
	// Status は応答するHTTPステータスコード。
	Status int
	// Message はクライアントに返すメッセージ。
	Message string
	// Err はログ出力用の原因。クライアントには返さない。
	Err error
}

// Error はエラーメッセージを返す。
func (e *RequestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s error: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
}

// Unwrap は原因となったエラーを返す。
func (e *RequestError) Unwrap() error {
	return e.Err
}

func methodNotAllowed() *RequestError {
	return &RequestError{Kind: KindMethod, Status: http.StatusMethodNotAllowed, Message: "Method not allowed"}
}

func invalidCredential() *RequestError {
	return &RequestError{Kind: KindCredential, Status: http.StatusUnauthorized, Message: "Missing or invalid API key format"}
}

func validationError(reason string) *RequestError {
	return &RequestError{Kind: KindValidation, Status: http.StatusBadRequest, Message: reason}
}

// ErrorResponse は失敗時に返す唯一のレスポンス形式。
type ErrorResponse struct {
	Error   string        `json:"error"`
	Details *ErrorDetails `json:"details,omitempty"`
}

// ErrorDetails はErrorResponseの詳細。
type ErrorDetails struct {
	Message string `json:"message"`
}

// classify はエラーをHTTPステータス、レスポンス、分類に変換する。
// クライアントに返すレスポンスにはDeepLのステータスコードやレスポンスボディを含めない。
func classify(err error) (int, ErrorResponse, ErrorKind) {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.Status, ErrorResponse{Error: reqErr.Message}, reqErr.Kind
	}

	var apiErr *deepl.Error
	if errors.As(err, &apiErr) {
		return http.StatusInternalServerError, ErrorResponse{
			Error:   translationFailed,
			Details: &ErrorDetails{Message: apiErr.Message},
		}, KindUpstream
	}

	return http.StatusInternalServerError, ErrorResponse{
		Error:   translationFailed,
		Details: &ErrorDetails{Message: err.Error()},
	}, KindUnknown
}
