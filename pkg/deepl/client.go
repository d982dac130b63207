package deepl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/nao1215/deepl-proxy/pkg/httpclient"
)

const (
	// DefaultBaseURL はDeepL Free APIのベースURL。
	DefaultBaseURL = "https://api-free.deepl.com"
	// AuthScheme はDeepLが要求するAuthorizationヘッダーのスキーム。
	AuthScheme = "DeepL-Auth-Key"

	translatePath = "/v2/translate"
)

// Request は翻訳リクエストの入力。
type Request struct {
	// Texts は翻訳対象のテキスト。順序は結果に保持される。
	Texts []string
	// TargetLang は翻訳先の言語コード。
	TargetLang string
	// SourceLang は翻訳元の言語コード。空の場合はDeepLが自動検出する。
	SourceLang string
}

// Translation はDeepLが返す1件分の翻訳結果。
type Translation struct {
	// Text は翻訳後のテキスト。
	Text string `json:"text"`
	// DetectedSourceLanguage はDeepLが検出した翻訳元の言語コード。
	DetectedSourceLanguage string `json:"detected_source_language"`
}

// translateRequest はDeepL /v2/translate のリクエストボディ。
type translateRequest struct {
	Text       []string `json:"text"`
	TargetLang string   `json:"target_lang"`
	SourceLang string   `json:"source_lang,omitempty"`
}

// translateResponse はDeepL /v2/translate のレスポンスボディ。
type translateResponse struct {
	Translations []Translation `json:"translations"`
}

// Error はDeepLがエラーステータスを返したことを表す。
type Error struct {
	// StatusCode はDeepLが返したHTTPステータスコード。
	StatusCode int
	// Body はDeepLが返したレスポンスボディの生データ。
	Body []byte
	// Message はDeepLのエラーペイロードのmessage。無い場合は汎用メッセージ。
	Message string
}

// Error はログ出力用の詳細なエラーメッセージを返す。
func (e *Error) Error() string {
	return fmt.Sprintf("DeepL APIエラー: status=%d, body=%s, message=%s", e.StatusCode, string(e.Body), e.Message)
}

// Client はDeepL翻訳APIのクライアント。
type Client struct {
	http *httpclient.Client
}

// New は新しいDeepLクライアントを生成する。
// baseURLが空の場合は DefaultBaseURL を使用する。
func New(baseURL string, opts ...httpclient.Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		http: httpclient.New(strings.TrimSuffix(baseURL, "/"), opts...),
	}
}

// Translate はテキストを翻訳する。
// 結果は入力と同じ件数・同じ順序で返す。件数が一致しない場合は部分的な結果を返さずエラーとする。
func (c *Client) Translate(ctx context.Context, authKey string, req Request) ([]Translation, error) {
	body := translateRequest{
		Text:       req.Texts,
		TargetLang: strings.ToUpper(req.TargetLang),
	}
	if req.SourceLang != "" {
		body.SourceLang = strings.ToUpper(req.SourceLang)
	}

	header := http.Header{}
	header.Set("Authorization", AuthScheme+" "+authKey)

	var resp translateResponse
	if err := c.http.PostJSON(ctx, translatePath, header, body, &resp); err != nil {
		var statusErr *httpclient.StatusError
		if errors.As(err, &statusErr) {
			return nil, &Error{
				StatusCode: statusErr.StatusCode,
				Body:       statusErr.Body,
				Message:    errorMessage(statusErr.StatusCode, statusErr.Body),
			}
		}
		return nil, fmt.Errorf("DeepL APIの呼び出しに失敗: %w", err)
	}

	if len(resp.Translations) != len(req.Texts) {
		return nil, fmt.Errorf("DeepL APIの翻訳結果の件数が一致しない: got %d, want %d", len(resp.Translations), len(req.Texts))
	}
	return resp.Translations, nil
}

// errorMessage はDeepLのエラーペイロードからmessageを取り出す。
func errorMessage(status int, body []byte) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Message != "" {
		return payload.Message
	}
	return fmt.Sprintf("Request failed with status code %d", status)
}
