package translate

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/deepl-proxy/pkg/deepl"
	"github.com/nao1215/deepl-proxy/pkg/middleware"
)

// TranslationResponse は翻訳成功時のレスポンス。
type TranslationResponse struct {
	Translations []TranslationResult `json:"translations"`
}

// TranslationResult は1件分の翻訳結果。入力テキストと同じ順序で並ぶ。
type TranslationResult struct {
	Text                   string `json:"text"`
	DetectedSourceLanguage string `json:"detected_source_language"`
}

// handleTranslate はテキスト翻訳のハンドラを返す。
func (s *Server) handleTranslate() gin.HandlerFunc {
	return func(c *gin.Context) {
		// CORSゲートで処理されなかったOPTIONSリクエストもプリフライトとして扱う
		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusNoContent)
			return
		}

		resp, err := s.translate(c)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

// translate はメソッド、認証情報、リクエストボディの順に検証し、DeepLへ翻訳を依頼する。
// 最初に失敗した段階のエラーを返す。
func (s *Server) translate(c *gin.Context) (TranslationResponse, error) {
	if c.Request.Method != http.MethodPost {
		return TranslationResponse{}, methodNotAllowed()
	}

	authKey, err := extractCredential(c.GetHeader("Authorization"))
	if err != nil {
		return TranslationResponse{}, err
	}

	body, err := s.decodeBody(c)
	if err != nil {
		return TranslationResponse{}, err
	}

	req, err := Validate(body)
	if err != nil {
		return TranslationResponse{}, err
	}

	// クライアントが切断してもDeepLへの呼び出しは完了させる
	ctx := context.WithoutCancel(c.Request.Context())
	translations, err := s.translator.Translate(ctx, authKey, deepl.Request{
		Texts:      req.Texts,
		TargetLang: req.TargetLang,
		SourceLang: req.SourceLang,
	})
	if err != nil {
		return TranslationResponse{}, err
	}

	results := make([]TranslationResult, 0, len(translations))
	for _, t := range translations {
		results = append(results, TranslationResult{
			Text:                   t.Text,
			DetectedSourceLanguage: t.DetectedSourceLanguage,
		})
	}
	return TranslationResponse{Translations: results}, nil
}

// extractCredential はAuthorizationヘッダーから認証キーを取り出す。
// 形式のみを検証し、キーが有効かどうかはDeepLの応答に委ねる。
func extractCredential(header string) (string, error) {
	key, found := strings.CutPrefix(header, deepl.AuthScheme+" ")
	if !found {
		return "", invalidCredential()
	}
	return key, nil
}

// decodeBody はリクエストボディをデコードする。
// ボディが空の場合は空のRequestBodyとして扱い、検証で text の欠落として報告する。
func (s *Server) decodeBody(c *gin.Context) (RequestBody, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxBodyBytes)

	dec := json.NewDecoder(c.Request.Body)
	var body RequestBody
	if err := dec.Decode(&body); err != nil {
		if errors.Is(err, io.EOF) {
			return RequestBody{}, nil
		}
		return RequestBody{}, invalidRequestBody(err)
	}
	// JSONオブジェクトの後ろに空白以外が続くボディは受け付けない
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			err = errors.New("JSONオブジェクトの後ろに余分なデータがあります")
		}
		return RequestBody{}, invalidRequestBody(err)
	}
	return body, nil
}

// invalidRequestBody はデコードに失敗したボディの検証エラーを返す。
func invalidRequestBody(err error) *RequestError {
	reqErr := validationError(reasonInvalidRequestBody)
	reqErr.Err = err
	return reqErr
}

// writeError はエラーをログに出力し、エラーレスポンスを返す。
// ログにはDeepLのステータスコードやレスポンスボディを含む詳細を出力する。
func writeError(c *gin.Context, err error) {
	status, resp, kind := classify(err)
	log.Printf("[Translate] request_id=%s client=%s status=%d kind=%s: %v",
		middleware.GetRequestID(c), c.ClientIP(), status, kind, err)
	c.JSON(status, resp)
}
