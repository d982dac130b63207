package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// testRequest はテストサーバーが受け取ったリクエスト情報を保持する構造体。
type testRequest struct {
	// Method はHTTPメソッド。
	Method string
	// Path はリクエストパス。
	Path string
	// Body はリクエストボディ。
	Body []byte
	// Headers はリクエストヘッダー。
	Headers http.Header
}

// testPayload はテスト用のリクエスト/レスポンスペイロード。
type testPayload struct {
	// Name はテスト用の名前フィールド。
	Name string `json:"name"`
	// Value はテスト用の値フィールド。
	Value int `json:"value"`
}

// TestNew はNew関数でクライアントが正しく生成されることを検証する。
func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("クライアントが正常に生成されること", func(t *testing.T) {
		t.Parallel()

		client := New("http://localhost:8080")
		if client == nil {
			t.Fatal("New()がnilを返した")
		}
		if client.baseURL != "http://localhost:8080" {
			t.Errorf("baseURL = %q, want %q", client.baseURL, "http://localhost:8080")
		}
		if client.httpClient == nil {
			t.Fatal("httpClientがnil")
		}
	})

	t.Run("デフォルトのタイムアウトが30秒に設定されていること", func(t *testing.T) {
		t.Parallel()

		client := New("http://localhost:8080")
		if client.httpClient.Timeout != DefaultTimeout {
			t.Errorf("Timeout = %v, want %v", client.httpClient.Timeout, DefaultTimeout)
		}
	})

	t.Run("WithTimeoutでタイムアウトを変更できること", func(t *testing.T) {
		t.Parallel()

		client := New("http://localhost:8080", WithTimeout(5*time.Second))
		if client.httpClient.Timeout != 5*time.Second {
			t.Errorf("Timeout = %v, want %v", client.httpClient.Timeout, 5*time.Second)
		}
	})

	t.Run("WithHTTPClientでHTTPクライアントを差し替えられること", func(t *testing.T) {
		t.Parallel()

		hc := &http.Client{}
		client := New("http://localhost:8080", WithHTTPClient(hc))
		if client.httpClient != hc {
			t.Error("httpClientが差し替えられていない")
		}
	})

	t.Run("WithHTTPClientにnilを渡した場合はデフォルトが維持されること", func(t *testing.T) {
		t.Parallel()

		client := New("http://localhost:8080", WithHTTPClient(nil))
		if client.httpClient == nil {
			t.Fatal("httpClientがnil")
		}
	})
}

// TestPostJSON はPostJSON関数を検証する。
func TestPostJSON(t *testing.T) {
	t.Parallel()

	t.Run("正常にPOSTリクエストを送信してレスポンスを取得できること", func(t *testing.T) {
		t.Parallel()

		var received testRequest
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			received.Method = r.Method
			received.Path = r.URL.Path
			received.Body, _ = io.ReadAll(r.Body)
			received.Headers = r.Header

			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(testPayload{Name: "response", Value: 200})
		}))
		defer ts.Close()

		client := New(ts.URL)
		body := testPayload{Name: "request", Value: 100}
		var result testPayload

		err := client.PostJSON(context.Background(), "/v2/translate", nil, body, &result)
		if err != nil {
			t.Fatalf("PostJSON()でエラーが発生: %v", err)
		}

		// リクエストの検証
		if received.Method != http.MethodPost {
			t.Errorf("Method = %q, want %q", received.Method, http.MethodPost)
		}
		if received.Path != "/v2/translate" {
			t.Errorf("Path = %q, want %q", received.Path, "/v2/translate")
		}

		var sentBody testPayload
		if err := json.Unmarshal(received.Body, &sentBody); err != nil {
			t.Fatalf("リクエストボディのパースに失敗: %v", err)
		}
		if sentBody.Name != "request" {
			t.Errorf("sent Name = %q, want %q", sentBody.Name, "request")
		}
		if sentBody.Value != 100 {
			t.Errorf("sent Value = %d, want %d", sentBody.Value, 100)
		}

		if got := received.Headers.Get("Content-Type"); got != "application/json" {
			t.Errorf("Content-Type = %q, want %q", got, "application/json")
		}

		// レスポンスの検証
		if result.Name != "response" {
			t.Errorf("result.Name = %q, want %q", result.Name, "response")
		}
		if result.Value != 200 {
			t.Errorf("result.Value = %d, want %d", result.Value, 200)
		}
	})

	t.Run("指定したヘッダーがリクエストに付与されること", func(t *testing.T) {
		t.Parallel()

		var received http.Header
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			received = r.Header
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(testPayload{Name: "ok", Value: 1})
		}))
		defer ts.Close()

		client := New(ts.URL)
		header := http.Header{}
		header.Set("Authorization", "DeepL-Auth-Key secret")

		err := client.PostJSON(context.Background(), "/", header, testPayload{}, nil)
		if err != nil {
			t.Fatalf("PostJSON()でエラーが発生: %v", err)
		}
		if got := received.Get("Authorization"); got != "DeepL-Auth-Key secret" {
			t.Errorf("Authorization = %q, want %q", got, "DeepL-Auth-Key secret")
		}
	})

	t.Run("2xx以外のレスポンスでStatusErrorが返ること", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte(`{"message":"Wrong endpoint"}`))
		}))
		defer ts.Close()

		client := New(ts.URL)
		var result testPayload

		err := client.PostJSON(context.Background(), "/", nil, testPayload{}, &result)
		if err == nil {
			t.Fatal("PostJSON()がエラーを返すべきだが、nilが返った")
		}

		var statusErr *StatusError
		if !errors.As(err, &statusErr) {
			t.Fatalf("エラーの型 = %T, want *StatusError", err)
		}
		if statusErr.StatusCode != http.StatusForbidden {
			t.Errorf("StatusCode = %d, want %d", statusErr.StatusCode, http.StatusForbidden)
		}
		if string(statusErr.Body) != `{"message":"Wrong endpoint"}` {
			t.Errorf("Body = %q, want %q", string(statusErr.Body), `{"message":"Wrong endpoint"}`)
		}
	})

	t.Run("サーバーが500エラーを返した場合にエラーが返ること", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer ts.Close()

		client := New(ts.URL)
		err := client.PostJSON(context.Background(), "/", nil, testPayload{}, nil)
		if err == nil {
			t.Fatal("PostJSON()がエラーを返すべきだが、nilが返った")
		}
	})

	t.Run("resultがnilの場合でもエラーにならないこと", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"status":"created"}`))
		}))
		defer ts.Close()

		client := New(ts.URL)
		err := client.PostJSON(context.Background(), "/", nil, testPayload{Name: "no-result", Value: 1}, nil)
		if err != nil {
			t.Fatalf("PostJSON()でエラーが発生: %v", err)
		}
	})

	t.Run("不正なJSONレスポンスでエラーが返ること", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{invalid json}`))
		}))
		defer ts.Close()

		client := New(ts.URL)
		var result testPayload

		err := client.PostJSON(context.Background(), "/", nil, testPayload{}, &result)
		if err == nil {
			t.Fatal("PostJSON()がエラーを返すべきだが、nilが返った")
		}
	})

	t.Run("キャンセルされたコンテキストでエラーが返ること", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(testPayload{Name: "response", Value: 1})
		}))
		defer ts.Close()

		client := New(ts.URL)
		ctx, cancel := context.WithCancel(context.Background())
		cancel() // 即座にキャンセル

		var result testPayload
		err := client.PostJSON(ctx, "/", nil, testPayload{}, &result)
		if err == nil {
			t.Fatal("PostJSON()がエラーを返すべきだが、nilが返った")
		}
	})

	t.Run("接続できないサーバーに対してエラーが返ること", func(t *testing.T) {
		t.Parallel()

		// 存在しないサーバーに接続を試みる
		client := New("http://127.0.0.1:1")

		err := client.PostJSON(context.Background(), "/", nil, testPayload{}, nil)
		if err == nil {
			t.Fatal("PostJSON()がエラーを返すべきだが、nilが返った")
		}
		var statusErr *StatusError
		if errors.As(err, &statusErr) {
			t.Error("接続エラーがStatusErrorとして返された")
		}
	})
}

// TestPostJSON_SerializationError はシリアライズ不可能なボディでエラーが返ることを検証する。
func TestPostJSON_SerializationError(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(testPayload{Name: "ok", Value: 1})
	}))
	defer ts.Close()

	client := New(ts.URL)
	// json.Marshalでエラーになるチャネル型を渡す
	body := make(chan int)
	var result testPayload

	err := client.PostJSON(context.Background(), "/", nil, body, &result)
	if err == nil {
		t.Fatal("PostJSON()がエラーを返すべきだが、nilが返った")
	}
}
