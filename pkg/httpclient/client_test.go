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

	"github.com/nao1215/resourcehub/pkg/kvstore"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
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

// recordingServer は受け取ったリクエストを記録し、固定のペイロードを返すテストサーバーを起動する。
func recordingServer(t *testing.T, received *testRequest, resp testPayload) *httptest.Server {
	t.Helper()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received.Method = r.Method
		received.Path = r.URL.Path
		received.Body, _ = io.ReadAll(r.Body)
		received.Headers = r.Header

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(ts.Close)
	return ts
}

// TestNew はNew関数でクライアントが正しく生成されることを検証する。
func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("クライアントが正常に生成されること", func(t *testing.T) {
		t.Parallel()

		client := New("http://localhost:3000/api")
		if client == nil {
			t.Fatal("New()がnilを返した")
		}
		if client.BaseURL() != "http://localhost:3000/api" {
			t.Errorf("baseURL = %q, want %q", client.BaseURL(), "http://localhost:3000/api")
		}
		if client.loginPath != DefaultLoginPath {
			t.Errorf("loginPath = %q, want %q", client.loginPath, DefaultLoginPath)
		}
	})

	t.Run("タイムアウトが30秒に設定されていること", func(t *testing.T) {
		t.Parallel()

		client := New("http://localhost:3000/api")
		if client.httpClient.Timeout != 30*time.Second {
			t.Errorf("Timeout = %v, want 30s", client.httpClient.Timeout)
		}
	})

	t.Run("WithTimeoutでタイムアウトを変更できること", func(t *testing.T) {
		t.Parallel()

		client := New("http://localhost:3000/api", WithTimeout(5*time.Second))
		if client.httpClient.Timeout != 5*time.Second {
			t.Errorf("Timeout = %v, want 5s", client.httpClient.Timeout)
		}
	})
}

// TestMethods は各HTTPメソッドのリクエストが正しく送信されることを検証する。
func TestMethods(t *testing.T) {
	t.Parallel()

	body := testPayload{Name: "request", Value: 100}
	tests := []struct {
		name       string
		wantMethod string
		wantBody   bool
		call       func(c *Client, result *testPayload) error
	}{
		{
			name:       "GET",
			wantMethod: http.MethodGet,
			call: func(c *Client, result *testPayload) error {
				return c.GetJSON(context.Background(), "/resource/1", result)
			},
		},
		{
			name:       "POST",
			wantMethod: http.MethodPost,
			wantBody:   true,
			call: func(c *Client, result *testPayload) error {
				return c.PostJSON(context.Background(), "/resource/1", body, result)
			},
		},
		{
			name:       "PUT",
			wantMethod: http.MethodPut,
			wantBody:   true,
			call: func(c *Client, result *testPayload) error {
				return c.PutJSON(context.Background(), "/resource/1", body, result)
			},
		},
		{
			name:       "PATCH",
			wantMethod: http.MethodPatch,
			wantBody:   true,
			call: func(c *Client, result *testPayload) error {
				return c.PatchJSON(context.Background(), "/resource/1", body, result)
			},
		},
		{
			name:       "DELETE",
			wantMethod: http.MethodDelete,
			call: func(c *Client, result *testPayload) error {
				return c.DeleteJSON(context.Background(), "/resource/1", result)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name+"リクエストを送信してレスポンスを取得できること", func(t *testing.T) {
			t.Parallel()

			var received testRequest
			ts := recordingServer(t, &received, testPayload{Name: "response", Value: 200})

			var result testPayload
			if err := tt.call(New(ts.URL), &result); err != nil {
				t.Fatalf("リクエストでエラーが発生: %v", err)
			}

			if received.Method != tt.wantMethod {
				t.Errorf("Method = %q, want %q", received.Method, tt.wantMethod)
			}
			if received.Path != "/resource/1" {
				t.Errorf("Path = %q, want %q", received.Path, "/resource/1")
			}
			if got := received.Headers.Get("Content-Type"); got != "application/json" {
				t.Errorf("Content-Type = %q, want %q", got, "application/json")
			}

			if tt.wantBody {
				var sent testPayload
				if err := json.Unmarshal(received.Body, &sent); err != nil {
					t.Fatalf("リクエストボディのパースに失敗: %v", err)
				}
				if sent != body {
					t.Errorf("sent = %+v, want %+v", sent, body)
				}
			} else if len(received.Body) != 0 {
				t.Errorf("ボディが含まれている: %q", string(received.Body))
			}

			if result.Name != "response" || result.Value != 200 {
				t.Errorf("result = %+v, want {response 200}", result)
			}
		})
	}
}

// TestErrors はエラー応答や通信エラーの扱いを検証する。
func TestErrors(t *testing.T) {
	t.Parallel()

	t.Run("サーバーが400エラーを返した場合にStatusErrorが返ること", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"status":"error","message":"validation failed"}`))
		}))
		defer ts.Close()

		err := New(ts.URL).PostJSON(context.Background(), "/resource/", testPayload{}, nil)

		var se *StatusError
		if !errors.As(err, &se) {
			t.Fatalf("err = %v, want *StatusError", err)
		}
		if se.StatusCode != http.StatusBadRequest {
			t.Errorf("StatusCode = %d, want %d", se.StatusCode, http.StatusBadRequest)
		}
		if se.Message != "validation failed" {
			t.Errorf("Message = %q, want %q", se.Message, "validation failed")
		}
		if errors.Is(err, ErrUnauthorized) {
			t.Error("400はErrUnauthorizedとして扱われるべきではない")
		}
	})

	t.Run("サーバーが500エラーを返した場合にエラーが返ること", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`internal server error`))
		}))
		defer ts.Close()

		err := New(ts.URL).GetJSON(context.Background(), "/resource/", nil)
		var se *StatusError
		if !errors.As(err, &se) {
			t.Fatalf("err = %v, want *StatusError", err)
		}
		if se.Message != "" {
			t.Errorf("Message = %q, want empty", se.Message)
		}
	})

	t.Run("resultがnilの場合でもエラーにならないこと", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"status":"success"}`))
		}))
		defer ts.Close()

		if err := New(ts.URL).PostJSON(context.Background(), "/resource/", testPayload{}, nil); err != nil {
			t.Fatalf("PostJSON()でエラーが発生: %v", err)
		}
	})

	t.Run("不正なJSONレスポンスでエラーが返ること", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte(`{invalid json}`))
		}))
		defer ts.Close()

		var result testPayload
		if err := New(ts.URL).GetJSON(context.Background(), "/test", &result); err == nil {
			t.Fatal("GetJSON()がエラーを返すべきだが、nilが返った")
		}
	})

	t.Run("キャンセルされたコンテキストでエラーが返ること", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			json.NewEncoder(w).Encode(testPayload{})
		}))
		defer ts.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel() // 即座にキャンセル

		if err := New(ts.URL).GetJSON(ctx, "/test", nil); err == nil {
			t.Fatal("GetJSON()がエラーを返すべきだが、nilが返った")
		}
	})

	t.Run("接続できないサーバーに対してエラーが返ること", func(t *testing.T) {
		t.Parallel()

		if err := New("http://127.0.0.1:1").GetJSON(context.Background(), "/test", nil); err == nil {
			t.Fatal("GetJSON()がエラーを返すべきだが、nilが返った")
		}
	})

	t.Run("シリアライズ不可能なボディでエラーが返ること", func(t *testing.T) {
		t.Parallel()

		// json.Marshalでエラーになるチャネル型を渡す
		err := New("http://127.0.0.1:1").PostJSON(context.Background(), "/test", make(chan int), nil)
		if err == nil {
			t.Fatal("PostJSON()がエラーを返すべきだが、nilが返った")
		}
	})
}

// TestBearerToken は永続ストアのトークンが認証ヘッダーに設定されることを検証する。
func TestBearerToken(t *testing.T) {
	t.Parallel()

	t.Run("保存済みトークンがBearerヘッダーとして送信されること", func(t *testing.T) {
		t.Parallel()

		var received testRequest
		ts := recordingServer(t, &received, testPayload{})

		store := kvstore.NewMemoryStore()
		_ = store.Set(context.Background(), kvstore.KeyToken, "tok123")

		if err := New(ts.URL, WithTokenStore(store)).GetJSON(context.Background(), "/user/", nil); err != nil {
			t.Fatalf("GetJSON()でエラーが発生: %v", err)
		}
		if got := received.Headers.Get("Authorization"); got != "Bearer tok123" {
			t.Errorf("Authorization = %q, want %q", got, "Bearer tok123")
		}
	})

	t.Run("トークンはリクエストごとにストアから読み出されること", func(t *testing.T) {
		t.Parallel()

		var received testRequest
		ts := recordingServer(t, &received, testPayload{})

		store := kvstore.NewMemoryStore()
		client := New(ts.URL, WithTokenStore(store))

		_ = client.GetJSON(context.Background(), "/user/", nil)
		if got := received.Headers.Get("Authorization"); got != "" {
			t.Errorf("トークン未保存時のAuthorization = %q, want empty", got)
		}

		_ = store.Set(context.Background(), kvstore.KeyToken, "later")
		_ = client.GetJSON(context.Background(), "/user/", nil)
		if got := received.Headers.Get("Authorization"); got != "Bearer later" {
			t.Errorf("Authorization = %q, want %q", got, "Bearer later")
		}
	})

	t.Run("ストアが利用できない場合は認証ヘッダーなしで送信されること", func(t *testing.T) {
		t.Parallel()

		var received testRequest
		ts := recordingServer(t, &received, testPayload{})

		store := kvstore.NewMemoryStore()
		_ = store.Close()

		if err := New(ts.URL, WithTokenStore(store)).GetJSON(context.Background(), "/user/", nil); err != nil {
			t.Fatalf("GetJSON()でエラーが発生: %v", err)
		}
		if got := received.Headers.Get("Authorization"); got != "" {
			t.Errorf("Authorization = %q, want empty", got)
		}
	})
}

// TestUnauthorized は401応答時の認証情報削除と遷移を検証する。
func TestUnauthorized(t *testing.T) {
	t.Parallel()

	t.Run("401で認証情報が削除されログイン画面へ遷移すること", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"status":"error","message":"Invalid or expired JWT"}`))
		}))
		defer ts.Close()

		ctx := context.Background()
		store := kvstore.NewMemoryStore()
		_ = store.Set(ctx, kvstore.KeyToken, "expired")
		_ = store.Set(ctx, kvstore.KeyUser, `{"id":1,"username":"a"}`)

		var navigated []string
		client := New(ts.URL,
			WithTokenStore(store),
			WithNavigator(NavigatorFunc(func(path string) { navigated = append(navigated, path) })),
		)

		err := client.GetJSON(ctx, "/resource/", nil)
		if !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("err = %v, want ErrUnauthorized", err)
		}
		var se *StatusError
		if !errors.As(err, &se) || se.StatusCode != http.StatusUnauthorized {
			t.Errorf("StatusErrorに401が含まれるべき: %v", err)
		}

		for _, key := range []string{kvstore.KeyToken, kvstore.KeyUser} {
			if _, err := store.Get(ctx, key); !errors.Is(err, kvstore.ErrNotFound) {
				t.Errorf("key=%s が削除されていない: err = %v", key, err)
			}
		}
		if len(navigated) != 1 || navigated[0] != "/login" {
			t.Errorf("navigated = %v, want [/login]", navigated)
		}
	})

	t.Run("WithLoginPathで遷移先を変更できること", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer ts.Close()

		var navigated string
		client := New(ts.URL,
			WithLoginPath("/signin"),
			WithNavigator(NavigatorFunc(func(path string) { navigated = path })),
		)
		_ = client.GetJSON(context.Background(), "/resource/", nil)

		if navigated != "/signin" {
			t.Errorf("navigated = %q, want %q", navigated, "/signin")
		}
	})

	t.Run("403では認証情報が削除されないこと", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		}))
		defer ts.Close()

		ctx := context.Background()
		store := kvstore.NewMemoryStore()
		_ = store.Set(ctx, kvstore.KeyToken, "tok")

		navigated := false
		client := New(ts.URL,
			WithTokenStore(store),
			WithNavigator(NavigatorFunc(func(string) { navigated = true })),
		)
		_ = client.GetJSON(ctx, "/resource/", nil)

		if _, err := store.Get(ctx, kvstore.KeyToken); err != nil {
			t.Errorf("トークンが削除された: %v", err)
		}
		if navigated {
			t.Error("403で遷移すべきではない")
		}
	})
}

// TestWithUserID はWithUserID関数を検証する。
func TestWithUserID(t *testing.T) {
	t.Parallel()

	t.Run("コンテキストにユーザーIDを設定して伝播できること", func(t *testing.T) {
		t.Parallel()

		var received testRequest
		ts := recordingServer(t, &received, testPayload{})

		ctx := WithUserID(context.Background(), "propagated-user-id")
		if err := New(ts.URL).GetJSON(ctx, "/test", nil); err != nil {
			t.Fatalf("GetJSON()でエラーが発生: %v", err)
		}
		if got := received.Headers.Get("X-User-ID"); got != "propagated-user-id" {
			t.Errorf("X-User-ID = %q, want %q", got, "propagated-user-id")
		}
	})

	t.Run("WithUserIDが設定されていない場合X-User-IDヘッダーが空であること", func(t *testing.T) {
		t.Parallel()

		var received testRequest
		ts := recordingServer(t, &received, testPayload{})

		if err := New(ts.URL).GetJSON(context.Background(), "/test", nil); err != nil {
			t.Fatalf("GetJSON()でエラーが発生: %v", err)
		}
		if got := received.Headers.Get("X-User-ID"); got != "" {
			t.Errorf("X-User-ID = %q, want empty string", got)
		}
	})
}

// TestMetrics はリクエストメトリクスの記録を検証する。
func TestMetrics(t *testing.T) {
	t.Parallel()

	t.Run("ステータスコードごとにリクエスト数が記録されること", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/secret" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.Write([]byte(`{}`))
		}))
		defer ts.Close()

		reg := prometheus.NewRegistry()
		client := New(ts.URL, WithMetrics(reg))

		_ = client.GetJSON(context.Background(), "/ok", nil)
		_ = client.GetJSON(context.Background(), "/ok", nil)
		_ = client.GetJSON(context.Background(), "/secret", nil)

		if got := testutil.ToFloat64(client.metrics.requests.WithLabelValues("GET", "200")); got != 2 {
			t.Errorf("requests{GET,200} = %v, want 2", got)
		}
		if got := testutil.ToFloat64(client.metrics.requests.WithLabelValues("GET", "401")); got != 1 {
			t.Errorf("requests{GET,401} = %v, want 1", got)
		}
		if got := testutil.ToFloat64(client.metrics.authFailures); got != 1 {
			t.Errorf("unauthorized_total = %v, want 1", got)
		}
	})

	t.Run("同じレジストリで複数のクライアントを生成してもパニックしないこと", func(t *testing.T) {
		t.Parallel()

		reg := prometheus.NewRegistry()
		a := New("http://localhost", WithMetrics(reg))
		b := New("http://localhost", WithMetrics(reg))

		if a.metrics.requests != b.metrics.requests {
			t.Error("既存のコレクタが再利用されるべき")
		}
	})
}
