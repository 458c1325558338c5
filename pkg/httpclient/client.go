package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/nao1215/resourcehub/pkg/kvstore"
	"github.com/prometheus/client_golang/prometheus"
)

// DefaultLoginPath は認証失敗時の遷移先。
const DefaultLoginPath = "/login"

// ErrUnauthorized はサーバーが401を返したことを表す。
var ErrUnauthorized = errors.New("httpclient: unauthorized")

// StatusError は2xx以外の応答を表す。
type StatusError struct {
	// StatusCode はHTTPステータスコード。
	StatusCode int
	// Message はエンベロープのmessageフィールド（取得できた場合）。
	Message string
	// Body はレスポンスボディ。
	Body []byte
}

// Error はエラーメッセージを返す。
func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("HTTPエラー: status=%d, message=%s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("HTTPエラー: status=%d, body=%s", e.StatusCode, string(e.Body))
}

// Navigator は画面遷移を行う。401応答時にログイン画面へ遷移するために使う。
type Navigator interface {
	Navigate(path string)
}

// NavigatorFunc は関数をNavigatorとして扱うためのアダプタ。
type NavigatorFunc func(path string)

// Navigate はf(path)を呼び出す。
func (f NavigatorFunc) Navigate(path string) { f(path) }

// Client はAPIサーバー用のHTTPクライアント。
type Client struct {
	// httpClient は内部で使用するHTTPクライアント。
	httpClient *http.Client
	// baseURL は接続先APIのベースURL。
	baseURL string
	// tokens はトークンを読み出す永続ストア。nilの場合は認証ヘッダーを付けない。
	tokens kvstore.Store
	// navigator は401応答時の遷移先を受け取る。
	navigator Navigator
	// loginPath は401応答時の遷移先パス。
	loginPath string
	// logger はログ出力先。
	logger *log.Logger
	// metrics はリクエストのメトリクス。nilの場合は記録しない。
	metrics *metrics
}

// Option はClientの設定を変更する。
type Option func(*Client)

// WithTokenStore はトークンを読み出す永続ストアを設定する。
func WithTokenStore(s kvstore.Store) Option {
	return func(c *Client) { c.tokens = s }
}

// WithNavigator は401応答時に呼び出すNavigatorを設定する。
func WithNavigator(n Navigator) Option {
	return func(c *Client) { c.navigator = n }
}

// WithLoginPath は401応答時の遷移先パスを設定する。
func WithLoginPath(path string) Option {
	return func(c *Client) { c.loginPath = path }
}

// WithTimeout はリクエストのタイムアウトを設定する。
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithHTTPClient は内部で使用するhttp.Clientを差し替える。
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger はログ出力先を設定する。
func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithMetrics はリクエスト数と所要時間をregに登録して記録する。
func WithMetrics(reg prometheus.Registerer) Option {
	return func(c *Client) { c.metrics = newMetrics(reg) }
}

// New は新しいHTTPクライアントを生成する。
// baseURLには接続先APIのベースURL（例: "http://localhost:3000/api"）を指定する。
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL:   baseURL,
		loginPath: DefaultLoginPath,
		logger:    log.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL は接続先のベースURLを返す。
func (c *Client) BaseURL() string {
	return c.baseURL
}

// GetJSON は指定パスにGETリクエストを送信し、レスポンスボディをresultにデシリアライズする。
func (c *Client) GetJSON(ctx context.Context, path string, result any) error {
	return c.doJSON(ctx, http.MethodGet, path, nil, result)
}

// PostJSON は指定パスにJSONボディでPOSTリクエストを送信する。
func (c *Client) PostJSON(ctx context.Context, path string, body any, result any) error {
	return c.doJSON(ctx, http.MethodPost, path, body, result)
}

// PutJSON は指定パスにJSONボディでPUTリクエストを送信する。
func (c *Client) PutJSON(ctx context.Context, path string, body any, result any) error {
	return c.doJSON(ctx, http.MethodPut, path, body, result)
}

// PatchJSON は指定パスにJSONボディでPATCHリクエストを送信する。
func (c *Client) PatchJSON(ctx context.Context, path string, body any, result any) error {
	return c.doJSON(ctx, http.MethodPatch, path, body, result)
}

// DeleteJSON は指定パスにDELETEリクエストを送信する。
func (c *Client) DeleteJSON(ctx context.Context, path string, result any) error {
	return c.doJSON(ctx, http.MethodDelete, path, nil, result)
}

// doJSON はJSON形式のHTTPリクエストを実行する共通処理。
func (c *Client) doJSON(ctx context.Context, method, path string, body any, result any) error {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("リクエストボディのシリアライズに失敗: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if token := c.currentToken(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	// コンテキストからユーザーIDを伝播する
	if userID, ok := ctx.Value(contextKeyUserID).(string); ok {
		req.Header.Set("X-User-ID", userID)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.observe(method, "error", time.Since(start))
		return fmt.Errorf("HTTPリクエストの送信に失敗: %w", err)
	}
	defer resp.Body.Close()
	c.metrics.observe(method, strconv.Itoa(resp.StatusCode), time.Since(start))

	if resp.StatusCode == http.StatusUnauthorized {
		respBody, _ := io.ReadAll(resp.Body)
		c.handleUnauthorized(ctx)
		return fmt.Errorf("%w: %w", ErrUnauthorized, newStatusError(resp.StatusCode, respBody))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return newStatusError(resp.StatusCode, respBody)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("レスポンスボディのデシリアライズに失敗: %w", err)
		}
	}
	return nil
}

// currentToken は永続ストアから現在のトークンを読み出す。
// 読み出せない場合は空文字列を返し、認証ヘッダーなしでリクエストする。
func (c *Client) currentToken(ctx context.Context) string {
	if c.tokens == nil {
		return ""
	}
	token, err := c.tokens.Get(ctx, kvstore.KeyToken)
	if err != nil {
		if !errors.Is(err, kvstore.ErrNotFound) {
			c.logger.Printf("[HTTPClient] トークンの読み出しに失敗: %v", err)
		}
		return ""
	}
	return token
}

// handleUnauthorized は保存済みの認証情報を削除してログイン画面へ遷移する。
func (c *Client) handleUnauthorized(ctx context.Context) {
	c.metrics.unauthorized()
	if c.tokens != nil {
		// リクエストのキャンセルに関係なく削除する
		if err := kvstore.RemoveAll(context.WithoutCancel(ctx), c.tokens, kvstore.KeyToken, kvstore.KeyUser); err != nil {
			c.logger.Printf("[HTTPClient] 認証情報の削除に失敗: %v", err)
		}
	}
	if c.navigator != nil {
		c.navigator.Navigate(c.loginPath)
	}
}

// newStatusError はレスポンスからStatusErrorを生成する。
func newStatusError(status int, body []byte) *StatusError {
	e := &StatusError{StatusCode: status, Body: body}
	var envelope struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &envelope) == nil {
		e.Message = envelope.Message
	}
	return e
}

// contextKey はコンテキストキーの型。
type contextKey string

// contextKeyUserID はコンテキストにユーザーIDを格納するためのキー。
const contextKeyUserID contextKey = "user_id"

// WithUserID はコンテキストにユーザーIDを設定する。
// リクエストにX-User-IDヘッダーとして伝播される。
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, contextKeyUserID, userID)
}
