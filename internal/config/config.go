// Package config はresourcectlの設定を読み込む。
//
// 優先順位は 既定値 < YAMLファイル < 環境変数（RESOURCEHUB_ 接頭辞） < フラグ。
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix は設定を上書きする環境変数の接頭辞。
const EnvPrefix = "RESOURCEHUB_"

// 設定キー。YAMLファイルのキー、環境変数名（接頭辞を除き小文字化したもの）と一致する。
const (
	KeyAPIBaseURL           = "api_base_url"
	KeyStatePath            = "state_path"
	KeyLoginPath            = "login_path"
	KeyNotificationDuration = "notification_duration"
	KeyRequestTimeout       = "request_timeout"
	KeyDateLayout           = "date_layout"
)

// Config はresourcectlの設定。
type Config struct {
	// APIBaseURL はREST APIのベースURL。
	APIBaseURL string `koanf:"api_base_url"`
	// StatePath はセッションを保存するSQLiteファイルのパス。
	StatePath string `koanf:"state_path"`
	// LoginPath は認証切れの際に案内するログイン画面のパス。
	LoginPath string `koanf:"login_path"`
	// NotificationDuration は通知の既定の表示時間。
	NotificationDuration time.Duration `koanf:"notification_duration"`
	// RequestTimeout はHTTPリクエストのタイムアウト。
	RequestTimeout time.Duration `koanf:"request_timeout"`
	// DateLayout は日付表示の書式。
	DateLayout string `koanf:"date_layout"`
}

// Defaults は既定の設定値を返す。
func Defaults() map[string]any {
	return map[string]any{
		KeyAPIBaseURL:           "http://localhost:3000/api",
		KeyStatePath:            defaultStatePath(),
		KeyLoginPath:            "/login",
		KeyNotificationDuration: "5s",
		KeyRequestTimeout:       "30s",
		KeyDateLayout:           "1/2/2006",
	}
}

// defaultStatePath はユーザー設定ディレクトリ配下の保存先を返す。
func defaultStatePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "resourcehub", "session.db")
}

// Loader は複数の設定元から設定を読み込む。
type Loader struct {
	// k は設定値を保持するkoanfインスタンス。
	k *koanf.Koanf
	// filePath は設定ファイルのパス。空の場合は読み込まない。
	filePath string
	// overrides はフラグなど最優先の値。
	overrides map[string]any
}

// Option はLoaderの設定を変更する。
type Option func(*Loader)

// WithFile は設定ファイルのパスを指定する。
func WithFile(path string) Option {
	return func(l *Loader) { l.filePath = path }
}

// WithOverrides は他の設定元より優先する値を指定する。空文字列の値は無視される。
func WithOverrides(values map[string]any) Option {
	return func(l *Loader) {
		for k, v := range values {
			if s, ok := v.(string); ok && s == "" {
				continue
			}
			l.overrides[k] = v
		}
	}
}

// NewLoader は新しいLoaderを生成する。
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		k:         koanf.New("."),
		overrides: make(map[string]any),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load は全ての設定元を読み込み、検証済みの設定を返す。
func (l *Loader) Load() (*Config, error) {
	if err := l.k.Load(mapProvider(Defaults()), nil); err != nil {
		return nil, fmt.Errorf("既定値の読み込みに失敗: %w", err)
	}

	if l.filePath != "" {
		if err := l.k.Load(file.Provider(l.filePath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("設定ファイル %s の読み込みに失敗: %w", l.filePath, err)
		}
	}

	// RESOURCEHUB_API_BASE_URL -> api_base_url
	transform := func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}
	if err := l.k.Load(env.Provider(EnvPrefix, ".", transform), nil); err != nil {
		return nil, fmt.Errorf("環境変数の読み込みに失敗: %w", err)
	}

	if len(l.overrides) > 0 {
		if err := l.k.Load(mapProvider(l.overrides), nil); err != nil {
			return nil, fmt.Errorf("フラグの読み込みに失敗: %w", err)
		}
	}

	var cfg Config
	if err := l.k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("設定の変換に失敗: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Load は既定のLoaderで設定を読み込む。
func Load(opts ...Option) (*Config, error) {
	return NewLoader(opts...).Load()
}

// Validate は設定値を検証する。
func (c *Config) Validate() error {
	var errs []error

	u, err := url.Parse(c.APIBaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("%s が不正です: %q", KeyAPIBaseURL, c.APIBaseURL))
	}
	if c.StatePath == "" {
		errs = append(errs, fmt.Errorf("%s が空です", KeyStatePath))
	}
	if !strings.HasPrefix(c.LoginPath, "/") {
		errs = append(errs, fmt.Errorf("%s は/で始まる必要があります: %q", KeyLoginPath, c.LoginPath))
	}
	if c.NotificationDuration <= 0 {
		errs = append(errs, fmt.Errorf("%s は正の値である必要があります", KeyNotificationDuration))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%s は正の値である必要があります", KeyRequestTimeout))
	}
	if c.DateLayout == "" {
		errs = append(errs, fmt.Errorf("%s が空です", KeyDateLayout))
	}

	if len(errs) > 0 {
		return fmt.Errorf("設定が不正です: %w", errors.Join(errs...))
	}
	return nil
}

// mapProvider はmapから設定を読み込むkoanfのProvider。
type mapProvider map[string]any

// ReadBytes はサポートしない。
func (m mapProvider) ReadBytes() ([]byte, error) {
	return nil, errors.New("config: map provider does not support ReadBytes")
}

// Read は設定のmapを返す。
func (m mapProvider) Read() (map[string]any, error) {
	return m, nil
}
