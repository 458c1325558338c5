package cli

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nao1215/resourcehub/internal/config"
	"github.com/nao1215/resourcehub/internal/notification"
	"github.com/nao1215/resourcehub/internal/session"
	"github.com/nao1215/resourcehub/pkg/api"
	"github.com/nao1215/resourcehub/pkg/dateutil"
	"github.com/nao1215/resourcehub/pkg/httpclient"
	"github.com/nao1215/resourcehub/pkg/kvstore"
)

// App は1回のコマンド実行で使う依存関係をまとめたもの。
type App struct {
	// Config は読み込んだ設定。
	Config *config.Config
	// Session はセッションストア。
	Session *session.Store
	// API はAPIクライアント。
	API *api.Client
	// Notifications は操作結果の通知キュー。
	Notifications *notification.Queue
	// Dates は日時の表示に使う。
	Dates *dateutil.Formatter
	// Metrics はHTTPクライアントのメトリクスを保持する。
	Metrics *prometheus.Registry

	kv     kvstore.Store
	out    io.Writer
	errOut io.Writer
	logger *log.Logger
}

// newApp は設定を読み込み、セッションを復元した状態のAppを組み立てる。
func newApp(ctx context.Context, opts *rootOptions, out, errOut io.Writer) (*App, error) {
	cfg, err := config.Load(
		config.WithFile(opts.configPath),
		config.WithOverrides(map[string]any{
			config.KeyAPIBaseURL: opts.apiURL,
			config.KeyStatePath:  opts.statePath,
		}),
	)
	if err != nil {
		return nil, err
	}

	logger := log.New(io.Discard, "", 0)
	if opts.verbose {
		logger = log.New(errOut, "", log.LstdFlags)
	}

	a := &App{
		Config:  cfg,
		Metrics: prometheus.NewRegistry(),
		Dates:   dateutil.NewFormatter(dateutil.WithLayout(cfg.DateLayout)),
		out:     out,
		errOut:  errOut,
		logger:  logger,
	}

	// 永続ストアを開けない場合でもメモリ上のセッションで処理を続ける
	kv, err := kvstore.Open(ctx, cfg.StatePath, kvstore.WithLogger(logger))
	if err != nil {
		fmt.Fprintf(errOut, "警告: セッションを保存できません: %v\n", err)
	} else {
		a.kv = kv
	}

	a.Notifications = notification.NewQueue(
		notification.WithDefaultDuration(cfg.NotificationDuration),
		notification.WithLogger(logger),
	)
	renderNotifications(a.Notifications, errOut)

	a.Session = session.New(a.kv, session.WithLogger(logger))
	a.Session.Initialize(ctx)

	client := httpclient.New(cfg.APIBaseURL,
		httpclient.WithTokenStore(a.kv),
		httpclient.WithNavigator(httpclient.NavigatorFunc(a.navigate)),
		httpclient.WithLoginPath(cfg.LoginPath),
		httpclient.WithTimeout(cfg.RequestTimeout),
		httpclient.WithLogger(logger),
		httpclient.WithMetrics(a.Metrics),
	)
	a.API = api.New(client)

	return a, nil
}

// navigate は認証切れの際にHTTPクライアントから呼ばれる。
// 保存済みの認証情報は既に削除されているため、メモリ上のセッションを合わせる。
// ログイン前の401（認証情報の誤り）ではエラーを呼び出し元に任せて何も表示しない。
func (a *App) navigate(path string) {
	wasLoggedIn := a.Session.State().IsAuthenticated
	a.Session.Logout(context.Background())
	if !wasLoggedIn {
		return
	}
	a.Notifications.Add(notification.Notification{
		Type:    notification.TypeWarning,
		Title:   "セッションの有効期限が切れました",
		Message: fmt.Sprintf("resourcectl login で再度ログインしてください (%s)", path),
	})
}

// notify は通知キューに通知を積む。
func (a *App) notify(typ notification.Type, title, message string) {
	a.Notifications.Add(notification.Notification{Type: typ, Title: title, Message: message})
}

// Close は通知の予約を止め、永続ストアを閉じる。
func (a *App) Close() error {
	a.Notifications.Close()
	if a.kv == nil {
		return nil
	}
	if err := a.kv.Close(); err != nil {
		return fmt.Errorf("永続ストアのクローズに失敗: %w", err)
	}
	return nil
}
