package kvstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync/atomic"

	_ "modernc.org/sqlite"
)

// SQLiteStore はSQLiteのentriesテーブルに値を保存する永続ストア。
type SQLiteStore struct {
	// db はSQLiteデータベース接続。
	db *sql.DB
	// closed はClose済みかどうか。
	closed atomic.Bool
}

// Option はSQLiteStoreの生成オプション。
type Option func(*options)

type options struct {
	logger *log.Logger
}

// WithLogger はマイグレーション適用時のログ出力先を設定する。
func WithLogger(l *log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Open は指定パスのSQLiteファイルを開き、マイグレーションを適用したストアを返す。
// 親ディレクトリが存在しない場合は作成する。":memory:" を指定するとインメモリDBになる。
func Open(ctx context.Context, path string, opts ...Option) (*SQLiteStore, error) {
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("状態ディレクトリの作成に失敗: %w", err)
		}
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}

	s, err := OpenDB(ctx, db, opts...)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// OpenDB は既存のデータベース接続からストアを生成する。
// インメモリDBでも同じ内容を参照できるよう、接続数は1に制限する。
func OpenDB(ctx context.Context, db *sql.DB, opts ...Option) (*SQLiteStore, error) {
	o := options{logger: log.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	db.SetMaxOpenConns(1)

	if _, err := migrate(ctx, db, migrationFiles, "migrations", o.logger); err != nil {
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Get は指定キーの値を返す。
func (s *SQLiteStore) Get(ctx context.Context, key string) (string, error) {
	if s.closed.Load() {
		return "", ErrUnavailable
	}

	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM entries WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("値の取得に失敗: key=%s: %w", key, err)
	}
	return value, nil
}

// Set は指定キーに値を保存する。
func (s *SQLiteStore) Set(ctx context.Context, key, value string) error {
	if s.closed.Load() {
		return ErrUnavailable
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO entries (key, value, updated_at) VALUES (?, ?, datetime('now'))
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value)
	if err != nil {
		return fmt.Errorf("値の保存に失敗: key=%s: %w", key, err)
	}
	return nil
}

// Remove は指定キーを削除する。
func (s *SQLiteStore) Remove(ctx context.Context, key string) error {
	if s.closed.Load() {
		return ErrUnavailable
	}

	if _, err := s.db.ExecContext(ctx, "DELETE FROM entries WHERE key = ?", key); err != nil {
		return fmt.Errorf("値の削除に失敗: key=%s: %w", key, err)
	}
	return nil
}

// Close はデータベース接続を閉じる。2回目以降の呼び出しは何もしない。
func (s *SQLiteStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}
