package kvstore

import (
	"context"
	"errors"
)

// 永続ストアに保存されるキー。HTTPクライアントとセッションストアが共有する。
const (
	// KeyToken は認証トークンを保存するキー。
	KeyToken = "token"
	// KeyUser はJSONシリアライズしたユーザー情報を保存するキー。
	KeyUser = "user"
)

var (
	// ErrNotFound は指定キーが存在しないことを表す。
	ErrNotFound = errors.New("kvstore: key not found")
	// ErrUnavailable はストアが利用できない（クローズ済み等）ことを表す。
	ErrUnavailable = errors.New("kvstore: store unavailable")
)

// Store は文字列キーと文字列値の永続ストア。
// 実装は複数goroutineから安全に呼び出せなければならない。
type Store interface {
	// Get は指定キーの値を返す。キーが存在しない場合はErrNotFoundを返す。
	Get(ctx context.Context, key string) (string, error)
	// Set は指定キーに値を保存する。既存の値は上書きされる。
	Set(ctx context.Context, key, value string) error
	// Remove は指定キーを削除する。存在しないキーの削除はエラーにならない。
	Remove(ctx context.Context, key string) error
	// Close はストアが保持するリソースを解放する。
	Close() error
}

// RemoveAll は複数のキーを削除する。
// 途中で失敗しても残りのキーの削除を試み、最初のエラーを返す。
func RemoveAll(ctx context.Context, s Store, keys ...string) error {
	var firstErr error
	for _, key := range keys {
		if err := s.Remove(ctx, key); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
