package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/nao1215/resourcehub/pkg/api"
	"github.com/nao1215/resourcehub/pkg/kvstore"
	"github.com/nao1215/resourcehub/pkg/observable"
)

var (
	// ErrNoSession は永続ストアにセッションが保存されていないことを表す。
	ErrNoSession = errors.New("session: no persisted session")
	// ErrCorruptSession は保存されたユーザー情報を復元できないことを表す。
	ErrCorruptSession = errors.New("session: persisted session is corrupt")
)

// Store はログイン状態を保持し、永続ストアと同期するセッションストア。
type Store struct {
	// kv は永続ストア。nilの場合は永続化できない環境として扱う。
	kv kvstore.Store
	// logger はログ出力先。
	logger *log.Logger
	// state は購読可能な現在の状態。
	state *observable.Value[State]
}

// Option はStoreの設定を変更する。
type Option func(*Store)

// WithLogger はログ出力先を設定する。
func WithLogger(l *log.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// New は新しいセッションストアを生成する。
// kvにnilを渡すと永続ストアが存在しない環境として動作し、常に未ログインで初期化される。
func New(kv kvstore.Store, opts ...Option) *Store {
	s := &Store{
		kv:     kv,
		logger: log.Default(),
		state:  observable.New(initialState()),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State は現在の状態を返す。
func (s *Store) State() State {
	return s.state.Get()
}

// Subscribe はfnを登録し、直ちに現在の状態で呼び出す。
// 以降は状態が遷移するたびに登録順で呼び出される。
func (s *Store) Subscribe(fn func(State)) observable.ID {
	return s.state.Subscribe(fn)
}

// Unsubscribe は購読を解除する。
func (s *Store) Unsubscribe(id observable.ID) bool {
	return s.state.Unsubscribe(id)
}

// Initialize は永続ストアからセッションを復元する。
// 2回目以降の呼び出しは永続ストアを読まずに現在の状態をそのまま返す。
func (s *Store) Initialize(ctx context.Context) State {
	return s.state.Update(func(current State) (State, bool) {
		if current.Initialized {
			return current, false
		}

		if s.kv == nil {
			s.logger.Printf("[Session] 永続ストアがないため未ログインとして初期化します")
			return loggedOut(), true
		}

		user, token, err := s.loadPersisted(ctx)
		switch {
		case err == nil:
			s.logger.Printf("[Session] セッションを復元しました: user=%s", user.Username)
			return loggedIn(user, token), true
		case errors.Is(err, ErrNoSession):
			return loggedOut(), true
		case errors.Is(err, ErrCorruptSession):
			s.logger.Printf("[Session] 保存されたユーザー情報が壊れているため削除します: %v", err)
			if err := kvstore.RemoveAll(ctx, s.kv, kvstore.KeyToken, kvstore.KeyUser); err != nil {
				s.logger.Printf("[Session] 壊れたセッションの削除に失敗: %v", err)
			}
			return loggedOut(), true
		default:
			s.logger.Printf("[Session] 永続ストアの読み出しに失敗: %v", err)
			return loggedOut(), true
		}
	})
}

// Login はユーザーとトークンを保存し、ログイン済みの状態に遷移する。
// 保存に失敗してもメモリ上の状態は遷移する。
func (s *Store) Login(ctx context.Context, user api.User, token string) State {
	if err := s.persist(ctx, &user, token); err != nil {
		s.logger.Printf("[Session] 認証情報の保存に失敗: %v", err)
	}

	next := loggedIn(&user, token)
	s.state.Set(next)
	s.logger.Printf("[Session] ログイン状態を更新しました: user=%s, token_len=%d", user.Username, len(token))
	return next
}

// Logout は保存済みの認証情報を削除し、未ログインの状態に遷移する。
// 削除に失敗してもメモリ上の状態は遷移する。
func (s *Store) Logout(ctx context.Context) State {
	if s.kv != nil {
		if err := kvstore.RemoveAll(ctx, s.kv, kvstore.KeyToken, kvstore.KeyUser); err != nil {
			s.logger.Printf("[Session] ログアウト時の認証情報の削除に失敗: %v", err)
		}
	}

	next := loggedOut()
	s.state.Set(next)
	s.logger.Printf("[Session] ログアウトしました")
	return next
}

// SetLoading はLoadingだけを上書きする。
func (s *Store) SetLoading(loading bool) State {
	return s.state.Update(func(current State) (State, bool) {
		current.Loading = loading
		return current, true
	})
}

// loadPersisted は永続ストアからユーザーとトークンを読み出す。
// 保存されていない場合はErrNoSession、復元できない場合はErrCorruptSessionを返す。
func (s *Store) loadPersisted(ctx context.Context) (*api.User, string, error) {
	token, err := s.kv.Get(ctx, kvstore.KeyToken)
	if err != nil && !errors.Is(err, kvstore.ErrNotFound) {
		return nil, "", fmt.Errorf("トークンの読み出しに失敗: %w", err)
	}
	raw, err := s.kv.Get(ctx, kvstore.KeyUser)
	if err != nil && !errors.Is(err, kvstore.ErrNotFound) {
		return nil, "", fmt.Errorf("ユーザー情報の読み出しに失敗: %w", err)
	}
	if token == "" || raw == "" {
		return nil, "", ErrNoSession
	}

	user, err := decodeUser(raw)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// persist はトークンとユーザーを永続ストアに書き込む。
// トークンの書き込みに失敗した場合はユーザーを書き込まない。
func (s *Store) persist(ctx context.Context, user *api.User, token string) error {
	if s.kv == nil {
		return nil
	}

	raw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("ユーザー情報のシリアライズに失敗: %w", err)
	}
	if err := s.kv.Set(ctx, kvstore.KeyToken, token); err != nil {
		return fmt.Errorf("トークンの保存に失敗: %w", err)
	}
	if err := s.kv.Set(ctx, kvstore.KeyUser, string(raw)); err != nil {
		return fmt.Errorf("ユーザー情報の保存に失敗: %w", err)
	}
	return nil
}

// decodeUser は保存されたJSONからユーザーを復元する。
func decodeUser(raw string) (*api.User, error) {
	var user *api.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptSession, err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: user is null", ErrCorruptSession)
	}
	return user, nil
}
