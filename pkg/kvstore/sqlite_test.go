package kvstore

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io"
	"log"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
)

// openTestStore はテスト用にインメモリSQLiteのストアを生成する。
func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := Open(t.Context(), ":memory:")
	if err != nil {
		t.Fatalf("インメモリストアの作成に失敗: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// TestSQLiteStore はSQLiteStoreの基本操作を検証する。
func TestSQLiteStore(t *testing.T) {
	t.Parallel()

	t.Run("存在しないキーの取得でErrNotFoundが返ること", func(t *testing.T) {
		t.Parallel()

		s := openTestStore(t)
		_, err := s.Get(t.Context(), KeyToken)
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
	})

	t.Run("保存した値を取得できること", func(t *testing.T) {
		t.Parallel()

		s := openTestStore(t)
		if err := s.Set(t.Context(), KeyToken, "tok123"); err != nil {
			t.Fatalf("Set()でエラーが発生: %v", err)
		}
		got, err := s.Get(t.Context(), KeyToken)
		if err != nil {
			t.Fatalf("Get()でエラーが発生: %v", err)
		}
		if got != "tok123" {
			t.Errorf("Get() = %q, want %q", got, "tok123")
		}
	})

	t.Run("同じキーへの保存は上書きされること", func(t *testing.T) {
		t.Parallel()

		s := openTestStore(t)
		_ = s.Set(t.Context(), KeyUser, `{"id":1}`)
		_ = s.Set(t.Context(), KeyUser, `{"id":2}`)

		got, err := s.Get(t.Context(), KeyUser)
		if err != nil {
			t.Fatalf("Get()でエラーが発生: %v", err)
		}
		if got != `{"id":2}` {
			t.Errorf("Get() = %q, want %q", got, `{"id":2}`)
		}
	})

	t.Run("削除したキーは取得できなくなること", func(t *testing.T) {
		t.Parallel()

		s := openTestStore(t)
		_ = s.Set(t.Context(), KeyToken, "abc")
		if err := s.Remove(t.Context(), KeyToken); err != nil {
			t.Fatalf("Remove()でエラーが発生: %v", err)
		}
		if _, err := s.Get(t.Context(), KeyToken); !errors.Is(err, ErrNotFound) {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
	})

	t.Run("存在しないキーの削除はエラーにならないこと", func(t *testing.T) {
		t.Parallel()

		s := openTestStore(t)
		if err := s.Remove(t.Context(), "missing"); err != nil {
			t.Errorf("Remove()でエラーが発生: %v", err)
		}
	})

	t.Run("Close後の操作はErrUnavailableを返すこと", func(t *testing.T) {
		t.Parallel()

		s := openTestStore(t)
		if err := s.Close(); err != nil {
			t.Fatalf("Close()でエラーが発生: %v", err)
		}
		if _, err := s.Get(t.Context(), KeyToken); !errors.Is(err, ErrUnavailable) {
			t.Errorf("Get() err = %v, want ErrUnavailable", err)
		}
		if err := s.Set(t.Context(), KeyToken, "x"); !errors.Is(err, ErrUnavailable) {
			t.Errorf("Set() err = %v, want ErrUnavailable", err)
		}
		if err := s.Remove(t.Context(), KeyToken); !errors.Is(err, ErrUnavailable) {
			t.Errorf("Remove() err = %v, want ErrUnavailable", err)
		}
		if err := s.Close(); err != nil {
			t.Errorf("2回目のClose()でエラーが発生: %v", err)
		}
	})
}

// TestSQLiteStore_Persistence はファイルを開き直しても値が残ることを検証する。
func TestSQLiteStore_Persistence(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "state.db")

	s, err := Open(t.Context(), path)
	if err != nil {
		t.Fatalf("Open()でエラーが発生: %v", err)
	}
	if err := s.Set(t.Context(), KeyToken, "persisted"); err != nil {
		t.Fatalf("Set()でエラーが発生: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close()でエラーが発生: %v", err)
	}

	reopened, err := Open(t.Context(), path)
	if err != nil {
		t.Fatalf("再オープンに失敗: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.Get(t.Context(), KeyToken)
	if err != nil {
		t.Fatalf("Get()でエラーが発生: %v", err)
	}
	if got != "persisted" {
		t.Errorf("Get() = %q, want %q", got, "persisted")
	}
}

// TestMigrate はマイグレーションの適用順序と冪等性を検証する。
func TestMigrate(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"m/000002_second.up.sql": {Data: []byte("ALTER TABLE t ADD COLUMN b TEXT;")},
		"m/000001_first.up.sql":  {Data: []byte("CREATE TABLE t (a TEXT);")},
		"m/README.md":            {Data: []byte("ignored")},
		"m/abc_bad.up.sql":       {Data: []byte("SYNTAX ERROR")},
	}

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("インメモリDBの作成に失敗: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()

	t.Run("バージョン順に適用されること", func(t *testing.T) {
		applied, err := migrate(ctx, db, fsys, "m", log.New(io.Discard, "", 0))
		if err != nil {
			t.Fatalf("migrate()でエラーが発生: %v", err)
		}
		if len(applied) != 2 || applied[0] != 1 || applied[1] != 2 {
			t.Errorf("applied = %v, want [1 2]", applied)
		}
	})

	t.Run("2回目は何も適用されないこと", func(t *testing.T) {
		applied, err := migrate(ctx, db, fsys, "m", log.New(io.Discard, "", 0))
		if err != nil {
			t.Fatalf("migrate()でエラーが発生: %v", err)
		}
		if len(applied) != 0 {
			t.Errorf("applied = %v, want empty", applied)
		}
	})
}

// TestOpen_Logger はマイグレーションのログが指定したロガーにだけ出力されることを検証する。
func TestOpen_Logger(t *testing.T) {
	t.Parallel()

	t.Run("適用したマイグレーションが指定ロガーに記録されること", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		s, err := Open(t.Context(), ":memory:", WithLogger(log.New(&buf, "", 0)))
		if err != nil {
			t.Fatalf("Open()でエラーが発生: %v", err)
		}
		defer s.Close()

		if !strings.Contains(buf.String(), "[KVStore] マイグレーション 000001_") {
			t.Errorf("ログ = %q, マイグレーションの記録が含まれていない", buf.String())
		}
	})

	t.Run("破棄ロガーを指定しても正常に開けること", func(t *testing.T) {
		t.Parallel()

		s, err := Open(t.Context(), ":memory:", WithLogger(log.New(io.Discard, "", 0)))
		if err != nil {
			t.Fatalf("Open()でエラーが発生: %v", err)
		}
		defer s.Close()

		if err := s.Set(t.Context(), KeyToken, "x"); err != nil {
			t.Fatalf("Set()でエラーが発生: %v", err)
		}
	})
}

// TestRemoveAll は複数キーの一括削除を検証する。
func TestRemoveAll(t *testing.T) {
	t.Parallel()

	t.Run("すべてのキーが削除されること", func(t *testing.T) {
		t.Parallel()

		s := NewMemoryStore()
		_ = s.Set(t.Context(), KeyToken, "a")
		_ = s.Set(t.Context(), KeyUser, "b")

		if err := RemoveAll(t.Context(), s, KeyToken, KeyUser); err != nil {
			t.Fatalf("RemoveAll()でエラーが発生: %v", err)
		}
		for _, key := range []string{KeyToken, KeyUser} {
			if _, err := s.Get(t.Context(), key); !errors.Is(err, ErrNotFound) {
				t.Errorf("key=%s: err = %v, want ErrNotFound", key, err)
			}
		}
	})

	t.Run("閉じたストアではエラーが返ること", func(t *testing.T) {
		t.Parallel()

		s := NewMemoryStore()
		_ = s.Close()
		if err := RemoveAll(t.Context(), s, KeyToken, KeyUser); !errors.Is(err, ErrUnavailable) {
			t.Errorf("err = %v, want ErrUnavailable", err)
		}
	})
}
