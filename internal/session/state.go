package session

import "github.com/nao1215/resourcehub/pkg/api"

// State はセッションの状態。Storeが生成したものだけが不変条件を満たす。
type State struct {
	// User はログイン中のユーザー。未ログインの場合はnil。読み取り専用として扱うこと。
	User *api.User
	// Token は認証トークン。未ログインの場合は空文字列。
	Token string
	// IsAuthenticated はUserとTokenの両方が存在する場合にのみtrue。
	IsAuthenticated bool
	// Loading は最初のInitializeが完了するまでtrue。
	Loading bool
	// Initialized はInitializeが一度完了した後はtrue。
	Initialized bool
}

// initialState は生成直後の状態を返す。
func initialState() State {
	return State{Loading: true}
}

// loggedIn はログイン済みの終端状態を返す。
func loggedIn(user *api.User, token string) State {
	return State{
		User:            user,
		Token:           token,
		IsAuthenticated: user != nil && token != "",
		Loading:         false,
		Initialized:     true,
	}
}

// loggedOut は未ログインの終端状態を返す。
func loggedOut() State {
	return State{Initialized: true}
}
