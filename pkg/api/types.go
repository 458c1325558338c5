package api

import (
	"bytes"
	"encoding/json"
	"time"
)

// ResponseStatus はエンベロープのstatusフィールドの値。
type ResponseStatus string

const (
	// StatusSuccess は処理が成功したことを表す。
	StatusSuccess ResponseStatus = "success"
	// StatusError は処理が失敗したことを表す。
	StatusError ResponseStatus = "error"
)

// Response はAPIの共通レスポンスエンベロープ。
type Response[T any] struct {
	// Status は処理結果。
	Status ResponseStatus `json:"status"`
	// Message は人が読むためのメッセージ。
	Message string `json:"message"`
	// Data は応答本体。
	Data T `json:"data"`
}

// User はユーザーの識別情報。
type User struct {
	// ID はユーザーの一意識別子。
	ID uint `json:"id"`
	// Username はログインに使うユーザー名。
	Username string `json:"username"`
	// Email はメールアドレス。
	Email string `json:"email"`
	// Names は表示名。未設定の場合は空文字列。
	Names string `json:"names,omitempty"`
	// CreatedAt は作成日時。
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt は更新日時。
	UpdatedAt time.Time `json:"updated_at"`
}

// DisplayName は表示名があればそれを、なければユーザー名を返す。
func (u *User) DisplayName() string {
	if u.Names != "" {
		return u.Names
	}
	return u.Username
}

// Resource は管理対象のリソース（在庫品目）。
type Resource struct {
	// ID はリソースの一意識別子。
	ID uint `json:"id"`
	// Name はリソース名。
	Name string `json:"name"`
	// Description は説明。
	Description string `json:"description,omitempty"`
	// Unit は数量の単位（kg, l など）。
	Unit string `json:"unit"`
	// Quantity は数量。
	Quantity int `json:"quantity"`
	// CreatedAt は作成日時。
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt は更新日時。
	UpdatedAt time.Time `json:"updated_at"`
}

// HistoryAction はリソースに対する変更の種類。
type HistoryAction string

const (
	// ActionCreate はリソースが作成されたことを表す。
	ActionCreate HistoryAction = "CREATE"
	// ActionUpdate はリソースが更新されたことを表す。
	ActionUpdate HistoryAction = "UPDATE"
	// ActionDelete はリソースが削除されたことを表す。
	ActionDelete HistoryAction = "DELETE"
)

// ResourceHistory はリソースの変更履歴1件。
type ResourceHistory struct {
	// ID は履歴の一意識別子。
	ID uint `json:"id"`
	// ResourceID は変更されたリソースのID。
	ResourceID uint `json:"resource_id"`
	// Action は変更の種類。
	Action HistoryAction `json:"action"`
	// UserID は変更したユーザーのID。
	UserID uint `json:"user_id"`
	// OldData は変更前のリソース（JSON文字列）。UPDATE/DELETEのみ。
	OldData string `json:"old_data,omitempty"`
	// NewData は変更後のリソース（JSON文字列）。CREATE/UPDATEのみ。
	NewData string `json:"new_data,omitempty"`
	// Timestamp は変更日時。
	Timestamp time.Time `json:"timestamp"`
	// Description は変更内容の説明。
	Description string `json:"description"`
	// Resource は変更されたリソース。
	Resource Resource `json:"resource"`
	// User は変更したユーザー。
	User User `json:"user"`
}

// LoginRequest はログインリクエスト。
type LoginRequest struct {
	// Username はユーザー名。
	Username string `json:"username"`
	// Password はパスワード。
	Password string `json:"password"`
}

// LoginResult はログイン成功時のdata。
type LoginResult struct {
	// User はログインしたユーザー。
	User User `json:"user"`
	// Token は以降のリクエストに使うBearerトークン。
	Token string `json:"token"`
}

// UnmarshalJSON は {"user":...,"token":...} と、トークン文字列だけのdataの両方を受け付ける。
// 後者の場合Userはゼロ値になる。
func (r *LoginResult) UnmarshalJSON(data []byte) error {
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '"' {
		*r = LoginResult{}
		return json.Unmarshal(trimmed, &r.Token)
	}
	type plain LoginResult
	return json.Unmarshal(data, (*plain)(r))
}

// RegisterRequest はユーザー登録・作成リクエスト。
type RegisterRequest struct {
	// Username はユーザー名。
	Username string `json:"username"`
	// Email はメールアドレス。
	Email string `json:"email"`
	// Password はパスワード。
	Password string `json:"password"`
	// Names は表示名。
	Names string `json:"names,omitempty"`
}

// UpdateUserRequest はユーザーの部分更新リクエスト。nilのフィールドは変更しない。
type UpdateUserRequest struct {
	Username *string `json:"username,omitempty"`
	Email    *string `json:"email,omitempty"`
	Password *string `json:"password,omitempty"`
	Names    *string `json:"names,omitempty"`
}

// CreateResourceRequest はリソース作成リクエスト。
type CreateResourceRequest struct {
	// Name はリソース名。
	Name string `json:"name"`
	// Description は説明。
	Description string `json:"description,omitempty"`
	// Unit は数量の単位。
	Unit string `json:"unit"`
	// Quantity は数量。
	Quantity int `json:"quantity"`
}

// UpdateResourceRequest はリソースの部分更新リクエスト。nilのフィールドは変更しない。
type UpdateResourceRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Unit        *string `json:"unit,omitempty"`
	Quantity    *int    `json:"quantity,omitempty"`
}
