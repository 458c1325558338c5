package api

import (
	"context"
	"encoding/json"
	"fmt"
)

// Transport はAPI呼び出しに使うJSONトランスポート。
// httpclient.Clientがこれを満たす。
type Transport interface {
	GetJSON(ctx context.Context, path string, result any) error
	PostJSON(ctx context.Context, path string, body any, result any) error
	PutJSON(ctx context.Context, path string, body any, result any) error
	PatchJSON(ctx context.Context, path string, body any, result any) error
	DeleteJSON(ctx context.Context, path string, result any) error
}

// Client はリソース管理APIのクライアント。
type Client struct {
	// Auth は認証API。
	Auth *AuthService
	// Users はユーザーAPI。
	Users *UsersService
	// Resources はリソースAPI。
	Resources *ResourcesService
}

// New はtを使うAPIクライアントを生成する。
func New(t Transport) *Client {
	return &Client{
		Auth:      &AuthService{t: t},
		Users:     &UsersService{t: t},
		Resources: &ResourcesService{t: t},
	}
}

// AuthService は /auth 配下のエンドポイントを呼び出す。
type AuthService struct {
	t Transport
}

// Login はユーザー名とパスワードでログインし、ユーザー情報とトークンを返す。
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*Response[LoginResult], error) {
	var resp Response[LoginResult]
	if err := s.t.PostJSON(ctx, "/auth/login", req, &resp); err != nil {
		return nil, fmt.Errorf("ログインに失敗: %w", err)
	}
	return &resp, nil
}

// Register は新しいユーザーを登録する。
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*Response[User], error) {
	var resp Response[User]
	if err := s.t.PostJSON(ctx, "/auth/register", req, &resp); err != nil {
		return nil, fmt.Errorf("ユーザー登録に失敗: %w", err)
	}
	return &resp, nil
}

// UsersService は /user 配下のエンドポイントを呼び出す。
type UsersService struct {
	t Transport
}

// List は全ユーザーを返す。
func (s *UsersService) List(ctx context.Context) (*Response[[]User], error) {
	var resp Response[[]User]
	if err := s.t.GetJSON(ctx, "/user/", &resp); err != nil {
		return nil, fmt.Errorf("ユーザー一覧の取得に失敗: %w", err)
	}
	return &resp, nil
}

// Get は指定IDのユーザーを返す。
func (s *UsersService) Get(ctx context.Context, id uint) (*Response[User], error) {
	var resp Response[User]
	if err := s.t.GetJSON(ctx, fmt.Sprintf("/user/%d", id), &resp); err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗: id=%d: %w", id, err)
	}
	return &resp, nil
}

// Create はユーザーを作成する。
func (s *UsersService) Create(ctx context.Context, req RegisterRequest) (*Response[User], error) {
	var resp Response[User]
	if err := s.t.PostJSON(ctx, "/user/", req, &resp); err != nil {
		return nil, fmt.Errorf("ユーザーの作成に失敗: %w", err)
	}
	return &resp, nil
}

// Update は指定IDのユーザーを部分更新する。
func (s *UsersService) Update(ctx context.Context, id uint, req UpdateUserRequest) (*Response[User], error) {
	var resp Response[User]
	if err := s.t.PatchJSON(ctx, fmt.Sprintf("/user/%d", id), req, &resp); err != nil {
		return nil, fmt.Errorf("ユーザーの更新に失敗: id=%d: %w", id, err)
	}
	return &resp, nil
}

// Delete は指定IDのユーザーを削除する。
func (s *UsersService) Delete(ctx context.Context, id uint) (*Response[json.RawMessage], error) {
	var resp Response[json.RawMessage]
	if err := s.t.DeleteJSON(ctx, fmt.Sprintf("/user/%d", id), &resp); err != nil {
		return nil, fmt.Errorf("ユーザーの削除に失敗: id=%d: %w", id, err)
	}
	return &resp, nil
}

// ResourcesService は /resource 配下のエンドポイントを呼び出す。
type ResourcesService struct {
	t Transport
}

// List は全リソースを返す。
func (s *ResourcesService) List(ctx context.Context) (*Response[[]Resource], error) {
	var resp Response[[]Resource]
	if err := s.t.GetJSON(ctx, "/resource/", &resp); err != nil {
		return nil, fmt.Errorf("リソース一覧の取得に失敗: %w", err)
	}
	return &resp, nil
}

// Get は指定IDのリソースを返す。
func (s *ResourcesService) Get(ctx context.Context, id uint) (*Response[Resource], error) {
	var resp Response[Resource]
	if err := s.t.GetJSON(ctx, fmt.Sprintf("/resource/%d", id), &resp); err != nil {
		return nil, fmt.Errorf("リソースの取得に失敗: id=%d: %w", id, err)
	}
	return &resp, nil
}

// Create はリソースを作成する。
func (s *ResourcesService) Create(ctx context.Context, req CreateResourceRequest) (*Response[Resource], error) {
	var resp Response[Resource]
	if err := s.t.PostJSON(ctx, "/resource/", req, &resp); err != nil {
		return nil, fmt.Errorf("リソースの作成に失敗: %w", err)
	}
	return &resp, nil
}

// Update は指定IDのリソースを更新する。
func (s *ResourcesService) Update(ctx context.Context, id uint, req UpdateResourceRequest) (*Response[Resource], error) {
	var resp Response[Resource]
	if err := s.t.PutJSON(ctx, fmt.Sprintf("/resource/%d", id), req, &resp); err != nil {
		return nil, fmt.Errorf("リソースの更新に失敗: id=%d: %w", id, err)
	}
	return &resp, nil
}

// Delete は指定IDのリソースを削除する。
func (s *ResourcesService) Delete(ctx context.Context, id uint) (*Response[json.RawMessage], error) {
	var resp Response[json.RawMessage]
	if err := s.t.DeleteJSON(ctx, fmt.Sprintf("/resource/%d", id), &resp); err != nil {
		return nil, fmt.Errorf("リソースの削除に失敗: id=%d: %w", id, err)
	}
	return &resp, nil
}

// History は指定IDのリソースの変更履歴を返す。
func (s *ResourcesService) History(ctx context.Context, id uint) (*Response[[]ResourceHistory], error) {
	var resp Response[[]ResourceHistory]
	if err := s.t.GetJSON(ctx, fmt.Sprintf("/resource/%d/history", id), &resp); err != nil {
		return nil, fmt.Errorf("変更履歴の取得に失敗: id=%d: %w", id, err)
	}
	return &resp, nil
}
