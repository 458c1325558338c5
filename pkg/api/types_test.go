package api

import (
	"encoding/json"
	"testing"
)

// TestLoginResult_UnmarshalJSON は2種類のログイン応答を検証する。
func TestLoginResult_UnmarshalJSON(t *testing.T) {
	t.Parallel()

	t.Run("ユーザーとトークンの組", func(t *testing.T) {
		t.Parallel()

		var resp Response[LoginResult]
		body := `{"status":"success","message":"Success login","data":{"user":{"id":3,"username":"carol"},"token":"tok"}}`
		if err := json.Unmarshal([]byte(body), &resp); err != nil {
			t.Fatalf("Unmarshal() error = %v", err)
		}
		if resp.Data.Token != "tok" || resp.Data.User.ID != 3 || resp.Data.User.Username != "carol" {
			t.Errorf("Data = %+v", resp.Data)
		}
	})

	t.Run("トークン文字列のみ", func(t *testing.T) {
		t.Parallel()

		var resp Response[LoginResult]
		body := `{"status":"success","message":"Success login","data":"header.payload.sig"}`
		if err := json.Unmarshal([]byte(body), &resp); err != nil {
			t.Fatalf("Unmarshal() error = %v", err)
		}
		if resp.Data.Token != "header.payload.sig" {
			t.Errorf("Token = %q", resp.Data.Token)
		}
		if resp.Data.User.Username != "" {
			t.Errorf("User = %+v, want zero", resp.Data.User)
		}
	})

	t.Run("不正な型", func(t *testing.T) {
		t.Parallel()

		var r LoginResult
		if err := json.Unmarshal([]byte(`42`), &r); err == nil {
			t.Error("Unmarshal() error = nil")
		}
	})
}
