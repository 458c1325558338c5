package api

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenInfo はトークンから読み取ったクレーム。
// 署名は検証しないため、表示目的にのみ使うこと。
type TokenInfo struct {
	// Username はトークンに含まれるユーザー名。
	Username string
	// UserID はトークンに含まれるユーザーID。
	UserID uint
	// ExpiresAt は有効期限。expクレームがない場合はゼロ値。
	ExpiresAt time.Time
}

// Expired はnow時点で有効期限を過ぎているかどうかを返す。期限なしの場合はfalse。
func (i TokenInfo) Expired(now time.Time) bool {
	return !i.ExpiresAt.IsZero() && !now.Before(i.ExpiresAt)
}

// InspectToken はJWTを署名検証せずに解析してクレームを返す。
// JWT形式でないトークンの場合はエラーを返す。
func InspectToken(token string) (TokenInfo, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return TokenInfo{}, fmt.Errorf("トークンの解析に失敗: %w", err)
	}

	var info TokenInfo
	if username, ok := claims["username"].(string); ok {
		info.Username = username
	}
	if userID, ok := claims["user_id"].(float64); ok && userID > 0 {
		info.UserID = uint(userID)
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return TokenInfo{}, fmt.Errorf("有効期限の解析に失敗: %w", err)
	}
	if exp != nil {
		info.ExpiresAt = exp.Time
	}
	return info, nil
}
