package apitest

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/nao1215/resourcehub/pkg/api"
)

// tokenClaims はサーバーが発行するJWTのクレーム。
type tokenClaims struct {
	jwt.RegisteredClaims
	// Username はユーザー名。
	Username string `json:"username"`
	// UserID はユーザーID。
	UserID uint `json:"user_id"`
}

// IssueToken はユーザーに対してttlだけ有効なトークンを発行する。
func (s *Server) IssueToken(u api.User, ttl time.Duration) string {
	s.mu.Lock()
	secret := s.secret
	s.mu.Unlock()

	now := time.Now()
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Username: u.Username,
		UserID:   u.ID,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		panic(fmt.Sprintf("JWTトークンの署名に失敗: %v", err))
	}
	return signed
}

// RotateSecret は署名鍵を変更し、発行済みのトークンをすべて無効にする。
func (s *Server) RotateSecret() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secret = append([]byte("rotated-"), s.secret...)
}

// protected はBearerトークンを検証するGinミドルウェアを返す。
// 検証に成功した場合、コンテキストに "user_id" を設定する。
func (s *Server) protected() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, found := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !found || tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody("Missing or malformed JWT"))
			return
		}

		s.mu.Lock()
		secret := s.secret
		s.mu.Unlock()

		claims := &tokenClaims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
			return secret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody("Invalid or expired JWT"))
			return
		}

		c.Set("user_id", claims.UserID)
		c.Next()
	}
}

// currentUserID はprotectedミドルウェアが設定したユーザーIDを返す。
func currentUserID(c *gin.Context) uint {
	v, _ := c.Get("user_id")
	id, _ := v.(uint)
	return id
}
