package apitest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/resourcehub/pkg/api"
)

// storedUser はパスワード付きのユーザー。
type storedUser struct {
	api.User
	password string
}

// Server はインメモリでデータを保持するAPIサーバー。
type Server struct {
	// URL は "/api" を含むベースURL。httpclient.Newにそのまま渡せる。
	URL string

	mu         sync.Mutex
	secret     []byte
	users      map[uint]*storedUser
	resources  map[uint]api.Resource
	history    []api.ResourceHistory
	nextUser   uint
	nextRes    uint
	nextHist   uint
	requests   int
	lastAuthor uint
	userHeader string
	bareToken  bool
}

// NewServer はテスト用サーバーを起動する。テスト終了時に停止する。
func NewServer(t testing.TB) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s := &Server{
		secret:    []byte("test-secret-key"),
		users:     make(map[uint]*storedUser),
		resources: make(map[uint]api.Resource),
	}

	router := gin.New()
	router.Use(func(c *gin.Context) {
		s.mu.Lock()
		s.requests++
		if v := c.GetHeader("X-User-ID"); v != "" {
			s.userHeader = v
		}
		s.mu.Unlock()
		c.Next()
	})
	s.setupRoutes(router)

	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)
	s.URL = ts.URL + "/api"
	return s
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes(router *gin.Engine) {
	apiGroup := router.Group("/api")

	auth := apiGroup.Group("/auth")
	{
		auth.POST("/login", s.handleLogin())
		auth.POST("/register", s.handleRegister())
	}

	user := apiGroup.Group("/user")
	{
		user.GET("/", s.handleListUsers())
		user.GET("/:id", s.handleGetUser())
		user.POST("/", s.handleRegister())
		user.PATCH("/:id", s.protected(), s.handleUpdateUser())
		user.DELETE("/:id", s.protected(), s.handleDeleteUser())
	}

	resource := apiGroup.Group("/resource")
	{
		resource.GET("/", s.handleListResources())
		resource.GET("/:id", s.handleGetResource())
		resource.POST("/", s.protected(), s.handleCreateResource())
		resource.PUT("/:id", s.protected(), s.handleUpdateResource())
		resource.DELETE("/:id", s.protected(), s.handleDeleteResource())
		resource.GET("/:id/history", s.handleHistory())
	}
}

// AddUser はユーザーを直接登録して返す。
func (s *Server) AddUser(username, email, password string) api.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addUserLocked(api.RegisterRequest{Username: username, Email: email, Password: password})
}

// AddResource はリソースを直接登録して返す。履歴は記録しない。
func (s *Server) AddResource(name, unit string, quantity int) api.Resource {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextRes++
	now := time.Now().UTC()
	r := api.Resource{ID: s.nextRes, Name: name, Unit: unit, Quantity: quantity, CreatedAt: now, UpdatedAt: now}
	s.resources[r.ID] = r
	return r
}

// UseBareLoginToken はログイン応答のdataをトークン文字列だけにする。
func (s *Server) UseBareLoginToken() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bareToken = true
}

// Requests はサーバーが受け付けたリクエスト数を返す。
func (s *Server) Requests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests
}

// LastAuthor は最後にリソースを変更したユーザーのIDを返す。
func (s *Server) LastAuthor() uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAuthor
}

// LastUserHeader は最後に受け付けたX-User-IDヘッダーの値を返す。
func (s *Server) LastUserHeader() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userHeader
}

func (s *Server) addUserLocked(req api.RegisterRequest) api.User {
	s.nextUser++
	now := time.Now().UTC()
	u := &storedUser{
		User: api.User{
			ID:        s.nextUser,
			Username:  req.Username,
			Email:     req.Email,
			Names:     req.Names,
			CreatedAt: now,
			UpdatedAt: now,
		},
		password: req.Password,
	}
	s.users[u.ID] = u
	return u.User
}

// handleLogin はユーザー名とパスワードを検証してトークンを発行するハンドラ。
func (s *Server) handleLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req api.LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, errorBody("Error on login request"))
			return
		}

		s.mu.Lock()
		var found *storedUser
		for _, u := range s.users {
			if (u.Username == req.Username || u.Email == req.Username) && u.password == req.Password {
				found = u
				break
			}
		}
		s.mu.Unlock()

		if found == nil {
			c.JSON(http.StatusUnauthorized, errorBody("Invalid identity or password"))
			return
		}

		token := s.IssueToken(found.User, 72*time.Hour)
		s.mu.Lock()
		bare := s.bareToken
		s.mu.Unlock()
		if bare {
			c.JSON(http.StatusOK, successBody("Success login", token))
			return
		}
		c.JSON(http.StatusOK, successBody("Success login", api.LoginResult{User: found.User, Token: token}))
	}
}

// handleRegister はユーザーを登録するハンドラ。
func (s *Server) handleRegister() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req api.RegisterRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.Username == "" || req.Password == "" {
			c.JSON(http.StatusBadRequest, errorBody("Review your input"))
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		for _, u := range s.users {
			if u.Username == req.Username {
				c.JSON(http.StatusConflict, errorBody("Username already exists"))
				return
			}
		}
		c.JSON(http.StatusOK, successBody("Created user", s.addUserLocked(req)))
	}
}

// handleListUsers は全ユーザーを返すハンドラ。
func (s *Server) handleListUsers() gin.HandlerFunc {
	return func(c *gin.Context) {
		s.mu.Lock()
		users := make([]api.User, 0, len(s.users))
		for _, u := range s.users {
			users = append(users, u.User)
		}
		s.mu.Unlock()

		slices.SortFunc(users, func(a, b api.User) int { return int(a.ID) - int(b.ID) })
		c.JSON(http.StatusOK, successBody("All users", users))
	}
}

// handleGetUser は指定IDのユーザーを返すハンドラ。
func (s *Server) handleGetUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c)
		if !ok {
			return
		}

		s.mu.Lock()
		u, found := s.users[id]
		s.mu.Unlock()

		if !found {
			c.JSON(http.StatusNotFound, errorBody("No user found with ID"))
			return
		}
		c.JSON(http.StatusOK, successBody("User found", u.User))
	}
}

// handleUpdateUser は本人のユーザー情報を部分更新するハンドラ。
func (s *Server) handleUpdateUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c)
		if !ok {
			return
		}
		if currentUserID(c) != id {
			c.JSON(http.StatusForbidden, errorBody("Invalid token id"))
			return
		}

		var req api.UpdateUserRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, errorBody("Review your input"))
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		u, found := s.users[id]
		if !found {
			c.JSON(http.StatusNotFound, errorBody("No user found with ID"))
			return
		}
		if req.Username != nil {
			u.Username = *req.Username
		}
		if req.Email != nil {
			u.Email = *req.Email
		}
		if req.Names != nil {
			u.Names = *req.Names
		}
		if req.Password != nil {
			u.password = *req.Password
		}
		u.UpdatedAt = time.Now().UTC()
		c.JSON(http.StatusOK, successBody("User successfully updated", u.User))
	}
}

// handleDeleteUser は本人のユーザーを削除するハンドラ。
func (s *Server) handleDeleteUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c)
		if !ok {
			return
		}
		if currentUserID(c) != id {
			c.JSON(http.StatusForbidden, errorBody("Invalid token id"))
			return
		}

		s.mu.Lock()
		delete(s.users, id)
		s.mu.Unlock()
		c.JSON(http.StatusOK, successBody("User successfully deleted", nil))
	}
}

// handleListResources は全リソースを返すハンドラ。
func (s *Server) handleListResources() gin.HandlerFunc {
	return func(c *gin.Context) {
		s.mu.Lock()
		resources := make([]api.Resource, 0, len(s.resources))
		for _, r := range s.resources {
			resources = append(resources, r)
		}
		s.mu.Unlock()

		slices.SortFunc(resources, func(a, b api.Resource) int { return int(a.ID) - int(b.ID) })
		c.JSON(http.StatusOK, successBody("resources list", resources))
	}
}

// handleGetResource は指定IDのリソースを返すハンドラ。
func (s *Server) handleGetResource() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c)
		if !ok {
			return
		}

		s.mu.Lock()
		r, found := s.resources[id]
		s.mu.Unlock()

		if !found {
			c.JSON(http.StatusNotFound, errorBody("resource not found"))
			return
		}
		c.JSON(http.StatusOK, successBody("resource found", r))
	}
}

// handleCreateResource はリソースを作成して履歴に記録するハンドラ。
func (s *Server) handleCreateResource() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req api.CreateResourceRequest
		if err := c.ShouldBindJSON(&req); err != nil || len(req.Name) < 2 || req.Unit == "" || req.Quantity < 0 {
			c.JSON(http.StatusBadRequest, errorBody("validation failed"))
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()

		s.nextRes++
		now := time.Now().UTC()
		r := api.Resource{
			ID:          s.nextRes,
			Name:        req.Name,
			Description: req.Description,
			Unit:        req.Unit,
			Quantity:    req.Quantity,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		s.resources[r.ID] = r
		s.recordLocked(c, api.ActionCreate, nil, &r, fmt.Sprintf("Resource '%s' created", r.Name))

		c.JSON(http.StatusOK, successBody("resource created", r))
	}
}

// handleUpdateResource はリソースを部分更新して履歴に記録するハンドラ。
func (s *Server) handleUpdateResource() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c)
		if !ok {
			return
		}

		var req api.UpdateResourceRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, errorBody("invalid json payload"))
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()

		old, found := s.resources[id]
		if !found {
			c.JSON(http.StatusNotFound, errorBody("resource not found"))
			return
		}
		updated := old
		if req.Name != nil {
			updated.Name = *req.Name
		}
		if req.Description != nil {
			updated.Description = *req.Description
		}
		if req.Unit != nil {
			updated.Unit = *req.Unit
		}
		if req.Quantity != nil {
			updated.Quantity = *req.Quantity
		}
		updated.UpdatedAt = time.Now().UTC()
		s.resources[id] = updated
		s.recordLocked(c, api.ActionUpdate, &old, &updated, fmt.Sprintf("Resource '%s' updated", updated.Name))

		c.JSON(http.StatusOK, successBody("resource updated", updated))
	}
}

// handleDeleteResource はリソースを削除して履歴に記録するハンドラ。
func (s *Server) handleDeleteResource() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c)
		if !ok {
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()

		old, found := s.resources[id]
		if !found {
			c.JSON(http.StatusNotFound, errorBody("resource not found"))
			return
		}
		delete(s.resources, id)
		s.recordLocked(c, api.ActionDelete, &old, nil, fmt.Sprintf("Resource '%s' deleted", old.Name))

		c.JSON(http.StatusOK, successBody("resource deleted", nil))
	}
}

// handleHistory は指定リソースの変更履歴を新しい順に返すハンドラ。
func (s *Server) handleHistory() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c)
		if !ok {
			return
		}

		s.mu.Lock()
		var entries []api.ResourceHistory
		for _, h := range s.history {
			if h.ResourceID == id {
				entries = append(entries, h)
			}
		}
		s.mu.Unlock()

		slices.Reverse(entries)
		if entries == nil {
			entries = []api.ResourceHistory{}
		}
		c.JSON(http.StatusOK, successBody("resource history", entries))
	}
}

// recordLocked は変更履歴を1件追加する。s.muを保持して呼ぶこと。
func (s *Server) recordLocked(c *gin.Context, action api.HistoryAction, before, after *api.Resource, description string) {
	s.nextHist++
	userID := currentUserID(c)
	s.lastAuthor = userID

	h := api.ResourceHistory{
		ID:          s.nextHist,
		Action:      action,
		UserID:      userID,
		Timestamp:   time.Now().UTC(),
		Description: description,
	}
	if before != nil {
		h.ResourceID = before.ID
		h.Resource = *before
		h.OldData = mustJSON(before)
	}
	if after != nil {
		h.ResourceID = after.ID
		h.Resource = *after
		h.NewData = mustJSON(after)
	}
	if u, ok := s.users[userID]; ok {
		h.User = u.User
	}
	s.history = append(s.history, h)
}

// paramID はパスパラメータのIDを解釈する。不正な場合は400を返してfalseを返す。
func paramID(c *gin.Context) (uint, bool) {
	n, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || n == 0 {
		c.JSON(http.StatusBadRequest, errorBody("invalid id"))
		return 0, false
	}
	return uint(n), true
}

func successBody(message string, data any) gin.H {
	return gin.H{"status": "success", "message": message, "data": data}
}

func errorBody(message string) gin.H {
	return gin.H{"status": "error", "message": message, "data": nil}
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(b)
}
