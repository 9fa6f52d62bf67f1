package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/file-manager-api/internal/models"
	appErrors "github.com/noah-isme/file-manager-api/pkg/errors"
)

type authServiceMock struct {
	registered    models.RegisterRequest
	registerErr   error
	login         models.LoginRequest
	loggedOut     string
	logoutActor   string
	refreshResult *models.RefreshTokenResponse
}

func (m *authServiceMock) Register(ctx context.Context, req models.RegisterRequest, ip, userAgent string) (*models.LoginResponse, error) {
	m.registered = req
	if m.registerErr != nil {
		return nil, m.registerErr
	}
	return &models.LoginResponse{AccessToken: "access", RefreshToken: "refresh", User: models.UserInfo{ID: "user-1", Username: req.Username}}, nil
}

func (m *authServiceMock) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	m.login = req
	if req.Password != "secret-password" {
		return nil, appErrors.ErrInvalidCredentials
	}
	return &models.LoginResponse{AccessToken: "access", RefreshToken: "refresh"}, nil
}

func (m *authServiceMock) RefreshToken(ctx context.Context, req models.RefreshTokenRequest) (*models.RefreshTokenResponse, error) {
	if m.refreshResult == nil {
		return nil, appErrors.ErrUnauthorized
	}
	return m.refreshResult, nil
}

func (m *authServiceMock) Logout(ctx context.Context, refreshToken string, actor *models.JWTClaims) error {
	m.loggedOut = refreshToken
	m.logoutActor = actor.UserID
	return nil
}

func (m *authServiceMock) Me(ctx context.Context, actor *models.JWTClaims) (*models.UserInfo, error) {
	return &models.UserInfo{ID: actor.UserID, Username: actor.Username}, nil
}

func authRoutes(svc *authServiceMock, userID string) *gin.Engine {
	h := NewAuthHandler(svc)
	r := newRouter(userID)
	r.POST("/auth/register", h.Register)
	r.POST("/auth/login", h.Login)
	r.POST("/auth/refresh", h.Refresh)
	r.POST("/auth/logout", h.Logout)
	r.GET("/auth/me", h.Me)
	return r
}

func TestAuthHandlerRegister(t *testing.T) {
	svc := &authServiceMock{}
	w := serveJSON(authRoutes(svc, ""), http.MethodPost, "/auth/register", models.RegisterRequest{Username: "alice", Email: "alice@example.com", Password: "secret-password"})

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "alice", svc.registered.Username)

	svc.registerErr = appErrors.Clone(appErrors.ErrConflict, "username already taken")
	w = serveJSON(authRoutes(svc, ""), http.MethodPost, "/auth/register", models.RegisterRequest{Username: "alice"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestAuthHandlerLogin(t *testing.T) {
	svc := &authServiceMock{}
	r := authRoutes(svc, "")

	w := serveJSON(r, http.MethodPost, "/auth/login", map[string]string{"identifier": "alice", "password": "secret-password"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alice", svc.login.Identifier)
	assert.NotEmpty(t, svc.login.IP)

	w = serveJSON(r, http.MethodPost, "/auth/login", map[string]string{"identifier": "alice", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = serve(r, http.MethodPost, "/auth/login", nil, "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthHandlerRefresh(t *testing.T) {
	svc := &authServiceMock{refreshResult: &models.RefreshTokenResponse{AccessToken: "new-access", RefreshToken: "new-refresh"}}
	w := serveJSON(authRoutes(svc, ""), http.MethodPost, "/auth/refresh", map[string]string{"refresh_token": "old"})

	require.Equal(t, http.StatusOK, w.Code)
	var res models.RefreshTokenResponse
	decodeData(t, decode(t, w), &res)
	assert.Equal(t, "new-refresh", res.RefreshToken)
}

func TestAuthHandlerLogoutAndMe(t *testing.T) {
	svc := &authServiceMock{}

	w := serveJSON(authRoutes(svc, ""), http.MethodPost, "/auth/logout", map[string]string{"refresh_token": "tok"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	r := authRoutes(svc, "user-1")
	w = serveJSON(r, http.MethodPost, "/auth/logout", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serveJSON(r, http.MethodPost, "/auth/logout", map[string]string{"refresh_token": "tok"})
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "tok", svc.loggedOut)
	assert.Equal(t, "user-1", svc.logoutActor)

	w = serve(r, http.MethodGet, "/auth/me", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var info models.UserInfo
	decodeData(t, decode(t, w), &info)
	assert.Equal(t, "user-1", info.ID)
}
