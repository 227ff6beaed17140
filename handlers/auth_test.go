package handlers

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/secureboat/recipe-api/internal/config"
	"github.com/secureboat/recipe-api/internal/datastore"
	"github.com/secureboat/recipe-api/internal/sessions"
	"github.com/secureboat/recipe-api/internal/users"
)

func authTestConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{RootURL: testRoot},
		Google: config.GoogleConfig{
			ClientID:     "client-1",
			AuthEndpoint: "https://accounts.example.com/auth",
		},
		JWT: config.JWTConfig{
			Secret:     "test-secret",
			AccessTTL:  15 * time.Minute,
			SessionTTL: time.Hour,
		},
	}
}

// authRouter wires the auth handler over miniredis-backed sessions and an
// in-memory user cache. The returned services let tests seed state directly.
func authRouter(t *testing.T) (*gin.Engine, *users.Service, *sessions.Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	m, err := mr.Run()
	require.NoError(t, err)
	t.Cleanup(m.Close)

	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	sessionsSvc := sessions.NewService(sessions.NewRedisRepository(client, ""))
	usersSvc := users.NewService(datastore.NewMemoryStore())

	g := gin.New()
	NewAuthHandler(authTestConfig(), usersSvc, sessionsSvc, nil).Register(g.Group("/"))
	return g, usersSvc, sessionsSvc
}

func TestLogin_RedirectsToProvider(t *testing.T) {
	g, _, _ := authRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/login?redirect=/recipes/7", nil)
	rw := httptest.NewRecorder()
	g.ServeHTTP(rw, req)

	require.Equal(t, http.StatusFound, rw.Code)
	loc, err := url.Parse(rw.Header().Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "accounts.example.com", loc.Host)
	require.Equal(t, "client-1", loc.Query().Get("client_id"))
	require.Equal(t, testRoot+"/oauth2callback", loc.Query().Get("redirect_uri"))
	require.NotEmpty(t, loc.Query().Get("state"))

	var cookie *http.Cookie
	for _, ck := range rw.Result().Cookies() {
		if ck.Name == sessionCookie {
			cookie = ck
		}
	}
	require.NotNil(t, cookie, "login must set the session cookie")
	require.NotEmpty(t, cookie.Value)
}

func TestCallback_RejectsWithoutSession(t *testing.T) {
	g, _, _ := authRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/oauth2callback?state=x&code=y", nil)
	rw := httptest.NewRecorder()
	g.ServeHTTP(rw, req)
	require.Equal(t, http.StatusBadRequest, rw.Code)
}

func TestCallback_RejectsStateMismatch(t *testing.T) {
	g, _, sessionsSvc := authRouter(t)
	sess, err := sessionsSvc.Start(context.Background(), "/recipes", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/oauth2callback?state=forged&code=y", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookie, Value: sess.ID})
	rw := httptest.NewRecorder()
	g.ServeHTTP(rw, req)
	require.Equal(t, http.StatusBadRequest, rw.Code)
}

func TestRefresh_IssuesAccessToken(t *testing.T) {
	g, usersSvc, sessionsSvc := authRouter(t)
	ctx := context.Background()

	u, err := usersSvc.UpsertFromClaims(ctx, map[string]interface{}{
		"sub": "google-1", "email": "cook@example.com", "name": "Cook",
	})
	require.NoError(t, err)
	sess, err := sessionsSvc.Start(ctx, "/recipes", time.Hour)
	require.NoError(t, err)
	require.NoError(t, sessionsSvc.Complete(ctx, sess, u.Sub))

	rw := doJSON(t, g, http.MethodPost, "/auth/refresh", "", gin.H{"refresh_token": sess.ID})
	require.Equal(t, http.StatusOK, rw.Code)
	body := decode(t, rw)
	require.NotEmpty(t, body["access_token"])
	require.Equal(t, float64(15*60), body["expires_in"])
}

func TestRefresh_RejectsUncompletedSession(t *testing.T) {
	g, _, sessionsSvc := authRouter(t)
	// session exists but was never bound to a subject
	sess, err := sessionsSvc.Start(context.Background(), "/recipes", time.Hour)
	require.NoError(t, err)

	rw := doJSON(t, g, http.MethodPost, "/auth/refresh", "", gin.H{"refresh_token": sess.ID})
	require.Equal(t, http.StatusUnauthorized, rw.Code)
}

func TestRefresh_RejectsUnknownToken(t *testing.T) {
	g, _, _ := authRouter(t)
	rw := doJSON(t, g, http.MethodPost, "/auth/refresh", "", gin.H{"refresh_token": "no-such-session"})
	require.Equal(t, http.StatusUnauthorized, rw.Code)

	rw = doJSON(t, g, http.MethodPost, "/auth/refresh", "", gin.H{})
	require.Equal(t, http.StatusBadRequest, rw.Code)
}

func TestLogout_RemovesSession(t *testing.T) {
	g, usersSvc, sessionsSvc := authRouter(t)
	ctx := context.Background()

	u, err := usersSvc.UpsertFromClaims(ctx, map[string]interface{}{"sub": "google-1"})
	require.NoError(t, err)
	sess, err := sessionsSvc.Start(ctx, "/recipes", time.Hour)
	require.NoError(t, err)
	require.NoError(t, sessionsSvc.Complete(ctx, sess, u.Sub))

	rw := doJSON(t, g, http.MethodPost, "/auth/logout", "", gin.H{"refresh_token": sess.ID})
	require.Equal(t, http.StatusOK, rw.Code)

	// the refresh token no longer works
	rw = doJSON(t, g, http.MethodPost, "/auth/refresh", "", gin.H{"refresh_token": sess.ID})
	require.Equal(t, http.StatusUnauthorized, rw.Code)
}

func base64Payload(t *testing.T, s string) string {
	t.Helper()
	return base64.RawURLEncoding.EncodeToString([]byte(s))
}

func TestParseExpFromJWT(t *testing.T) {
	exp := time.Now().Add(10 * time.Minute).Unix()
	// unsigned token with only an exp claim in the payload
	tok := fmt.Sprintf("h.%s.s", base64Payload(t, fmt.Sprintf(`{"exp":%d}`, exp)))
	got, err := parseExpFromJWT(tok)
	require.NoError(t, err)
	require.Equal(t, exp, got.Unix())

	_, err = parseExpFromJWT("not-a-jwt")
	require.Error(t, err)

	_, err = parseExpFromJWT(fmt.Sprintf("h.%s.s", base64Payload(t, `{"sub":"x"}`)))
	require.Error(t, err)
}
