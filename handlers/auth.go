package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/secureboat/recipe-api/internal/config"
	"github.com/secureboat/recipe-api/internal/sessions"
	"github.com/secureboat/recipe-api/internal/tokens"
	"github.com/secureboat/recipe-api/internal/users"
	"github.com/secureboat/recipe-api/pkg/logger"
	"github.com/secureboat/recipe-api/pkg/middleware"
)

const sessionCookie = "recipe_session"

// AuthHandler drives the browser OAuth2 flow against Google plus the
// first-party refresh/logout endpoints. The session id doubles as the
// refresh token.
type AuthHandler struct {
	cfg         *config.Config
	usersSvc    *users.Service
	sessionsSvc *sessions.Service
	verifier    middleware.Verifier
}

func NewAuthHandler(cfg *config.Config, u *users.Service, s *sessions.Service, ver middleware.Verifier) *AuthHandler {
	return &AuthHandler{cfg: cfg, usersSvc: u, sessionsSvc: s, verifier: ver}
}

func (h *AuthHandler) Register(rg *gin.RouterGroup) {
	rg.GET("/login", h.Login)
	rg.GET("/oauth2callback", h.Callback)
	a := rg.Group("/auth")
	a.POST("/refresh", h.Refresh)
	a.POST("/logout", h.Logout)
}

// Login starts the authorization-code flow: create a session holding the
// anti-forgery state, drop its id in a cookie and bounce to Google.
func (h *AuthHandler) Login(c *gin.Context) {
	redirectPath := c.Query("redirect")
	if redirectPath == "" {
		redirectPath = "/recipes"
	}
	sess, err := h.sessionsSvc.Start(c.Request.Context(), redirectPath, h.cfg.JWT.SessionTTL)
	if err != nil {
		logger.Errorf("failed to start login session: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start login"})
		return
	}
	c.SetCookie(sessionCookie, sess.ID, int(h.cfg.JWT.SessionTTL.Seconds()), "/", "", false, true)

	v := url.Values{}
	v.Set("client_id", h.cfg.Google.ClientID)
	v.Set("redirect_uri", h.cfg.Server.RootURL+"/oauth2callback")
	v.Set("response_type", "code")
	v.Set("scope", "openid email profile")
	v.Set("state", sess.State)
	c.Redirect(http.StatusFound, h.cfg.Google.AuthEndpoint+"?"+v.Encode())
}

// Callback finishes the flow: check the anti-forgery state against the
// session, exchange the code, verify the id token, cache the profile and
// bind the session to the subject.
func (h *AuthHandler) Callback(c *gin.Context) {
	id, err := c.Cookie(sessionCookie)
	if err != nil || id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no login session"})
		return
	}
	sess, err := h.sessionsSvc.Validate(c.Request.Context(), id)
	if err != nil {
		logger.Errorf("session lookup failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "session lookup failed"})
		return
	}
	if sess == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "login session expired"})
		return
	}
	if state := c.Query("state"); state == "" || state != sess.State {
		c.JSON(http.StatusBadRequest, gin.H{"error": "state mismatch"})
		return
	}
	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "code missing"})
		return
	}

	tr, err := h.exchangeCode(c.Request.Context(), code)
	if err != nil {
		logger.Errorf("code exchange failed: %v", err)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication failed"})
		return
	}
	claims, err := h.verifyIDToken(c.Request.Context(), tr.IDToken)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid id token"})
		return
	}
	u, err := h.usersSvc.UpsertFromClaims(c.Request.Context(), claims)
	if err != nil {
		logger.Errorf("user upsert error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "user upsert failed"})
		return
	}
	if u == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "id token has no subject"})
		return
	}
	redirectPath := sess.RedirectPath
	if err := h.sessionsSvc.Complete(c.Request.Context(), sess, u.Sub); err != nil {
		logger.Errorf("failed to complete session: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to complete login"})
		return
	}
	access, err := tokens.GenerateAccessToken(h.cfg, u, h.cfg.JWT.AccessTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create access token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"access_token":  access,
		"refresh_token": sess.ID,
		"expires_in":    int(h.cfg.JWT.AccessTTL.Seconds()),
		"redirect":      redirectPath,
		"user":          u,
	})
}

// Refresh accepts a refresh token and returns a new access token
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sess, err := h.sessionsSvc.Validate(c.Request.Context(), req.RefreshToken)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "validation failed"})
		return
	}
	if sess == nil || sess.Sub == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
		return
	}
	u, err := h.usersSvc.GetBySub(c.Request.Context(), sess.Sub)
	if err != nil || u == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "user lookup failed"})
		return
	}
	access, err := tokens.GenerateAccessToken(h.cfg, u, h.cfg.JWT.AccessTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create access token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": access, "expires_in": int(h.cfg.JWT.AccessTTL.Seconds())})
}

// Logout invalidates the refresh token and (optionally) blacklists the current access token
func (h *AuthHandler) Logout(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	// If the client supplied an Authorization Bearer token, attempt to blacklist it
	auth := c.GetHeader("Authorization")
	if auth != "" {
		var at string
		if n, _ := fmt.Sscanf(auth, "Bearer %s", &at); n == 1 {
			if exp, err := parseExpFromJWT(at); err == nil {
				ttl := time.Until(exp)
				if ttl > 0 {
					if err := sessions.BlacklistToken(c.Request.Context(), at, ttl); err != nil {
						c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to blacklist access token"})
						return
					}
				}
			}
		}
	}

	if err := h.sessionsSvc.Delete(c.Request.Context(), req.RefreshToken); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to remove session"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	IDToken     string `json:"id_token"`
}

func (h *AuthHandler) exchangeCode(ctx context.Context, code string) (*tokenResponse, error) {
	v := url.Values{}
	v.Set("grant_type", "authorization_code")
	v.Set("client_id", h.cfg.Google.ClientID)
	v.Set("client_secret", h.cfg.Google.ClientSecret)
	v.Set("code", code)
	v.Set("redirect_uri", h.cfg.Server.RootURL+"/oauth2callback")

	req, err := http.NewRequestWithContext(ctx, "POST", h.cfg.Google.TokenEndpoint, strings.NewReader(v.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, string(b))
	}
	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, err
	}
	return &tr, nil
}

func (h *AuthHandler) verifyIDToken(ctx context.Context, raw string) (map[string]interface{}, error) {
	if h.verifier == nil {
		return nil, fmt.Errorf("no verifier configured")
	}
	tok, err := h.verifier.Verify(ctx, raw)
	if err != nil {
		return nil, err
	}
	var claims map[string]interface{}
	if err := tok.Claims(&claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// parseExpFromJWT decodes the JWT payload and returns the `exp` claim as time.Time.
// This performs payload-only parsing (no signature verification) and is suitable
// for computing remaining TTLs for blacklisting purposes.
func parseExpFromJWT(tok string) (time.Time, error) {
	parts := strings.Split(tok, ".")
	if len(parts) < 2 {
		return time.Time{}, fmt.Errorf("invalid token")
	}
	payload := parts[1]
	b, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		// try standard base64 (pad) as a fallback
		b, err = base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return time.Time{}, err
		}
	}
	var claims map[string]interface{}
	if err := json.Unmarshal(b, &claims); err != nil {
		return time.Time{}, err
	}
	v, ok := claims["exp"]
	if !ok {
		return time.Time{}, fmt.Errorf("exp claim not present")
	}
	switch vv := v.(type) {
	case float64:
		return time.Unix(int64(vv), 0), nil
	case int64:
		return time.Unix(vv, 0), nil
	case json.Number:
		i64, err := vv.Int64()
		if err != nil {
			f, err2 := vv.Float64()
			if err2 != nil {
				return time.Time{}, err
			}
			return time.Unix(int64(f), 0), nil
		}
		return time.Unix(i64, 0), nil
	default:
		return time.Time{}, fmt.Errorf("unsupported exp type %T", v)
	}
}
