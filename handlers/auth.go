package handlers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/salonmirai/sitesync/internal/sessions"
	"github.com/salonmirai/sitesync/pkg/logger"
	"github.com/salonmirai/sitesync/pkg/metrics"
	"github.com/salonmirai/sitesync/pkg/middleware"
)

// LoginRequest is the admin login form.
type LoginRequest struct {
	Username string `json:"username" form:"username" binding:"required"`
	Password string `json:"password" form:"password" binding:"required"`
}

// AuthHandler holds dependencies
type AuthHandler struct {
	sessions     *sessions.Service
	revocations  *sessions.Revocations
	secureCookie bool
}

func NewAuthHandler(s *sessions.Service, rev *sessions.Revocations, secureCookie bool) *AuthHandler {
	return &AuthHandler{sessions: s, revocations: rev, secureCookie: secureCookie}
}

// Register mounts /login, /logout and /session on rg. limit guards login;
// auth guards the session lookup.
func (h *AuthHandler) Register(rg *gin.RouterGroup, limit, auth gin.HandlerFunc) {
	login := []gin.HandlerFunc{h.Login}
	if limit != nil {
		login = append([]gin.HandlerFunc{limit}, login...)
	}
	rg.POST("/login", login...)
	rg.POST("/logout", h.Logout)
	rg.GET("/session", auth, h.Session)
}

// Login checks the credential table and returns a session token. The token
// is also set as a cookie for the browser admin screens.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}
	res, err := h.sessions.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, sessions.ErrInvalidCredentials) {
			metrics.LoginAttempts.WithLabelValues("failure").Inc()
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザー名またはパスワードが正しくありません"})
			return
		}
		logger.Errorf("failed to create session: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create session"})
		return
	}
	metrics.LoginAttempts.WithLabelValues("success").Inc()
	maxAge := int(time.Until(time.UnixMilli(res.Expiry)).Seconds())
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.SessionCookie, res.Token, maxAge, "/", "", h.secureCookie, true)
	c.JSON(http.StatusOK, res)
}

// Logout ends the caller's session. Tokens from an identity provider are
// revoked until they expire.
func (h *AuthHandler) Logout(c *gin.Context) {
	token := requestToken(c)
	ctx := c.Request.Context()
	switch {
	case token == "":
	case h.sessions.IsSessionToken(token):
		if err := h.sessions.Logout(ctx, token); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to remove session"})
			return
		}
	case h.revocations != nil:
		if exp, err := parseExpFromJWT(token); err == nil {
			if err := h.revocations.Revoke(ctx, token, time.Until(exp)); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to revoke token"})
				return
			}
		}
	}
	c.SetCookie(middleware.SessionCookie, "", -1, "/", "", h.secureCookie, true)
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// Session reports who is logged in; the auth middleware has already run.
func (h *AuthHandler) Session(c *gin.Context) {
	out := gin.H{"username": c.GetString("actor"), "authenticated": true}
	if v, ok := c.Get("claims"); ok {
		if claims, ok := v.(map[string]interface{}); ok {
			if exp, ok := claims["exp"]; ok {
				out["exp"] = exp
			}
		}
	}
	c.JSON(http.StatusOK, out)
}

func requestToken(c *gin.Context) string {
	var tok string
	if auth := c.GetHeader("Authorization"); auth != "" {
		if n, _ := fmt.Sscanf(auth, "Bearer %s", &tok); n == 1 {
			return tok
		}
	}
	if ck, err := c.Cookie(middleware.SessionCookie); err == nil {
		return ck
	}
	return ""
}

// parseExpFromJWT decodes the JWT payload and returns the `exp` claim as time.Time.
// This performs payload-only parsing (no signature verification) and is suitable
// for computing remaining TTLs for revocation.
func parseExpFromJWT(tok string) (time.Time, error) {
	parts := strings.Split(tok, ".")
	if len(parts) < 2 {
		return time.Time{}, fmt.Errorf("invalid token")
	}
	b, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return time.Time{}, err
	}
	var claims struct {
		Exp *json.Number `json:"exp"`
	}
	if err := json.Unmarshal(b, &claims); err != nil {
		return time.Time{}, err
	}
	if claims.Exp == nil {
		return time.Time{}, fmt.Errorf("exp claim not present")
	}
	f, err := claims.Exp.Float64()
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(int64(f), 0), nil
}
