package tokens

import (
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/salonmirai/sitesync/internal/config"
)

// SessionClaims are carried by admin session tokens. The token id is the
// session id stored in the local cache.
type SessionClaims struct {
	Username string `json:"preferred_username"`
	jwt.RegisteredClaims
}

var (
	fallbackOnce   sync.Once
	fallbackSecret []byte
)

func secret(cfg *config.Config) []byte {
	if cfg.JWT.Secret != "" {
		return []byte(cfg.JWT.Secret)
	}
	fallbackOnce.Do(func() {
		fallbackSecret = make([]byte, 32)
		if _, err := rand.Read(fallbackSecret); err != nil {
			panic(fmt.Sprintf("tokens: no randomness for fallback secret: %v", err))
		}
	})
	return fallbackSecret
}

// GenerateSessionToken signs an HS256 token for an admin session.
func GenerateSessionToken(cfg *config.Config, username, sessionID string, expiry time.Time) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sessionID,
			Subject:   username,
			Issuer:    cfg.JWT.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiry),
		},
	}
	jt := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return jt.SignedString(secret(cfg))
}

// ParseSessionToken verifies signature, algorithm, issuer and expiry.
func ParseSessionToken(cfg *config.Config, raw string) (*SessionClaims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if cfg.JWT.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.JWT.Issuer))
	}
	var claims SessionClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (interface{}, error) {
		return secret(cfg), nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if claims.ExpiresAt == nil {
		return nil, errors.New("token has no expiry")
	}
	if claims.ID == "" || claims.Username == "" {
		return nil, errors.New("token is not an admin session token")
	}
	return &claims, nil
}
