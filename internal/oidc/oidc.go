package oidc

import (
	"context"
	"fmt"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/salonmirai/sitesync/internal/config"
	"github.com/salonmirai/sitesync/pkg/middleware"
)

// Verifier wraps the OIDC provider and token verifier. It lets staff sign in
// to the admin API with an identity-provider token instead of the credential table.
type Verifier struct {
	provider *oidc.Provider
	verifier *oidc.IDTokenVerifier
}

// IssuerURL builds the realm issuer from the Keycloak settings; empty when not configured.
func IssuerURL(kc config.KeycloakConfig) string {
	if kc.URL == "" || kc.Realm == "" {
		return ""
	}
	return strings.TrimRight(kc.URL, "/") + "/realms/" + kc.Realm
}

// NewVerifier creates a new OIDC verifier for the given issuer and client ID
func NewVerifier(ctx context.Context, issuer, clientID string) (*Verifier, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}
	verifier := provider.Verifier(&oidc.Config{ClientID: clientID})
	return &Verifier{provider: provider, verifier: verifier}, nil
}

// Verify verifies the provided raw ID token and returns a middleware.Token
func (v *Verifier) Verify(ctx context.Context, raw string) (middleware.Token, error) {
	idToken, err := v.verifier.Verify(ctx, raw)
	if err != nil {
		return nil, err
	}
	return idToken, nil
}
