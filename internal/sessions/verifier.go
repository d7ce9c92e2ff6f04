package sessions

import (
	"context"

	"github.com/go-viper/mapstructure/v2"
	"github.com/salonmirai/sitesync/pkg/middleware"
)

// Verifier adapts the session service to the auth middleware.
type Verifier struct {
	svc *Service
}

func NewVerifier(svc *Service) *Verifier { return &Verifier{svc: svc} }

func (v *Verifier) Verify(ctx context.Context, raw string) (middleware.Token, error) {
	sess, err := v.svc.Check(ctx, raw)
	if err != nil {
		return nil, err
	}
	return sessionToken{claims: map[string]interface{}{
		"sub":                sess.Username,
		"preferred_username": sess.Username,
		"sid":                sess.ID,
		"exp":                sess.Expiry / 1000,
	}}, nil
}

type sessionToken struct {
	claims map[string]interface{}
}

func (t sessionToken) Claims(v interface{}) error {
	return mapstructure.Decode(t.claims, v)
}
