package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// TokenValidator checks the claims of a parsed access token. Zero-valued
// fields disable the matching check.
type TokenValidator struct {
	Issuer    string
	Audience  string
	ClockSkew time.Duration
	Algorithm jwa.SignatureAlgorithm
}

// Validate rejects tokens signed with an unexpected algorithm, tokens outside
// their validity window, tokens for another issuer or audience and tokens
// without a subject or id.
func (v TokenValidator) Validate(tok jwt.Token, algorithm jwa.SignatureAlgorithm, now time.Time) error {
	if tok == nil {
		return errors.New("auth: token is nil")
	}
	if err := v.checkAlgorithm(algorithm); err != nil {
		return err
	}
	// WithRequiredClaim accepts empty strings.
	if tok.Subject() == "" {
		return errors.New("auth: token missing subject")
	}
	if tok.JwtID() == "" {
		return errors.New("auth: token missing id")
	}
	return jwt.Validate(tok, v.options(now)...)
}

func (v TokenValidator) checkAlgorithm(algorithm jwa.SignatureAlgorithm) error {
	switch {
	case algorithm == "":
		return errors.New("auth: token missing algorithm")
	case v.Algorithm != "" && algorithm != v.Algorithm:
		return fmt.Errorf("auth: unexpected token algorithm %s", algorithm)
	}
	return nil
}

func (v TokenValidator) options(now time.Time) []jwt.ValidateOption {
	opts := []jwt.ValidateOption{
		jwt.WithClock(jwt.ClockFunc(func() time.Time { return now })),
		jwt.WithAcceptableSkew(v.ClockSkew),
	}
	for _, claim := range []string{jwt.SubjectKey, jwt.JwtIDKey, jwt.ExpirationKey} {
		opts = append(opts, jwt.WithRequiredClaim(claim))
	}
	if v.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.Issuer))
	}
	if v.Audience != "" {
		opts = append(opts, jwt.WithAudience(v.Audience))
	}
	return opts
}
