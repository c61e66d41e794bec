package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/noah-isme/backend-discount/internal/common"
)

const defaultAccessTTL = 15 * time.Minute

var (
	// ErrInvalidCredentials is returned when a username/password pair does not match.
	ErrInvalidCredentials = common.NewAppError("UNAUTHORIZED", "invalid credentials", http.StatusUnauthorized, nil)
	// ErrTokensDisabled is returned by token operations when no signing secret is configured.
	ErrTokensDisabled = errors.New("auth: bearer tokens are disabled")
)

// Config configures the auth service. An empty TokenSecret disables bearer tokens.
type Config struct {
	Username       string
	PasswordHash   string
	TokenSecret    string
	AccessTokenTTL time.Duration
	Issuer         string
	Audience       string
	ClockSkew      time.Duration
}

// Service authenticates the single configured operator and issues access tokens.
type Service struct {
	username     string
	passwordHash string
	secret       []byte
	accessTTL    time.Duration
	now          func() time.Time
	signer       jwa.SignatureAlgorithm
	validator    TokenValidator
	issuer       string
	audience     string
	clockSkew    time.Duration
}

// AccessToken is a signed bearer token and its expiry.
type AccessToken struct {
	Token     string    `json:"access_token"`
	TokenType string    `json:"token_type"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewService constructs a Service instance with sane defaults.
func NewService(cfg Config) (*Service, error) {
	username := strings.TrimSpace(cfg.Username)
	if username == "" {
		return nil, errors.New("auth: username is required")
	}
	if cfg.PasswordHash == "" {
		return nil, errors.New("auth: password hash is required")
	}
	if _, _, _, err := argon2id.DecodeHash(cfg.PasswordHash); err != nil {
		return nil, fmt.Errorf("auth: invalid password hash: %w", err)
	}
	accessTTL := cfg.AccessTokenTTL
	if accessTTL <= 0 {
		accessTTL = defaultAccessTTL
	}
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		issuer = "backend-discount"
	}
	audience := strings.TrimSpace(cfg.Audience)
	if audience == "" {
		audience = "discount-api"
	}
	clockSkew := cfg.ClockSkew
	if clockSkew < 0 {
		clockSkew = 0
	}

	s := &Service{
		username:     username,
		passwordHash: cfg.PasswordHash,
		accessTTL:    accessTTL,
		now:          time.Now,
		signer:       jwa.HS256,
		validator: TokenValidator{
			Issuer:    issuer,
			Audience:  audience,
			ClockSkew: clockSkew,
			Algorithm: jwa.HS256,
		},
		issuer:    issuer,
		audience:  audience,
		clockSkew: clockSkew,
	}
	if secret := strings.TrimSpace(cfg.TokenSecret); secret != "" {
		s.secret = []byte(secret)
	}
	return s, nil
}

// WithNow allows tests to override the time provider.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// TokensEnabled reports whether bearer tokens can be issued and accepted.
func (s *Service) TokensEnabled() bool {
	return len(s.secret) > 0
}

// VerifyPassword checks username and password against the configured operator.
func (s *Service) VerifyPassword(username, password string) error {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.username)) == 1
	match, err := argon2id.ComparePasswordAndHash(password, s.passwordHash)
	if err != nil {
		return fmt.Errorf("auth: compare password: %w", err)
	}
	if !userOK || !match {
		return ErrInvalidCredentials
	}
	return nil
}

// IssueAccessToken signs a short-lived token for username.
func (s *Service) IssueAccessToken(username string) (AccessToken, error) {
	if !s.TokensEnabled() {
		return AccessToken{}, ErrTokensDisabled
	}
	now := s.now()
	expiresAt := now.Add(s.accessTTL)
	token, err := jwt.NewBuilder().
		JwtID(uuid.NewString()).
		Subject(username).
		Issuer(s.issuer).
		Audience([]string{s.audience}).
		IssuedAt(now).
		NotBefore(now.Add(-s.clockSkew)).
		Expiration(expiresAt).
		Build()
	if err != nil {
		return AccessToken{}, err
	}
	signed, err := jwt.Sign(token, jwt.WithKey(s.signer, s.secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: string(signed), TokenType: "Bearer", ExpiresAt: expiresAt}, nil
}

// ParseAccessToken validates an access token and returns its subject.
func (s *Service) ParseAccessToken(token string) (string, error) {
	if !s.TokensEnabled() {
		return "", ErrTokensDisabled
	}
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return "", unauthorized("missing token", nil)
	}
	algorithm, err := extractTokenAlgorithm(trimmed)
	if err != nil {
		return "", unauthorized("invalid token", err)
	}
	if s.validator.Algorithm != "" && algorithm != s.validator.Algorithm {
		return "", unauthorized("invalid token", fmt.Errorf("unexpected token algorithm %s", algorithm))
	}
	parsed, err := jwt.ParseString(trimmed, jwt.WithKey(algorithm, s.secret), jwt.WithValidate(false))
	if err != nil {
		return "", unauthorized("invalid token", err)
	}
	if err := s.validator.Validate(parsed, algorithm, s.now()); err != nil {
		return "", unauthorized("invalid token", err)
	}
	if parsed.Subject() != s.username {
		return "", unauthorized("invalid token", errors.New("auth: unknown subject"))
	}
	return parsed.Subject(), nil
}

func unauthorized(message string, err error) *common.AppError {
	return common.NewAppError("UNAUTHORIZED", message, http.StatusUnauthorized, err)
}

func extractTokenAlgorithm(token string) (jwa.SignatureAlgorithm, error) {
	message, err := jws.ParseString(token)
	if err != nil {
		return "", err
	}
	signatures := message.Signatures()
	if len(signatures) != 1 {
		return "", errors.New("auth: token must carry exactly one signature")
	}
	headers := signatures[0].ProtectedHeaders()
	if headers == nil {
		return "", errors.New("auth: token missing protected headers")
	}
	alg := headers.Algorithm()
	switch alg {
	case "":
		return "", errors.New("auth: token missing algorithm")
	case jwa.NoSignature:
		return "", errors.New("auth: token uses none algorithm")
	}
	return alg, nil
}
