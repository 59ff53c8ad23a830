package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultIssuer is the issuer expected on access tokens when none is configured.
const DefaultIssuer = "plaza"

// ErrInvalidToken indicates the token failed validation.
var ErrInvalidToken = fmt.Errorf("%w: invalid token", ErrUnauthenticated)

var errMissingSecret = errors.New("auth secret is not configured")

// Claims represents the access token claims issued by the hosted auth service.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// TokenVerifier validates HS256 access tokens and turns them into identities.
// The role is never read from the token; it comes from the profile row.
type TokenVerifier struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// TokenOption customises a TokenVerifier.
type TokenOption func(*TokenVerifier)

// WithIssuer overrides the expected issuer.
func WithIssuer(issuer string) TokenOption {
	return func(v *TokenVerifier) {
		if issuer = strings.TrimSpace(issuer); issuer != "" {
			v.issuer = issuer
		}
	}
}

// WithTokenClock overrides the time source used for expiry checks.
func WithTokenClock(now func() time.Time) TokenOption {
	return func(v *TokenVerifier) {
		if now != nil {
			v.now = now
		}
	}
}

func NewTokenVerifier(secret string, opts ...TokenOption) (*TokenVerifier, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errMissingSecret
	}
	v := &TokenVerifier{
		secret: []byte(secret),
		issuer: DefaultIssuer,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Sign issues a token for subject. Production tokens come from the auth
// service; this is used by tooling and tests.
func (v *TokenVerifier) Sign(subject, email string, ttl time.Duration) (string, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "", fmt.Errorf("%w: subject is required", ErrInvalidInput)
	}
	if ttl <= 0 {
		return "", fmt.Errorf("%w: ttl must be greater than zero", ErrInvalidInput)
	}
	now := v.now()
	claims := Claims{
		Email: strings.TrimSpace(email),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    v.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature, issuer and expiry.
func (v *TokenVerifier) Verify(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(v.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Identity converts verified claims into an Identity with an unresolved role.
func (c *Claims) Identity() Identity {
	return Identity{ID: c.Subject, Email: c.Email, Role: RoleUnknown}
}
