package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	uuid "github.com/google/uuid"

	"github.com/arklim/storefront-iam/internal/core/domain"
	"github.com/arklim/storefront-iam/internal/core/port"
)

var (
	// ErrInvalidAccessToken covers bad signatures, wrong algorithms and foreign issuers or audiences.
	ErrInvalidAccessToken = errors.New("jwt: invalid access token")
	// ErrExpiredAccessToken is returned for well-formed tokens past their expiry.
	ErrExpiredAccessToken = errors.New("jwt: access token expired")
)

const (
	defaultAccessTokenTTL = 15 * time.Minute
	minSecretLength       = 32
)

// JWTConfig configures HS256 access token issuance.
type JWTConfig struct {
	Secret   string
	Issuer   string
	Audience string
	TTL      time.Duration
}

// accessTokenClaims is the wire form of domain.AccessTokenClaims.
type accessTokenClaims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// JWTIssuer mints and verifies HMAC-SHA256 signed access tokens.
type JWTIssuer struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
	now      func() time.Time
}

// NewJWTIssuer validates cfg and returns an issuer.
func NewJWTIssuer(cfg JWTConfig) (*JWTIssuer, error) {
	if len(cfg.Secret) < minSecretLength {
		return nil, fmt.Errorf("jwt: secret must be at least %d bytes", minSecretLength)
	}
	if strings.TrimSpace(cfg.Issuer) == "" {
		return nil, fmt.Errorf("jwt: issuer is required")
	}
	if strings.TrimSpace(cfg.Audience) == "" {
		return nil, fmt.Errorf("jwt: audience is required")
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultAccessTokenTTL
	}

	return &JWTIssuer{
		secret:   []byte(cfg.Secret),
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		ttl:      ttl,
		now:      time.Now,
	}, nil
}

// WithClock overrides the issuing and verification clock.
func (j *JWTIssuer) WithClock(now func() time.Time) *JWTIssuer {
	if now != nil {
		j.now = now
	}
	return j
}

// TTL reports the lifetime of issued tokens.
func (j *JWTIssuer) TTL() time.Duration {
	return j.ttl
}

// Issue signs a token carrying the user's id, email, name and role.
func (j *JWTIssuer) Issue(user domain.User) (string, error) {
	if strings.TrimSpace(user.ID) == "" {
		return "", fmt.Errorf("jwt: user id is required")
	}

	now := j.now().UTC()
	claims := accessTokenClaims{
		Email: user.Email,
		Name:  user.Name,
		Role:  user.Role.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    j.issuer,
			Audience:  jwt.ClaimStrings{j.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.ttl)),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secret)
	if err != nil {
		return "", fmt.Errorf("jwt: sign token: %w", err)
	}
	return signed, nil
}

// Parse verifies signature, algorithm, issuer, audience and expiry.
func (j *JWTIssuer) Parse(raw string) (*domain.AccessTokenClaims, error) {
	var claims accessTokenClaims
	_, err := jwt.ParseWithClaims(raw, &claims,
		func(*jwt.Token) (any, error) { return j.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(j.issuer),
		jwt.WithAudience(j.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(j.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredAccessToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidAccessToken, err)
	}

	out := &domain.AccessTokenClaims{
		ID:     claims.ID,
		UserID: claims.Subject,
		Email:  claims.Email,
		Name:   claims.Name,
		Role:   claims.Role,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}

var _ port.AccessTokenIssuer = (*JWTIssuer)(nil)
