package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/arklim/storefront-iam/internal/core/domain"
	"github.com/arklim/storefront-iam/internal/core/port"
	"github.com/arklim/storefront-iam/internal/infra/logger"
	"github.com/arklim/storefront-iam/internal/repository"
)

// AuthConfig tunes registration and login.
type AuthConfig struct {
	DefaultRole                string
	SendConfirmationOnRegister bool
}

// LoginResult carries the credentials handed to the client after a successful login.
type LoginResult struct {
	User                  domain.User
	AccessToken           string
	AccessTokenExpiresAt  time.Time
	RefreshToken          string
	RefreshTokenExpiresAt time.Time
}

// AuthService coordinates registration, password and refresh-token logins, and logout.
type AuthService struct {
	cfg           AuthConfig
	users         port.UserRepository
	roles         port.RoleRepository
	hasher        port.PasswordHasher
	policy        port.PasswordPolicyValidator
	issuer        port.AccessTokenIssuer
	accessTTL     time.Duration
	refresh       *TokenLifecycleService
	confirmations *AccountConfirmationService
	logger        *zap.Logger
	now           func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(
	cfg AuthConfig,
	users port.UserRepository,
	roles port.RoleRepository,
	hasher port.PasswordHasher,
	policy port.PasswordPolicyValidator,
	issuer port.AccessTokenIssuer,
	accessTTL time.Duration,
	refresh *TokenLifecycleService,
	logger *zap.Logger,
) *AuthService {
	if cfg.DefaultRole == "" {
		cfg.DefaultRole = domain.RoleRegular
	}
	return &AuthService{
		cfg:       cfg,
		users:     users,
		roles:     roles,
		hasher:    hasher,
		policy:    policy,
		issuer:    issuer,
		accessTTL: accessTTL,
		refresh:   refresh,
		logger:    logger,
		now:       time.Now,
	}
}

// WithConfirmation lets registration mail a confirmation link.
func (s *AuthService) WithConfirmation(confirmations *AccountConfirmationService) *AuthService {
	s.confirmations = confirmations
	return s
}

// WithClock overrides the clock used for expiry timestamps.
func (s *AuthService) WithClock(now func() time.Time) *AuthService {
	if now != nil {
		s.now = now
	}
	return s
}

// Login verifies the password and issues an access token plus a refresh token.
// Unknown emails and wrong passwords are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.burnVerification(password)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		logger.WithContext(ctx).Info("login rejected", zap.String("email", logger.MaskEmail(email)))
		return nil, ErrInvalidCredentials
	}

	if !user.IsActive {
		return nil, ErrInactiveAccount
	}

	access, err := s.issuer.Issue(*user)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}

	issuedAt := s.now()
	refresh, err := s.refresh.Issue(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}

	sanitized := *user
	sanitized.PasswordHash = ""

	return &LoginResult{
		User:                  sanitized,
		AccessToken:           access,
		AccessTokenExpiresAt:  issuedAt.Add(s.accessTTL),
		RefreshToken:          refresh,
		RefreshTokenExpiresAt: issuedAt.Add(s.refresh.TTL()),
	}, nil
}

// LoginWithRefreshToken mints a new access token from a valid refresh token. An expired
// refresh token is deleted before the request is rejected. The refresh token is not rotated.
func (s *AuthService) LoginWithRefreshToken(ctx context.Context, refreshToken string) (*LoginResult, error) {
	valid, err := s.refresh.Validate(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	if !valid {
		if err := s.refresh.Discard(ctx, refreshToken); err != nil {
			logger.WithContext(ctx).Warn("discard expired refresh token failed", zap.Error(err))
		}
		return nil, ErrUnauthorized
	}

	stored, err := s.refresh.Resolve(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}

	user, err := s.users.GetByID(ctx, stored.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	if !user.IsActive {
		return nil, ErrInactiveAccount
	}

	access, err := s.issuer.Issue(*user)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}

	sanitized := *user
	sanitized.PasswordHash = ""

	return &LoginResult{
		User:                  sanitized,
		AccessToken:           access,
		AccessTokenExpiresAt:  s.now().Add(s.accessTTL),
		RefreshToken:          refreshToken,
		RefreshTokenExpiresAt: stored.ExpiresAt,
	}, nil
}

// Logout revokes the refresh token server side. Missing tokens are ignored.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	return s.refresh.Discard(ctx, refreshToken)
}

// burnVerification spends the same time as a real password check so response timing
// does not reveal whether an email is registered.
func (s *AuthService) burnVerification(password string) {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash("storefront-dummy-password")
		if err != nil {
			s.logger.Warn("prepare dummy hash failed", zap.Error(err))
			return
		}
		s.dummyHash = hash
	})
	if s.dummyHash != "" {
		_, _ = s.hasher.Verify(password, s.dummyHash)
	}
}
