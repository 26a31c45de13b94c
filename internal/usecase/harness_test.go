package usecase

import (
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/arklim/storefront-iam/internal/core/domain"
	"github.com/arklim/storefront-iam/internal/infra/security"
)

const (
	refreshTTL      = 14 * 24 * time.Hour
	resetTTL        = 15 * time.Minute
	confirmationTTL = 30 * time.Minute
	accessTTL       = 15 * time.Minute
)

// harness wires the services the way cmd/api does, on top of in-memory fakes.
type harness struct {
	clock     *fakeClock
	roles     *memoryRoleRepo
	users     *memoryUserRepo
	stores    map[domain.TokenKind]*memoryTokenStore
	publisher *recordingPublisher
	outbox    *memoryOutbox
	issuer    *security.JWTIssuer

	refresh       *TokenLifecycleService
	reset         *TokenLifecycleService
	confirmation  *TokenLifecycleService
	auth          *AuthService
	passwords     *PasswordResetService
	confirmations *AccountConfirmationService
	userAdmin     *UserService
}

type harnessOption func(*harnessConfig)

type harnessConfig struct {
	discloseUnknown bool
	sendOnRegister  bool
	withOutbox      bool
}

func discloseUnknownEmail() harnessOption { return func(c *harnessConfig) { c.discloseUnknown = true } }
func confirmOnRegister() harnessOption    { return func(c *harnessConfig) { c.sendOnRegister = true } }
func withOutbox() harnessOption           { return func(c *harnessConfig) { c.withOutbox = true } }

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()

	var cfg harnessConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	log := zaptest.NewLogger(t)
	h := &harness{
		clock:     newFakeClock(),
		roles:     newMemoryRoleRepo(domain.RoleAdmin, domain.RoleRegular),
		stores:    make(map[domain.TokenKind]*memoryTokenStore),
		publisher: &recordingPublisher{},
		outbox:    &memoryOutbox{},
	}
	h.users = newMemoryUserRepo(h.roles)

	generator := security.NewSecureTokenGenerator(security.DefaultTokenBytes).WithClock(h.clock.Now)
	lifecycle := func(kind domain.TokenKind, ttl time.Duration) *TokenLifecycleService {
		store := newMemoryTokenStore(kind)
		h.stores[kind] = store
		return NewTokenLifecycleService(store, generator, ttl).WithClock(h.clock.Now)
	}
	h.refresh = lifecycle(domain.TokenKindRefresh, refreshTTL)
	h.reset = lifecycle(domain.TokenKindReset, resetTTL)
	h.confirmation = lifecycle(domain.TokenKindAccountConfirmation, confirmationTTL)

	issuer, err := security.NewJWTIssuer(security.JWTConfig{
		Secret:   testJWTSecret,
		Issuer:   "storefront-iam",
		Audience: "storefront",
		TTL:      accessTTL,
	})
	if err != nil {
		t.Fatalf("new jwt issuer: %v", err)
	}
	h.issuer = issuer.WithClock(h.clock.Now)

	policy := security.NewPasswordPolicy(security.PasswordPolicyConfig{MinLength: 6, MaxLength: 128})
	hasher := plainHasher{}

	h.confirmations = NewAccountConfirmationService(h.users, h.confirmation, h.publisher, MailTemplate{
		Subject: "Confirm your account",
		Body:    "Follow the link to confirm your account:",
		Link:    "https://shop.example/confirm",
	}, cfg.discloseUnknown, log)

	h.passwords = NewPasswordResetService(h.users, h.reset, hasher, policy, h.publisher, MailTemplate{
		Subject: "Reset your password",
		Body:    "Follow the link to choose a new password:",
		Link:    "https://shop.example/reset",
	}, cfg.discloseUnknown, log)

	h.auth = NewAuthService(AuthConfig{
		DefaultRole:                domain.RoleRegular,
		SendConfirmationOnRegister: cfg.sendOnRegister,
	}, h.users, h.roles, hasher, policy, h.issuer, accessTTL, h.refresh, log).
		WithConfirmation(h.confirmations).
		WithClock(h.clock.Now)

	var tx *memoryTransactor
	if cfg.withOutbox {
		tx = &memoryTransactor{users: h.users, outbox: h.outbox}
	}
	if tx != nil {
		h.userAdmin = NewUserService(h.users, h.roles, tx, h.publisher, log).WithClock(h.clock.Now)
	} else {
		h.userAdmin = NewUserService(h.users, h.roles, nil, h.publisher, log).WithClock(h.clock.Now)
	}

	return h
}
