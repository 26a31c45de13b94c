package routes_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/arklim/storefront-iam/internal/core/domain"
	"github.com/arklim/storefront-iam/internal/infra/config"
	"github.com/arklim/storefront-iam/internal/infra/security"
	"github.com/arklim/storefront-iam/internal/repository"
	redisrepo "github.com/arklim/storefront-iam/internal/repository/redis"
	"github.com/arklim/storefront-iam/internal/transport/http/middleware"
	httproutes "github.com/arklim/storefront-iam/internal/transport/http/routes"
	"github.com/arklim/storefront-iam/internal/usecase"
)

const (
	adminEmail    = "admin@example.com"
	adminPassword = "admin-secret-42"
)

type memoryUsers struct {
	mu    sync.Mutex
	byID  map[string]domain.User
	roles *memoryRoles
}

func (m *memoryUsers) withRole(u domain.User) *domain.User {
	if role, ok := m.roles.byID[u.RoleID]; ok {
		u.Role = role
	}
	return &u
}

func (m *memoryUsers) Create(_ context.Context, user domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.byID {
		if existing.Email == user.Email {
			return repository.ErrConflict
		}
	}
	m.byID[user.ID] = user
	return nil
}

func (m *memoryUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return m.withRole(user), nil
}

func (m *memoryUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.byID {
		if user.Email == email {
			return m.withRole(user), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memoryUsers) List(_ context.Context, _ domain.UserFilter) ([]domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.User, 0, len(m.byID))
	for _, user := range m.byID {
		out = append(out, *m.withRole(user))
	}
	return out, nil
}

func (m *memoryUsers) mutate(id string, fn func(*domain.User)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	fn(&user)
	m.byID[id] = user
	return nil
}

func (m *memoryUsers) Update(_ context.Context, user domain.User) error {
	return m.mutate(user.ID, func(u *domain.User) { *u = user })
}

func (m *memoryUsers) UpdatePassword(_ context.Context, id, hash string) error {
	return m.mutate(id, func(u *domain.User) { u.PasswordHash = hash })
}

func (m *memoryUsers) SetConfirmed(_ context.Context, id string, confirmed bool) error {
	return m.mutate(id, func(u *domain.User) { u.IsConfirmed = confirmed })
}

func (m *memoryUsers) SetActive(_ context.Context, id string, active bool) error {
	return m.mutate(id, func(u *domain.User) { u.IsActive = active })
}

func (m *memoryUsers) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

type memoryRoles struct {
	byID map[string]domain.Role
}

func (m *memoryRoles) Create(_ context.Context, role domain.Role) error {
	for _, existing := range m.byID {
		if existing.Name == role.Name {
			return repository.ErrConflict
		}
	}
	m.byID[role.ID] = role
	return nil
}

func (m *memoryRoles) List(context.Context) ([]domain.Role, error) {
	out := make([]domain.Role, 0, len(m.byID))
	for _, role := range m.byID {
		out = append(out, role)
	}
	return out, nil
}

func (m *memoryRoles) GetByID(_ context.Context, id string) (*domain.Role, error) {
	role, ok := m.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &role, nil
}

func (m *memoryRoles) GetByName(_ context.Context, name string) (*domain.Role, error) {
	for _, role := range m.byID {
		if role.Name == name {
			return &role, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memoryRoles) Update(_ context.Context, role domain.Role) error {
	if _, ok := m.byID[role.ID]; !ok {
		return repository.ErrNotFound
	}
	m.byID[role.ID] = role
	return nil
}

func (m *memoryRoles) Delete(_ context.Context, id string) error {
	if _, ok := m.byID[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

type recordingPublisher struct {
	mu          sync.Mutex
	mails       []domain.MailSendingEvent
	activations []domain.UserActivationChangedEvent
}

func (p *recordingPublisher) PublishUserActivationChanged(_ context.Context, event domain.UserActivationChangedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.activations = append(p.activations, event)
	return nil
}

func (p *recordingPublisher) PublishMailSendRequested(_ context.Context, event domain.MailSendingEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mails = append(p.mails, event)
	return nil
}

func (p *recordingPublisher) lastMailToken(t *testing.T) string {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	require.NotEmpty(t, p.mails)
	body := p.mails[len(p.mails)-1].Body
	lines := strings.Split(body, "\n")
	link, err := url.Parse(lines[len(lines)-1])
	require.NoError(t, err)
	return link.Query().Get("token")
}

type testServer struct {
	engine    *gin.Engine
	redis     *miniredis.Miniredis
	users     *memoryUsers
	publisher *recordingPublisher
}

func newTestServer(t *testing.T, mutate ...func(*config.AppConfig)) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()
	logger := zaptest.NewLogger(t)

	cfg := &config.AppConfig{
		App:           config.AppSettings{Env: "test"},
		Cookies:       config.CookieSettings{AccessTokenName: "access_token", RefreshTokenName: "refresh_token", Path: "/"},
		Authorization: config.AuthorizationSettings{AdminRoles: []string{domain.RoleAdmin}},
	}
	for _, fn := range mutate {
		fn(cfg)
	}

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	generator := security.NewSecureTokenGenerator(0)
	lifecycle := func(kind domain.TokenKind, ttl time.Duration) *usecase.TokenLifecycleService {
		store, err := redisrepo.NewTokenStore(client, kind, redisrepo.TokenStoreConfig{KeyPrefix: "test", Retention: time.Hour})
		require.NoError(t, err)
		return usecase.NewTokenLifecycleService(store, generator, ttl)
	}

	roles := &memoryRoles{byID: map[string]domain.Role{}}
	users := &memoryUsers{byID: map[string]domain.User{}, roles: roles}
	publisher := &recordingPublisher{}

	hasher, err := security.NewArgon2Hasher(security.Argon2Config{
		Memory: 8 * 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32,
	})
	require.NoError(t, err)
	policy := security.NewPasswordPolicy(security.PasswordPolicyConfig{MinLength: 6, MaxLength: 128})
	issuer, err := security.NewJWTIssuer(security.JWTConfig{
		Secret:   "0123456789abcdef0123456789abcdef",
		Issuer:   "storefront-iam",
		Audience: "storefront",
		TTL:      15 * time.Minute,
	})
	require.NoError(t, err)

	confirmations := usecase.NewAccountConfirmationService(users, lifecycle(domain.TokenKindAccountConfirmation, 24*time.Hour), publisher,
		usecase.MailTemplate{Subject: "Confirm", Body: "Confirm your account:", Link: "https://shop.example.com/confirm"}, false, logger)
	resets := usecase.NewPasswordResetService(users, lifecycle(domain.TokenKindReset, time.Hour), hasher, policy, publisher,
		usecase.MailTemplate{Subject: "Reset", Body: "Reset your password:", Link: "https://shop.example.com/reset"}, false, logger)
	auth := usecase.NewAuthService(usecase.AuthConfig{}, users, roles, hasher, policy, issuer, 15*time.Minute,
		lifecycle(domain.TokenKindRefresh, 7*24*time.Hour), logger).WithConfirmation(confirmations)
	roleService := usecase.NewRoleService(roles)

	require.NoError(t, roleService.EnsureDefaults(ctx))
	require.NoError(t, auth.EnsureAdmin(ctx, usecase.BootstrapAdmin{
		Name: "Root", Email: adminEmail, Password: adminPassword, Role: domain.RoleAdmin,
	}))

	var limiter *middleware.RateLimiter
	if cfg.RateLimit.LoginMaxAttempts > 0 {
		limiter = middleware.NewRateLimiter(redisrepo.NewRateLimitRepository(client, "ratelimit"), logger)
	}

	engine := httproutes.Register(httproutes.Dependencies{
		Config:      cfg,
		Logger:      logger,
		RateLimiter: limiter,
		Issuer:      issuer,
		Services: httproutes.ServiceSet{
			Auth:          auth,
			Users:         usecase.NewUserService(users, roles, nil, publisher, logger),
			Roles:         roleService,
			PasswordReset: resets,
			Confirmations: confirmations,
		},
	})

	return &testServer{engine: engine, redis: mr, users: users, publisher: publisher}
}

func (s *testServer) do(t *testing.T, method, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}

	rr := httptest.NewRecorder()
	s.engine.ServeHTTP(rr, req)
	return rr
}

func (s *testServer) login(t *testing.T, email, password string) []*http.Cookie {
	t.Helper()
	rr := s.do(t, http.MethodPost, "/api/v1/users/login", map[string]string{"email": email, "password": password})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 2)
	return cookies
}

func (s *testServer) register(t *testing.T, name, email, password string) string {
	t.Helper()
	rr := s.do(t, http.MethodPost, "/api/v1/users/register", map[string]string{"name": name, "email": email, "password": password})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var user struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &user))
	return user.ID
}

func cookieNamed(cookies []*http.Cookie, name string) *http.Cookie {
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)

	rr := s.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestRegisterLoginAndIntrospect(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "Ann", "ann@example.com", "correct-horse")

	rr := s.do(t, http.MethodGet, "/api/v1/users/is-auth", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"authenticated":false}`, rr.Body.String())

	cookies := s.login(t, "ann@example.com", "correct-horse")
	access := cookieNamed(cookies, "access_token")
	require.NotNil(t, access)
	require.True(t, access.HttpOnly)

	rr = s.do(t, http.MethodGet, "/api/v1/users/is-auth", nil, cookies...)
	require.JSONEq(t, `{"authenticated":true}`, rr.Body.String())

	rr = s.do(t, http.MethodGet, "/api/v1/users/me/role", nil, cookies...)
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"role":"Regular"}`, rr.Body.String())
}

func TestRegisterDuplicateEmailConflicts(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "Ann", "ann@example.com", "correct-horse")

	rr := s.do(t, http.MethodPost, "/api/v1/users/register",
		map[string]string{"name": "Ann", "email": "ann@example.com", "password": "correct-horse"})
	require.Equal(t, http.StatusConflict, rr.Code)
}

func TestLoginWrongPasswordIsUnauthorized(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "Ann", "ann@example.com", "correct-horse")

	rr := s.do(t, http.MethodPost, "/api/v1/users/login", map[string]string{"email": "ann@example.com", "password": "wrong-horse"})
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Empty(t, rr.Result().Cookies())
}

func TestRefreshAndLogout(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "Ann", "ann@example.com", "correct-horse")
	cookies := s.login(t, "ann@example.com", "correct-horse")
	refresh := cookieNamed(cookies, "refresh_token")

	rr := s.do(t, http.MethodPost, "/api/v1/users/refresh", nil, refresh)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.NotNil(t, cookieNamed(rr.Result().Cookies(), "access_token"))

	rr = s.do(t, http.MethodPost, "/api/v1/users/logout", nil, cookies...)
	require.Equal(t, http.StatusOK, rr.Code)
	cleared := rr.Result().Cookies()
	require.Len(t, cleared, 2)
	for _, c := range cleared {
		require.Empty(t, c.Value)
		require.True(t, c.Expires.Before(time.Unix(1, 0)) || c.MaxAge < 0)
	}

	rr = s.do(t, http.MethodPost, "/api/v1/users/refresh", nil, refresh)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestLogoutReportsRevocationFailure(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "Ann", "ann@example.com", "correct-horse")
	cookies := s.login(t, "ann@example.com", "correct-horse")

	s.redis.Close()

	rr := s.do(t, http.MethodPost, "/api/v1/users/logout", nil, cookies...)
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	cleared := rr.Result().Cookies()
	require.Len(t, cleared, 2)
	for _, c := range cleared {
		require.Empty(t, c.Value)
	}
}

func TestRefreshWithoutCookie(t *testing.T) {
	s := newTestServer(t)

	rr := s.do(t, http.MethodPost, "/api/v1/users/refresh", nil)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "Ann", "ann@example.com", "correct-horse")

	rr := s.do(t, http.MethodGet, "/api/v1/users", nil)
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = s.do(t, http.MethodGet, "/api/v1/users", nil, s.login(t, "ann@example.com", "correct-horse")...)
	require.Equal(t, http.StatusForbidden, rr.Code)

	rr = s.do(t, http.MethodGet, "/api/v1/users", nil, s.login(t, adminEmail, adminPassword)...)
	require.Equal(t, http.StatusOK, rr.Code)

	var users []map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &users))
	require.Len(t, users, 2)
	for _, u := range users {
		require.NotContains(t, u, "password_hash")
	}
}

func TestDeactivateBlocksLoginAndEmitsEvent(t *testing.T) {
	s := newTestServer(t)
	userID := s.register(t, "Ann", "ann@example.com", "correct-horse")
	admin := s.login(t, adminEmail, adminPassword)

	rr := s.do(t, http.MethodPut, "/api/v1/users/"+userID+"/deactivate", nil, admin...)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	require.Len(t, s.publisher.activations, 1)
	require.Equal(t, userID, s.publisher.activations[0].UserID)
	require.False(t, s.publisher.activations[0].IsActive)

	rr = s.do(t, http.MethodPost, "/api/v1/users/login", map[string]string{"email": "ann@example.com", "password": "correct-horse"})
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = s.do(t, http.MethodPut, "/api/v1/users/"+userID+"/reactivate", nil, admin...)
	require.Equal(t, http.StatusOK, rr.Code)
	s.login(t, "ann@example.com", "correct-horse")
}

func TestUserRoutesRejectMalformedID(t *testing.T) {
	s := newTestServer(t)
	admin := s.login(t, adminEmail, adminPassword)

	rr := s.do(t, http.MethodGet, "/api/v1/users/not-a-uuid", nil, admin...)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = s.do(t, http.MethodGet, "/api/v1/users/0b8f5a2e-0c1d-4c47-9d43-6a3f3f0e2a11", nil, admin...)
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestPasswordResetFlow(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "Ann", "ann@example.com", "correct-horse")

	rr := s.do(t, http.MethodPost, "/api/v1/users/password/reset-request", map[string]string{"email": "ann@example.com"})
	require.Equal(t, http.StatusAccepted, rr.Code)
	token := s.publisher.lastMailToken(t)

	rr = s.do(t, http.MethodPut, "/api/v1/users/password", map[string]string{"token": token, "new_password": "battery-staple"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = s.do(t, http.MethodPut, "/api/v1/users/password", map[string]string{"token": token, "new_password": "battery-staple"})
	require.Equal(t, http.StatusNotFound, rr.Code)

	s.login(t, "ann@example.com", "battery-staple")
}

func TestPasswordResetUnknownEmailIsSilent(t *testing.T) {
	s := newTestServer(t)

	rr := s.do(t, http.MethodPost, "/api/v1/users/password/reset-request", map[string]string{"email": "ghost@example.com"})
	require.Equal(t, http.StatusAccepted, rr.Code)
	require.Empty(t, s.publisher.mails)
}

func TestAccountConfirmationFlow(t *testing.T) {
	s := newTestServer(t)
	userID := s.register(t, "Ann", "ann@example.com", "correct-horse")
	cookies := s.login(t, "ann@example.com", "correct-horse")

	rr := s.do(t, http.MethodPost, "/api/v1/users/confirmation/request", nil)
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = s.do(t, http.MethodPost, "/api/v1/users/confirmation/request", nil, cookies...)
	require.Equal(t, http.StatusAccepted, rr.Code)
	token := s.publisher.lastMailToken(t)

	rr = s.do(t, http.MethodPut, "/api/v1/users/confirmation", map[string]string{"token": token}, cookies...)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	user, err := s.users.GetByID(context.Background(), userID)
	require.NoError(t, err)
	require.True(t, user.IsConfirmed)
}

func TestRoleRoutes(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "Ann", "ann@example.com", "correct-horse")
	regular := s.login(t, "ann@example.com", "correct-horse")
	admin := s.login(t, adminEmail, adminPassword)

	rr := s.do(t, http.MethodGet, "/api/v1/roles", nil, regular...)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = s.do(t, http.MethodPost, "/api/v1/roles", map[string]string{"name": "Seller"}, regular...)
	require.Equal(t, http.StatusForbidden, rr.Code)

	rr = s.do(t, http.MethodPost, "/api/v1/roles", map[string]string{"name": "Seller"}, admin...)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = s.do(t, http.MethodPost, "/api/v1/roles", map[string]string{"name": "Seller"}, admin...)
	require.Equal(t, http.StatusConflict, rr.Code)
}

func TestLoginIsRateLimited(t *testing.T) {
	s := newTestServer(t, func(cfg *config.AppConfig) {
		cfg.RateLimit = config.RateLimitSettings{WindowDuration: time.Minute, LoginMaxAttempts: 2}
	})

	creds := map[string]string{"email": "ghost@example.com", "password": "whatever-1"}
	require.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodPost, "/api/v1/users/login", creds).Code)
	require.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodPost, "/api/v1/users/login", creds).Code)

	rr := s.do(t, http.MethodPost, "/api/v1/users/login", creds)
	require.Equal(t, http.StatusTooManyRequests, rr.Code)
	require.NotEmpty(t, rr.Header().Get("Retry-After"))
}
