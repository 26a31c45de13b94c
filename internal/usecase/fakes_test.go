package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/arklim/storefront-iam/internal/core/domain"
	"github.com/arklim/storefront-iam/internal/core/port"
	"github.com/arklim/storefront-iam/internal/infra/security"
	"github.com/arklim/storefront-iam/internal/repository"
)

const (
	strongPassword = "Sup3r!SecurePass#7890"
	testJWTSecret  = "0123456789abcdef0123456789abcdef"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type memoryUserRepo struct {
	mu    sync.Mutex
	users map[string]domain.User
	roles *memoryRoleRepo
	fail  error
}

func newMemoryUserRepo(roles *memoryRoleRepo) *memoryUserRepo {
	return &memoryUserRepo{users: make(map[string]domain.User), roles: roles}
}

func (m *memoryUserRepo) withRole(u domain.User) domain.User {
	if m.roles != nil {
		if role, err := m.roles.GetByID(context.Background(), u.RoleID); err == nil {
			u.Role = *role
		}
	}
	return u
}

func (m *memoryUserRepo) Create(_ context.Context, user domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	for _, existing := range m.users {
		if existing.Email == user.Email {
			return repository.ErrConflict
		}
	}
	m.users[user.ID] = user
	return nil
}

func (m *memoryUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	u = m.withRole(u)
	return &u, nil
}

func (m *memoryUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			u = m.withRole(u)
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memoryUserRepo) List(_ context.Context, filter domain.UserFilter) ([]domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, m.withRole(u))
	}
	if filter.Limit > 0 && uint64(len(out)) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *memoryUserRepo) Update(_ context.Context, user domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	if _, ok := m.users[user.ID]; !ok {
		return repository.ErrNotFound
	}
	m.users[user.ID] = user
	return nil
}

func (m *memoryUserRepo) UpdatePassword(_ context.Context, id, hash string) error {
	return m.mutate(id, func(u *domain.User) { u.PasswordHash = hash })
}

func (m *memoryUserRepo) SetConfirmed(_ context.Context, id string, confirmed bool) error {
	return m.mutate(id, func(u *domain.User) { u.IsConfirmed = confirmed })
}

func (m *memoryUserRepo) SetActive(_ context.Context, id string, active bool) error {
	return m.mutate(id, func(u *domain.User) { u.IsActive = active })
}

func (m *memoryUserRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.users, id)
	return nil
}

func (m *memoryUserRepo) mutate(id string, fn func(*domain.User)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	u, ok := m.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	fn(&u)
	m.users[id] = u
	return nil
}

type memoryRoleRepo struct {
	mu    sync.Mutex
	roles map[string]domain.Role
}

func newMemoryRoleRepo(names ...string) *memoryRoleRepo {
	repo := &memoryRoleRepo{roles: make(map[string]domain.Role)}
	for _, name := range names {
		id := "role-" + strings.ToLower(name)
		repo.roles[id] = domain.Role{ID: id, Name: name}
	}
	return repo
}

func (m *memoryRoleRepo) Create(_ context.Context, role domain.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.roles {
		if r.Name == role.Name {
			return repository.ErrConflict
		}
	}
	m.roles[role.ID] = role
	return nil
}

func (m *memoryRoleRepo) List(context.Context) ([]domain.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Role, 0, len(m.roles))
	for _, r := range m.roles {
		out = append(out, r)
	}
	return out, nil
}

func (m *memoryRoleRepo) GetByID(_ context.Context, id string) (*domain.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.roles[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &r, nil
}

func (m *memoryRoleRepo) GetByName(_ context.Context, name string) (*domain.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.roles {
		if r.Name == name {
			return &r, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memoryRoleRepo) Update(_ context.Context, role domain.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.roles[role.ID]; !ok {
		return repository.ErrNotFound
	}
	m.roles[role.ID] = role
	return nil
}

func (m *memoryRoleRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.roles[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.roles, id)
	return nil
}

// memoryTokenStore mirrors the production stores: it keys rows by the token hash.
type memoryTokenStore struct {
	mu     sync.Mutex
	kind   domain.TokenKind
	tokens map[string]domain.SecureToken
}

func newMemoryTokenStore(kind domain.TokenKind) *memoryTokenStore {
	return &memoryTokenStore{kind: kind, tokens: make(map[string]domain.SecureToken)}
}

func (m *memoryTokenStore) Kind() domain.TokenKind { return m.kind }

func (m *memoryTokenStore) Fetch(_ context.Context, value string) (*domain.SecureToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[security.HashToken(value)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	t.Value = value
	return &t, nil
}

func (m *memoryTokenStore) Create(_ context.Context, token domain.SecureToken) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := security.HashToken(token.Value)
	if _, exists := m.tokens[key]; exists {
		return "", repository.ErrConflict
	}
	stored := token
	stored.Value = ""
	m.tokens[key] = stored
	return token.Value, nil
}

func (m *memoryTokenStore) Delete(_ context.Context, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokens, security.HashToken(value))
	return nil
}

func (m *memoryTokenStore) Take(_ context.Context, value string) (*domain.SecureToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := security.HashToken(value)
	t, ok := m.tokens[key]
	if !ok {
		return nil, repository.ErrNotFound
	}
	delete(m.tokens, key)
	t.Value = value
	return &t, nil
}

func (m *memoryTokenStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tokens)
}

func (m *memoryTokenStore) CountFor(userID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.tokens {
		if t.UserID == userID {
			n++
		}
	}
	return n
}

// fixedGenerator hands out queued values before falling back to random ones.
type fixedGenerator struct {
	*security.SecureTokenGenerator
	mu     sync.Mutex
	values []string
}

func (g *fixedGenerator) Generate() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.values) > 0 {
		v := g.values[0]
		g.values = g.values[1:]
		return v, nil
	}
	return g.SecureTokenGenerator.Generate()
}

type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) { return "plain$" + password, nil }

func (plainHasher) Verify(password, encoded string) (bool, error) {
	if !strings.HasPrefix(encoded, "plain$") {
		return false, errors.New("unknown hash format")
	}
	return encoded == "plain$"+password, nil
}

type recordingPublisher struct {
	mu          sync.Mutex
	activations []domain.UserActivationChangedEvent
	mails       []domain.MailSendingEvent
	fail        error
}

func (p *recordingPublisher) PublishUserActivationChanged(_ context.Context, event domain.UserActivationChangedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return p.fail
	}
	p.activations = append(p.activations, event)
	return nil
}

func (p *recordingPublisher) PublishMailSendRequested(_ context.Context, event domain.MailSendingEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return p.fail
	}
	p.mails = append(p.mails, event)
	return nil
}

func (p *recordingPublisher) Mails() []domain.MailSendingEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.MailSendingEvent(nil), p.mails...)
}

func (p *recordingPublisher) Activations() []domain.UserActivationChangedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.UserActivationChangedEvent(nil), p.activations...)
}

type memoryOutbox struct {
	mu       sync.Mutex
	messages []domain.OutboxMessage
}

func (o *memoryOutbox) Enqueue(_ context.Context, msg domain.OutboxMessage) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.messages = append(o.messages, msg)
	return nil
}

func (o *memoryOutbox) ClaimPending(_ context.Context, limit uint64) ([]domain.OutboxMessage, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []domain.OutboxMessage
	for _, msg := range o.messages {
		if msg.DispatchedAt == nil && uint64(len(out)) < limit {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (o *memoryOutbox) MarkDispatched(_ context.Context, id string) error {
	return o.update(id, func(msg *domain.OutboxMessage) {
		now := time.Now()
		msg.DispatchedAt = &now
	})
}

func (o *memoryOutbox) MarkFailed(_ context.Context, id, reason string) error {
	return o.update(id, func(msg *domain.OutboxMessage) {
		msg.Attempts++
		msg.LastError = &reason
	})
}

func (o *memoryOutbox) update(id string, fn func(*domain.OutboxMessage)) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := range o.messages {
		if o.messages[i].ID == id {
			fn(&o.messages[i])
			return nil
		}
	}
	return repository.ErrNotFound
}

func (o *memoryOutbox) Pending() []domain.OutboxMessage {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []domain.OutboxMessage
	for _, msg := range o.messages {
		if msg.DispatchedAt == nil {
			out = append(out, msg)
		}
	}
	return out
}

// memoryTransactor runs fn against the shared fakes; it does not roll anything back.
type memoryTransactor struct {
	users  *memoryUserRepo
	outbox *memoryOutbox
	calls  int
}

func (t *memoryTransactor) WithinTx(ctx context.Context, fn func(context.Context, port.Repositories) error) error {
	t.calls++
	return fn(ctx, port.Repositories{Users: t.users, Outbox: t.outbox})
}

type relayFunc func(context.Context, domain.OutboxMessage) error

func (f relayFunc) Relay(ctx context.Context, msg domain.OutboxMessage) error { return f(ctx, msg) }

// memoryListings applies the same newer-than guard as the SQL implementation.
type memoryListings struct {
	mu       sync.Mutex
	listings []domain.Listing
}

func (m *memoryListings) ListPublic(_ context.Context, filter domain.ListingFilter) ([]domain.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Listing
	for _, l := range m.listings {
		if !l.OwnerActive || !l.IsAvailable {
			continue
		}
		if filter.Name != "" && !strings.Contains(strings.ToLower(l.Name), strings.ToLower(filter.Name)) {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

func (m *memoryListings) SetOwnerActive(_ context.Context, userID string, active bool, changedAt time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for i := range m.listings {
		l := &m.listings[i]
		if l.UserID != userID {
			continue
		}
		if l.OwnerActiveChangedAt != nil && !l.OwnerActiveChangedAt.Before(changedAt) {
			continue
		}
		at := changedAt
		l.OwnerActive = active
		l.OwnerActiveChangedAt = &at
		n++
	}
	return n, nil
}

var (
	_ port.UserRepository    = (*memoryUserRepo)(nil)
	_ port.RoleRepository    = (*memoryRoleRepo)(nil)
	_ port.SecureTokenStore  = (*memoryTokenStore)(nil)
	_ port.TokenGenerator    = (*fixedGenerator)(nil)
	_ port.PasswordHasher    = plainHasher{}
	_ port.EventPublisher    = (*recordingPublisher)(nil)
	_ port.OutboxRepository  = (*memoryOutbox)(nil)
	_ port.Transactor        = (*memoryTransactor)(nil)
	_ port.ListingRepository = (*memoryListings)(nil)
)
