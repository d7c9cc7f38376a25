package services

import (
	"context"
	"database/sql"
	"errors"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/spa-auth/internal/common"
	"github.com/dmitrijs2005/spa-auth/internal/dbx"
	"github.com/dmitrijs2005/spa-auth/internal/server/auth"
	"github.com/dmitrijs2005/spa-auth/internal/server/mailer"
	"github.com/dmitrijs2005/spa-auth/internal/server/models"
	"github.com/dmitrijs2005/spa-auth/internal/server/oauth"
	"github.com/dmitrijs2005/spa-auth/internal/server/repositories/accesstokens"
	"github.com/dmitrijs2005/spa-auth/internal/server/repositories/passwordresets"
	"github.com/dmitrijs2005/spa-auth/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/spa-auth/internal/server/repositories/roles"
	"github.com/dmitrijs2005/spa-auth/internal/server/repositories/tasks"
	"github.com/dmitrijs2005/spa-auth/internal/server/repositories/users"
	"github.com/google/uuid"
)

var errBoom = errors.New("boom")

// --- clock ---

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// --- in-memory store ---

var rolePermissions = map[string][]string{
	common.RoleUser:  {common.PermissionViewTask},
	common.RoleAdmin: {common.PermissionCreateTask, common.PermissionEditTask, common.PermissionDeleteTask, common.PermissionViewTask},
}

// memStore backs every fake repository. failures maps an operation name
// ("users.Create", "refresh.Create", ...) to the error it should return.
type memStore struct {
	mu       sync.Mutex
	users    map[string]*models.User
	refresh  map[string]*models.RefreshToken
	roles    map[string][]string
	tasks    map[string]*models.Task
	resets   map[string]*models.PasswordReset
	denied   map[string]time.Time
	failures map[string]error
}

func newMemStore() *memStore {
	return &memStore{
		users:    map[string]*models.User{},
		refresh:  map[string]*models.RefreshToken{},
		roles:    map[string][]string{},
		tasks:    map[string]*models.Task{},
		resets:   map[string]*models.PasswordReset{},
		denied:   map[string]time.Time{},
		failures: map[string]error{},
	}
}

func (s *memStore) fail(op string) error {
	return s.failures[op]
}

func (s *memStore) refreshCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.refresh)
}

func (s *memStore) activeRefresh(userID string, now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.refresh {
		if t.UserID == userID && t.IsValid(now) {
			n++
		}
	}
	return n
}

type fakeRepoManager struct{ s *memStore }

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(dbx.DBTX) users.Repository              { return &memUsers{m.s} }
func (m *fakeRepoManager) RefreshTokens(dbx.DBTX) refreshtokens.Repository {
	return &memRefresh{m.s}
}
func (m *fakeRepoManager) Roles(dbx.DBTX) roles.Repository { return &memRoles{m.s} }
func (m *fakeRepoManager) Tasks(dbx.DBTX) tasks.Repository { return &memTasks{m.s} }
func (m *fakeRepoManager) PasswordResets(dbx.DBTX) passwordresets.Repository {
	return &memResets{m.s}
}
func (m *fakeRepoManager) AccessTokens(dbx.DBTX) accesstokens.Repository { return &memDenylist{m.s} }

// fakeTransactor runs fn directly; the fakes ignore the DBTX.
type fakeTransactor struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeTransactor) WithTx(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) error {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return fn(ctx, nil)
}

// --- users ---

type memUsers struct{ s *memStore }

func (r *memUsers) Create(_ context.Context, u *models.User) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("users.Create"); err != nil {
		return nil, err
	}
	for _, existing := range r.s.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return nil, common.ErrorAlreadyExists
		}
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	cp := *u
	r.s.users[u.ID] = &cp
	return u, nil
}

func (r *memUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("users.GetByID"); err != nil {
		return nil, err
	}
	u, ok := r.s.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *memUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("users.GetByEmail"); err != nil {
		return nil, err
	}
	for _, u := range r.s.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *memUsers) UpdatePassword(_ context.Context, id, hash string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (r *memUsers) MarkEmailVerified(_ context.Context, id string, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok || u.EmailVerifiedAt != nil {
		return false, nil
	}
	u.EmailVerifiedAt = &at
	return true, nil
}

func (r *memUsers) LinkProvider(_ context.Context, id, provider, providerID, avatar string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.Provider, u.ProviderID, u.Avatar = provider, providerID, avatar
	return nil
}

func (r *memUsers) SetAvatarKey(_ context.Context, id, key string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("users.SetAvatarKey"); err != nil {
		return err
	}
	u, ok := r.s.users[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.AvatarKey = key
	return nil
}

// --- refresh tokens ---

type memRefresh struct{ s *memStore }

func (r *memRefresh) Create(_ context.Context, t *models.RefreshToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("refresh.Create"); err != nil {
		return err
	}
	cp := *t
	r.s.refresh[t.ID] = &cp
	return nil
}

func (r *memRefresh) FindByHash(_ context.Context, hash string) (*models.RefreshToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("refresh.FindByHash"); err != nil {
		return nil, err
	}
	for _, t := range r.s.refresh {
		if t.TokenHash == hash {
			cp := *t
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *memRefresh) ConsumeActive(_ context.Context, id string, now time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.refresh[id]
	if !ok || !t.IsValid(now) {
		return false, nil
	}
	t.Revoked = true
	t.LastUsedAt = &now
	t.UpdatedAt = now
	return true, nil
}

func (r *memRefresh) RevokeByHash(_ context.Context, hash, userID string, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, t := range r.s.refresh {
		if t.TokenHash == hash && t.UserID == userID && !t.Revoked {
			t.Revoked = true
			t.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

func (r *memRefresh) RevokeAllForUser(_ context.Context, userID string, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("refresh.RevokeAllForUser"); err != nil {
		return 0, err
	}
	var n int64
	for _, t := range r.s.refresh {
		if t.UserID == userID && !t.Revoked {
			t.Revoked = true
			t.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

func (r *memRefresh) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, t := range r.s.refresh {
		if t.ExpiresAt.Before(before) {
			delete(r.s.refresh, id)
			n++
		}
	}
	return n, nil
}

// --- roles ---

type memRoles struct{ s *memStore }

func (r *memRoles) Assign(_ context.Context, userID, role string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := rolePermissions[role]; !ok {
		return common.ErrorNotFound
	}
	if !slices.Contains(r.s.roles[userID], role) {
		r.s.roles[userID] = append(r.s.roles[userID], role)
	}
	return nil
}

func (r *memRoles) RolesForUser(_ context.Context, userID string) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("roles.RolesForUser"); err != nil {
		return nil, err
	}
	return slices.Clone(r.s.roles[userID]), nil
}

func (r *memRoles) PermissionsForUser(_ context.Context, userID string) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []string
	for _, role := range r.s.roles[userID] {
		for _, p := range rolePermissions[role] {
			if !slices.Contains(out, p) {
				out = append(out, p)
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

// --- tasks ---

type memTasks struct{ s *memStore }

func (r *memTasks) Create(_ context.Context, t *models.Task) (*models.Task, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("tasks.Create"); err != nil {
		return nil, err
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	cp := *t
	r.s.tasks[t.ID] = &cp
	return t, nil
}

func (r *memTasks) Get(_ context.Context, id string) (*models.Task, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tasks[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *memTasks) ListByUser(_ context.Context, userID string) ([]*models.Task, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []*models.Task{}
	for _, t := range r.s.tasks {
		if t.UserID == userID {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memTasks) Update(_ context.Context, t *models.Task) (*models.Task, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.tasks[t.ID]; !ok {
		return nil, common.ErrorNotFound
	}
	cp := *t
	r.s.tasks[t.ID] = &cp
	return t, nil
}

func (r *memTasks) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.tasks[id]; !ok {
		return common.ErrorNotFound
	}
	delete(r.s.tasks, id)
	return nil
}

// --- password resets ---

type memResets struct{ s *memStore }

func (r *memResets) Put(_ context.Context, p *models.PasswordReset) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *p
	cp.Email = strings.ToLower(p.Email)
	r.s.resets[cp.Email] = &cp
	return nil
}

func (r *memResets) Get(_ context.Context, email string) (*models.PasswordReset, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.resets[strings.ToLower(email)]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *memResets) Delete(_ context.Context, email, tokenHash string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := strings.ToLower(email)
	reset, ok := r.s.resets[key]
	if !ok || reset.TokenHash != tokenHash {
		return 0, nil
	}
	delete(r.s.resets, key)
	return 1, nil
}

// --- access token denylist ---

type memDenylist struct{ s *memStore }

func (r *memDenylist) Revoke(_ context.Context, jti string, exp time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.denied[jti] = exp
	return nil
}

func (r *memDenylist) IsRevoked(_ context.Context, jti string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	_, ok := r.s.denied[jti]
	return ok, nil
}

func (r *memDenylist) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for jti, exp := range r.s.denied {
		if exp.Before(before) {
			delete(r.s.denied, jti)
			n++
		}
	}
	return n, nil
}

// --- collaborators ---

// plainHasher avoids bcrypt cost in tests.
type plainHasher struct {
	mu         sync.Mutex
	dummyCalls int
}

func (h *plainHasher) Hash(pw string) (string, error) { return "hashed:" + pw, nil }
func (h *plainHasher) Compare(hash, pw string) bool   { return hash == "hashed:"+pw }
func (h *plainHasher) CompareDummy(string) {
	h.mu.Lock()
	h.dummyCalls++
	h.mu.Unlock()
}

var _ auth.PasswordHasher = (*plainHasher)(nil)

// failingIssuer mints nothing.
type failingIssuer struct{ *auth.TokenIssuer }

func (f failingIssuer) Generate(string) (*auth.AccessToken, error) { return nil, errBoom }

type recordingSender struct {
	mu   sync.Mutex
	sent []mailer.Message
	err  error
}

func (r *recordingSender) Send(_ context.Context, msg mailer.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, msg)
	return nil
}

func (r *recordingSender) last() mailer.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sent[len(r.sent)-1]
}

type recordingVerifier struct {
	mu    sync.Mutex
	users []string
}

func (r *recordingVerifier) SendVerification(_ context.Context, u *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users = append(r.users, u.ID)
	return nil
}

type stubProvider struct {
	name    string
	profile *oauth.Profile
	err     error
}

func (p *stubProvider) Name() string { return p.name }
func (p *stubProvider) AuthCodeURL(state string) string {
	return "https://provider.test/auth?state=" + state
}
func (p *stubProvider) Exchange(context.Context, string) (*oauth.Profile, error) {
	if p.err != nil {
		return nil, p.err
	}
	cp := *p.profile
	return &cp, nil
}
