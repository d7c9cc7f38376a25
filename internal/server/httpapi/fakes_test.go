package httpapi

import (
	"context"
	"time"

	"github.com/dmitrijs2005/spa-auth/internal/common"
	"github.com/dmitrijs2005/spa-auth/internal/logging"
	"github.com/dmitrijs2005/spa-auth/internal/server/auth"
	"github.com/dmitrijs2005/spa-auth/internal/server/config"
	"github.com/dmitrijs2005/spa-auth/internal/server/models"
	"github.com/dmitrijs2005/spa-auth/internal/server/services"
)

// ---- fakes ----

type fakeAuth struct {
	user    *models.User
	pair    *services.TokenPair
	err     error
	account *services.Account

	refreshErr error
	logoutErr  error

	// bearer token -> identity
	sessions map[string]*auth.AuthContext

	gotRefresh string
	gotLogout  string
	gotEmail   string
	gotInput   services.RegisterInput
}

func (f *fakeAuth) Register(ctx context.Context, in services.RegisterInput) (*models.User, *services.TokenPair, error) {
	f.gotInput = in
	return f.user, f.pair, f.err
}
func (f *fakeAuth) Login(ctx context.Context, email, password string) (*models.User, *services.TokenPair, error) {
	f.gotEmail = email
	return f.user, f.pair, f.err
}
func (f *fakeAuth) Logout(ctx context.Context, ac *auth.AuthContext, refreshToken string) error {
	f.gotLogout = refreshToken
	return f.logoutErr
}
func (f *fakeAuth) Refresh(ctx context.Context, refreshToken string) (*services.TokenPair, error) {
	f.gotRefresh = refreshToken
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return f.pair, nil
}
func (f *fakeAuth) Me(ctx context.Context, userID string) (*services.Account, error) {
	if f.account == nil {
		return nil, common.ErrorNotFound
	}
	return f.account, nil
}
func (f *fakeAuth) Authenticate(ctx context.Context, bearer string) (*auth.AuthContext, error) {
	if ac, ok := f.sessions[bearer]; ok {
		return ac, nil
	}
	return nil, common.ErrorUnauthorized
}

type fakeReset struct {
	sendErr  error
	resetErr error
	gotEmail string
	gotReset services.ResetPasswordInput
}

func (f *fakeReset) SendResetLink(ctx context.Context, email string) error {
	f.gotEmail = email
	return f.sendErr
}
func (f *fakeReset) Reset(ctx context.Context, in services.ResetPasswordInput) error {
	f.gotReset = in
	return f.resetErr
}

type fakeVerification struct {
	status    string
	err       error
	resendErr error
	gotArgs   []string
}

func (f *fakeVerification) Verify(ctx context.Context, userID, hash, expires, signature string) (string, error) {
	f.gotArgs = []string{userID, hash, expires, signature}
	return f.status, f.err
}
func (f *fakeVerification) Resend(ctx context.Context, email string) error { return f.resendErr }

type fakeSocial struct {
	user    *models.User
	pair    *services.TokenPair
	err     error
	gotCode string
}

func (f *fakeSocial) Supports(provider string) bool { return provider == "github" }
func (f *fakeSocial) AuthURL(provider, state string) (string, error) {
	if provider != "github" {
		return "", common.ErrUnknownProvider
	}
	return "https://github.test/authorize?state=" + state, nil
}
func (f *fakeSocial) Callback(ctx context.Context, provider, code string) (*models.User, *services.TokenPair, error) {
	f.gotCode = code
	return f.user, f.pair, f.err
}

type fakeTasks struct {
	tasks    []*models.Task
	task     *models.Task
	err      error
	gotPatch services.TaskPatch
	gotInput services.TaskInput
	gotID    string
}

func (f *fakeTasks) List(ctx context.Context, ac *auth.AuthContext) ([]*models.Task, error) {
	return f.tasks, f.err
}
func (f *fakeTasks) Create(ctx context.Context, ac *auth.AuthContext, in services.TaskInput) (*models.Task, error) {
	f.gotInput = in
	return f.task, f.err
}
func (f *fakeTasks) Get(ctx context.Context, ac *auth.AuthContext, id string) (*models.Task, error) {
	f.gotID = id
	return f.task, f.err
}
func (f *fakeTasks) Update(ctx context.Context, ac *auth.AuthContext, id string, patch services.TaskPatch) (*models.Task, error) {
	f.gotID, f.gotPatch = id, patch
	return f.task, f.err
}
func (f *fakeTasks) Delete(ctx context.Context, ac *auth.AuthContext, id string) error {
	f.gotID = id
	return f.err
}

type fakeAvatars struct {
	upload *services.AvatarUpload
	url    string
	err    error
}

func (f *fakeAvatars) PresignUpload(ctx context.Context, userID string) (*services.AvatarUpload, error) {
	return f.upload, f.err
}
func (f *fakeAvatars) AvatarURL(ctx context.Context, user *models.User) (string, error) {
	return f.url, f.err
}

type fakeAdmin struct {
	n   int64
	err error
}

func (f *fakeAdmin) RevokeSessions(ctx context.Context, email string) (int64, error) {
	return f.n, f.err
}

// ---- fixture ----

type fixture struct {
	auth   *fakeAuth
	reset  *fakeReset
	verify *fakeVerification
	social *fakeSocial
	tasks  *fakeTasks
	avatar *fakeAvatars
	admin  *fakeAdmin
	srv    *Server
}

const (
	userBearer  = "user-token"
	adminBearer = "admin-token"
)

func ptr[T any](v T) *T { return &v }

func testConfig() *config.Config {
	return &config.Config{
		EndpointAddrHTTP:             ":0",
		CookieSecure:                 true,
		FrontendURL:                  "http://spa.test",
		AllowedOrigins:               []string{"http://spa.test"},
		RefreshTokenValidityDuration: 30 * 24 * time.Hour,
	}
}

func newFixture() *fixture {
	f := &fixture{
		auth: &fakeAuth{
			user: &models.User{ID: "u1", Name: "Ann", Email: "ann@x.com"},
			pair: &services.TokenPair{AccessToken: "acc", RefreshToken: "ref", ExpiresIn: time.Hour},
			sessions: map[string]*auth.AuthContext{
				userBearer: {UserID: "u1", Roles: []string{common.RoleUser}, Permissions: []string{common.PermissionViewTask}},
				adminBearer: {UserID: "a1", Roles: []string{common.RoleAdmin}, Permissions: []string{
					common.PermissionCreateTask, common.PermissionEditTask, common.PermissionDeleteTask, common.PermissionViewTask,
				}},
			},
		},
		reset:  &fakeReset{},
		verify: &fakeVerification{status: services.VerificationSuccess},
		social: &fakeSocial{},
		tasks:  &fakeTasks{},
		avatar: &fakeAvatars{},
		admin:  &fakeAdmin{},
	}
	f.srv = NewServer(testConfig(), logging.Discard(), nil, Services{
		Auth:          f.auth,
		PasswordReset: f.reset,
		Verification:  f.verify,
		Social:        f.social,
		Tasks:         f.tasks,
		Avatars:       f.avatar,
		Admin:         f.admin,
	})
	return f
}
