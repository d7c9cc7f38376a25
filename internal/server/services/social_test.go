package services

import (
	"context"
	"testing"

	"github.com/dmitrijs2005/spa-auth/internal/common"
	"github.com/dmitrijs2005/spa-auth/internal/logging"
	"github.com/dmitrijs2005/spa-auth/internal/server/oauth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSocialFixture(t *testing.T, p *stubProvider) (*SocialService, *userFixture) {
	t.Helper()
	uf := newUserFixture(t)
	svc := NewSocialService(uf.svc, oauth.Registry{p.name: p}, logging.Discard(), nil)
	svc.now = uf.clock.Now
	return svc, uf
}

func TestSocial_AuthURL(t *testing.T) {
	svc, _ := newSocialFixture(t, &stubProvider{name: "github"})

	u, err := svc.AuthURL("github", "st")
	require.NoError(t, err)
	assert.Equal(t, "https://provider.test/auth?state=st", u)

	_, err = svc.AuthURL("myspace", "st")
	assert.Equal(t, common.ErrUnknownProvider, err)

	assert.True(t, svc.Supports("github"))
	assert.False(t, svc.Supports("myspace"))
}

func TestSocial_CallbackCreatesVerifiedUser(t *testing.T) {
	p := &stubProvider{name: "google", profile: &oauth.Profile{
		ID: "g-1", Email: "new@x.com", EmailVerified: true, Name: "New", Avatar: "https://pic/new",
	}}
	svc, uf := newSocialFixture(t, p)
	ctx := context.Background()

	user, pair, err := svc.Callback(ctx, "google", "code")
	require.NoError(t, err)
	assert.True(t, user.IsVerified())
	assert.Equal(t, "google", user.Provider)
	assert.Equal(t, "g-1", user.ProviderID)
	assert.Equal(t, []string{common.RoleUser}, uf.store.roles[user.ID])
	assert.NotEmpty(t, user.PasswordHash)

	_, err = uf.svc.Refresh(ctx, pair.RefreshToken)
	assert.NoError(t, err)
}

func TestSocial_CallbackLinksExistingUser(t *testing.T) {
	p := &stubProvider{name: "github", profile: &oauth.Profile{
		ID: "77", Email: "ann@x.com", EmailVerified: true, Name: "Ann", Avatar: "https://gh/ann",
	}}
	svc, uf := newSocialFixture(t, p)
	userID, _ := uf.register(t, "ann@x.com")

	user, _, err := svc.Callback(context.Background(), "github", "code")
	require.NoError(t, err)
	assert.Equal(t, userID, user.ID)
	assert.Len(t, uf.store.users, 1)

	stored := uf.store.users[userID]
	assert.Equal(t, "github", stored.Provider)
	assert.Equal(t, "https://gh/ann", stored.Avatar)
	assert.True(t, stored.IsVerified())
	assert.Equal(t, "hashed:pw123456", stored.PasswordHash)
}

func TestSocial_CallbackUnverifiedEmailCannotTakeOverAccount(t *testing.T) {
	p := &stubProvider{name: "github", profile: &oauth.Profile{
		ID: "666", Email: "ann@x.com", EmailVerified: false, Name: "Mallory", Avatar: "https://gh/mallory",
	}}
	svc, uf := newSocialFixture(t, p)
	userID, _ := uf.register(t, "ann@x.com")
	before := uf.store.refreshCount()

	user, pair, err := svc.Callback(context.Background(), "github", "code")
	assert.ErrorIs(t, err, common.ErrorUnauthorized)
	assert.Nil(t, user)
	assert.Nil(t, pair)

	stored := uf.store.users[userID]
	assert.Empty(t, stored.Provider)
	assert.Empty(t, stored.ProviderID)
	assert.Empty(t, stored.Avatar)
	assert.Equal(t, before, uf.store.refreshCount())
}

func TestSocial_CallbackUnverifiedEmailSameIdentity(t *testing.T) {
	p := &stubProvider{name: "github", profile: &oauth.Profile{
		ID: "42", Email: "bob@x.com", EmailVerified: false, Name: "Bob",
	}}
	svc, _ := newSocialFixture(t, p)
	ctx := context.Background()

	first, _, err := svc.Callback(ctx, "github", "code")
	require.NoError(t, err)
	assert.False(t, first.IsVerified())

	again, pair, err := svc.Callback(ctx, "github", "code")
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.NotEmpty(t, pair.AccessToken)
}

func TestSocial_CallbackFailures(t *testing.T) {
	p := &stubProvider{name: "github", err: errBoom}
	svc, uf := newSocialFixture(t, p)
	ctx := context.Background()

	_, _, err := svc.Callback(ctx, "github", "code")
	assert.ErrorIs(t, err, common.ErrorUnauthorized)

	_, _, err = svc.Callback(ctx, "nope", "code")
	assert.Equal(t, common.ErrUnknownProvider, err)

	p.err = nil
	p.profile = &oauth.Profile{ID: "1", Email: "x@x.com"}
	uf.store.failures["users.Create"] = errBoom
	_, _, err = svc.Callback(ctx, "github", "code")
	assert.Equal(t, common.ErrorInternal, err)
}
