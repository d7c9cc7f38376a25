package services

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/spa-auth/internal/common"
	"github.com/dmitrijs2005/spa-auth/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAdminFixture(t *testing.T) (*AdminService, *userFixture) {
	t.Helper()
	uf := newUserFixture(t)
	svc := NewAdminService(nil, &fakeTransactor{}, &fakeRepoManager{uf.store}, uf.hasher, uf.refresh, logging.Discard())
	svc.now = uf.clock.Now
	return svc, uf
}

func TestAdmin_CreateUser(t *testing.T) {
	svc, uf := newAdminFixture(t)
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, "Root", "root@x.com", "supersecret", common.RoleAdmin)
	require.NoError(t, err)
	assert.True(t, user.IsVerified())
	assert.Equal(t, []string{common.RoleAdmin}, uf.store.roles[user.ID])

	_, err = svc.CreateUser(ctx, "Root", "bad", "short", "")
	assert.ErrorIs(t, err, common.ErrorValidation)

	_, err = svc.CreateUser(ctx, "Other", "other@x.com", "supersecret", "wizard")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestAdmin_RevokeSessions(t *testing.T) {
	svc, uf := newAdminFixture(t)
	userID, _ := uf.register(t, "ann@x.com")

	n, err := svc.RevokeSessions(context.Background(), "ann@x.com")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 0, uf.store.activeRefresh(userID, uf.clock.Now()))

	_, err = svc.RevokeSessions(context.Background(), "nobody@x.com")
	assert.Equal(t, common.ErrorNotFound, err)
}

func TestAdmin_PurgeTokens(t *testing.T) {
	svc, uf := newAdminFixture(t)
	uf.register(t, "ann@x.com")
	uf.store.denied["old-jti"] = uf.clock.Now().Add(time.Minute)

	uf.clock.Advance(60 * 24 * time.Hour)

	res, err := svc.PurgeTokens(context.Background(), 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.RefreshTokens)
	assert.Equal(t, int64(1), res.AccessTokens)
}

func TestAdmin_FindUser(t *testing.T) {
	svc, uf := newAdminFixture(t)
	userID, _ := uf.register(t, "ann@x.com")

	u, err := svc.FindUser(context.Background(), " Ann@X.com ")
	require.NoError(t, err)
	assert.Equal(t, userID, u.ID)

	_, err = svc.FindUser(context.Background(), "nobody@x.com")
	assert.Equal(t, common.ErrorNotFound, err)
}
