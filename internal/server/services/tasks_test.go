package services

import (
	"context"
	"strings"
	"testing"

	"github.com/dmitrijs2005/spa-auth/internal/common"
	"github.com/dmitrijs2005/spa-auth/internal/logging"
	"github.com/dmitrijs2005/spa-auth/internal/server/auth"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTaskService() (*TaskService, *memStore) {
	store := newMemStore()
	return NewTaskService(nil, &fakeRepoManager{store}, logging.Discard()), store
}

func ptr[T any](v T) *T { return &v }

func TestTaskService_CRUD(t *testing.T) {
	svc, store := newTaskService()
	ctx := context.Background()
	ann := &auth.AuthContext{UserID: "ann"}

	created, err := svc.Create(ctx, ann, TaskInput{Title: "write tests", Description: ptr("all of them")})
	require.NoError(t, err)
	assert.Equal(t, "ann", created.UserID)
	assert.False(t, created.Completed)

	list, err := svc.List(ctx, ann)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	updated, err := svc.Update(ctx, ann, created.ID, TaskPatch{Completed: ptr(true)})
	require.NoError(t, err)
	assert.True(t, updated.Completed)
	assert.Equal(t, "write tests", updated.Title)
	assert.Equal(t, "all of them", *updated.Description)

	cleared, err := svc.Update(ctx, ann, created.ID, TaskPatch{Description: ptr("ignored"), ClearDescription: true})
	require.NoError(t, err)
	assert.Nil(t, cleared.Description)
	assert.True(t, cleared.Completed)

	require.NoError(t, svc.Delete(ctx, ann, created.ID))
	assert.Empty(t, store.tasks)

	_, err = svc.Get(ctx, ann, created.ID)
	assert.Equal(t, common.ErrorNotFound, err)
}

func TestTaskService_Validation(t *testing.T) {
	svc, store := newTaskService()
	ctx := context.Background()
	ann := &auth.AuthContext{UserID: "ann"}

	_, err := svc.Create(ctx, ann, TaskInput{Title: "  "})
	assert.ErrorIs(t, err, common.ErrorValidation)
	_, err = svc.Create(ctx, ann, TaskInput{Title: strings.Repeat("x", 256)})
	assert.ErrorIs(t, err, common.ErrorValidation)
	assert.Empty(t, store.tasks)

	created, err := svc.Create(ctx, ann, TaskInput{Title: "ok"})
	require.NoError(t, err)
	_, err = svc.Update(ctx, ann, created.ID, TaskPatch{Title: ptr("")})
	assert.ErrorIs(t, err, common.ErrorValidation)
}

func TestTaskService_Ownership(t *testing.T) {
	svc, _ := newTaskService()
	ctx := context.Background()
	ann := &auth.AuthContext{UserID: "ann"}
	bob := &auth.AuthContext{UserID: "bob"}

	task, err := svc.Create(ctx, ann, TaskInput{Title: "ann's"})
	require.NoError(t, err)

	_, err = svc.Get(ctx, bob, task.ID)
	assert.Equal(t, common.ErrorForbidden, err)
	_, err = svc.Update(ctx, bob, task.ID, TaskPatch{Completed: ptr(true)})
	assert.Equal(t, common.ErrorForbidden, err)
	assert.Equal(t, common.ErrorForbidden, svc.Delete(ctx, bob, task.ID))

	list, err := svc.List(ctx, bob)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestTaskService_MissingAndMalformedIDs(t *testing.T) {
	svc, _ := newTaskService()
	ctx := context.Background()
	ann := &auth.AuthContext{UserID: "ann"}

	_, err := svc.Get(ctx, ann, "not-a-uuid")
	assert.Equal(t, common.ErrorNotFound, err)
	_, err = svc.Get(ctx, ann, uuid.NewString())
	assert.Equal(t, common.ErrorNotFound, err)
	_, err = svc.List(ctx, nil)
	assert.Equal(t, common.ErrorUnauthorized, err)
}

func TestTaskService_StoreFailure(t *testing.T) {
	svc, store := newTaskService()
	store.failures["tasks.Create"] = errBoom

	_, err := svc.Create(context.Background(), &auth.AuthContext{UserID: "ann"}, TaskInput{Title: "x"})
	assert.Equal(t, common.ErrorInternal, err)
}
