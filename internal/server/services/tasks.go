package services

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/dmitrijs2005/spa-auth/internal/common"
	"github.com/dmitrijs2005/spa-auth/internal/dbx"
	"github.com/dmitrijs2005/spa-auth/internal/logging"
	"github.com/dmitrijs2005/spa-auth/internal/server/auth"
	"github.com/dmitrijs2005/spa-auth/internal/server/models"
	"github.com/dmitrijs2005/spa-auth/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// TaskInput creates a task.
type TaskInput struct {
	Title       string
	Description *string
	Completed   bool
}

// TaskPatch updates the fields that are set. ClearDescription removes the
// description and takes precedence over Description.
type TaskPatch struct {
	Title            *string
	Description      *string
	ClearDescription bool
	Completed        *bool
}

// TaskService manages the tasks of the authenticated user. Permission checks
// happen in the transport; this layer enforces ownership.
type TaskService struct {
	db          dbx.DBTX
	repomanager repomanager.RepositoryManager
	log         logging.Logger
}

func NewTaskService(db dbx.DBTX, m repomanager.RepositoryManager, log logging.Logger) *TaskService {
	return &TaskService{db: db, repomanager: m, log: log.With("module", "services.tasks")}
}

func checkTitle(v common.ValidationErrors, title string) {
	switch {
	case strings.TrimSpace(title) == "":
		v.Add("title", "is required")
	case utf8.RuneCountInString(title) > maxTitleLength:
		v.Add("title", "must not exceed 255 characters")
	}
}

func (s *TaskService) List(ctx context.Context, ac *auth.AuthContext) ([]*models.Task, error) {
	if ac == nil {
		return nil, common.ErrorUnauthorized
	}
	list, err := s.repomanager.Tasks(s.db).ListByUser(ctx, ac.UserID)
	if err != nil {
		return nil, s.internal(ctx, "list tasks", err)
	}
	return list, nil
}

func (s *TaskService) Create(ctx context.Context, ac *auth.AuthContext, in TaskInput) (*models.Task, error) {
	if ac == nil {
		return nil, common.ErrorUnauthorized
	}
	v := common.ValidationErrors{}
	checkTitle(v, in.Title)
	if err := v.Err(); err != nil {
		return nil, err
	}

	task, err := s.repomanager.Tasks(s.db).Create(ctx, &models.Task{
		UserID:      ac.UserID,
		Title:       in.Title,
		Description: in.Description,
		Completed:   in.Completed,
	})
	if err != nil {
		return nil, s.internal(ctx, "create task", err)
	}
	return task, nil
}

// Get returns the task if it belongs to the caller. Tasks of other users
// yield common.ErrorForbidden.
func (s *TaskService) Get(ctx context.Context, ac *auth.AuthContext, id string) (*models.Task, error) {
	if ac == nil {
		return nil, common.ErrorUnauthorized
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, common.ErrorNotFound
	}

	task, err := s.repomanager.Tasks(s.db).Get(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, s.internal(ctx, "get task", err)
	}
	if task.UserID != ac.UserID {
		return nil, common.ErrorForbidden
	}
	return task, nil
}

func (s *TaskService) Update(ctx context.Context, ac *auth.AuthContext, id string, patch TaskPatch) (*models.Task, error) {
	task, err := s.Get(ctx, ac, id)
	if err != nil {
		return nil, err
	}

	v := common.ValidationErrors{}
	if patch.Title != nil {
		checkTitle(v, *patch.Title)
		task.Title = *patch.Title
	}
	if err := v.Err(); err != nil {
		return nil, err
	}
	switch {
	case patch.ClearDescription:
		task.Description = nil
	case patch.Description != nil:
		task.Description = patch.Description
	}
	if patch.Completed != nil {
		task.Completed = *patch.Completed
	}

	updated, err := s.repomanager.Tasks(s.db).Update(ctx, task)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, s.internal(ctx, "update task", err)
	}
	return updated, nil
}

func (s *TaskService) Delete(ctx context.Context, ac *auth.AuthContext, id string) error {
	if _, err := s.Get(ctx, ac, id); err != nil {
		return err
	}
	if err := s.repomanager.Tasks(s.db).Delete(ctx, id); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorNotFound
		}
		return s.internal(ctx, "delete task", err)
	}
	return nil
}

func (s *TaskService) internal(ctx context.Context, op string, err error) error {
	s.log.Error(ctx, op+" failed", "error", err)
	return common.ErrorInternal
}
