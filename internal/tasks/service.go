package tasks

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/tasklight/tasklight/internal/platform/httpx"
)

const maxTitleLength = 100

// ErrInvalidTitle is returned when a title is empty or longer than 100
// characters. Titles are taken as-is; surrounding whitespace counts.
var ErrInvalidTitle = fmt.Errorf("%w: title must be 1-100 characters", httpx.ErrValidation)

// Service implements task business rules. The userID argument on every
// method is the authenticated identity resolved by the auth gate.
type Service struct {
	repo Repository
}

// NewService constructs a new Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// List returns the user's tasks ordered by creation time ascending. A user
// with no tasks gets an empty slice, not an error.
func (s *Service) List(ctx context.Context, userID string) ([]Task, error) {
	return s.repo.List(ctx, userID)
}

// Get loads a single task scoped to the user.
func (s *Service) Get(ctx context.Context, userID, id string) (*Task, error) {
	return s.repo.Get(ctx, id, userID)
}

// Create validates the title and persists a new task.
func (s *Service) Create(ctx context.Context, userID, title string) (*Task, error) {
	if err := validateTitle(title); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	task := Task{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		Completed: false,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, task); err != nil {
		return nil, err
	}
	return &task, nil
}

// Update applies a partial patch to a task scoped to the user. Fields absent
// from the patch keep their prior value; UpdatedAt is always refreshed.
func (s *Service) Update(ctx context.Context, userID, id string, patch UpdateTaskRequest) (*Task, error) {
	if patch.Title != nil {
		if err := validateTitle(*patch.Title); err != nil {
			return nil, err
		}
	}

	task, err := s.repo.Get(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	if patch.Title != nil {
		task.Title = *patch.Title
	}
	if patch.Completed != nil {
		task.Completed = *patch.Completed
	}
	task.UpdatedAt = time.Now().UTC()

	updated, err := s.repo.Update(ctx, *task)
	if err != nil {
		return nil, err
	}
	if !updated {
		// Deleted between the scoped read and the write.
		return nil, httpx.ErrNotFound
	}
	return task, nil
}

// Delete removes a task scoped to the user. A missing or foreign task is
// reported as not found.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	deleted, err := s.repo.Delete(ctx, id, userID)
	if err != nil {
		return err
	}
	if !deleted {
		return httpx.ErrNotFound
	}
	return nil
}

// ClearCompleted removes every completed task of the user in one
// transaction.
func (s *Service) ClearCompleted(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		var err error
		n, err = repo.ClearCompleted(ctx, userID)
		return err
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// DeleteAll removes every task of the user in one transaction.
func (s *Service) DeleteAll(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		var err error
		n, err = repo.DeleteAll(ctx, userID)
		return err
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// ToggleAll sets the completion flag on every task of the user in one
// transaction; a failure partway through leaves no task toggled.
func (s *Service) ToggleAll(ctx context.Context, userID string, completed bool) (int64, error) {
	var n int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		var err error
		n, err = repo.ToggleAll(ctx, userID, completed, time.Now().UTC())
		return err
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func validateTitle(title string) error {
	n := utf8.RuneCountInString(title)
	if n < 1 || n > maxTitleLength {
		return ErrInvalidTitle
	}
	return nil
}
