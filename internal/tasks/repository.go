package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tasklight/tasklight/internal/platform/db"
	"github.com/tasklight/tasklight/internal/platform/httpx"
)

// Repository defines the persistence port for tasks. Every read and write is
// keyed by (id, user_id) so a task owned by another user is indistinguishable
// from a missing one.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	Get(ctx context.Context, id, userID string) (*Task, error)
	List(ctx context.Context, userID string) ([]Task, error)
	Create(ctx context.Context, task Task) error
	Update(ctx context.Context, task Task) (bool, error)
	Delete(ctx context.Context, id, userID string) (bool, error)
	ClearCompleted(ctx context.Context, userID string) (int64, error)
	DeleteAll(ctx context.Context, userID string) (int64, error)
	ToggleAll(ctx context.Context, userID string, completed bool, updatedAt time.Time) (int64, error)
}

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

type repository struct {
	db   dbtx
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

// WithTx runs fn against a repository bound to a single transaction. Bulk
// operations use this so the read-then-write sequence commits or fails as
// one unit.
func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

func (r *repository) Get(ctx context.Context, id, userID string) (*Task, error) {
	const query = `
		SELECT id, user_id, title, completed, created_at, updated_at
		FROM tasks WHERE id = $1 AND user_id = $2
	`
	var t Task
	err := r.db.QueryRow(ctx, query, id, userID).
		Scan(&t.ID, &t.UserID, &t.Title, &t.Completed, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httpx.ErrNotFound
		}
		return nil, fmt.Errorf("tasks: get: %w", err)
	}
	return &t, nil
}

func (r *repository) List(ctx context.Context, userID string) ([]Task, error) {
	const query = `
		SELECT id, user_id, title, completed, created_at, updated_at
		FROM tasks WHERE user_id = $1
		ORDER BY created_at ASC, id ASC
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("tasks: list: %w", err)
	}
	defer rows.Close()

	list := make([]Task, 0)
	for rows.Next() {
		var t Task
		if err := rows.Scan(&t.ID, &t.UserID, &t.Title, &t.Completed, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("tasks: scan: %w", err)
		}
		list = append(list, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("tasks: rows: %w", err)
	}
	return list, nil
}

func (r *repository) Create(ctx context.Context, task Task) error {
	const query = `
		INSERT INTO tasks (id, user_id, title, completed, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.Exec(ctx, query, task.ID, task.UserID, task.Title, task.Completed, task.CreatedAt, task.UpdatedAt)
	if err != nil {
		return fmt.Errorf("tasks: create: %w", err)
	}
	return nil
}

// Update writes the mutable columns in one scoped statement, so two
// concurrent updates serialize at the row and the last commit wins. It
// reports whether the row still existed.
func (r *repository) Update(ctx context.Context, task Task) (bool, error) {
	const query = `
		UPDATE tasks SET title = $1, completed = $2, updated_at = $3
		WHERE id = $4 AND user_id = $5
	`
	tag, err := r.db.Exec(ctx, query, task.Title, task.Completed, task.UpdatedAt, task.ID, task.UserID)
	if err != nil {
		return false, fmt.Errorf("tasks: update: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *repository) Delete(ctx context.Context, id, userID string) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM tasks WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return false, fmt.Errorf("tasks: delete: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *repository) ClearCompleted(ctx context.Context, userID string) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM tasks WHERE user_id = $1 AND completed`, userID)
	if err != nil {
		return 0, fmt.Errorf("tasks: clear completed: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *repository) DeleteAll(ctx context.Context, userID string) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM tasks WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("tasks: delete all: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *repository) ToggleAll(ctx context.Context, userID string, completed bool, updatedAt time.Time) (int64, error) {
	const query = `
		UPDATE tasks SET completed = $1, updated_at = $2 WHERE user_id = $3
	`
	tag, err := r.db.Exec(ctx, query, completed, updatedAt, userID)
	if err != nil {
		return 0, fmt.Errorf("tasks: toggle all: %w", err)
	}
	return tag.RowsAffected(), nil
}

var _ Repository = (*repository)(nil)
