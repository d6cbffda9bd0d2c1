package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/chepyr/go-todo-web/internal/models"
)

// defines methods for task db operations.
// ownerID 0 means the call is not restricted to one user.
type TaskRepositoryInterface interface {
	Create(ctx context.Context, task *models.Task) error
	GetByID(ctx context.Context, id, ownerID int64) (*models.Task, error)
	ListByOwner(ctx context.Context, ownerID int64) ([]*models.Task, error)
	Update(ctx context.Context, task *models.Task) error
	Delete(ctx context.Context, id, ownerID int64) error
}

type TaskRepository struct {
	db *sql.DB
}

func NewTaskRepository(db *sql.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

const taskColumns = `id, user_id, title, description, priority, due_date, completed, created_at`

func (r *TaskRepository) Create(ctx context.Context, task *models.Task) error {
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now().UTC().Truncate(time.Microsecond)
	}
	query := `INSERT INTO tasks (user_id, title, description, priority, due_date, completed, created_at)
	 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`

	err := r.db.QueryRowContext(
		ctx, query, nullableID(task.UserID), task.Title, task.Description, task.Priority,
		dueDateArg(task.DueDate), task.Completed, task.CreatedAt,
	).Scan(&task.ID)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

func (r *TaskRepository) GetByID(ctx context.Context, id, ownerID int64) (*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`
	args := []any{id}
	if ownerID != 0 {
		query += ` AND user_id = $2`
		args = append(args, ownerID)
	}

	task, err := scanTask(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get task %d: %w", id, err)
	}
	return task, nil
}

// ListByOwner returns tasks newest first.
func (r *TaskRepository) ListByOwner(ctx context.Context, ownerID int64) ([]*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks`
	var args []any
	if ownerID != 0 {
		query += ` WHERE user_id = $1`
		args = append(args, ownerID)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	tasks := []*models.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// Update writes the mutable fields of task. ID, owner and created_at are never changed.
func (r *TaskRepository) Update(ctx context.Context, task *models.Task) error {
	query := `UPDATE tasks SET title = $1, description = $2, priority = $3, due_date = $4, completed = $5
	 WHERE id = $6`

	res, err := r.db.ExecContext(
		ctx, query, task.Title, task.Description, task.Priority,
		dueDateArg(task.DueDate), task.Completed, task.ID,
	)
	if err != nil {
		return fmt.Errorf("update task %d: %w", task.ID, err)
	}
	return expectAffected(res)
}

func (r *TaskRepository) Delete(ctx context.Context, id, ownerID int64) error {
	query := `DELETE FROM tasks WHERE id = $1`
	args := []any{id}
	if ownerID != 0 {
		query += ` AND user_id = $2`
		args = append(args, ownerID)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete task %d: %w", id, err)
	}
	return expectAffected(res)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*models.Task, error) {
	task := &models.Task{}
	var userID sql.NullInt64
	var dueDate sql.NullTime
	err := row.Scan(
		&task.ID, &userID, &task.Title, &task.Description, &task.Priority,
		&dueDate, &task.Completed, &task.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if userID.Valid {
		task.UserID = userID.Int64
	}
	if dueDate.Valid {
		d := time.Date(dueDate.Time.Year(), dueDate.Time.Month(), dueDate.Time.Day(), 0, 0, 0, 0, time.UTC)
		task.DueDate = &d
	}
	return task, nil
}

func dueDateArg(d *time.Time) any {
	if d == nil {
		return nil
	}
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
}

func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
