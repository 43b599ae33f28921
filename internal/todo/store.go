// Package todo persists tasks and their generated subtasks in SQLite.
package todo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/zyrian-nova/todo-app/internal/util"

	_ "modernc.org/sqlite"
)

// MaxTaskLength caps the stored task text in characters.
const MaxTaskLength = 100

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// ErrNotFound is returned when a task id does not exist.
var ErrNotFound = errors.New("todo not found")

// Todo is a single task. ParentID is set for generated subtasks.
type Todo struct {
	ID       int64  `json:"id" yaml:"id"`
	Task     string `json:"task" yaml:"task"`
	Done     bool   `json:"done" yaml:"done"`
	ParentID *int64 `json:"parent_task_id" yaml:"parent_task_id,omitempty"`
}

// Patch holds the fields of a partial update; nil fields are left unchanged.
type Patch struct {
	Task *string
	Done *bool
}

// Store is a SQLite-backed task repository. It is safe for concurrent use.
type Store struct {
	db   *sql.DB
	path string
}

const schema = `
CREATE TABLE IF NOT EXISTS todos (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	task TEXT NOT NULL,
	done INTEGER NOT NULL DEFAULT 0,
	parent_task_id INTEGER REFERENCES todos(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_todos_parent ON todos(parent_task_id);
`

// Open opens or creates the database at path and applies the schema.
// Use MemoryPath for a throwaway store.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("open store: empty path")
	}

	if path != MemoryPath {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps an in-memory database alive and serializes writers.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, path: path}
	if err := s.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Path returns the database path the store was opened with.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTodo(row rowScanner) (Todo, error) {
	var (
		t      Todo
		parent sql.NullInt64
	)
	if err := row.Scan(&t.ID, &t.Task, &t.Done, &parent); err != nil {
		return Todo{}, err
	}
	if parent.Valid {
		id := parent.Int64
		t.ParentID = &id
	}
	return t, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func exists(ctx context.Context, q execer, id int64) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, "SELECT 1 FROM todos WHERE id = ?", id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

func insert(ctx context.Context, q execer, t Todo) (Todo, error) {
	t.Task = util.CapRunes(t.Task, MaxTaskLength)

	var parent any
	if t.ParentID != nil {
		parent = *t.ParentID
	}
	res, err := q.ExecContext(ctx,
		"INSERT INTO todos (task, done, parent_task_id) VALUES (?, ?, ?)",
		t.Task, t.Done, parent)
	if err != nil {
		return Todo{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Todo{}, err
	}
	t.ID = id
	return t, nil
}

// Create inserts a task and returns it with its assigned id. The task text is
// capped at MaxTaskLength characters. A ParentID that does not exist yields
// ErrNotFound.
func (s *Store) Create(ctx context.Context, t Todo) (Todo, error) {
	if t.ParentID != nil {
		ok, err := exists(ctx, s.db, *t.ParentID)
		if err != nil {
			return Todo{}, fmt.Errorf("create todo: %w", err)
		}
		if !ok {
			return Todo{}, fmt.Errorf("create todo: parent %d: %w", *t.ParentID, ErrNotFound)
		}
	}

	created, err := insert(ctx, s.db, t)
	if err != nil {
		return Todo{}, fmt.Errorf("create todo: %w", err)
	}
	return created, nil
}

// AddSubtasks stores each task as a child of parentID in one transaction.
func (s *Store) AddSubtasks(ctx context.Context, parentID int64, tasks []string) ([]Todo, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("add subtasks: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	ok, err := exists(ctx, tx, parentID)
	if err != nil {
		return nil, fmt.Errorf("add subtasks: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("add subtasks: parent %d: %w", parentID, ErrNotFound)
	}

	created := make([]Todo, 0, len(tasks))
	for _, task := range tasks {
		pid := parentID
		t, err := insert(ctx, tx, Todo{Task: task, ParentID: &pid})
		if err != nil {
			return nil, fmt.Errorf("add subtasks: %w", err)
		}
		created = append(created, t)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("add subtasks: commit: %w", err)
	}
	return created, nil
}

// Get returns the task with id.
func (s *Store) Get(ctx context.Context, id int64) (Todo, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, task, done, parent_task_id FROM todos WHERE id = ?", id)
	t, err := scanTodo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Todo{}, fmt.Errorf("todo %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return Todo{}, fmt.Errorf("get todo %d: %w", id, err)
	}
	return t, nil
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]Todo, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	todos := []Todo{}
	for rows.Next() {
		t, err := scanTodo(rows)
		if err != nil {
			return nil, err
		}
		todos = append(todos, t)
	}
	return todos, rows.Err()
}

// List returns every task, including subtasks, in creation order.
func (s *Store) List(ctx context.Context) ([]Todo, error) {
	todos, err := s.query(ctx, "SELECT id, task, done, parent_task_id FROM todos ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list todos: %w", err)
	}
	return todos, nil
}

// Children returns the direct subtasks of parentID in creation order.
func (s *Store) Children(ctx context.Context, parentID int64) ([]Todo, error) {
	ok, err := exists(ctx, s.db, parentID)
	if err != nil {
		return nil, fmt.Errorf("list subtasks: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("todo %d: %w", parentID, ErrNotFound)
	}

	todos, err := s.query(ctx,
		"SELECT id, task, done, parent_task_id FROM todos WHERE parent_task_id = ? ORDER BY id", parentID)
	if err != nil {
		return nil, fmt.Errorf("list subtasks: %w", err)
	}
	return todos, nil
}

// Update applies the non-nil fields of p and returns the updated task.
func (s *Store) Update(ctx context.Context, id int64, p Patch) (Todo, error) {
	var (
		sets []string
		args []any
	)
	if p.Task != nil {
		sets = append(sets, "task = ?")
		args = append(args, util.CapRunes(*p.Task, MaxTaskLength))
	}
	if p.Done != nil {
		sets = append(sets, "done = ?")
		args = append(args, *p.Done)
	}

	if len(sets) > 0 {
		args = append(args, id)
		res, err := s.db.ExecContext(ctx,
			"UPDATE todos SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
		if err != nil {
			return Todo{}, fmt.Errorf("update todo %d: %w", id, err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return Todo{}, fmt.Errorf("todo %d: %w", id, ErrNotFound)
		}
	}

	return s.Get(ctx, id)
}

// Delete removes the task with id and, by cascade, its subtasks.
func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM todos WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete todo %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete todo %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("todo %d: %w", id, ErrNotFound)
	}
	return nil
}
