package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/diegoavarela/task-list-sub000/pkg/models"
	"github.com/diegoavarela/task-list-sub000/pkg/storage"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
)

type DBInterface interface {
	Get(dest interface{}, query string, args ...interface{}) error
	Select(dest interface{}, query string, args ...interface{}) error
	QueryRowx(query string, args ...interface{}) *sqlx.Row
	Exec(query string, args ...interface{}) (sql.Result, error)
}

type PostgresStore struct {
	db DBInterface
}

// taskRow mirrors the tasks table.
type taskRow struct {
	ID               string         `db:"id"`
	Name             string         `db:"name"`
	ParentTaskID     sql.NullString `db:"parent_task_id"`
	Completed        bool           `db:"completed"`
	SortOrder        sql.NullInt64  `db:"sort_order"`
	IsRecurring      bool           `db:"is_recurring"`
	RecurringPattern []byte         `db:"recurring_pattern"`
	DueDate          time.Time      `db:"due_date"`
	DueTime          sql.NullString `db:"due_time"`
	Priority         string         `db:"priority"`
	Status           string         `db:"status"`
	Company          string         `db:"company"`
	Category         string         `db:"category"`
	Notes            string         `db:"notes"`
	Tags             pq.StringArray `db:"tags"`
	CreatedAt        time.Time      `db:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at"`
}

// scopeLockNamespace is the first key of the advisory lock taken per sibling scope.
const scopeLockNamespace = 41920

const taskColumns = `id, name, parent_task_id, completed, sort_order, is_recurring, recurring_pattern,
	due_date, due_time, priority, status, company, category, notes, tags, created_at, updated_at`

func (r taskRow) toModel() (models.Task, error) {
	t := models.Task{
		ID:           r.ID,
		Name:         r.Name,
		Dependencies: []string{},
		Completed:    r.Completed,
		IsRecurring:  r.IsRecurring,
		DueDate:      r.DueDate,
		Priority:     models.Priority(r.Priority),
		Status:       models.TaskStatus(r.Status),
		Company:      r.Company,
		Category:     r.Category,
		Notes:        r.Notes,
		Tags:         []string(r.Tags),
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	if r.ParentTaskID.Valid {
		t.ParentTaskID = &r.ParentTaskID.String
	}
	if r.SortOrder.Valid {
		t.Order = models.IntPtr(int(r.SortOrder.Int64))
	}
	if r.DueTime.Valid {
		t.DueTime = &r.DueTime.String
	}
	if len(r.RecurringPattern) > 0 {
		var p models.RecurrencePattern
		if err := json.Unmarshal(r.RecurringPattern, &p); err != nil {
			return models.Task{}, errors.Wrapf(err, "decode recurrence of task %s", r.ID)
		}
		t.RecurringPattern = &p
	}
	return t, nil
}

func encodePattern(p *models.RecurrencePattern) (interface{}, error) {
	if p == nil {
		return nil, nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, errors.Wrap(err, "encode recurrence")
	}
	return string(data), nil
}

func NewPostgresStore(connStr string) (*PostgresStore, error) {
	db, err := sqlx.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Begin() (storage.Store, error) {
	if db, ok := s.db.(*sqlx.DB); ok {
		tx, err := db.Beginx()
		if err != nil {
			return nil, err
		}
		return &PostgresStore{db: tx}, nil
	}
	return nil, fmt.Errorf("cannot begin transaction on unknown type")
}

func (s *PostgresStore) Commit() error {
	if tx, ok := s.db.(*sqlx.Tx); ok {
		return tx.Commit()
	}
	return fmt.Errorf("cannot commit: not a transaction")
}

func (s *PostgresStore) Rollback() error {
	if tx, ok := s.db.(*sqlx.Tx); ok {
		return tx.Rollback()
	}
	return fmt.Errorf("cannot rollback: not a transaction")
}

func (s *PostgresStore) Close() error {
	if db, ok := s.db.(*sqlx.DB); ok {
		return db.Close()
	}
	return nil // No-op for *sqlx.Tx
}

// GetAll loads every task with its dependency edges, oldest first.
func (s *PostgresStore) GetAll() ([]models.Task, error) {
	var rows []taskRow
	if err := s.db.Select(&rows, "SELECT "+taskColumns+" FROM tasks ORDER BY created_at, id"); err != nil {
		return nil, fmt.Errorf("get tasks: %w", err)
	}
	var deps []models.Dependency
	if err := s.db.Select(&deps, "SELECT task_id, depends_on, position FROM task_dependencies ORDER BY task_id, position"); err != nil {
		return nil, fmt.Errorf("get dependencies: %w", err)
	}
	byTask := make(map[string][]string)
	for _, d := range deps {
		byTask[d.TaskID] = append(byTask[d.TaskID], d.DependsOn)
	}

	tasks := make([]models.Task, 0, len(rows))
	for _, r := range rows {
		t, err := r.toModel()
		if err != nil {
			return nil, err
		}
		if d, ok := byTask[t.ID]; ok {
			t.Dependencies = d
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

// GetTask retrieves a task by ID
func (s *PostgresStore) GetTask(id string) (models.Task, error) {
	var row taskRow
	err := s.db.Get(&row, "SELECT "+taskColumns+" FROM tasks WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return models.Task{}, storage.ErrNotFound
	}
	if err != nil {
		return models.Task{}, err
	}
	t, err := row.toModel()
	if err != nil {
		return models.Task{}, err
	}
	err = s.db.Select(&t.Dependencies, "SELECT depends_on FROM task_dependencies WHERE task_id = $1 ORDER BY position", id)
	if err != nil {
		return models.Task{}, fmt.Errorf("get dependencies of %s: %w", id, err)
	}
	return t, nil
}

// ApplyUpdate writes the non-nil fields of update in a single UPDATE.
func (s *PostgresStore) ApplyUpdate(id string, update models.TaskUpdate) error {
	var (
		sets []string
		args []interface{}
	)
	set := func(col string, v interface{}) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if update.Name != nil {
		set("name", *update.Name)
	}
	if update.Order != nil {
		set("sort_order", *update.Order)
	}
	if update.Completed != nil {
		set("completed", *update.Completed)
	}
	if update.Status != nil {
		set("status", string(*update.Status))
	}
	if update.IsRecurring != nil {
		set("is_recurring", *update.IsRecurring)
		if !*update.IsRecurring && update.RecurringPattern == nil {
			sets = append(sets, "recurring_pattern = NULL")
		}
	}
	if update.RecurringPattern != nil {
		pattern, err := encodePattern(update.RecurringPattern)
		if err != nil {
			return err
		}
		set("recurring_pattern", pattern)
	}
	sets = append(sets, "updated_at = CURRENT_TIMESTAMP")
	args = append(args, id)

	query := fmt.Sprintf("UPDATE tasks SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))
	res, err := s.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("update task %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return storage.ErrNotFound
	}
	if update.Dependencies != nil {
		return s.replaceDependencies(id, *update.Dependencies)
	}
	return nil
}

func (s *PostgresStore) replaceDependencies(id string, deps []string) error {
	if _, err := s.db.Exec("DELETE FROM task_dependencies WHERE task_id = $1", id); err != nil {
		return fmt.Errorf("clear dependencies of %s: %w", id, err)
	}
	for _, d := range models.Edges(models.Task{ID: id, Dependencies: deps}) {
		_, err := s.db.Exec("INSERT INTO task_dependencies (task_id, depends_on, position) VALUES ($1, $2, $3)",
			d.TaskID, d.DependsOn, d.Position)
		if err != nil {
			return fmt.Errorf("save dependency %s -> %s: %w", d.TaskID, d.DependsOn, err)
		}
	}
	return nil
}

// Insert assigns ID and creation time to draft and stores it. A draft without
// an order is appended to its sibling scope.
func (s *PostgresStore) Insert(draft models.TaskDraft) (models.Task, error) {
	t := draft.Task(uuid.NewString(), time.Now().UTC())
	if t.Order == nil {
		// Concurrent appends to one scope would otherwise read the same MAX.
		// The lock is released when the surrounding transaction ends.
		_, err := s.db.Exec("SELECT pg_advisory_xact_lock($1, hashtext(COALESCE($2::text, '')))",
			scopeLockNamespace, t.ParentTaskID)
		if err != nil {
			return models.Task{}, fmt.Errorf("lock sibling scope: %w", err)
		}
		var next int
		err = s.db.Get(&next,
			"SELECT COALESCE(MAX(sort_order) + 1, 0) FROM tasks WHERE parent_task_id IS NOT DISTINCT FROM $1::text",
			t.ParentTaskID)
		if err != nil {
			return models.Task{}, fmt.Errorf("next order: %w", err)
		}
		t.Order = &next
	}
	pattern, err := encodePattern(t.RecurringPattern)
	if err != nil {
		return models.Task{}, err
	}
	tags := t.Tags
	if tags == nil {
		tags = []string{}
	}

	_, err = s.db.Exec(`
		INSERT INTO tasks (id, name, parent_task_id, completed, sort_order, is_recurring, recurring_pattern,
			due_date, due_time, priority, status, company, category, notes, tags, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		t.ID, t.Name, t.ParentTaskID, t.Completed, *t.Order, t.IsRecurring, pattern,
		t.DueDate, t.DueTime, string(t.Priority), string(t.Status), t.Company, t.Category, t.Notes,
		pq.StringArray(tags), t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return models.Task{}, fmt.Errorf("save task: %w", err)
	}
	if err := s.replaceDependencies(t.ID, t.Dependencies); err != nil {
		return models.Task{}, err
	}
	return t, nil
}

// Delete removes a task; subtasks and their edges go with it through ON DELETE CASCADE.
func (s *PostgresStore) Delete(id string) error {
	res, err := s.db.Exec("DELETE FROM tasks WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete task %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return storage.ErrNotFound
	}
	return nil
}
