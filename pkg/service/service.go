package service

import (
	"strings"

	"github.com/diegoavarela/task-list-sub000/pkg/models"
	"github.com/diegoavarela/task-list-sub000/pkg/storage"
	"github.com/pkg/errors"
)

var (
	ErrEmptyName           = errors.New("task name cannot be empty")
	ErrNameTooLong         = errors.New("task name too long (max 200 characters)")
	ErrNestingTooDeep      = errors.New("subtasks cannot have subtasks")
	ErrRecurrenceOnSubtask = errors.New("only top-level tasks can recur")
)

// Logger defines the logging interface for TaskService
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// TaskService is the entry point used by the CLI and HTTP layers. It reads a
// snapshot from the store, runs the pure graph, recurrence and ordering
// functions on it, and persists accepted results in one transaction.
type TaskService struct {
	store  storage.Store
	logger Logger
}

func NewTaskService(store storage.Store, logger Logger) *TaskService {
	return &TaskService{
		store:  store,
		logger: logger,
	}
}

// inTx runs fn inside a store transaction, committing on success and rolling
// back on error.
func (s *TaskService) inTx(op string, fn func(tx storage.Store) error) (err error) {
	txStore, err := s.store.Begin()
	if err != nil {
		s.logger.Errorf("Failed to begin transaction for %s: %v", op, err)
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			if rollbackErr := txStore.Rollback(); rollbackErr != nil {
				s.logger.Errorf("Failed to rollback after error: %v (original error: %v)", rollbackErr, err)
			}
			return
		}
		if commitErr := txStore.Commit(); commitErr != nil {
			s.logger.Errorf("Failed to commit: %v", commitErr)
			err = commitErr
		}
	}()
	return fn(txStore)
}

// CreateTask validates and inserts a user-created task at the end of its sibling scope.
func (s *TaskService) CreateTask(draft models.TaskDraft) (created models.Task, err error) {
	draft.Name = strings.TrimSpace(draft.Name)
	if draft.Name == "" {
		return models.Task{}, ErrEmptyName
	}
	if len(draft.Name) > 200 {
		return models.Task{}, ErrNameTooLong
	}
	if draft.ParentTaskID != nil && draft.IsRecurring {
		return models.Task{}, ErrRecurrenceOnSubtask
	}
	draft.DueDate = dateOnly(draft.DueDate)
	if draft.IsRecurring {
		if err := ValidateSchedule(draft.RecurringPattern, draft.DueDate); err != nil {
			return models.Task{}, err
		}
	} else {
		draft.RecurringPattern = nil
	}

	err = s.inTx("CreateTask", func(tx storage.Store) error {
		if draft.ParentTaskID != nil {
			parent, err := tx.GetTask(*draft.ParentTaskID)
			if err != nil {
				return errors.Wrapf(err, "parent task %s", *draft.ParentTaskID)
			}
			if !parent.IsTopLevel() {
				return ErrNestingTooDeep
			}
		}
		var deps []string
		for _, dep := range draft.Dependencies {
			deps = AddDependency(deps, dep)
		}
		draft.Dependencies = deps

		created, err = tx.Insert(draft)
		return err
	})
	if err != nil {
		return models.Task{}, err
	}
	s.logger.Infof("Created task '%s' with ID %s", created.Name, created.ID)
	return created, nil
}

// DeleteTask removes a task and its subtasks, then closes the gap in its
// sibling scope. Other tasks may keep the deleted id as a dependency; it no
// longer blocks them.
func (s *TaskService) DeleteTask(id string) error {
	err := s.inTx("DeleteTask", func(tx storage.Store) error {
		task, err := tx.GetTask(id)
		if err != nil {
			return errors.Wrapf(err, "task %s", id)
		}
		if err := tx.Delete(id); err != nil {
			return err
		}
		all, err := tx.GetAll()
		if err != nil {
			return err
		}
		siblings := SortSiblings(SiblingScope(all, task.ParentTaskID), Ascending)
		return applyOrders(tx, orderChanges(siblings, Normalize(siblings, Ascending)))
	})
	if err != nil {
		return err
	}
	s.logger.Infof("Deleted task %s", id)
	return nil
}

func (s *TaskService) GetTask(id string) (models.Task, error) {
	t, err := s.store.GetTask(id)
	if err != nil {
		return models.Task{}, errors.Wrapf(err, "failed to get task %s", id)
	}
	return t, nil
}

// ListTasks returns one sibling scope in display order.
func (s *TaskService) ListTasks(parentID *string, dir SortDirection) ([]models.Task, error) {
	all, err := s.store.GetAll()
	if err != nil {
		return nil, errors.Wrap(err, "failed to list tasks")
	}
	return SortSiblings(SiblingScope(all, parentID), dir), nil
}

// Check verifies that the stored dependency graph is acyclic.
func (s *TaskService) Check() error {
	all, err := s.store.GetAll()
	if err != nil {
		return errors.Wrap(err, "failed to load tasks")
	}
	if cycle := FindCycle(all); cycle != nil {
		return errors.Wrapf(ErrCircularDependency, "%s", strings.Join(cycle, " -> "))
	}
	return nil
}

func applyOrders(tx storage.Store, changes map[string]int) error {
	for id, order := range changes {
		order := order
		if err := tx.ApplyUpdate(id, models.TaskUpdate{Order: &order}); err != nil {
			return errors.Wrapf(err, "failed to update order of task %s", id)
		}
	}
	return nil
}
