package storage

import (
	"github.com/diegoavarela/task-list-sub000/pkg/models"
	"github.com/pkg/errors"
)

var ErrNotFound = errors.New("task not found")

// Store defines the Task Store operations the task service relies on.
type Store interface {
	// Transaction handling
	Begin() (Store, error)
	Commit() error
	Rollback() error
	Close() error

	// Snapshot reads
	GetAll() ([]models.Task, error)
	GetTask(id string) (models.Task, error)

	// Mutations
	ApplyUpdate(id string, update models.TaskUpdate) error
	Insert(draft models.TaskDraft) (models.Task, error)
	Delete(id string) error
}
