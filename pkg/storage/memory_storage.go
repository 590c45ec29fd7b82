package storage

import (
	"sync"
	"time"

	"github.com/diegoavarela/task-list-sub000/pkg/models"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// memoryStore implements storage.Store in memory. It backs the YAML file store
// and the tests.
// Begin hands out a copy of the current state which Commit writes back. Only
// one transaction is open at a time: Begin blocks until the previous one has
// committed or rolled back.
type memoryStore struct {
	txMu      sync.Mutex // Held from Begin until Commit or Rollback
	mu        sync.Mutex
	tasks     map[string]models.Task
	ids       []string     // Insertion order, keeps GetAll deterministic
	parent    *memoryStore // Set on transactions
	committed bool         // Transaction state
	done      bool         // Rolled back or committed
}

func (m *memoryStore) Begin() (Store, error) {
	m.txMu.Lock()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.done {
		m.txMu.Unlock()
		return nil, errors.New("transaction already finished")
	}
	tx := &memoryStore{
		tasks:  make(map[string]models.Task, len(m.tasks)),
		ids:    append([]string{}, m.ids...),
		parent: m,
	}
	for id, t := range m.tasks {
		tx.tasks[id] = cloneTask(t)
	}
	return tx, nil
}

func (m *memoryStore) Commit() error {
	if m.parent == nil {
		return errors.New("cannot commit: not a transaction")
	}
	if m.done {
		return errors.New("already committed")
	}
	m.parent.mu.Lock()
	m.parent.tasks = m.tasks
	m.parent.ids = m.ids
	m.parent.mu.Unlock()
	m.committed = true
	m.done = true
	m.parent.txMu.Unlock()
	return nil
}

func (m *memoryStore) Rollback() error {
	if m.parent == nil {
		return errors.New("cannot rollback: not a transaction")
	}
	if m.committed {
		return errors.New("cannot rollback committed transaction")
	}
	if m.done {
		return nil
	}
	// Changes are discarded together with the copy.
	m.done = true
	m.parent.txMu.Unlock()
	return nil
}

func (m *memoryStore) Close() error {
	return nil
}

func (m *memoryStore) GetAll() ([]models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Task, 0, len(m.ids))
	for _, id := range m.ids {
		out = append(out, cloneTask(m.tasks[id]))
	}
	return out, nil
}

func (m *memoryStore) GetTask(id string) (models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return models.Task{}, ErrNotFound
	}
	return cloneTask(t), nil
}

func (m *memoryStore) ApplyUpdate(id string, update models.TaskUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.done {
		return errors.New("transaction already committed")
	}
	t, ok := m.tasks[id]
	if !ok {
		return ErrNotFound
	}
	update.Apply(&t)
	t.UpdatedAt = time.Now()
	m.tasks[id] = t
	return nil
}

func (m *memoryStore) Insert(draft models.TaskDraft) (models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.done {
		return models.Task{}, errors.New("transaction already committed")
	}
	t := draft.Task(uuid.NewString(), time.Now())
	if t.Order == nil {
		// Append to the end of the sibling scope
		next := 0
		for _, existing := range m.tasks {
			if sameScope(existing.ParentTaskID, t.ParentTaskID) && existing.Order != nil && *existing.Order >= next {
				next = *existing.Order + 1
			}
		}
		t.Order = &next
	}
	m.tasks[t.ID] = t
	m.ids = append(m.ids, t.ID)
	return cloneTask(t), nil
}

// Delete removes a task together with its subtasks. Dependency ids pointing at
// the removed tasks are left in place.
func (m *memoryStore) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.done {
		return errors.New("transaction already committed")
	}
	if _, ok := m.tasks[id]; !ok {
		return ErrNotFound
	}
	kept := m.ids[:0:0]
	for _, tid := range m.ids {
		t := m.tasks[tid]
		if tid == id || (t.ParentTaskID != nil && *t.ParentTaskID == id) {
			delete(m.tasks, tid)
			continue
		}
		kept = append(kept, tid)
	}
	m.ids = kept
	return nil
}

func sameScope(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func cloneTask(t models.Task) models.Task {
	t.Dependencies = append([]string{}, t.Dependencies...)
	if t.Tags != nil {
		t.Tags = append([]string{}, t.Tags...)
	}
	if t.Order != nil {
		order := *t.Order
		t.Order = &order
	}
	if t.RecurringPattern != nil {
		p := *t.RecurringPattern
		t.RecurringPattern = &p
	}
	return t
}

// NewMemoryStore returns an in-memory store seeded with the given tasks.
// Seed tasks without an ID get one assigned.
func NewMemoryStore(seed ...models.Task) Store {
	m := &memoryStore{tasks: make(map[string]models.Task, len(seed))}
	for _, t := range seed {
		if t.ID == "" {
			t.ID = uuid.NewString()
		}
		if t.CreatedAt.IsZero() {
			t.CreatedAt = time.Now()
		}
		m.tasks[t.ID] = cloneTask(t)
		m.ids = append(m.ids, t.ID)
	}
	return m
}
