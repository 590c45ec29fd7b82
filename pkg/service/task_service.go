package service

import (
	"slices"

	"github.com/diegoavarela/task-list-sub000/pkg/models"
	"github.com/diegoavarela/task-list-sub000/pkg/storage"
	"github.com/pkg/errors"
)

// AddDependency makes taskID depend on dependsOn unless that would close a cycle.
func (s *TaskService) AddDependency(taskID, dependsOn string) error {
	err := s.inTx("AddDependency", func(tx storage.Store) error {
		all, err := tx.GetAll()
		if err != nil {
			return err
		}
		snap := newSnapshot(all)
		task, ok := snap.lookup(taskID)
		if !ok {
			return errors.Wrapf(storage.ErrNotFound, "task %s", taskID)
		}
		if _, ok := snap.lookup(dependsOn); !ok {
			return errors.Wrapf(storage.ErrNotFound, "dependency %s", dependsOn)
		}
		if err := ValidateAddDependency(taskID, dependsOn, all); err != nil {
			s.logger.Infof("Rejected dependency %s -> %s: %v", taskID, dependsOn, err)
			return err
		}
		deps := AddDependency(task.Dependencies, dependsOn)
		return tx.ApplyUpdate(taskID, models.TaskUpdate{Dependencies: &deps})
	})
	if err != nil {
		return err
	}
	s.logger.Infof("Task %s now depends on %s", taskID, dependsOn)
	return nil
}

func (s *TaskService) RemoveDependency(taskID, dependsOn string) error {
	return s.inTx("RemoveDependency", func(tx storage.Store) error {
		task, err := tx.GetTask(taskID)
		if err != nil {
			return errors.Wrapf(err, "task %s", taskID)
		}
		if !task.HasDependency(dependsOn) {
			return nil
		}
		deps := RemoveDependency(task.Dependencies, dependsOn)
		if err := tx.ApplyUpdate(taskID, models.TaskUpdate{Dependencies: &deps}); err != nil {
			return err
		}
		s.logger.Infof("Task %s no longer depends on %s", taskID, dependsOn)
		return nil
	})
}

// Blocked computes the live blocking status of a stored task.
func (s *TaskService) Blocked(taskID string) (BlockedStatus, error) {
	all, err := s.store.GetAll()
	if err != nil {
		return BlockedStatus{}, errors.Wrap(err, "failed to load tasks")
	}
	task, ok := newSnapshot(all).lookup(taskID)
	if !ok {
		return BlockedStatus{}, errors.Wrapf(storage.ErrNotFound, "task %s", taskID)
	}
	return ComputeBlocked(task, all), nil
}

// SetRecurrence validates and stores a pattern; nil makes the task non-recurring.
func (s *TaskService) SetRecurrence(taskID string, pattern *models.RecurrencePattern) error {
	if pattern != nil {
		if err := ValidatePattern(pattern); err != nil {
			return err
		}
	}
	return s.inTx("SetRecurrence", func(tx storage.Store) error {
		task, err := tx.GetTask(taskID)
		if err != nil {
			return errors.Wrapf(err, "task %s", taskID)
		}
		recurring := pattern != nil
		if recurring && !task.IsTopLevel() {
			return ErrRecurrenceOnSubtask
		}
		if recurring {
			if err := ValidateSchedule(pattern, task.DueDate); err != nil {
				return err
			}
		}
		if err := tx.ApplyUpdate(taskID, models.TaskUpdate{IsRecurring: &recurring, RecurringPattern: pattern}); err != nil {
			return err
		}
		s.logger.Infof("Task %s recurrence set to '%s'", taskID, Describe(pattern))
		return nil
	})
}

// SetCompleted stores the completion flag. When a recurring task has just been
// completed the next occurrence is inserted and returned.
func (s *TaskService) SetCompleted(taskID string, completed bool) (next *models.Task, err error) {
	err = s.inTx("SetCompleted", func(tx storage.Store) error {
		task, err := tx.GetTask(taskID)
		if err != nil {
			return errors.Wrapf(err, "task %s", taskID)
		}
		wasCompleted := task.Completed
		status := models.TodoTaskStatus
		if completed {
			status = models.DoneTaskStatus
		}
		if err := tx.ApplyUpdate(taskID, models.TaskUpdate{Completed: &completed, Status: &status}); err != nil {
			return err
		}
		task.Completed = completed
		task.Status = status

		if !ShouldGenerateNext(task, wasCompleted) {
			return nil
		}
		created, err := tx.Insert(ComputeNextOccurrence(task))
		if err != nil {
			return errors.Wrapf(err, "failed to create next occurrence of %s", taskID)
		}
		next = &created
		return nil
	})
	if err != nil {
		return nil, err
	}
	if next != nil {
		s.logger.Infof("Completed task %s, next occurrence %s due %s", taskID, next.ID, next.DueDate.Format("2006-01-02"))
	}
	return next, nil
}

// MoveTask moves a task to toIndex within its sibling scope, as displayed with dir.
func (s *TaskService) MoveTask(taskID string, toIndex int, dir SortDirection) error {
	err := s.inTx("MoveTask", func(tx storage.Store) error {
		all, err := tx.GetAll()
		if err != nil {
			return err
		}
		task, ok := newSnapshot(all).lookup(taskID)
		if !ok {
			return errors.Wrapf(storage.ErrNotFound, "task %s", taskID)
		}
		siblings := SortSiblings(SiblingScope(all, task.ParentTaskID), dir)
		fromIndex := slices.IndexFunc(siblings, func(t models.Task) bool { return t.ID == taskID })
		if err := ValidateReorder(siblings, fromIndex, toIndex); err != nil {
			return err
		}
		reordered := Reorder(siblings, fromIndex, toIndex)
		if fromIndex == toIndex {
			reordered = renumber(slices.Clone(siblings))
		}
		return applyOrders(tx, orderChanges(siblings, reordered))
	})
	if err != nil {
		return err
	}
	s.logger.Infof("Moved task %s to position %d", taskID, toIndex)
	return nil
}
