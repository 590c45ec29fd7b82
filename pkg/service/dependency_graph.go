package service

import (
	"github.com/diegoavarela/task-list-sub000/pkg/models"
	"github.com/pkg/errors"
)

var (
	ErrSelfDependency      = errors.New("a task cannot depend on itself")
	ErrDuplicateDependency = errors.New("dependency already exists")
	ErrCircularDependency  = errors.New("circular dependency")
)

// BlockedStatus reports whether a task is waiting on unfinished dependencies.
type BlockedStatus struct {
	Blocked  bool     `json:"blocked"`
	Blockers []string `json:"blockers"`
}

// snapshot indexes an immutable task list by id. Edges stay as id sets and are
// resolved through the index, never as pointers between tasks.
type snapshot struct {
	tasks []models.Task
	byID  map[string]int
}

func newSnapshot(tasks []models.Task) snapshot {
	s := snapshot{tasks: tasks, byID: make(map[string]int, len(tasks))}
	for i, t := range tasks {
		s.byID[t.ID] = i
	}
	return s
}

func (s snapshot) lookup(id string) (models.Task, bool) {
	i, ok := s.byID[id]
	if !ok {
		return models.Task{}, false
	}
	return s.tasks[i], true
}

// reaches walks the dependency edges from start and reports whether target is
// reachable. A single visited set is shared by the whole walk.
func (s snapshot) reaches(start, target string) bool {
	visited := map[string]struct{}{}
	stack := []string{start}
	for len(stack) > 0 {
		curr := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if curr == target {
			return true
		}
		if _, seen := visited[curr]; seen {
			continue
		}
		visited[curr] = struct{}{}
		t, ok := s.lookup(curr)
		if !ok {
			// Dangling id, nothing to follow
			continue
		}
		for i := len(t.Dependencies) - 1; i >= 0; i-- {
			if _, seen := visited[t.Dependencies[i]]; !seen {
				stack = append(stack, t.Dependencies[i])
			}
		}
	}
	return false
}

// ValidateAddDependency checks whether taskID may start depending on candidateID.
// It returns ErrSelfDependency, ErrDuplicateDependency or ErrCircularDependency
// when the edge must be rejected.
func ValidateAddDependency(taskID, candidateID string, allTasks []models.Task) error {
	if taskID == candidateID {
		return ErrSelfDependency
	}
	s := newSnapshot(allTasks)
	if t, ok := s.lookup(taskID); ok && t.HasDependency(candidateID) {
		return ErrDuplicateDependency
	}
	if s.reaches(candidateID, taskID) {
		return errors.Wrapf(ErrCircularDependency, "'%s' already depends on '%s'", candidateID, taskID)
	}
	return nil
}

// CanAddDependency reports whether the edge taskID -> candidateID keeps the graph acyclic.
func CanAddDependency(taskID, candidateID string, allTasks []models.Task) bool {
	return ValidateAddDependency(taskID, candidateID, allTasks) == nil
}

// ComputeBlocked looks only at direct dependencies. Ids missing from allTasks
// are not blocking.
func ComputeBlocked(task models.Task, allTasks []models.Task) BlockedStatus {
	s := newSnapshot(allTasks)
	status := BlockedStatus{Blockers: []string{}}
	for _, dep := range task.Dependencies {
		d, ok := s.lookup(dep)
		if !ok || d.Completed {
			continue
		}
		status.Blockers = append(status.Blockers, dep)
	}
	status.Blocked = len(status.Blockers) > 0
	return status
}

// AddDependency returns a copy of the dependency set with id appended.
func AddDependency(deps []string, id string) []string {
	out := make([]string, 0, len(deps)+1)
	out = append(out, deps...)
	for _, d := range deps {
		if d == id {
			return out
		}
	}
	return append(out, id)
}

// RemoveDependency returns a copy of the dependency set without id.
func RemoveDependency(deps []string, id string) []string {
	out := make([]string, 0, len(deps))
	for _, d := range deps {
		if d != id {
			out = append(out, d)
		}
	}
	return out
}

// FindCycle runs a full depth-first search over every task and returns one
// cycle as a path of ids (first id repeated at the end), or nil.
func FindCycle(allTasks []models.Task) []string {
	const (
		white = iota
		gray
		black
	)
	s := newSnapshot(allTasks)
	color := make(map[string]int, len(allTasks))

	type frame struct {
		id   string
		next int
	}

	for _, root := range allTasks {
		if color[root.ID] != white {
			continue
		}
		// path doubles as the recursion stack
		path := []frame{{id: root.ID}}
		color[root.ID] = gray
		for len(path) > 0 {
			top := &path[len(path)-1]
			t, _ := s.lookup(top.id)
			if top.next >= len(t.Dependencies) {
				color[top.id] = black
				path = path[:len(path)-1]
				continue
			}
			dep := t.Dependencies[top.next]
			top.next++
			if _, ok := s.lookup(dep); !ok {
				continue
			}
			switch color[dep] {
			case gray:
				var cycle []string
				for i := len(path) - 1; i >= 0; i-- {
					cycle = append([]string{path[i].id}, cycle...)
					if path[i].id == dep {
						break
					}
				}
				return append(cycle, dep)
			case white:
				color[dep] = gray
				path = append(path, frame{id: dep})
			}
		}
	}
	return nil
}
