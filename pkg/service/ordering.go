package service

import (
	"slices"
	"sort"

	"github.com/diegoavarela/task-list-sub000/pkg/models"
	"github.com/pkg/errors"
)

var ErrIndexOutOfRange = errors.New("reorder index out of range")

// SortDirection applies to the createdAt fallback only; explicit order values
// always sort ascending.
type SortDirection string

const (
	Ascending  SortDirection = "asc"
	Descending SortDirection = "desc"
)

func ParseSortDirection(s string) SortDirection {
	if s == string(Descending) {
		return Descending
	}
	return Ascending
}

// SiblingScope returns the tasks sharing parentID (nil for top-level tasks).
func SiblingScope(allTasks []models.Task, parentID *string) []models.Task {
	var out []models.Task
	for _, t := range allTasks {
		switch {
		case parentID == nil && t.ParentTaskID == nil:
			out = append(out, t)
		case parentID != nil && t.ParentTaskID != nil && *t.ParentTaskID == *parentID:
			out = append(out, t)
		}
	}
	return out
}

// SortSiblings sorts by order when every sibling has one. Otherwise the whole
// scope falls back to createdAt in the requested direction.
func SortSiblings(siblings []models.Task, dir SortDirection) []models.Task {
	out := slices.Clone(siblings)
	allOrdered := true
	for _, t := range out {
		if t.Order == nil {
			allOrdered = false
			break
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if allOrdered && *a.Order != *b.Order {
			return *a.Order < *b.Order
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			if dir == Descending && !allOrdered {
				return a.CreatedAt.After(b.CreatedAt)
			}
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return out
}

// ValidateReorder rejects indices outside the sibling list.
func ValidateReorder(siblings []models.Task, fromIndex, toIndex int) error {
	n := len(siblings)
	if fromIndex < 0 || fromIndex >= n || toIndex < 0 || toIndex >= n {
		return errors.Wrapf(ErrIndexOutOfRange, "move %d -> %d in a list of %d", fromIndex, toIndex, n)
	}
	return nil
}

// Reorder moves the element at fromIndex to toIndex and rewrites every order to
// its new position. Out-of-range indices and fromIndex == toIndex return the
// input unchanged. The input slice is never modified.
func Reorder(siblings []models.Task, fromIndex, toIndex int) []models.Task {
	if ValidateReorder(siblings, fromIndex, toIndex) != nil || fromIndex == toIndex {
		return siblings
	}
	moved := siblings[fromIndex]
	out := slices.Clone(siblings)
	out = slices.Delete(out, fromIndex, fromIndex+1)
	out = slices.Insert(out, toIndex, moved)
	return renumber(out)
}

// Normalize sorts a sibling scope and rewrites its orders to 0..N-1.
func Normalize(siblings []models.Task, dir SortDirection) []models.Task {
	return renumber(SortSiblings(siblings, dir))
}

func renumber(tasks []models.Task) []models.Task {
	for i := range tasks {
		tasks[i].Order = models.IntPtr(i)
	}
	return tasks
}

// orderChanges lists the tasks in after whose order differs from before.
func orderChanges(before, after []models.Task) map[string]int {
	prev := make(map[string]*int, len(before))
	for _, t := range before {
		prev[t.ID] = t.Order
	}
	changes := map[string]int{}
	for _, t := range after {
		old, ok := prev[t.ID]
		if !ok || old == nil || *old != *t.Order {
			changes[t.ID] = *t.Order
		}
	}
	return changes
}
