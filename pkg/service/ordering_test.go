package service_test

import (
	"testing"
	"time"

	"github.com/diegoavarela/task-list-sub000/pkg/models"
	"github.com/diegoavarela/task-list-sub000/pkg/service"
	"github.com/stretchr/testify/assert"
)

func siblings(ids ...string) []models.Task {
	out := make([]models.Task, 0, len(ids))
	for i, id := range ids {
		out = append(out, models.Task{ID: id, Order: models.IntPtr(i)})
	}
	return out
}

func ids(tasks []models.Task) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.ID)
	}
	return out
}

func orders(tasks []models.Task) []int {
	out := make([]int, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, *t.Order)
	}
	return out
}

func TestReorder(t *testing.T) {
	t.Run("SameIndexIsIdentity", func(t *testing.T) {
		list := siblings("a", "b", "c")
		for i := range list {
			got := service.Reorder(list, i, i)
			assert.Equal(t, orders(list), orders(got))
			assert.Equal(t, ids(list), ids(got))
		}
	})

	tests := []struct {
		name     string
		from, to int
		want     []string
	}{
		{"MoveDown", 0, 2, []string{"b", "c", "a", "d"}},
		{"MoveUp", 3, 1, []string{"a", "d", "b", "c"}},
		{"ToFront", 2, 0, []string{"c", "a", "b", "d"}},
		{"ToBack", 1, 3, []string{"a", "c", "d", "b"}},
		{"Adjacent", 1, 2, []string{"a", "c", "b", "d"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list := siblings("a", "b", "c", "d")
			got := service.Reorder(list, tt.from, tt.to)

			assert.Equal(t, tt.want, ids(got))
			assert.Equal(t, []int{0, 1, 2, 3}, orders(got))
			assert.Equal(t, tt.want, ids(service.SortSiblings(got, service.Ascending)))
			// input untouched
			assert.Equal(t, []string{"a", "b", "c", "d"}, ids(list))
			assert.Equal(t, []int{0, 1, 2, 3}, orders(list))
		})
	}

	t.Run("OutOfRangeIsNoop", func(t *testing.T) {
		list := siblings("a", "b")
		for _, idx := range [][2]int{{-1, 0}, {0, 2}, {2, 0}, {0, -1}} {
			got := service.Reorder(list, idx[0], idx[1])
			assert.Equal(t, list, got)
			assert.ErrorIs(t, service.ValidateReorder(list, idx[0], idx[1]), service.ErrIndexOutOfRange)
		}
		assert.Empty(t, service.Reorder(nil, 0, 0))
	})
}

func TestSortSiblings(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("ByOrder", func(t *testing.T) {
		list := []models.Task{
			{ID: "a", Order: models.IntPtr(2), CreatedAt: base},
			{ID: "b", Order: models.IntPtr(0), CreatedAt: base.Add(time.Hour)},
			{ID: "c", Order: models.IntPtr(1), CreatedAt: base.Add(2 * time.Hour)},
		}
		assert.Equal(t, []string{"b", "c", "a"}, ids(service.SortSiblings(list, service.Descending)))
	})

	t.Run("MixedFallsBackToCreatedAt", func(t *testing.T) {
		list := []models.Task{
			{ID: "a", Order: models.IntPtr(0), CreatedAt: base.Add(time.Hour)},
			{ID: "b", CreatedAt: base},
			{ID: "c", Order: models.IntPtr(1), CreatedAt: base.Add(2 * time.Hour)},
		}
		assert.Equal(t, []string{"b", "a", "c"}, ids(service.SortSiblings(list, service.Ascending)))
		assert.Equal(t, []string{"c", "a", "b"}, ids(service.SortSiblings(list, service.Descending)))
	})

	t.Run("Normalize", func(t *testing.T) {
		list := []models.Task{
			{ID: "a", Order: models.IntPtr(7)},
			{ID: "b", Order: models.IntPtr(3)},
		}
		got := service.Normalize(list, service.Ascending)
		assert.Equal(t, []string{"b", "a"}, ids(got))
		assert.Equal(t, []int{0, 1}, orders(got))
		assert.Equal(t, 7, *list[0].Order)
	})

	t.Run("SiblingScope", func(t *testing.T) {
		parent := "p"
		all := []models.Task{
			{ID: "p"},
			{ID: "s1", ParentTaskID: &parent},
			{ID: "q"},
			{ID: "s2", ParentTaskID: models.StringPtr("p")},
		}
		assert.Equal(t, []string{"p", "q"}, ids(service.SiblingScope(all, nil)))
		assert.Equal(t, []string{"s1", "s2"}, ids(service.SiblingScope(all, &parent)))
	})
}
