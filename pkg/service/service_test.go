package service_test

import (
	"testing"
	"time"

	"github.com/diegoavarela/task-list-sub000/pkg/models"
	"github.com/diegoavarela/task-list-sub000/pkg/service"
	"github.com/diegoavarela/task-list-sub000/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type logger struct{}

func (l logger) Infof(format string, args ...interface{}) {
	// no-op
}

func (l logger) Errorf(format string, args ...interface{}) {
	// no-op
}

func TestTaskService(t *testing.T) {
	newTaskService := func(seed ...models.Task) (*service.TaskService, storage.Store) {
		store := storage.NewMemoryStore(seed...)
		return service.NewTaskService(store, logger{}), store
	}

	create := func(t *testing.T, svc *service.TaskService, name string, parent *string) models.Task {
		created, err := svc.CreateTask(models.TaskDraft{Name: name, ParentTaskID: parent, DueDate: date(2024, 1, 1)})
		require.NoError(t, err)
		return created
	}

	t.Run("CreateTaskAppendsToScope", func(t *testing.T) {
		svc, _ := newTaskService()
		a := create(t, svc, "A", nil)
		b := create(t, svc, "B", nil)
		sub := create(t, svc, "A.1", &a.ID)

		assert.Equal(t, 0, *a.Order)
		assert.Equal(t, 1, *b.Order)
		assert.Equal(t, 0, *sub.Order)
		assert.Equal(t, models.TodoTaskStatus, a.Status)
		assert.Equal(t, models.MediumPriority, a.Priority)
	})

	t.Run("CreateTaskValidation", func(t *testing.T) {
		svc, _ := newTaskService()
		_, err := svc.CreateTask(models.TaskDraft{Name: "  "})
		assert.ErrorIs(t, err, service.ErrEmptyName)

		parent := create(t, svc, "parent", nil)
		child := create(t, svc, "child", &parent.ID)
		_, err = svc.CreateTask(models.TaskDraft{Name: "grandchild", ParentTaskID: &child.ID})
		assert.ErrorIs(t, err, service.ErrNestingTooDeep)

		_, err = svc.CreateTask(models.TaskDraft{Name: "orphan", ParentTaskID: models.StringPtr("missing")})
		assert.ErrorIs(t, err, storage.ErrNotFound)

		daily := models.NewDailyPattern(1)
		_, err = svc.CreateTask(models.TaskDraft{Name: "sub", ParentTaskID: &parent.ID, IsRecurring: true, RecurringPattern: &daily})
		assert.ErrorIs(t, err, service.ErrRecurrenceOnSubtask)

		ended := models.NewDailyPattern(1).Until(date(2023, 12, 31))
		_, err = svc.CreateTask(models.TaskDraft{Name: "late", DueDate: date(2024, 1, 1), IsRecurring: true, RecurringPattern: &ended})
		var endErr *service.PatternError
		require.ErrorAs(t, err, &endErr)
		assert.True(t, endErr.Has("end_date"))

		bad := models.NewWeeklyPattern(1)
		_, err = svc.CreateTask(models.TaskDraft{Name: "weekly", IsRecurring: true, RecurringPattern: &bad})
		var perr *service.PatternError
		assert.ErrorAs(t, err, &perr)
	})

	t.Run("AddDependencyRejectsCycle", func(t *testing.T) {
		svc, store := newTaskService(task("A", "B"), task("B", "C"), task("C"))

		err := svc.AddDependency("C", "A")
		assert.ErrorIs(t, err, service.ErrCircularDependency)

		c, err := store.GetTask("C")
		require.NoError(t, err)
		assert.Empty(t, c.Dependencies)

		assert.NoError(t, svc.AddDependency("A", "C"))
		a, err := store.GetTask("A")
		require.NoError(t, err)
		assert.Equal(t, []string{"B", "C"}, a.Dependencies)

		assert.ErrorIs(t, svc.AddDependency("A", "A"), service.ErrSelfDependency)
		assert.ErrorIs(t, svc.AddDependency("A", "nope"), storage.ErrNotFound)
	})

	t.Run("RemoveDependency", func(t *testing.T) {
		svc, store := newTaskService(task("A", "B", "C"), task("B"), task("C"))
		assert.NoError(t, svc.RemoveDependency("A", "B"))
		assert.NoError(t, svc.RemoveDependency("A", "B"))

		a, err := store.GetTask("A")
		require.NoError(t, err)
		assert.Equal(t, []string{"C"}, a.Dependencies)
	})

	t.Run("Blocked", func(t *testing.T) {
		svc, _ := newTaskService(task("A", "B", "C"), done(task("B")), task("C"))
		status, err := svc.Blocked("A")
		require.NoError(t, err)
		assert.Equal(t, service.BlockedStatus{Blocked: true, Blockers: []string{"C"}}, status)

		_, err = svc.SetCompleted("C", true)
		require.NoError(t, err)
		status, err = svc.Blocked("A")
		require.NoError(t, err)
		assert.False(t, status.Blocked)
	})

	t.Run("CompletingRecurringTaskGeneratesNext", func(t *testing.T) {
		daily := models.NewDailyPattern(3)
		t1 := models.Task{
			ID:               "T1",
			Name:             "Water plants",
			DueDate:          date(2024, 1, 1),
			IsRecurring:      true,
			RecurringPattern: &daily,
			Dependencies:     []string{"X"},
			Order:            models.IntPtr(0),
			Tags:             []string{"home"},
		}
		svc, store := newTaskService(t1, models.Task{ID: "X", Completed: true, Order: models.IntPtr(1)})

		next, err := svc.SetCompleted("T1", true)
		require.NoError(t, err)
		require.NotNil(t, next)
		assert.NotEqual(t, "T1", next.ID)
		assert.Equal(t, date(2024, 1, 4), next.DueDate)
		assert.False(t, next.Completed)
		assert.Empty(t, next.Dependencies)
		assert.Equal(t, daily, *next.RecurringPattern)
		assert.Equal(t, []string{"home"}, next.Tags)
		assert.Equal(t, 2, *next.Order)

		stored, err := store.GetTask("T1")
		require.NoError(t, err)
		assert.True(t, stored.Completed)
		assert.Equal(t, models.DoneTaskStatus, stored.Status)

		// Completing again does not spawn a second occurrence
		again, err := svc.SetCompleted("T1", true)
		require.NoError(t, err)
		assert.Nil(t, again)

		all, err := store.GetAll()
		require.NoError(t, err)
		assert.Len(t, all, 3)
	})

	t.Run("CompletingPlainTask", func(t *testing.T) {
		svc, _ := newTaskService(task("A"))
		next, err := svc.SetCompleted("A", true)
		assert.NoError(t, err)
		assert.Nil(t, next)

		_, err = svc.SetCompleted("missing", true)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("SetRecurrence", func(t *testing.T) {
		parent := "P"
		svc, store := newTaskService(task("P"), models.Task{ID: "S", ParentTaskID: &parent})

		weekly := models.NewWeeklyPattern(2, time.Monday)
		require.NoError(t, svc.SetRecurrence("P", &weekly))
		p, err := store.GetTask("P")
		require.NoError(t, err)
		assert.True(t, p.IsRecurring)
		assert.Equal(t, weekly, *p.RecurringPattern)

		assert.ErrorIs(t, svc.SetRecurrence("S", &weekly), service.ErrRecurrenceOnSubtask)

		invalid := models.NewMonthlyPattern(1, 40)
		var perr *service.PatternError
		assert.ErrorAs(t, svc.SetRecurrence("P", &invalid), &perr)
		assert.True(t, perr.Has("day_of_month"))

		// the series would end before the task is first due
		dated := task("D")
		dated.DueDate = date(2024, 1, 1)
		datedSvc, _ := newTaskService(dated)
		expired := models.NewDailyPattern(1).Until(date(2023, 12, 1))
		var endErr *service.PatternError
		require.ErrorAs(t, datedSvc.SetRecurrence("D", &expired), &endErr)
		assert.True(t, endErr.Has("end_date"))

		require.NoError(t, svc.SetRecurrence("P", nil))
		p, err = store.GetTask("P")
		require.NoError(t, err)
		assert.False(t, p.IsRecurring)
		assert.Nil(t, p.RecurringPattern)
	})

	t.Run("MoveTask", func(t *testing.T) {
		svc, _ := newTaskService()
		a := create(t, svc, "A", nil)
		b := create(t, svc, "B", nil)
		c := create(t, svc, "C", nil)
		sub := create(t, svc, "A.1", &a.ID)

		require.NoError(t, svc.MoveTask(c.ID, 0, service.Ascending))
		list, err := svc.ListTasks(nil, service.Ascending)
		require.NoError(t, err)
		assert.Equal(t, []string{c.ID, a.ID, b.ID}, ids(list))
		assert.Equal(t, []int{0, 1, 2}, orders(list))

		subs, err := svc.ListTasks(&a.ID, service.Ascending)
		require.NoError(t, err)
		assert.Equal(t, []string{sub.ID}, ids(subs))
		assert.Equal(t, 0, *subs[0].Order)

		assert.ErrorIs(t, svc.MoveTask(a.ID, 3, service.Ascending), service.ErrIndexOutOfRange)
		assert.ErrorIs(t, svc.MoveTask("missing", 0, service.Ascending), storage.ErrNotFound)
	})

	t.Run("MoveTaskFromUnorderedScope", func(t *testing.T) {
		base := date(2024, 1, 1)
		svc, _ := newTaskService(
			models.Task{ID: "old", CreatedAt: base},
			models.Task{ID: "new", CreatedAt: base.Add(time.Hour)},
			models.Task{ID: "mid", CreatedAt: base.Add(30 * time.Minute)},
		)
		// Newest first as displayed; move "old" to the top
		require.NoError(t, svc.MoveTask("old", 0, service.Descending))
		list, err := svc.ListTasks(nil, service.Ascending)
		require.NoError(t, err)
		assert.Equal(t, []string{"old", "new", "mid"}, ids(list))
		assert.Equal(t, []int{0, 1, 2}, orders(list))
	})

	t.Run("DeleteTaskKeepsScopeDense", func(t *testing.T) {
		svc, store := newTaskService()
		a := create(t, svc, "A", nil)
		b := create(t, svc, "B", nil)
		c := create(t, svc, "C", nil)
		create(t, svc, "B.1", &b.ID)
		require.NoError(t, svc.AddDependency(c.ID, b.ID))

		require.NoError(t, svc.DeleteTask(b.ID))

		list, err := svc.ListTasks(nil, service.Ascending)
		require.NoError(t, err)
		assert.Equal(t, []string{a.ID, c.ID}, ids(list))
		assert.Equal(t, []int{0, 1}, orders(list))

		all, err := store.GetAll()
		require.NoError(t, err)
		assert.Len(t, all, 2)

		// the dangling edge is kept but no longer blocks
		stored, err := store.GetTask(c.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{b.ID}, stored.Dependencies)
		status, err := svc.Blocked(c.ID)
		require.NoError(t, err)
		assert.False(t, status.Blocked)

		assert.ErrorIs(t, svc.DeleteTask(b.ID), storage.ErrNotFound)
	})

	t.Run("Check", func(t *testing.T) {
		svc, _ := newTaskService(task("A", "B"), task("B"))
		assert.NoError(t, svc.Check())

		svc, _ = newTaskService(task("A", "B"), task("B", "A"))
		err := svc.Check()
		assert.ErrorIs(t, err, service.ErrCircularDependency)
		assert.Contains(t, err.Error(), "A -> B -> A")
	})
}
