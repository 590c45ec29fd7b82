package storage_test

import (
	"sync"
	"testing"
	"time"

	internal_storage "github.com/diegoavarela/task-list-sub000/internal/storage"
	"github.com/diegoavarela/task-list-sub000/internal/testutil"
	"github.com/diegoavarela/task-list-sub000/pkg/models"
	"github.com/diegoavarela/task-list-sub000/pkg/service"
	"github.com/diegoavarela/task-list-sub000/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresStore(t *testing.T) {
	testDB := testutil.SetupTestDB(t, "../../migrations")
	defer testDB.Teardown(t)

	// Every subtest runs in its own transaction and is rolled back
	newTxStore := func(t *testing.T) *internal_storage.PostgresStore {
		store, err := internal_storage.NewPostgresStore(testDB.ConnStr)
		require.NoError(t, err)
		t.Cleanup(func() { store.Close() })
		txStore, err := store.Begin()
		require.NoError(t, err)
		t.Cleanup(func() { txStore.Rollback() })
		return txStore.(*internal_storage.PostgresStore)
	}

	t.Run("InsertAndGetTask", func(t *testing.T) {
		store := newTxStore(t)
		monthly := models.NewMonthlyPattern(1, 31)
		saved, err := store.Insert(models.TaskDraft{
			Name:             "Pay rent",
			DueDate:          time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
			DueTime:          models.StringPtr("08:00"),
			IsRecurring:      true,
			RecurringPattern: &monthly,
			Priority:         models.HighPriority,
			Tags:             []string{"home", "bills"},
		})
		require.NoError(t, err)
		assert.NotEmpty(t, saved.ID)
		assert.Equal(t, 0, *saved.Order)

		got, err := store.GetTask(saved.ID)
		require.NoError(t, err)
		assert.Equal(t, "Pay rent", got.Name)
		assert.Equal(t, models.HighPriority, got.Priority)
		assert.Equal(t, models.TodoTaskStatus, got.Status)
		assert.Equal(t, "08:00", *got.DueTime)
		assert.Equal(t, []string{"home", "bills"}, got.Tags)
		assert.Empty(t, got.Dependencies)
		require.NotNil(t, got.RecurringPattern)
		assert.Equal(t, monthly, *got.RecurringPattern)
		assert.Nil(t, got.ParentTaskID)
	})

	t.Run("InsertAppendsWithinScope", func(t *testing.T) {
		store := newTxStore(t)
		a, err := store.Insert(models.TaskDraft{Name: "A"})
		require.NoError(t, err)
		b, err := store.Insert(models.TaskDraft{Name: "B"})
		require.NoError(t, err)
		sub, err := store.Insert(models.TaskDraft{Name: "A.1", ParentTaskID: &a.ID})
		require.NoError(t, err)

		assert.Equal(t, 0, *a.Order)
		assert.Equal(t, 1, *b.Order)
		assert.Equal(t, 0, *sub.Order)
	})

	t.Run("DependenciesKeepInsertionOrder", func(t *testing.T) {
		store := newTxStore(t)
		a, err := store.Insert(models.TaskDraft{Name: "A"})
		require.NoError(t, err)
		b, err := store.Insert(models.TaskDraft{Name: "B"})
		require.NoError(t, err)
		c, err := store.Insert(models.TaskDraft{Name: "C", Dependencies: []string{b.ID, a.ID}})
		require.NoError(t, err)

		got, err := store.GetTask(c.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{b.ID, a.ID}, got.Dependencies)

		deps := []string{a.ID}
		require.NoError(t, store.ApplyUpdate(c.ID, models.TaskUpdate{Dependencies: &deps}))
		all, err := store.GetAll()
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, []string{a.ID}, all[2].Dependencies)
		assert.Empty(t, all[0].Dependencies)
	})

	t.Run("ApplyUpdate", func(t *testing.T) {
		store := newTxStore(t)
		weekly := models.NewWeeklyPattern(1, time.Tuesday)
		saved, err := store.Insert(models.TaskDraft{Name: "Gym", IsRecurring: true, RecurringPattern: &weekly})
		require.NoError(t, err)

		name := "Gym session"
		completed := true
		status := models.DoneTaskStatus
		recurring := false
		err = store.ApplyUpdate(saved.ID, models.TaskUpdate{
			Name:        &name,
			Completed:   &completed,
			Status:      &status,
			Order:       models.IntPtr(4),
			IsRecurring: &recurring,
		})
		require.NoError(t, err)

		got, err := store.GetTask(saved.ID)
		require.NoError(t, err)
		assert.Equal(t, name, got.Name)
		assert.True(t, got.Completed)
		assert.Equal(t, models.DoneTaskStatus, got.Status)
		assert.Equal(t, 4, *got.Order)
		assert.False(t, got.IsRecurring)
		assert.Nil(t, got.RecurringPattern)

		assert.ErrorIs(t, store.ApplyUpdate("missing", models.TaskUpdate{Name: &name}), storage.ErrNotFound)
	})

	t.Run("DeleteCascadesToSubtasks", func(t *testing.T) {
		store := newTxStore(t)
		parent, err := store.Insert(models.TaskDraft{Name: "parent"})
		require.NoError(t, err)
		child, err := store.Insert(models.TaskDraft{Name: "child", ParentTaskID: &parent.ID})
		require.NoError(t, err)
		other, err := store.Insert(models.TaskDraft{Name: "other", Dependencies: []string{parent.ID}})
		require.NoError(t, err)

		require.NoError(t, store.Delete(parent.ID))
		_, err = store.GetTask(child.ID)
		assert.ErrorIs(t, err, storage.ErrNotFound)

		// edges pointing at a deleted task survive and stop blocking
		got, err := store.GetTask(other.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{parent.ID}, got.Dependencies)

		assert.ErrorIs(t, store.Delete(parent.ID), storage.ErrNotFound)
	})

	t.Run("GetTaskNotFound", func(t *testing.T) {
		store := newTxStore(t)
		_, err := store.GetTask("does-not-exist")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("ConcurrentAppendsGetDistinctOrders", func(t *testing.T) {
		root, err := internal_storage.NewPostgresStore(testDB.ConnStr)
		require.NoError(t, err)
		defer root.Close()

		parent, err := root.Insert(models.TaskDraft{Name: "scope"})
		require.NoError(t, err)
		defer root.Delete(parent.ID)

		const n = 8
		var wg sync.WaitGroup
		errs := make(chan error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				tx, err := root.Begin()
				if err != nil {
					errs <- err
					return
				}
				if _, err := tx.Insert(models.TaskDraft{Name: "child", ParentTaskID: &parent.ID}); err != nil {
					tx.Rollback()
					errs <- err
					return
				}
				errs <- tx.Commit()
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		var orders []int
		err = testDB.DB.Select(&orders, "SELECT sort_order FROM tasks WHERE parent_task_id = $1 ORDER BY sort_order", parent.ID)
		require.NoError(t, err)
		assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7}, orders)
	})

	t.Run("ServiceCompletesRecurringTask", func(t *testing.T) {
		// the service opens its own transactions, so it needs the root store
		store, err := internal_storage.NewPostgresStore(testDB.ConnStr)
		require.NoError(t, err)
		defer store.Close()
		svc := service.NewTaskService(store, nopLogger{})
		yearly := models.NewYearlyPattern(1)
		created, err := svc.CreateTask(models.TaskDraft{
			Name:             "Birthday",
			DueDate:          time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
			IsRecurring:      true,
			RecurringPattern: &yearly,
		})
		require.NoError(t, err)

		next, err := svc.SetCompleted(created.ID, true)
		require.NoError(t, err)
		require.NotNil(t, next)
		assert.True(t, next.DueDate.Equal(time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC)))

		assert.NoError(t, svc.DeleteTask(created.ID))
		assert.NoError(t, svc.DeleteTask(next.ID))
	})
}

type nopLogger struct{}

func (nopLogger) Infof(format string, args ...interface{})  {}
func (nopLogger) Errorf(format string, args ...interface{}) {}
