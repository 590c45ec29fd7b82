package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/diegoavarela/task-list-sub000/internal/config"
	internal_http "github.com/diegoavarela/task-list-sub000/internal/http"
	"github.com/diegoavarela/task-list-sub000/internal/log"
	internal_storage "github.com/diegoavarela/task-list-sub000/internal/storage"
	"github.com/diegoavarela/task-list-sub000/pkg/models"
	"github.com/diegoavarela/task-list-sub000/pkg/service"
	"github.com/diegoavarela/task-list-sub000/pkg/storage"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

const dateLayout = "2006-01-02"

// SetupCLI registers the task commands and the --db/--file persistent flags on rootCmd.
func SetupCLI(rootCmd *cobra.Command, cfg config.Config) {
	rootCmd.PersistentFlags().String("db", cfg.DBConnStr, "Postgres connection string (empty uses the YAML file)")
	rootCmd.PersistentFlags().String("file", cfg.TasksFile, "YAML tasks file used when no database is configured")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List the tasks of one sibling scope",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			parent, _ := cmd.Flags().GetString("parent")
			sort, _ := cmd.Flags().GetString("sort")
			return withService(cmd, func(svc *service.TaskService) error {
				return listTasks(cmd.OutOrStdout(), svc, optional(parent), service.ParseSortDirection(sort))
			})
		},
	}
	listCmd.Flags().String("parent", "", "List the subtasks of this task")
	listCmd.Flags().String("sort", string(service.Ascending), "Creation-time direction for unordered scopes (asc|desc)")

	addCmd := &cobra.Command{
		Use:   "add [name]",
		Short: "Create a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			draft, err := draftFromFlags(cmd, args[0])
			if err != nil {
				return err
			}
			return withService(cmd, func(svc *service.TaskService) error {
				created, err := svc.CreateTask(draft)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created task '%s' with ID %s\n", created.Name, created.ID)
				return nil
			})
		},
	}
	addCmd.Flags().String("parent", "", "Parent task ID (creates a subtask)")
	addCmd.Flags().String("due", "", "Due date YYYY-MM-DD (default today)")
	addCmd.Flags().String("time", "", "Due time HH:MM")
	addCmd.Flags().String("priority", string(models.MediumPriority), "low|medium|high|urgent")
	addCmd.Flags().StringSlice("depends", nil, "IDs of tasks this task depends on")
	addCmd.Flags().StringSlice("tags", nil, "Tags")
	addCmd.Flags().String("company", "", "Company")
	addCmd.Flags().String("category", "", "Category")
	addCmd.Flags().String("notes", "", "Notes")
	addPatternFlags(addCmd)

	deleteCmd := &cobra.Command{
		Use:   "delete [task]",
		Short: "Delete a task and its subtasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(svc *service.TaskService) error {
				if err := svc.DeleteTask(args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted task %s\n", args[0])
				return nil
			})
		},
	}

	dependCmd := &cobra.Command{
		Use:   "depend [task] [depends-on]",
		Short: "Make a task depend on another task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(svc *service.TaskService) error {
				if err := svc.AddDependency(args[0], args[1]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Task %s now depends on %s\n", args[0], args[1])
				return nil
			})
		},
	}

	undependCmd := &cobra.Command{
		Use:   "undepend [task] [depends-on]",
		Short: "Remove a dependency",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(svc *service.TaskService) error {
				if err := svc.RemoveDependency(args[0], args[1]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Task %s no longer depends on %s\n", args[0], args[1])
				return nil
			})
		},
	}

	blockedCmd := &cobra.Command{
		Use:   "blocked [task]",
		Short: "Show whether a task is blocked and by what",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(svc *service.TaskService) error {
				status, err := svc.Blocked(args[0])
				if err != nil {
					return err
				}
				if !status.Blocked {
					fmt.Fprintf(cmd.OutOrStdout(), "Task %s is not blocked\n", args[0])
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Task %s is blocked by: %s\n", args[0], strings.Join(status.Blockers, ", "))
				return nil
			})
		},
	}

	completeCmd := &cobra.Command{
		Use:   "complete [task]",
		Short: "Mark a task completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(svc *service.TaskService) error {
				return setCompleted(cmd.OutOrStdout(), svc, args[0], true)
			})
		},
	}

	reopenCmd := &cobra.Command{
		Use:   "reopen [task]",
		Short: "Mark a task not completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(svc *service.TaskService) error {
				return setCompleted(cmd.OutOrStdout(), svc, args[0], false)
			})
		},
	}

	moveCmd := &cobra.Command{
		Use:   "move [task] [index]",
		Short: "Move a task to a new position among its siblings",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := strconv.Atoi(args[1])
			if err != nil {
				return errors.Wrapf(err, "invalid index '%s'", args[1])
			}
			sort, _ := cmd.Flags().GetString("sort")
			return withService(cmd, func(svc *service.TaskService) error {
				if err := svc.MoveTask(args[0], index, service.ParseSortDirection(sort)); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Moved task %s to position %d\n", args[0], index)
				return nil
			})
		},
	}
	moveCmd.Flags().String("sort", string(service.Ascending), "Direction the scope is displayed in (asc|desc)")

	repeatCmd := &cobra.Command{
		Use:   "repeat [task]",
		Short: "Set or clear a task's recurrence",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(svc *service.TaskService) error {
				task, err := svc.GetTask(args[0])
				if err != nil {
					return err
				}
				pattern, err := patternFromFlags(cmd, task.DueDate)
				if err != nil {
					return err
				}
				if err := svc.SetRecurrence(args[0], pattern); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Task %s: %s\n", args[0], service.Describe(pattern))
				return nil
			})
		},
	}
	addPatternFlags(repeatCmd)

	describeCmd := &cobra.Command{
		Use:   "describe [task]",
		Short: "Print a task's recurrence in words",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(svc *service.TaskService) error {
				task, err := svc.GetTask(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), service.Describe(task.RecurringPattern))
				return nil
			})
		},
	}

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Verify that the stored dependency graph has no cycles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(svc *service.TaskService) error {
				if err := svc.Check(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "No dependency cycles found")
				return nil
			})
		},
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the task API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			port, _ := cmd.Flags().GetString("port")
			store, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer store.Close()
			return internal_http.StartServer(port, store)
		},
	}
	serveCmd.Flags().String("port", cfg.Port, "Port to listen on")

	rootCmd.AddCommand(listCmd, addCmd, deleteCmd, dependCmd, undependCmd, blockedCmd,
		completeCmd, reopenCmd, moveCmd, repeatCmd, describeCmd, checkCmd, serveCmd)
}

func openStore(cmd *cobra.Command) (storage.Store, error) {
	dbConnStr, err := cmd.Flags().GetString("db")
	if err != nil {
		return nil, errors.Wrap(err, "error retrieving db flag")
	}
	tasksFile, err := cmd.Flags().GetString("file")
	if err != nil {
		return nil, errors.Wrap(err, "error retrieving file flag")
	}
	if dbConnStr != "" {
		log.GetLogger().Debugf("Running %s against postgres", cmd.Name())
	} else {
		log.GetLogger().Debugf("Running %s with file: %s", cmd.Name(), tasksFile)
	}
	store, err := internal_storage.OpenStore(dbConnStr, tasksFile)
	if err != nil {
		log.GetLogger().Errorf("Failed to initialize store: %v", err)
		return nil, errors.Wrap(err, "failed to initialize store")
	}
	return store, nil
}

func withService(cmd *cobra.Command, fn func(svc *service.TaskService) error) error {
	store, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(service.NewTaskService(store, log.GetLogger()))
}

func listTasks(out io.Writer, svc *service.TaskService, parent *string, dir service.SortDirection) error {
	tasks, err := svc.ListTasks(parent, dir)
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		fmt.Fprintf(out, "No tasks found.\n")
		return nil
	}
	for i, t := range tasks {
		status, err := svc.Blocked(t.ID)
		if err != nil {
			return err
		}
		mark := " "
		switch {
		case t.Completed:
			mark = "x"
		case status.Blocked:
			mark = "!"
		}
		fmt.Fprintf(out, "%d. [%s] %s (ID: %s, due %s, %s)", i, mark, t.Name, t.ID, t.DueDate.Format(dateLayout), t.Priority)
		if t.IsRecurring {
			fmt.Fprintf(out, " - %s", service.Describe(t.RecurringPattern))
		}
		fmt.Fprintln(out)
	}
	return nil
}

func setCompleted(out io.Writer, svc *service.TaskService, id string, completed bool) error {
	next, err := svc.SetCompleted(id, completed)
	if err != nil {
		return err
	}
	if !completed {
		fmt.Fprintf(out, "Reopened task %s\n", id)
		return nil
	}
	fmt.Fprintf(out, "Completed task %s\n", id)
	if next != nil {
		fmt.Fprintf(out, "Next occurrence %s due %s\n", next.ID, next.DueDate.Format(dateLayout))
	}
	return nil
}

func draftFromFlags(cmd *cobra.Command, name string) (models.TaskDraft, error) {
	flags := cmd.Flags()
	parent, _ := flags.GetString("parent")
	due, _ := flags.GetString("due")
	dueTime, _ := flags.GetString("time")
	priority, _ := flags.GetString("priority")
	depends, _ := flags.GetStringSlice("depends")
	tags, _ := flags.GetStringSlice("tags")
	company, _ := flags.GetString("company")
	category, _ := flags.GetString("category")
	notes, _ := flags.GetString("notes")

	draft := models.TaskDraft{
		Name:         name,
		ParentTaskID: optional(parent),
		DueTime:      optional(dueTime),
		Priority:     models.Priority(priority),
		Dependencies: depends,
		Tags:         tags,
		Company:      company,
		Category:     category,
		Notes:        notes,
	}
	draft.DueDate = time.Now().UTC()
	if due != "" {
		d, err := time.Parse(dateLayout, due)
		if err != nil {
			return models.TaskDraft{}, errors.Wrapf(err, "invalid due date '%s'", due)
		}
		draft.DueDate = d
	}
	pattern, err := patternFromFlags(cmd, draft.DueDate)
	if err != nil {
		return models.TaskDraft{}, err
	}
	draft.IsRecurring = pattern != nil
	draft.RecurringPattern = pattern
	return draft, nil
}

func addPatternFlags(cmd *cobra.Command) {
	cmd.Flags().String("repeat", "", "daily|weekly|monthly|yearly (repeat: none clears)")
	cmd.Flags().Int("every", 1, "Repeat interval")
	cmd.Flags().StringSlice("days", nil, "Weekdays for weekly recurrence (sun,mon,... or 0-6)")
	cmd.Flags().Int("day", 0, "Day of month for monthly recurrence (default: the due date's day)")
	cmd.Flags().String("until", "", "Last date YYYY-MM-DD an occurrence may fall on")
}

// patternFromFlags returns nil when no recurrence is requested. A monthly
// pattern without --day repeats on the day of due.
func patternFromFlags(cmd *cobra.Command, due time.Time) (*models.RecurrencePattern, error) {
	flags := cmd.Flags()
	kind, _ := flags.GetString("repeat")
	every, _ := flags.GetInt("every")
	days, _ := flags.GetStringSlice("days")
	day, _ := flags.GetInt("day")
	until, _ := flags.GetString("until")

	var p models.RecurrencePattern
	switch models.RecurrenceType(strings.ToLower(kind)) {
	case "", "none":
		return nil, nil
	case models.DailyRecurrence:
		p = models.NewDailyPattern(every)
	case models.WeeklyRecurrence:
		weekdays, err := parseWeekdays(days)
		if err != nil {
			return nil, err
		}
		p = models.NewWeeklyPattern(every, weekdays...)
	case models.MonthlyRecurrence:
		if day == 0 {
			day = due.Day()
		}
		p = models.NewMonthlyPattern(every, day)
	case models.YearlyRecurrence:
		p = models.NewYearlyPattern(every)
	default:
		return nil, errors.Errorf("unknown recurrence type '%s'", kind)
	}
	if until != "" {
		end, err := time.Parse(dateLayout, until)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid end date '%s'", until)
		}
		p = p.Until(end)
	}
	return &p, nil
}

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "mon": time.Monday, "tue": time.Tuesday, "wed": time.Wednesday,
	"thu": time.Thursday, "fri": time.Friday, "sat": time.Saturday,
}

func parseWeekdays(values []string) ([]time.Weekday, error) {
	var out []time.Weekday
	for _, v := range values {
		key := strings.ToLower(strings.TrimSpace(v))
		if d, ok := weekdayNames[key[:min(3, len(key))]]; ok {
			out = append(out, d)
			continue
		}
		n, err := strconv.Atoi(key)
		if err != nil {
			return nil, errors.Errorf("unknown weekday '%s'", v)
		}
		out = append(out, time.Weekday(n))
	}
	return out, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
