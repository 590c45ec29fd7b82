package service

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/diegoavarela/task-list-sub000/pkg/models"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	// Report fields by their json names
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// FieldError names one invalid field of a recurrence pattern.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// PatternError is returned by ValidatePattern and lists every invalid field.
type PatternError struct {
	Fields []FieldError `json:"fields"`
}

func (e *PatternError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Message)
	}
	return "invalid recurrence pattern: " + strings.Join(msgs, "; ")
}

// Has reports whether field was flagged.
func (e *PatternError) Has(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

func (e *PatternError) add(field, msg string) {
	if !e.Has(field) {
		e.Fields = append(e.Fields, FieldError{Field: field, Message: msg})
	}
}

var fieldMessages = map[string]string{
	"interval":     "interval must be between 1 and 365",
	"days_of_week": "select at least one day of the week (0-6)",
	"day_of_month": "day of month must be between 1 and 31",
	"end_date":     "end date cannot be before the due date",
}

// ValidatePattern is the edit-time check for a pattern. It returns a *PatternError
// naming the invalid fields, or nil.
func ValidatePattern(p *models.RecurrencePattern) error {
	perr := &PatternError{}
	if p == nil || p.Rule == nil {
		perr.add("type", "a recurrence type is required")
		return perr
	}

	var err error
	switch r := p.Rule.(type) {
	case models.DailyRule:
		err = validate.Struct(r)
	case models.WeeklyRule:
		err = validate.Struct(r)
	case models.MonthlyRule:
		err = validate.Struct(r)
	case models.YearlyRule:
		err = validate.Struct(r)
	default:
		perr.add("type", fmt.Sprintf("unsupported recurrence type %T", r))
		return perr
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			field := fe.Field()
			if i := strings.IndexByte(field, '['); i >= 0 {
				field = field[:i]
			}
			perr.add(field, fieldMessages[field])
		}
	} else if err != nil {
		return errors.Wrap(err, "validate recurrence pattern")
	}
	if len(perr.Fields) > 0 {
		return perr
	}
	return nil
}

// ValidateSchedule runs ValidatePattern and also rejects an end date that falls
// before due, which would leave the series with no occurrence after the first.
func ValidateSchedule(p *models.RecurrencePattern, due time.Time) error {
	err := ValidatePattern(p)
	perr := &PatternError{}
	if err != nil && !errors.As(err, &perr) {
		return err
	}
	if p != nil && p.EndDate != nil && dateOnly(*p.EndDate).Before(dateOnly(due)) {
		perr.add("end_date", fieldMessages["end_date"])
	}
	if len(perr.Fields) > 0 {
		return perr
	}
	return nil
}

// Describe renders a pattern as a short sentence, e.g. "Repeats every 2 weeks on Mon, Wed".
func Describe(p *models.RecurrencePattern) string {
	if p == nil || p.Rule == nil {
		return "Does not repeat"
	}
	var b strings.Builder
	switch r := p.Rule.(type) {
	case models.DailyRule:
		b.WriteString(every(r.Interval, "daily", "day"))
	case models.WeeklyRule:
		b.WriteString(every(r.Interval, "weekly", "week"))
		if days := weekdays(r.DaysOfWeek); len(days) > 0 {
			names := make([]string, 0, len(days))
			for _, d := range days {
				names = append(names, d.String()[:3])
			}
			b.WriteString(" on " + strings.Join(names, ", "))
		}
	case models.MonthlyRule:
		b.WriteString(every(r.Interval, "monthly", "month"))
		if r.DayOfMonth > 0 {
			fmt.Fprintf(&b, " on day %d", r.DayOfMonth)
		}
	case models.YearlyRule:
		b.WriteString(every(r.Interval, "yearly", "year"))
	}
	if p.EndDate != nil {
		b.WriteString(" until " + p.EndDate.Format("Jan 2, 2006"))
	}
	return b.String()
}

func every(interval int, adverb, unit string) string {
	if interval <= 1 {
		return "Repeats " + adverb
	}
	return fmt.Sprintf("Repeats every %d %ss", interval, unit)
}

// weekdays returns the valid, distinct days sorted Sunday first.
func weekdays(days []time.Weekday) []time.Weekday {
	seen := map[time.Weekday]bool{}
	out := make([]time.Weekday, 0, len(days))
	for _, d := range days {
		if d < time.Sunday || d > time.Saturday || seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ShouldGenerateNext reports whether completing task spawns a new occurrence.
// wasCompleted is the completion flag before the current change.
func ShouldGenerateNext(task models.Task, wasCompleted bool) bool {
	if wasCompleted || !task.Completed {
		return false
	}
	if !task.IsRecurring || task.RecurringPattern == nil || !task.IsTopLevel() {
		return false
	}
	if ValidatePattern(task.RecurringPattern) != nil {
		return false
	}
	if end := task.RecurringPattern.EndDate; end != nil {
		next := NextDueDate(task.DueDate, task.RecurringPattern.Rule)
		return !next.After(dateOnly(*end))
	}
	return true
}

// NextDueDate advances due by one step of rule. Invalid rules are clamped to
// something sensible instead of failing.
func NextDueDate(due time.Time, rule models.Rule) time.Time {
	due = dateOnly(due)
	if rule == nil {
		return due
	}
	interval := rule.Every()
	if interval < 1 {
		interval = 1
	}
	switch r := rule.(type) {
	case models.DailyRule:
		return due.AddDate(0, 0, interval)
	case models.WeeklyRule:
		return nextWeekly(due, interval, r.DaysOfWeek)
	case models.MonthlyRule:
		day := r.DayOfMonth
		if day < 1 || day > 31 {
			day = due.Day()
		}
		return clampedDate(due.Year(), due.Month()+time.Month(interval), day, due.Location())
	case models.YearlyRule:
		return clampedDate(due.Year()+interval, due.Month(), due.Day(), due.Location())
	}
	return due
}

// nextWeekly picks the next selected weekday later in the (Sunday-started) week
// of due; when none is left it jumps to the week interval weeks later.
func nextWeekly(due time.Time, interval int, days []time.Weekday) time.Time {
	var selected [7]bool
	found := false
	for _, d := range weekdays(days) {
		selected[d] = true
		found = true
	}
	if !found {
		selected[due.Weekday()] = true
	}
	for d := due.Weekday() + 1; d <= time.Saturday; d++ {
		if selected[d] {
			return due.AddDate(0, 0, int(d-due.Weekday()))
		}
	}
	weekStart := due.AddDate(0, 0, -int(due.Weekday())+7*interval)
	for d := time.Sunday; d <= time.Saturday; d++ {
		if selected[d] {
			return weekStart.AddDate(0, 0, int(d))
		}
	}
	return weekStart
}

// clampedDate builds year-month-day, pulling day back to the month's last day
// when it does not exist (Jan 31 + 1 month = Feb 28/29).
func clampedDate(year int, month time.Month, day int, loc *time.Location) time.Time {
	first := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	last := first.AddDate(0, 1, -1).Day()
	if day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, loc)
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// ComputeNextOccurrence builds the draft of the occurrence following task.
// The draft starts incomplete, top-level and without dependencies.
func ComputeNextOccurrence(task models.Task) models.TaskDraft {
	draft := models.TaskDraft{
		Name:         task.Name,
		Dependencies: []string{},
		IsRecurring:  task.IsRecurring,
		DueDate:      task.DueDate,
		Priority:     task.Priority,
		Status:       models.TodoTaskStatus,
		Company:      task.Company,
		Category:     task.Category,
		Tags:         append([]string(nil), task.Tags...),
		Notes:        task.Notes,
	}
	if task.DueTime != nil {
		dueTime := *task.DueTime
		draft.DueTime = &dueTime
	}
	if task.RecurringPattern != nil {
		p := *task.RecurringPattern
		draft.RecurringPattern = &p
		draft.DueDate = NextDueDate(task.DueDate, p.Rule)
	}
	return draft
}
