package models

import "time"

type TaskStatus string

const (
	TodoTaskStatus       TaskStatus = "TODO"
	InProgressTaskStatus TaskStatus = "IN_PROGRESS"
	DoneTaskStatus       TaskStatus = "DONE"
)

type Priority string

const (
	LowPriority    Priority = "low"
	MediumPriority Priority = "medium"
	HighPriority   Priority = "high"
	UrgentPriority Priority = "urgent"
)

// Task is a single work item. Subtasks point at their parent through ParentTaskID;
// only one level of nesting is allowed.
type Task struct {
	ID               string             `json:"id" yaml:"id"`                                                 // Store-assigned identifier
	Name             string             `json:"name" yaml:"name"`                                             // Display name
	ParentTaskID     *string            `json:"parent_task_id,omitempty" yaml:"parent_task_id,omitempty"`     // Nil for top-level tasks
	Dependencies     []string           `json:"dependencies" yaml:"dependencies,omitempty"`                   // IDs of tasks this task depends on
	Completed        bool               `json:"completed" yaml:"completed"`                                   // Completion flag
	Order            *int               `json:"order,omitempty" yaml:"order,omitempty"`                       // Position within the sibling scope
	IsRecurring      bool               `json:"is_recurring" yaml:"is_recurring"`                             // Whether completion spawns an occurrence
	RecurringPattern *RecurrencePattern `json:"recurring_pattern,omitempty" yaml:"recurring_pattern,omitempty"` // Set only when IsRecurring
	DueDate          time.Time          `json:"due_date" yaml:"due_date"`                                     // Calendar date, time of day ignored
	DueTime          *string            `json:"due_time,omitempty" yaml:"due_time,omitempty"`                 // Optional "HH:MM"
	Priority         Priority           `json:"priority" yaml:"priority"`
	Status           TaskStatus         `json:"status" yaml:"status"`

	// Opaque attributes, copied to generated occurrences.
	Company  string   `json:"company,omitempty" yaml:"company,omitempty"`
	Category string   `json:"category,omitempty" yaml:"category,omitempty"`
	Tags     []string `json:"tags,omitempty" yaml:"tags,omitempty"`
	Notes    string   `json:"notes,omitempty" yaml:"notes,omitempty"`

	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// IsTopLevel reports whether the task lives in the top-level sibling scope.
func (t Task) IsTopLevel() bool {
	return t.ParentTaskID == nil
}

// HasDependency reports whether id is already one of t's dependencies.
func (t Task) HasDependency(id string) bool {
	for _, dep := range t.Dependencies {
		if dep == id {
			return true
		}
	}
	return false
}

// TaskDraft is a task that has not been inserted yet. The store assigns ID and CreatedAt.
type TaskDraft struct {
	Name             string
	ParentTaskID     *string
	Dependencies     []string
	Order            *int // nil appends to the end of the sibling scope
	IsRecurring      bool
	RecurringPattern *RecurrencePattern
	DueDate          time.Time
	DueTime          *string
	Priority         Priority
	Status           TaskStatus
	Company          string
	Category         string
	Tags             []string
	Notes            string
}

// TaskUpdate is a partial update; nil fields are left untouched.
type TaskUpdate struct {
	Name         *string
	Dependencies *[]string
	Order        *int
	Completed    *bool
	Status       *TaskStatus
	// IsRecurring=false clears RecurringPattern as well.
	IsRecurring      *bool
	RecurringPattern *RecurrencePattern
}

// Apply writes the non-nil fields of u onto t.
func (u TaskUpdate) Apply(t *Task) {
	if u.Name != nil {
		t.Name = *u.Name
	}
	if u.Dependencies != nil {
		t.Dependencies = append([]string{}, (*u.Dependencies)...)
	}
	if u.Order != nil {
		order := *u.Order
		t.Order = &order
	}
	if u.Completed != nil {
		t.Completed = *u.Completed
	}
	if u.Status != nil {
		t.Status = *u.Status
	}
	if u.IsRecurring != nil {
		t.IsRecurring = *u.IsRecurring
		if !t.IsRecurring {
			t.RecurringPattern = nil
		}
	}
	if u.RecurringPattern != nil {
		p := *u.RecurringPattern
		t.RecurringPattern = &p
	}
}

// Task materializes the draft with the identity assigned by a store.
func (d TaskDraft) Task(id string, createdAt time.Time) Task {
	t := Task{
		ID:               id,
		Name:             d.Name,
		ParentTaskID:     d.ParentTaskID,
		Dependencies:     append([]string{}, d.Dependencies...),
		IsRecurring:      d.IsRecurring,
		RecurringPattern: d.RecurringPattern,
		DueDate:          d.DueDate,
		DueTime:          d.DueTime,
		Priority:         d.Priority,
		Status:           d.Status,
		Company:          d.Company,
		Category:         d.Category,
		Tags:             append([]string(nil), d.Tags...),
		Notes:            d.Notes,
		CreatedAt:        createdAt,
		UpdatedAt:        createdAt,
	}
	if d.Order != nil {
		order := *d.Order
		t.Order = &order
	}
	if t.Priority == "" {
		t.Priority = MediumPriority
	}
	if t.Status == "" {
		t.Status = TodoTaskStatus
	}
	return t
}

// IntPtr is a small helper for optional order values.
func IntPtr(v int) *int {
	return &v
}

// StringPtr is a small helper for optional string fields.
func StringPtr(v string) *string {
	return &v
}
