package models

// Dependency is a single depends-on edge as stored in a relational backend.
type Dependency struct {
	TaskID    string `json:"task_id" db:"task_id"`       // Task that is blocked
	DependsOn string `json:"depends_on" db:"depends_on"` // Prerequisite task
	Position  int    `json:"position" db:"position"`     // Index within the task's dependency list
}

// Edges flattens a task's dependency set into storable edges.
func Edges(t Task) []Dependency {
	edges := make([]Dependency, 0, len(t.Dependencies))
	for i, dep := range t.Dependencies {
		edges = append(edges, Dependency{TaskID: t.ID, DependsOn: dep, Position: i})
	}
	return edges
}
