package model

import (
	"time"

	"github.com/google/uuid"
)

// Task is a node of a user's task forest. Children are not stored: they are
// derived from ParentID every time the hierarchy is read.
type Task struct {
	ID              uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	OwnerID         uuid.UUID  `gorm:"type:uuid;not null;index"`
	ParentID        *uuid.UUID `gorm:"type:uuid;index"`
	Title           string     `gorm:"not null"`
	Description     string
	Completed       bool     `gorm:"not null"`
	Priority        Priority `gorm:"not null"`
	DueDate         *time.Time
	GenerationCount int `gorm:"not null"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsRoot reports whether the task has no parent.
func (t *Task) IsRoot() bool {
	return t.ParentID == nil
}

// TaskPatch describes a partial update. Nil fields are left untouched.
type TaskPatch struct {
	Title        *string
	Description  *string
	DueDate      *time.Time
	ClearDueDate bool
	Priority     *Priority
	Completed    *bool
}

// Empty reports whether the patch changes nothing.
func (p TaskPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.DueDate == nil &&
		!p.ClearDueDate && p.Priority == nil && p.Completed == nil
}

// Columns returns the changed columns keyed by their database names.
func (p TaskPatch) Columns() map[string]any {
	cols := make(map[string]any)
	if p.Title != nil {
		cols["title"] = *p.Title
	}
	if p.Description != nil {
		cols["description"] = *p.Description
	}
	if p.ClearDueDate {
		cols["due_date"] = nil
	} else if p.DueDate != nil {
		cols["due_date"] = *p.DueDate
	}
	if p.Priority != nil {
		cols["priority"] = int(*p.Priority)
	}
	if p.Completed != nil {
		cols["completed"] = *p.Completed
	}
	return cols
}

// Apply copies the patch onto t.
func (p TaskPatch) Apply(t *Task) {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.ClearDueDate {
		t.DueDate = nil
	} else if p.DueDate != nil {
		d := *p.DueDate
		t.DueDate = &d
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.Completed != nil {
		t.Completed = *p.Completed
	}
}
