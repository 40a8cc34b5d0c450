// Package throttle decides whether AI subtask generation may run for a task.
package throttle

import (
	"fmt"

	"github.com/google/uuid"

	"todotree/internal/hierarchy"
	"todotree/internal/model"
)

// MaxGenerations is how many times suggestions may be generated for one task.
const MaxGenerations = 3

// Verdict is the outcome of a throttle check.
type Verdict int

const (
	Allowed Verdict = iota
	ChildLimitReached
	GenerationsExhausted
	DepthLimitReached
)

func (v Verdict) String() string {
	switch v {
	case Allowed:
		return "allowed"
	case ChildLimitReached:
		return "child_limit_reached"
	case GenerationsExhausted:
		return "generations_exhausted"
	case DepthLimitReached:
		return "depth_limit_reached"
	default:
		return "unknown"
	}
}

// Manual reports whether the caller should be routed to manual subtask entry.
// Only an exhausted quota does that; the other rejections refuse outright.
func (v Verdict) Manual() bool {
	return v == GenerationsExhausted
}

// Message is the user-facing explanation for a rejection.
func (v Verdict) Message() string {
	switch v {
	case ChildLimitReached:
		return fmt.Sprintf("A task can hold at most %d subtasks.", hierarchy.MaxChildrenPerGeneration)
	case GenerationsExhausted:
		return fmt.Sprintf("Subtask suggestions can be generated at most %d times per task. Please add subtasks manually.", MaxGenerations)
	case DepthLimitReached:
		return "This task is nested too deeply to hold subtasks."
	default:
		return ""
	}
}

// Check evaluates the limits for the task id within f. The child cap is
// checked first, then the generation quota, then the depth bound.
func Check(f *hierarchy.Forest, id uuid.UUID) (Verdict, error) {
	task, ok := f.Find(id)
	if !ok {
		return Allowed, hierarchy.ErrUnknownTask
	}

	if f.ChildCount(id) >= hierarchy.MaxChildrenPerGeneration {
		return ChildLimitReached, nil
	}
	if task.GenerationCount >= MaxGenerations {
		return GenerationsExhausted, nil
	}

	depth, err := f.DepthOf(id)
	if err != nil {
		return Allowed, err
	}
	if depth >= hierarchy.MaxDepth {
		return DepthLimitReached, nil
	}
	return Allowed, nil
}

// CanGenerate is Check reduced to a boolean; structural errors count as no.
func CanGenerate(f *hierarchy.Forest, id uuid.UUID) bool {
	v, err := Check(f, id)
	return err == nil && v == Allowed
}

// Record counts one successful generation against task.
func Record(task *model.Task) {
	task.GenerationCount++
}

// Remaining returns how many generations task has left.
func Remaining(task *model.Task) int {
	if left := MaxGenerations - task.GenerationCount; left > 0 {
		return left
	}
	return 0
}
