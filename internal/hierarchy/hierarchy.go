// Package hierarchy builds and queries a user's task forest from flat rows.
//
// The forest is an arena: tasks are indexed by id and parent/child edges are
// kept as id lists, so structural queries never depend on pointer identity.
package hierarchy

import (
	"errors"
	"sort"

	"github.com/google/uuid"

	"todotree/internal/model"
)

const (
	// MaxDepth is the deepest level a task may live at. Roots are level 1 and
	// a task at MaxDepth cannot take children.
	MaxDepth = 4

	// MaxChildrenPerGeneration caps how many subtasks a task may hold.
	MaxChildrenPerGeneration = 4
)

var (
	ErrCycle       = errors.New("task hierarchy contains a cycle")
	ErrUnknownTask = errors.New("task is not part of the hierarchy")
)

// Node is a task together with its nested children, as rendered to clients.
type Node struct {
	Task     model.Task
	Depth    int
	Children []*Node
}

// Forest is an indexed set of tasks with derived parent/child links.
type Forest struct {
	index    map[uuid.UUID]*model.Task
	children map[uuid.UUID][]uuid.UUID
	roots    []uuid.UUID
}

// Build links a flat list of tasks into a forest. The index is complete before
// any parent is resolved, so input order does not matter. A task whose parent
// is missing from the list is treated as a root.
func Build(tasks []model.Task) *Forest {
	f := &Forest{
		index:    make(map[uuid.UUID]*model.Task, len(tasks)),
		children: make(map[uuid.UUID][]uuid.UUID, len(tasks)),
	}

	order := make([]uuid.UUID, 0, len(tasks))
	for i := range tasks {
		t := tasks[i]
		if _, dup := f.index[t.ID]; dup {
			continue
		}
		f.index[t.ID] = &t
		f.children[t.ID] = nil
		order = append(order, t.ID)
	}

	for _, id := range order {
		t := f.index[id]
		if t.ParentID != nil && *t.ParentID != t.ID {
			if _, ok := f.index[*t.ParentID]; ok {
				f.children[*t.ParentID] = append(f.children[*t.ParentID], id)
				continue
			}
		}
		f.roots = append(f.roots, id)
	}

	f.sortByCreation(f.roots)
	for id := range f.children {
		f.sortByCreation(f.children[id])
	}
	return f
}

// FromNested builds a forest from already grouped nodes. Missing parent ids
// are filled in from the nesting.
func FromNested(nodes []*Node) *Forest {
	var flat []model.Task
	var walk func(parent *uuid.UUID, ns []*Node)
	walk = func(parent *uuid.UUID, ns []*Node) {
		for _, n := range ns {
			if n == nil {
				continue
			}
			t := n.Task
			if t.ParentID == nil && parent != nil {
				p := *parent
				t.ParentID = &p
			}
			flat = append(flat, t)
			id := t.ID
			walk(&id, n.Children)
		}
	}
	walk(nil, nodes)
	return Build(flat)
}

func (f *Forest) sortByCreation(ids []uuid.UUID) {
	sort.SliceStable(ids, func(i, j int) bool {
		return f.index[ids[i]].CreatedAt.Before(f.index[ids[j]].CreatedAt)
	})
}

// Len returns the number of tasks in the forest.
func (f *Forest) Len() int {
	return len(f.index)
}

// Find returns the task with the given id.
func (f *Forest) Find(id uuid.UUID) (*model.Task, bool) {
	t, ok := f.index[id]
	return t, ok
}

// Roots returns the root tasks in creation order.
func (f *Forest) Roots() []*model.Task {
	return f.resolve(f.roots)
}

// Children returns the direct children of id in creation order.
func (f *Forest) Children(id uuid.UUID) []*model.Task {
	return f.resolve(f.children[id])
}

// ChildCount returns how many direct children id has.
func (f *Forest) ChildCount(id uuid.UUID) int {
	return len(f.children[id])
}

func (f *Forest) resolve(ids []uuid.UUID) []*model.Task {
	out := make([]*model.Task, 0, len(ids))
	for _, id := range ids {
		out = append(out, f.index[id])
	}
	return out
}

// DepthOf walks parent links up from id. A root has depth 1. The walk is
// bounded by the size of the forest so a corrupted parent chain reports
// ErrCycle instead of looping.
func (f *Forest) DepthOf(id uuid.UUID) (int, error) {
	t, ok := f.index[id]
	if !ok {
		return 0, ErrUnknownTask
	}

	depth := 1
	for steps := 0; t.ParentID != nil; steps++ {
		if steps > len(f.index) {
			return 0, ErrCycle
		}
		parent, ok := f.index[*t.ParentID]
		if !ok {
			break
		}
		depth++
		t = parent
	}
	return depth, nil
}

// CollectSubtreeIDs returns id followed by every descendant, pre-order.
func (f *Forest) CollectSubtreeIDs(id uuid.UUID) []uuid.UUID {
	if _, ok := f.index[id]; !ok {
		return nil
	}

	seen := make(map[uuid.UUID]bool)
	var ids []uuid.UUID
	stack := []uuid.UUID{id}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[cur] {
			continue
		}
		seen[cur] = true
		ids = append(ids, cur)

		kids := f.children[cur]
		for i := len(kids) - 1; i >= 0; i-- {
			stack = append(stack, kids[i])
		}
	}
	return ids
}

// Tree renders the forest as nested nodes starting from the roots.
func (f *Forest) Tree() []*Node {
	return f.nodes(f.roots, 1)
}

// Subtree renders the node for id and everything under it.
func (f *Forest) Subtree(id uuid.UUID) (*Node, error) {
	depth, err := f.DepthOf(id)
	if err != nil {
		return nil, err
	}
	return f.nodes([]uuid.UUID{id}, depth)[0], nil
}

func (f *Forest) nodes(ids []uuid.UUID, depth int) []*Node {
	out := make([]*Node, 0, len(ids))
	for _, id := range ids {
		out = append(out, &Node{
			Task:     *f.index[id],
			Depth:    depth,
			Children: f.nodes(f.children[id], depth+1),
		})
	}
	return out
}

// Flatten lists every task reachable from the roots, parents before children.
func (f *Forest) Flatten() []model.Task {
	var out []model.Task
	for _, root := range f.roots {
		for _, id := range f.CollectSubtreeIDs(root) {
			out = append(out, *f.index[id])
		}
	}
	return out
}

// FindInTree searches nested nodes depth-first and returns the first match.
func FindInTree(nodes []*Node, id uuid.UUID) *Node {
	for _, n := range nodes {
		if n == nil {
			continue
		}
		if n.Task.ID == id {
			return n
		}
		if found := FindInTree(n.Children, id); found != nil {
			return found
		}
	}
	return nil
}

// FilterCompleted returns a deep copy of nodes without completed tasks. A
// completed task that still has an incomplete descendant is kept, with its
// Completed flag intact, so the descendant is not cut off from its branch.
func FilterCompleted(nodes []*Node) []*Node {
	out := make([]*Node, 0, len(nodes))
	for _, n := range nodes {
		if n == nil {
			continue
		}
		kids := FilterCompleted(n.Children)
		if n.Task.Completed && len(kids) == 0 {
			continue
		}
		out = append(out, &Node{
			Task:     n.Task,
			Depth:    n.Depth,
			Children: kids,
		})
	}
	return out
}
