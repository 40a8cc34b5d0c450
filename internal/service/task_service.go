// Package service is the only path through which tasks are created, changed
// or removed. It enforces ownership and the hierarchy limits and turns store
// failures into typed errors.
package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"todotree/internal/hierarchy"
	"todotree/internal/model"
	"todotree/internal/repository"
	"todotree/internal/throttle"
)

const (
	MaxTitleLength       = 255
	MaxDescriptionLength = 2000
)

// manualEntryMessage is shown when the generator produced nothing usable.
const manualEntryMessage = "Could not generate subtasks right now. Please add them manually."

// Suggester produces subtask titles for a task.
type Suggester interface {
	Suggest(ctx context.Context, title, description string) ([]string, error)
}

type CreateTaskInput struct {
	Title       string
	Description string
	DueDate     *time.Time
	Priority    *model.Priority
	ParentID    *uuid.UUID
}

type ListOptions struct {
	HideCompleted bool
}

// TaskDetail is one task with its position in the forest and its direct children.
type TaskDetail struct {
	Task            model.Task
	Depth           int
	Children        []model.Task
	GenerationsLeft int
	SlotsLeft       int
}

// DeleteResult lists every removed task, the requested one first.
type DeleteResult struct {
	DeletedIDs []uuid.UUID
	ParentID   *uuid.UUID
}

// SuggestionResult is the outcome of one generation request. A throttle
// rejection or a failed generation is reported here rather than as an error.
type SuggestionResult struct {
	TaskID          uuid.UUID
	Candidates      []string
	Rejection       throttle.Verdict
	ManualEntry     bool
	Message         string
	GenerationsLeft int
	SlotsLeft       int
}

// Rejected reports whether the throttle refused the request.
func (r *SuggestionResult) Rejected() bool {
	return r.Rejection != throttle.Allowed
}

type TaskService struct {
	repo      repository.TaskRepositoryInterface
	suggester Suggester
	log       *log.Logger
}

func NewTaskService(repo repository.TaskRepositoryInterface, suggester Suggester, logger *log.Logger) *TaskService {
	if logger == nil {
		logger = log.Default()
	}
	return &TaskService{
		repo:      repo,
		suggester: suggester,
		log:       logger.WithPrefix("tasks"),
	}
}

// CreateTask validates input and stores a new task. With a parent, the parent
// row is locked for the duration of the depth and child-count checks so two
// concurrent creations cannot both take the last slot.
func (s *TaskService) CreateTask(ctx context.Context, ownerID uuid.UUID, in CreateTaskInput) (*model.Task, error) {
	title, err := validateTitle(in.Title)
	if err != nil {
		return nil, err
	}
	if err := validateDescription(in.Description); err != nil {
		return nil, err
	}
	priority := model.PriorityNormal
	if in.Priority != nil {
		if !in.Priority.Valid() {
			return nil, invalid("priority", "unknown priority")
		}
		priority = *in.Priority
	}

	task := &model.Task{
		ID:          uuid.New(),
		OwnerID:     ownerID,
		Title:       title,
		Description: in.Description,
		Priority:    priority,
		DueDate:     in.DueDate,
	}

	if in.ParentID == nil {
		if err := s.repo.Create(ctx, task); err != nil {
			return nil, s.fail("create task", err)
		}
		return task, nil
	}

	parentID := *in.ParentID
	task.ParentID = &parentID

	err = s.repo.Transaction(ctx, func(tx repository.TaskRepositoryInterface) error {
		parent, err := s.owned(ctx, tx.GetByIDForUpdate, ownerID, parentID)
		if err != nil {
			return err
		}

		f, err := s.forest(ctx, tx, ownerID)
		if err != nil {
			return err
		}
		depth, err := f.DepthOf(parent.ID)
		if err != nil {
			return err
		}
		if depth >= hierarchy.MaxDepth {
			return ErrDepthExceeded
		}
		if f.ChildCount(parent.ID) >= hierarchy.MaxChildrenPerGeneration {
			return ErrChildLimitExceeded
		}

		return tx.Create(ctx, task)
	})
	if err != nil {
		return nil, s.fail("create subtask", err)
	}
	return task, nil
}

// ListTasks returns the owner's forest, roots and children in creation order.
func (s *TaskService) ListTasks(ctx context.Context, ownerID uuid.UUID, opts ListOptions) ([]*hierarchy.Node, error) {
	f, err := s.forest(ctx, s.repo, ownerID)
	if err != nil {
		return nil, s.fail("list tasks", err)
	}
	tree := f.Tree()
	if opts.HideCompleted {
		tree = hierarchy.FilterCompleted(tree)
	}
	return tree, nil
}

func (s *TaskService) GetTask(ctx context.Context, ownerID, id uuid.UUID) (*TaskDetail, error) {
	task, err := s.owned(ctx, s.repo.GetByID, ownerID, id)
	if err != nil {
		return nil, s.fail("get task", err)
	}
	f, err := s.forest(ctx, s.repo, ownerID)
	if err != nil {
		return nil, s.fail("get task", err)
	}
	depth, err := f.DepthOf(id)
	if err != nil {
		return nil, s.fail("get task", err)
	}
	children, err := s.repo.ListChildren(ctx, id)
	if err != nil {
		return nil, s.fail("list children", err)
	}
	if children == nil {
		children = []model.Task{}
	}

	return &TaskDetail{
		Task:            *task,
		Depth:           depth,
		Children:        children,
		GenerationsLeft: throttle.Remaining(task),
		SlotsLeft:       max(hierarchy.MaxChildrenPerGeneration-len(children), 0),
	}, nil
}

// UpdateTask applies a partial update. The parent of a task never changes.
func (s *TaskService) UpdateTask(ctx context.Context, ownerID, id uuid.UUID, patch model.TaskPatch) (*model.Task, error) {
	if patch.Empty() {
		return nil, invalid("body", "nothing to update")
	}
	if patch.Title != nil {
		title, err := validateTitle(*patch.Title)
		if err != nil {
			return nil, err
		}
		patch.Title = &title
	}
	if patch.Description != nil {
		if err := validateDescription(*patch.Description); err != nil {
			return nil, err
		}
	}
	if patch.Priority != nil && !patch.Priority.Valid() {
		return nil, invalid("priority", "unknown priority")
	}

	if _, err := s.owned(ctx, s.repo.GetByID, ownerID, id); err != nil {
		return nil, s.fail("update task", err)
	}
	task, err := s.repo.Update(ctx, ownerID, id, patch)
	if err != nil {
		return nil, s.fail("update task", err)
	}
	return task, nil
}

// ToggleStatus flips the completion flag of one task. Parents and children
// keep their own flags.
func (s *TaskService) ToggleStatus(ctx context.Context, ownerID, id uuid.UUID) (*model.Task, error) {
	var updated *model.Task
	err := s.repo.Transaction(ctx, func(tx repository.TaskRepositoryInterface) error {
		task, err := s.owned(ctx, tx.GetByIDForUpdate, ownerID, id)
		if err != nil {
			return err
		}
		completed := !task.Completed
		updated, err = tx.Update(ctx, ownerID, id, model.TaskPatch{Completed: &completed})
		return err
	})
	if err != nil {
		return nil, s.fail("toggle task", err)
	}
	return updated, nil
}

// DeleteTask removes the task and its whole subtree in one transaction.
func (s *TaskService) DeleteTask(ctx context.Context, ownerID, id uuid.UUID) (*DeleteResult, error) {
	var result DeleteResult
	err := s.repo.Transaction(ctx, func(tx repository.TaskRepositoryInterface) error {
		task, err := s.owned(ctx, tx.GetByIDForUpdate, ownerID, id)
		if err != nil {
			return err
		}
		f, err := s.forest(ctx, tx, ownerID)
		if err != nil {
			return err
		}

		ids := f.CollectSubtreeIDs(task.ID)
		if len(ids) == 0 {
			return ErrNotFound
		}
		if _, err := tx.DeleteByIDs(ctx, ownerID, ids); err != nil {
			return err
		}
		result = DeleteResult{DeletedIDs: ids, ParentID: task.ParentID}
		return nil
	})
	if err != nil {
		return nil, s.fail("delete task", err)
	}

	s.log.Debug("deleted subtree", "task", id, "count", len(result.DeletedIDs))
	return &result, nil
}

// GenerateSubtasks asks the suggester for candidate subtasks. The task's
// generation counter only moves after a successful generation, and it is
// persisted even if the caller goes away in the meantime.
func (s *TaskService) GenerateSubtasks(ctx context.Context, ownerID, id uuid.UUID) (*SuggestionResult, error) {
	task, err := s.owned(ctx, s.repo.GetByID, ownerID, id)
	if err != nil {
		return nil, s.fail("generate subtasks", err)
	}
	f, err := s.forest(ctx, s.repo, ownerID)
	if err != nil {
		return nil, s.fail("generate subtasks", err)
	}

	result := &SuggestionResult{
		TaskID:          id,
		Candidates:      []string{},
		GenerationsLeft: throttle.Remaining(task),
		SlotsLeft:       slotsLeft(f, id),
	}

	verdict, err := throttle.Check(f, id)
	if err != nil {
		return nil, s.fail("generate subtasks", err)
	}
	if verdict != throttle.Allowed {
		result.Rejection = verdict
		result.ManualEntry = verdict.Manual()
		result.Message = verdict.Message()
		return result, nil
	}

	if s.suggester == nil {
		result.ManualEntry = true
		result.Message = manualEntryMessage
		return result, nil
	}

	candidates, err := s.suggester.Suggest(ctx, task.Title, task.Description)
	if err != nil {
		s.log.Warn("subtask generation failed", "task", id, "err", err)
		result.ManualEntry = true
		result.Message = manualEntryMessage
		return result, nil
	}

	ok, err := s.repo.IncrementGeneration(context.WithoutCancel(ctx), ownerID, id, throttle.MaxGenerations)
	if err != nil {
		return nil, s.fail("record generation", err)
	}
	if !ok {
		// Либо квоту забрал параллельный запрос, либо задачу удалили
		if _, err := s.repo.GetByID(context.WithoutCancel(ctx), id); errors.Is(err, repository.ErrTaskNotFound) {
			return nil, ErrNotFound
		}
		return nil, ErrGenerationExhausted
	}
	throttle.Record(task)

	if len(candidates) > result.SlotsLeft {
		candidates = candidates[:result.SlotsLeft]
	}
	result.Candidates = candidates
	result.GenerationsLeft = throttle.Remaining(task)
	return result, nil
}

// AcceptSuggestion stores a suggested title as a new subtask of parentID.
func (s *TaskService) AcceptSuggestion(ctx context.Context, ownerID, parentID uuid.UUID, title string) (*model.Task, error) {
	return s.CreateTask(ctx, ownerID, CreateTaskInput{Title: title, ParentID: &parentID})
}

type lookupFunc func(ctx context.Context, id uuid.UUID) (*model.Task, error)

// owned loads a task and checks that ownerID may touch it.
func (s *TaskService) owned(ctx context.Context, get lookupFunc, ownerID, id uuid.UUID) (*model.Task, error) {
	task, err := get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrTaskNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if task.OwnerID != ownerID {
		return nil, ErrForbidden
	}
	return task, nil
}

func (s *TaskService) forest(ctx context.Context, repo repository.TaskRepositoryInterface, ownerID uuid.UUID) (*hierarchy.Forest, error) {
	tasks, err := repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return hierarchy.Build(tasks), nil
}

// fail passes domain errors through and turns anything else into ErrStorage.
func (s *TaskService) fail(op string, err error) error {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrForbidden),
		errors.Is(err, ErrDepthExceeded),
		errors.Is(err, ErrChildLimitExceeded),
		errors.Is(err, ErrGenerationExhausted),
		errors.Is(err, ErrStorage):
		return err
	case errors.Is(err, repository.ErrTaskNotFound):
		return ErrNotFound
	}
	s.log.Error("storage failure", "op", op, "err", err)
	return storageError(op, err)
}

func slotsLeft(f *hierarchy.Forest, id uuid.UUID) int {
	if left := hierarchy.MaxChildrenPerGeneration - f.ChildCount(id); left > 0 {
		return left
	}
	return 0
}

func validateTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", invalid("title", "title is required")
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return "", invalid("title", "title is too long")
	}
	return title, nil
}

func validateDescription(description string) error {
	if utf8.RuneCountInString(description) > MaxDescriptionLength {
		return invalid("description", "description is too long")
	}
	return nil
}
