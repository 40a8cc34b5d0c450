package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"todotree/internal/model"
)

// TaskRepositoryInterface is the persistence contract of the task service.
// Implementations must scope writes by owner.
type TaskRepositoryInterface interface {
	Create(ctx context.Context, task *model.Task) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Task, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Task, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]model.Task, error)
	ListChildren(ctx context.Context, parentID uuid.UUID) ([]model.Task, error)
	Update(ctx context.Context, ownerID, id uuid.UUID, patch model.TaskPatch) (*model.Task, error)
	DeleteByIDs(ctx context.Context, ownerID uuid.UUID, ids []uuid.UUID) (int64, error)
	IncrementGeneration(ctx context.Context, ownerID, id uuid.UUID, limit int) (bool, error)
	Transaction(ctx context.Context, fn func(repo TaskRepositoryInterface) error) error
}

var _ TaskRepositoryInterface = (*TaskRepository)(nil)

type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// Create adds a new task to the database
func (r *TaskRepository) Create(ctx context.Context, task *model.Task) error {
	return r.db.WithContext(ctx).Create(task).Error
}

// GetByID retrieves a task by its ID
func (r *TaskRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Task, error) {
	return r.first(r.db.WithContext(ctx), id)
}

// GetByIDForUpdate retrieves a task and locks its row until the surrounding
// transaction ends. Outside a transaction it behaves like GetByID.
func (r *TaskRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Task, error) {
	return r.first(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *TaskRepository) first(db *gorm.DB, id uuid.UUID) (*model.Task, error) {
	var task model.Task
	result := db.First(&task, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, result.Error
	}
	return &task, nil
}

// ListByOwner retrieves every task of a user, oldest first
func (r *TaskRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]model.Task, error) {
	var tasks []model.Task
	result := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).Order("created_at").Find(&tasks)
	if result.Error != nil {
		return nil, result.Error
	}
	return tasks, nil
}

// ListChildren retrieves the direct subtasks of a task in creation order
func (r *TaskRepository) ListChildren(ctx context.Context, parentID uuid.UUID) ([]model.Task, error) {
	var tasks []model.Task
	result := r.db.WithContext(ctx).Where("parent_id = ?", parentID).Order("created_at").Find(&tasks)
	if result.Error != nil {
		return nil, result.Error
	}
	return tasks, nil
}

// Update applies a partial update and returns the stored task
func (r *TaskRepository) Update(ctx context.Context, ownerID, id uuid.UUID, patch model.TaskPatch) (*model.Task, error) {
	cols := patch.Columns()
	cols["updated_at"] = time.Now()

	result := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("id = ? AND owner_id = ?", id, ownerID).
		Updates(cols)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrTaskNotFound
	}
	return r.GetByID(ctx, id)
}

// DeleteByIDs removes the given tasks of one owner
func (r *TaskRepository) DeleteByIDs(ctx context.Context, ownerID uuid.UUID, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).
		Where("owner_id = ? AND id IN ?", ownerID, ids).
		Delete(&model.Task{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// IncrementGeneration bumps generation_count while it is below limit. It
// reports false when the quota was already used up.
func (r *TaskRepository) IncrementGeneration(ctx context.Context, ownerID, id uuid.UUID, limit int) (bool, error) {
	result := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("id = ? AND owner_id = ? AND generation_count < ?", id, ownerID, limit).
		Updates(map[string]any{
			"generation_count": gorm.Expr("generation_count + 1"),
			"updated_at":       time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// Transaction runs fn against a repository bound to a single database transaction
func (r *TaskRepository) Transaction(ctx context.Context, fn func(repo TaskRepositoryInterface) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&TaskRepository{db: tx})
	})
}
