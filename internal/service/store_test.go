package service_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"todotree/internal/model"
	"todotree/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// memStore is an in-memory TaskRepositoryInterface. Transactions snapshot
// the table and restore it when fn fails.
type memStore struct {
	mu       sync.Mutex
	txMu     sync.Mutex
	tasks    map[uuid.UUID]model.Task
	clock    time.Time
	listErr  error
	childErr error
}

var _ repository.TaskRepositoryInterface = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{
		tasks: make(map[uuid.UUID]model.Task),
		clock: time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC),
	}
}

func (m *memStore) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

// put inserts a task directly, bypassing the service.
func (m *memStore) put(t model.Task) model.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	t.CreatedAt = m.tick()
	t.UpdatedAt = t.CreatedAt
	m.tasks[t.ID] = t
	return t
}

func (m *memStore) get(id uuid.UUID) (model.Task, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	return t, ok
}

// remove deletes a task directly, bypassing the service.
func (m *memStore) remove(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tasks, id)
}

func (m *memStore) Create(ctx context.Context, task *model.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	task.CreatedAt = m.tick()
	task.UpdatedAt = task.CreatedAt
	m.tasks[task.ID] = *task
	return nil
}

func (m *memStore) GetByID(ctx context.Context, id uuid.UUID) (*model.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, repository.ErrTaskNotFound
	}
	return &t, nil
}

func (m *memStore) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Task, error) {
	return m.GetByID(ctx, id)
}

func (m *memStore) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]model.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []model.Task
	for _, t := range m.tasks {
		if t.OwnerID == ownerID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *memStore) ListChildren(ctx context.Context, parentID uuid.UUID) ([]model.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.childErr != nil {
		return nil, m.childErr
	}
	var out []model.Task
	for _, t := range m.tasks {
		if t.ParentID != nil && *t.ParentID == parentID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *memStore) Update(ctx context.Context, ownerID, id uuid.UUID, patch model.TaskPatch) (*model.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok || t.OwnerID != ownerID {
		return nil, repository.ErrTaskNotFound
	}
	patch.Apply(&t)
	t.UpdatedAt = m.tick()
	m.tasks[id] = t
	return &t, nil
}

func (m *memStore) DeleteByIDs(ctx context.Context, ownerID uuid.UUID, ids []uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, id := range ids {
		if t, ok := m.tasks[id]; ok && t.OwnerID == ownerID {
			delete(m.tasks, id)
			n++
		}
	}
	return n, nil
}

func (m *memStore) IncrementGeneration(ctx context.Context, ownerID, id uuid.UUID, limit int) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok || t.OwnerID != ownerID || t.GenerationCount >= limit {
		return false, nil
	}
	t.GenerationCount++
	m.tasks[id] = t
	return true, nil
}

func (m *memStore) Transaction(ctx context.Context, fn func(repo repository.TaskRepositoryInterface) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	snapshot := make(map[uuid.UUID]model.Task, len(m.tasks))
	for k, v := range m.tasks {
		snapshot[k] = v
	}
	m.mu.Unlock()

	if err := fn(m); err != nil {
		m.mu.Lock()
		m.tasks = snapshot
		m.mu.Unlock()
		return err
	}
	return nil
}

// MockSuggester мок генератора подзадач
type MockSuggester struct {
	mock.Mock
}

func (m *MockSuggester) Suggest(ctx context.Context, title, description string) ([]string, error) {
	args := m.Called(ctx, title, description)
	items := args.Get(0)
	if items == nil {
		return nil, args.Error(1)
	}
	return items.([]string), args.Error(1)
}
