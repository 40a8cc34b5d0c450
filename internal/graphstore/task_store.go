// Package graphstore keeps tasks in Neo4j, linking each subtask to its parent
// with a HAS_PARENT relationship.
package graphstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"todotree/internal/model"
	"todotree/internal/repository"
)

const taskReturn = "RETURN t.id AS id, t.owner_id AS owner_id, p.id AS parent_id, t.title AS title, " +
	"t.description AS description, t.completed AS completed, t.priority AS priority, " +
	"t.due_date AS due_date, t.generation_count AS generation_count, " +
	"t.created_at AS created_at, t.updated_at AS updated_at"

// runner is satisfied by neo4j.ManagedTransaction.
type runner interface {
	Run(ctx context.Context, cypher string, params map[string]any) (neo4j.ResultWithContext, error)
}

// TaskStore implements repository.TaskRepositoryInterface over Neo4j.
type TaskStore struct {
	driver neo4j.DriverWithContext
	tx     runner
}

var _ repository.TaskRepositoryInterface = (*TaskStore)(nil)

func NewTaskStore(driver neo4j.DriverWithContext) *TaskStore {
	return &TaskStore{driver: driver}
}

// Connect opens a driver and checks that the server is reachable.
func Connect(ctx context.Context, uri, user, password string) (neo4j.DriverWithContext, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("verify neo4j connectivity: %w", err)
	}
	return driver, nil
}

// EnsureSchema creates the uniqueness constraint and owner index.
func EnsureSchema(ctx context.Context, driver neo4j.DriverWithContext) error {
	session := driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	for _, stmt := range []string{
		"CREATE CONSTRAINT task_id_unique IF NOT EXISTS FOR (t:Task) REQUIRE t.id IS UNIQUE",
		"CREATE INDEX task_owner IF NOT EXISTS FOR (t:Task) ON (t.owner_id)",
	} {
		if _, err := session.Run(ctx, stmt, nil); err != nil {
			return err
		}
	}
	return nil
}

// read runs work in the current transaction, or in a read transaction of its own.
func (s *TaskStore) read(ctx context.Context, work func(r runner) (any, error)) (any, error) {
	if s.tx != nil {
		return work(s.tx)
	}
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)
	return session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return work(tx)
	})
}

func (s *TaskStore) write(ctx context.Context, work func(r runner) (any, error)) (any, error) {
	if s.tx != nil {
		return work(s.tx)
	}
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)
	return session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return work(tx)
	})
}

// Create stores the task node and, for subtasks, its HAS_PARENT edge.
func (s *TaskStore) Create(ctx context.Context, task *model.Task) error {
	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}
	now := time.Now().UTC()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	task.UpdatedAt = now

	_, err := s.write(ctx, func(r runner) (any, error) {
		params := map[string]any{
			"id":               task.ID.String(),
			"owner_id":         task.OwnerID.String(),
			"title":            task.Title,
			"description":      task.Description,
			"completed":        task.Completed,
			"priority":         int64(task.Priority),
			"due_date":         timeParam(task.DueDate),
			"generation_count": int64(task.GenerationCount),
			"created_at":       task.CreatedAt,
			"updated_at":       task.UpdatedAt,
		}
		res, err := r.Run(ctx,
			"CREATE (t:Task {id: $id, owner_id: $owner_id, title: $title, description: $description, "+
				"completed: $completed, priority: $priority, due_date: $due_date, "+
				"generation_count: $generation_count, created_at: $created_at, updated_at: $updated_at})",
			params,
		)
		if err != nil {
			return nil, err
		}
		if _, err := res.Consume(ctx); err != nil {
			return nil, err
		}

		if task.ParentID == nil {
			return nil, nil
		}
		res, err = r.Run(ctx,
			"MATCH (child:Task {id: $childID}), (parent:Task {id: $parentID}) "+
				"CREATE (child)-[:HAS_PARENT]->(parent) RETURN parent.id",
			map[string]any{"childID": task.ID.String(), "parentID": task.ParentID.String()},
		)
		if err != nil {
			return nil, err
		}
		if !res.Next(ctx) {
			if err := res.Err(); err != nil {
				return nil, err
			}
			return nil, repository.ErrTaskNotFound
		}
		return nil, nil
	})
	return err
}

// GetByID retrieves a task by its ID
func (s *TaskStore) GetByID(ctx context.Context, id uuid.UUID) (*model.Task, error) {
	result, err := s.read(ctx, func(r runner) (any, error) {
		return collect(ctx, r,
			"MATCH (t:Task {id: $id}) OPTIONAL MATCH (t)-[:HAS_PARENT]->(p:Task) "+taskReturn,
			map[string]any{"id": id.String()},
		)
	})
	if err != nil {
		return nil, err
	}
	tasks := result.([]model.Task)
	if len(tasks) == 0 {
		return nil, repository.ErrTaskNotFound
	}
	return &tasks[0], nil
}

// GetByIDForUpdate retrieves a task and holds a write lock on its node until
// the surrounding transaction ends. Neo4j only locks on write, so the
// statement sets and removes a scratch property.
func (s *TaskStore) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Task, error) {
	result, err := s.write(ctx, func(r runner) (any, error) {
		return collect(ctx, r,
			"MATCH (t:Task {id: $id}) SET t._lock = true REMOVE t._lock "+
				"WITH t OPTIONAL MATCH (t)-[:HAS_PARENT]->(p:Task) "+taskReturn,
			map[string]any{"id": id.String()},
		)
	})
	if err != nil {
		return nil, err
	}
	tasks := result.([]model.Task)
	if len(tasks) == 0 {
		return nil, repository.ErrTaskNotFound
	}
	return &tasks[0], nil
}

// ListByOwner retrieves every task of a user, oldest first
func (s *TaskStore) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]model.Task, error) {
	result, err := s.read(ctx, func(r runner) (any, error) {
		return collect(ctx, r,
			"MATCH (t:Task {owner_id: $owner}) OPTIONAL MATCH (t)-[:HAS_PARENT]->(p:Task) "+
				taskReturn+" ORDER BY t.created_at",
			map[string]any{"owner": ownerID.String()},
		)
	})
	if err != nil {
		return nil, err
	}
	return result.([]model.Task), nil
}

// ListChildren retrieves the direct subtasks of a task in creation order
func (s *TaskStore) ListChildren(ctx context.Context, parentID uuid.UUID) ([]model.Task, error) {
	result, err := s.read(ctx, func(r runner) (any, error) {
		return collect(ctx, r,
			"MATCH (t:Task)-[:HAS_PARENT]->(p:Task {id: $parent}) "+taskReturn+" ORDER BY t.created_at",
			map[string]any{"parent": parentID.String()},
		)
	})
	if err != nil {
		return nil, err
	}
	return result.([]model.Task), nil
}

// Update applies a partial update and returns the stored task
func (s *TaskStore) Update(ctx context.Context, ownerID, id uuid.UUID, patch model.TaskPatch) (*model.Task, error) {
	props := patchProps(patch)
	props["updated_at"] = time.Now().UTC()

	result, err := s.write(ctx, func(r runner) (any, error) {
		return collect(ctx, r,
			"MATCH (t:Task {id: $id, owner_id: $owner}) SET t += $props "+
				"WITH t OPTIONAL MATCH (t)-[:HAS_PARENT]->(p:Task) "+taskReturn,
			map[string]any{"id": id.String(), "owner": ownerID.String(), "props": props},
		)
	})
	if err != nil {
		return nil, err
	}
	tasks := result.([]model.Task)
	if len(tasks) == 0 {
		return nil, repository.ErrTaskNotFound
	}
	return &tasks[0], nil
}

// DeleteByIDs removes the given tasks of one owner and, like the ON DELETE
// CASCADE of the postgres schema, every task below them. The nodes are locked
// first so a subtask attached after the caller read the tree is still removed
// instead of losing its HAS_PARENT edge.
func (s *TaskStore) DeleteByIDs(ctx context.Context, ownerID uuid.UUID, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = id.String()
	}

	result, err := s.write(ctx, func(r runner) (any, error) {
		params := map[string]any{"owner": ownerID.String(), "ids": keys}
		res, err := r.Run(ctx,
			"MATCH (t:Task) WHERE t.owner_id = $owner AND t.id IN $ids SET t._lock = true REMOVE t._lock",
			params,
		)
		if err != nil {
			return nil, err
		}
		if _, err := res.Consume(ctx); err != nil {
			return nil, err
		}

		res, err = r.Run(ctx,
			"MATCH (t:Task) WHERE t.owner_id = $owner AND t.id IN $ids "+
				"OPTIONAL MATCH (d:Task)-[:HAS_PARENT*]->(t) "+
				"WITH collect(t) + collect(d) AS doomed UNWIND doomed AS n "+
				"WITH DISTINCT n DETACH DELETE n",
			params,
		)
		if err != nil {
			return nil, err
		}
		summary, err := res.Consume(ctx)
		if err != nil {
			return nil, err
		}
		return int64(summary.Counters().NodesDeleted()), nil
	})
	if err != nil {
		return 0, err
	}
	return result.(int64), nil
}

// IncrementGeneration bumps generation_count while it is below limit
func (s *TaskStore) IncrementGeneration(ctx context.Context, ownerID, id uuid.UUID, limit int) (bool, error) {
	result, err := s.write(ctx, func(r runner) (any, error) {
		res, err := r.Run(ctx,
			"MATCH (t:Task {id: $id, owner_id: $owner}) WHERE t.generation_count < $limit "+
				"SET t.generation_count = t.generation_count + 1, t.updated_at = $now RETURN t.id",
			map[string]any{
				"id":    id.String(),
				"owner": ownerID.String(),
				"limit": int64(limit),
				"now":   time.Now().UTC(),
			},
		)
		if err != nil {
			return nil, err
		}
		if res.Next(ctx) {
			return true, nil
		}
		return false, res.Err()
	})
	if err != nil {
		return false, err
	}
	return result.(bool), nil
}

// Transaction runs fn inside one managed write transaction. The driver may
// replay fn on transient failures, so fn must not have side effects outside
// the store.
func (s *TaskStore) Transaction(ctx context.Context, fn func(repo repository.TaskRepositoryInterface) error) error {
	if s.tx != nil {
		return fn(s)
	}
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return nil, fn(&TaskStore{driver: s.driver, tx: tx})
	})
	return err
}

func collect(ctx context.Context, r runner, cypher string, params map[string]any) ([]model.Task, error) {
	res, err := r.Run(ctx, cypher, params)
	if err != nil {
		return nil, err
	}
	var tasks []model.Task
	for res.Next(ctx) {
		task, err := taskFromRecord(res.Record())
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	if err := res.Err(); err != nil {
		return nil, err
	}
	return tasks, nil
}

func patchProps(p model.TaskPatch) map[string]any {
	props := make(map[string]any)
	for k, v := range p.Columns() {
		switch val := v.(type) {
		case int:
			props[k] = int64(val)
		case time.Time:
			props[k] = val.UTC()
		default:
			props[k] = v
		}
	}
	return props
}

func timeParam(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

var errBadRecord = errors.New("malformed task record")

func taskFromRecord(rec *neo4j.Record) (model.Task, error) {
	var task model.Task

	id, err := uuidValue(rec, "id")
	if err != nil {
		return task, err
	}
	owner, err := uuidValue(rec, "owner_id")
	if err != nil {
		return task, err
	}
	task.ID = id
	task.OwnerID = owner

	if raw, ok := rec.Get("parent_id"); ok && raw != nil {
		parent, err := uuidValue(rec, "parent_id")
		if err != nil {
			return task, err
		}
		task.ParentID = &parent
	}

	task.Title, _ = stringValue(rec, "title")
	task.Description, _ = stringValue(rec, "description")
	if v, ok := rec.Get("completed"); ok {
		task.Completed, _ = v.(bool)
	}
	task.Priority = model.Priority(intValue(rec, "priority"))
	task.GenerationCount = int(intValue(rec, "generation_count"))
	if due, ok := timeValue(rec, "due_date"); ok {
		task.DueDate = &due
	}
	task.CreatedAt, _ = timeValue(rec, "created_at")
	task.UpdatedAt, _ = timeValue(rec, "updated_at")
	return task, nil
}

func stringValue(rec *neo4j.Record, key string) (string, bool) {
	v, ok := rec.Get(key)
	if !ok || v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func uuidValue(rec *neo4j.Record, key string) (uuid.UUID, error) {
	s, ok := stringValue(rec, key)
	if !ok {
		return uuid.Nil, fmt.Errorf("%w: missing %s", errBadRecord, key)
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s: %v", errBadRecord, key, err)
	}
	return id, nil
}

func intValue(rec *neo4j.Record, key string) int64 {
	v, _ := rec.Get(key)
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}

func timeValue(rec *neo4j.Record, key string) (time.Time, bool) {
	v, _ := rec.Get(key)
	switch t := v.(type) {
	case time.Time:
		return t, true
	case neo4j.LocalDateTime:
		return t.Time(), true
	case neo4j.Date:
		return t.Time(), true
	default:
		return time.Time{}, false
	}
}
