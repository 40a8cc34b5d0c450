package graphstore

import (
	"context"
	"testing"
	"time"

	"todotree/internal/model"
	"todotree/internal/repository"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var recordKeys = []string{
	"id", "owner_id", "parent_id", "title", "description", "completed",
	"priority", "due_date", "generation_count", "created_at", "updated_at",
}

func record(values ...any) *neo4j.Record {
	return &neo4j.Record{Keys: recordKeys, Values: values}
}

func TestTaskFromRecord(t *testing.T) {
	id, owner, parent := uuid.New(), uuid.New(), uuid.New()
	created := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	due := created.Add(48 * time.Hour)

	task, err := taskFromRecord(record(
		id.String(), owner.String(), parent.String(), "Book flight", "window seat", true,
		int64(2), due, int64(1), created, created,
	))

	require.NoError(t, err)
	assert.Equal(t, id, task.ID)
	assert.Equal(t, owner, task.OwnerID)
	require.NotNil(t, task.ParentID)
	assert.Equal(t, parent, *task.ParentID)
	assert.Equal(t, "window seat", task.Description)
	assert.True(t, task.Completed)
	assert.Equal(t, model.PriorityHigh, task.Priority)
	require.NotNil(t, task.DueDate)
	assert.True(t, due.Equal(*task.DueDate))
	assert.Equal(t, 1, task.GenerationCount)
	assert.Equal(t, created, task.CreatedAt)
}

func TestTaskFromRecord_Root(t *testing.T) {
	task, err := taskFromRecord(record(
		uuid.NewString(), uuid.NewString(), nil, "Plan trip", "", false,
		int64(1), nil, int64(0), time.Now(), time.Now(),
	))

	require.NoError(t, err)
	assert.True(t, task.IsRoot())
	assert.Nil(t, task.DueDate)
	assert.Equal(t, model.PriorityNormal, task.Priority)
}

func TestTaskFromRecord_Malformed(t *testing.T) {
	_, err := taskFromRecord(record(
		"not-a-uuid", uuid.NewString(), nil, "x", "", false, int64(1), nil, int64(0), nil, nil,
	))
	assert.ErrorIs(t, err, errBadRecord)

	_, err = taskFromRecord(record(
		uuid.NewString(), nil, nil, "x", "", false, int64(1), nil, int64(0), nil, nil,
	))
	assert.ErrorIs(t, err, errBadRecord)
}

func TestPatchProps(t *testing.T) {
	title := "Renamed"
	urgent := model.PriorityUrgent
	due := time.Date(2026, 11, 1, 12, 0, 0, 0, time.FixedZone("MSK", 3*3600))

	props := patchProps(model.TaskPatch{Title: &title, Priority: &urgent, DueDate: &due})

	assert.Equal(t, "Renamed", props["title"])
	// Neo4j хранит целые как int64
	assert.Equal(t, int64(3), props["priority"])
	assert.Equal(t, time.UTC, props["due_date"].(time.Time).Location())

	cleared := patchProps(model.TaskPatch{ClearDueDate: true})
	v, ok := cleared["due_date"]
	assert.True(t, ok)
	assert.Nil(t, v)
}

func taskRecord(id, owner uuid.UUID, generations int64) *neo4j.Record {
	now := time.Now().UTC()
	return record(id.String(), owner.String(), nil, "Plan trip", "", false, int64(1), nil, generations, now, now)
}

func TestTaskStore_GetByIDForUpdate_LocksNode(t *testing.T) {
	// Arrange
	id, owner := uuid.New(), uuid.New()
	store, runner := txStore(&fakeResult{records: []*neo4j.Record{taskRecord(id, owner, 0)}})

	// Act
	task, err := store.GetByIDForUpdate(context.Background(), id)

	// Assert: без записи Neo4j не берет блокировку
	require.NoError(t, err)
	assert.Equal(t, id, task.ID)
	require.Len(t, runner.statements, 1)
	assert.Contains(t, runner.statements[0].cypher, "SET t._lock = true REMOVE t._lock")
	assert.Equal(t, id.String(), runner.statements[0].params["id"])
}

func TestTaskStore_GetByIDForUpdate_NotFound(t *testing.T) {
	store, _ := txStore()

	_, err := store.GetByIDForUpdate(context.Background(), uuid.New())

	assert.ErrorIs(t, err, repository.ErrTaskNotFound)
}

func TestTaskStore_GetByID_ReadOnly(t *testing.T) {
	id := uuid.New()
	store, runner := txStore(&fakeResult{records: []*neo4j.Record{taskRecord(id, uuid.New(), 0)}})

	_, err := store.GetByID(context.Background(), id)

	require.NoError(t, err)
	require.Len(t, runner.statements, 1)
	assert.NotContains(t, runner.statements[0].cypher, "SET")
}

func TestTaskStore_Create(t *testing.T) {
	owner, parent := uuid.New(), uuid.New()

	t.Run("root", func(t *testing.T) {
		store, runner := txStore()
		task := &model.Task{OwnerID: owner, Title: "Plan trip", Priority: model.PriorityHigh}

		require.NoError(t, store.Create(context.Background(), task))

		assert.NotEqual(t, uuid.Nil, task.ID)
		require.Len(t, runner.statements, 1)
		stmt := runner.statements[0]
		assert.Contains(t, stmt.cypher, "CREATE (t:Task")
		assert.Equal(t, owner.String(), stmt.params["owner_id"])
		assert.Equal(t, int64(2), stmt.params["priority"])
		assert.Nil(t, stmt.params["due_date"])
	})

	t.Run("subtask", func(t *testing.T) {
		edge := &fakeResult{records: []*neo4j.Record{{Keys: []string{"parent.id"}, Values: []any{parent.String()}}}}
		store, runner := txStore(&fakeResult{}, edge)

		err := store.Create(context.Background(), &model.Task{OwnerID: owner, Title: "Book flight", ParentID: &parent})

		require.NoError(t, err)
		require.Len(t, runner.statements, 2)
		assert.Contains(t, runner.statements[1].cypher, "CREATE (child)-[:HAS_PARENT]->(parent)")
		assert.Equal(t, parent.String(), runner.statements[1].params["parentID"])
	})

	t.Run("missing parent", func(t *testing.T) {
		store, _ := txStore(&fakeResult{}, &fakeResult{})

		err := store.Create(context.Background(), &model.Task{OwnerID: owner, Title: "Book flight", ParentID: &parent})

		assert.ErrorIs(t, err, repository.ErrTaskNotFound)
	})
}

func TestTaskStore_ListByOwner(t *testing.T) {
	owner := uuid.New()
	store, runner := txStore(&fakeResult{records: []*neo4j.Record{
		taskRecord(uuid.New(), owner, 0),
		taskRecord(uuid.New(), owner, 1),
	}})

	tasks, err := store.ListByOwner(context.Background(), owner)

	require.NoError(t, err)
	assert.Len(t, tasks, 2)
	assert.Contains(t, runner.statements[0].cypher, "MATCH (t:Task {owner_id: $owner})")
	assert.Contains(t, runner.statements[0].cypher, "ORDER BY t.created_at")
	assert.Equal(t, owner.String(), runner.statements[0].params["owner"])
}

func TestTaskStore_ListChildren(t *testing.T) {
	parent := uuid.New()
	store, runner := txStore()

	tasks, err := store.ListChildren(context.Background(), parent)

	require.NoError(t, err)
	assert.Empty(t, tasks)
	assert.Contains(t, runner.statements[0].cypher, "(t:Task)-[:HAS_PARENT]->(p:Task {id: $parent})")
}

func TestTaskStore_Update(t *testing.T) {
	id, owner := uuid.New(), uuid.New()
	title := "Plan summer trip"

	t.Run("scoped to owner", func(t *testing.T) {
		store, runner := txStore(&fakeResult{records: []*neo4j.Record{taskRecord(id, owner, 0)}})

		_, err := store.Update(context.Background(), owner, id, model.TaskPatch{Title: &title})

		require.NoError(t, err)
		stmt := runner.statements[0]
		assert.Contains(t, stmt.cypher, "MATCH (t:Task {id: $id, owner_id: $owner}) SET t += $props")
		props := stmt.params["props"].(map[string]any)
		assert.Equal(t, title, props["title"])
		assert.Contains(t, props, "updated_at")
	})

	t.Run("not found", func(t *testing.T) {
		store, _ := txStore()

		_, err := store.Update(context.Background(), uuid.New(), id, model.TaskPatch{Title: &title})

		assert.ErrorIs(t, err, repository.ErrTaskNotFound)
	})
}

func TestTaskStore_DeleteByIDs(t *testing.T) {
	owner := uuid.New()
	ids := []uuid.UUID{uuid.New(), uuid.New()}
	store, runner := txStore(&fakeResult{}, &fakeResult{deleted: 3})

	n, err := store.DeleteByIDs(context.Background(), owner, ids)

	require.NoError(t, err)
	// Удаляется и подзадача, добавленная после чтения дерева
	assert.Equal(t, int64(3), n)
	require.Len(t, runner.statements, 2)
	assert.Contains(t, runner.statements[0].cypher, "SET t._lock = true")
	assert.Contains(t, runner.statements[1].cypher, "t.owner_id = $owner AND t.id IN $ids")
	assert.Contains(t, runner.statements[1].cypher, "(d:Task)-[:HAS_PARENT*]->(t)")
	assert.Contains(t, runner.statements[1].cypher, "DETACH DELETE n")
	assert.Equal(t, []string{ids[0].String(), ids[1].String()}, runner.statements[1].params["ids"])
}

func TestTaskStore_DeleteByIDs_Empty(t *testing.T) {
	store, runner := txStore()

	n, err := store.DeleteByIDs(context.Background(), uuid.New(), nil)

	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, runner.statements)
}

func TestTaskStore_IncrementGeneration(t *testing.T) {
	id, owner := uuid.New(), uuid.New()

	t.Run("below limit", func(t *testing.T) {
		store, runner := txStore(&fakeResult{records: []*neo4j.Record{{Keys: []string{"t.id"}, Values: []any{id.String()}}}})

		ok, err := store.IncrementGeneration(context.Background(), owner, id, 3)

		require.NoError(t, err)
		assert.True(t, ok)
		stmt := runner.statements[0]
		assert.Contains(t, stmt.cypher, "{id: $id, owner_id: $owner}")
		assert.Contains(t, stmt.cypher, "WHERE t.generation_count < $limit")
		assert.Equal(t, int64(3), stmt.params["limit"])
	})

	t.Run("limit reached", func(t *testing.T) {
		store, _ := txStore()

		ok, err := store.IncrementGeneration(context.Background(), owner, id, 3)

		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestTaskStore_TransactionReusesOpenTx(t *testing.T) {
	store, runner := txStore()

	err := store.Transaction(context.Background(), func(repo repository.TaskRepositoryInterface) error {
		_, err := repo.ListChildren(context.Background(), uuid.New())
		return err
	})

	require.NoError(t, err)
	assert.Len(t, runner.statements, 1)
}
