package graphstore

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

type statement struct {
	cypher string
	params map[string]any
}

// fakeRunner записывает выполненные запросы и по очереди отдает заготовленные результаты
type fakeRunner struct {
	statements []statement
	results    []*fakeResult
}

func (f *fakeRunner) Run(_ context.Context, cypher string, params map[string]any) (neo4j.ResultWithContext, error) {
	f.statements = append(f.statements, statement{cypher: cypher, params: params})
	if len(f.results) == 0 {
		return &fakeResult{}, nil
	}
	res := f.results[0]
	f.results = f.results[1:]
	return res, nil
}

// fakeResult implements only what the store reads; the embedded interface
// supplies the rest.
type fakeResult struct {
	neo4j.ResultWithContext
	records []*neo4j.Record
	pos     int
	deleted int
}

func (r *fakeResult) Next(context.Context) bool {
	if r.pos < len(r.records) {
		r.pos++
		return true
	}
	return false
}

func (r *fakeResult) Record() *neo4j.Record { return r.records[r.pos-1] }

func (r *fakeResult) Err() error { return nil }

func (r *fakeResult) Consume(context.Context) (neo4j.ResultSummary, error) {
	return fakeSummary{deleted: r.deleted}, nil
}

type fakeSummary struct {
	neo4j.ResultSummary
	deleted int
}

func (s fakeSummary) Counters() neo4j.Counters { return fakeCounters{deleted: s.deleted} }

type fakeCounters struct {
	neo4j.Counters
	deleted int
}

func (c fakeCounters) NodesDeleted() int { return c.deleted }

func txStore(results ...*fakeResult) (*TaskStore, *fakeRunner) {
	r := &fakeRunner{results: results}
	return &TaskStore{tx: r}, r
}
