// Package migration maintains an in-memory graph of transformation
// functions between version pairs of an artifact and executes them
// along discovered paths. Edges live only for the lifetime of the Tool
// instance; they are never persisted.
package migration

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/zjrosen/modelver/internal/log"
	"github.com/zjrosen/modelver/internal/model"
)

// Func transforms an artifact descriptor from one version to the next.
// The returned descriptor replaces the input for subsequent steps.
type Func func(ctx context.Context, info model.Info, opts model.Options) (model.Info, error)

// NoPathError reports that no chain of registered migrations connects
// two versions of an artifact.
type NoPathError struct {
	ModelID string
	From    string
	To      string
}

func (e *NoPathError) Error() string {
	return fmt.Sprintf("no migration path found for model %s from %s to %s", e.ModelID, e.From, e.To)
}

type edge struct {
	to string
	fn Func
}

// Tool holds registered migration edges keyed by artifact. Not safe for
// concurrent use; the owning process serializes access.
type Tool struct {
	// edges[modelID][from] holds outgoing edges in registration order,
	// which fixes the tie-break among equal-length paths.
	edges map[string]map[string][]edge
}

// NewTool returns an empty migration graph.
func NewTool() *Tool {
	return &Tool{edges: make(map[string]map[string][]edge)}
}

// RegisterMigration stores a directed edge from one version of a model
// to another. Registering the same pair again appends another edge; the
// earliest registration wins during path discovery.
func (t *Tool) RegisterMigration(modelID, from, to string, fn Func) {
	byFrom, ok := t.edges[modelID]
	if !ok {
		byFrom = make(map[string][]edge)
		t.edges[modelID] = byFrom
	}
	byFrom[from] = append(byFrom[from], edge{to: to, fn: fn})
	log.Debug(log.CatMigrate, "migration registered", "model", modelID, "from", from, "to", to)
}

// CanMigrate reports whether any chain of registered edges connects the
// two versions.
func (t *Tool) CanMigrate(modelID, from, to string) bool {
	if t.directEdge(modelID, from, to) != nil {
		return true
	}
	_, ok := t.findPath(modelID, from, to)
	return ok
}

// Migrate transforms info from one version to another. A direct edge is
// invoked as-is; otherwise the shortest chain of edges is applied in
// sequence, threading the evolving descriptor through every step. Errors
// from migration functions propagate unmodified and nothing is rolled
// back.
func (t *Tool) Migrate(ctx context.Context, info model.Info, from, to string, opts model.Options) (model.Info, error) {
	runID := uuid.NewString()
	id := info.ID()

	if e := t.directEdge(id, from, to); e != nil {
		log.Info(log.CatMigrate, "migrating", "run", runID, "model", id, "from", from, "to", to, "steps", 1)
		return e.fn(ctx, info, opts)
	}

	path, ok := t.findPath(id, from, to)
	if !ok {
		return nil, &NoPathError{ModelID: id, From: from, To: to}
	}

	log.Info(log.CatMigrate, "migrating", "run", runID, "model", id, "from", from, "to", to, "steps", len(path))
	current := info
	step := from
	for _, e := range path {
		next, err := e.fn(ctx, current, opts)
		if err != nil {
			log.ErrorErr(log.CatMigrate, "migration step failed", err, "run", runID, "model", id, "from", step, "to", e.to)
			return nil, err
		}
		log.Debug(log.CatMigrate, "migration step complete", "run", runID, "from", step, "to", e.to)
		current = next
		step = e.to
	}
	return current, nil
}

func (t *Tool) directEdge(modelID, from, to string) *edge {
	for i, e := range t.edges[modelID][from] {
		if e.to == to {
			return &t.edges[modelID][from][i]
		}
	}
	return nil
}

// findPath runs a breadth-first search over the artifact's edges and
// returns the edges of the shortest path. The boolean distinguishes the
// zero-hop path, when from equals to, from no path at all. Ties among
// equal-length paths resolve to the earliest-registered edges.
func (t *Tool) findPath(modelID, from, to string) ([]edge, bool) {
	byFrom, ok := t.edges[modelID]
	if !ok {
		return nil, false
	}

	type hop struct {
		prev string
		via  edge
	}
	visited := map[string]hop{from: {}}
	queue := []string{from}
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		if node == to {
			var path []edge
			for node != from {
				h := visited[node]
				path = append([]edge{h.via}, path...)
				node = h.prev
			}
			return path, true
		}
		for _, e := range byFrom[node] {
			if _, seen := visited[e.to]; seen {
				continue
			}
			visited[e.to] = hop{prev: node, via: e}
			queue = append(queue, e.to)
		}
	}
	return nil, false
}
