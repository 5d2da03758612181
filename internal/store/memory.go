package store

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	pkgerrors "github.com/lucemdev/fundtrace/internal/pkg/errors"
)

// Memory is an in-memory Client used by unit tests and local development.
// It implements the operator semantics of the contract faithfully: per-call
// atomicity under one mutex, all-or-nothing batches, and an ordered change
// feed with before/after snapshots.
type Memory struct {
	mu   sync.Mutex
	data map[string]map[string]Document
	subs []*subscriber

	// failNextCommit makes the next batch commit fail; tests use it to
	// exercise partial-failure behavior.
	failNextCommit error
}

type subscriber struct {
	ctx context.Context
	ch  chan Change
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string]map[string]Document)}
}

// FailNextCommit arms a one-shot commit failure.
func (m *Memory) FailNextCommit(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNextCommit = err
}

func (m *Memory) Get(_ context.Context, collection, id string) (Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.data[collection][id]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", collection, id, pkgerrors.ErrNotFound)
	}
	return deepCopy(doc), nil
}

func (m *Memory) QueryEq(_ context.Context, collection, field string, value any) ([]Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Snapshot
	for id, doc := range m.data[collection] {
		got, ok := getPath(doc, field)
		if ok && equalValue(got, value) {
			out = append(out, Snapshot{ID: id, Data: deepCopy(doc)})
		}
	}
	return out, nil
}

func (m *Memory) Set(_ context.Context, collection, id string, doc Document) error {
	m.mu.Lock()
	changes := m.applySet(collection, id, doc)
	m.mu.Unlock()
	m.emit(changes)
	return nil
}

func (m *Memory) Update(_ context.Context, collection, id string, update Update) error {
	m.mu.Lock()
	if _, ok := m.data[collection][id]; !ok {
		m.mu.Unlock()
		return fmt.Errorf("%s/%s: %w", collection, id, pkgerrors.ErrNotFound)
	}
	changes := m.applyUpdate(collection, id, update)
	m.mu.Unlock()
	m.emit(changes)
	return nil
}

func (m *Memory) Delete(_ context.Context, collection, id string) error {
	m.mu.Lock()
	changes := m.applyDelete(collection, id)
	m.mu.Unlock()
	m.emit(changes)
	return nil
}

func (m *Memory) Batch() WriteBatch {
	return &memoryBatch{store: m}
}

func (m *Memory) Watch(ctx context.Context) <-chan Change {
	sub := &subscriber{ctx: ctx, ch: make(chan Change, 256)}
	m.mu.Lock()
	m.subs = append(m.subs, sub)
	m.mu.Unlock()
	return sub.ch
}

func (m *Memory) Close(context.Context) error { return nil }

type memoryBatch struct {
	store     *Memory
	mutations []Mutation
}

func (b *memoryBatch) Set(collection, id string, doc Document) {
	b.Add(SetMutation(collection, id, doc))
}

func (b *memoryBatch) Update(collection, id string, update Update) {
	b.Add(UpdateMutation(collection, id, update))
}

func (b *memoryBatch) Delete(collection, id string) {
	b.Add(DeleteMutation(collection, id))
}

func (b *memoryBatch) Add(m Mutation) {
	b.mutations = append(b.mutations, m)
}

func (b *memoryBatch) Len() int { return len(b.mutations) }

// Commit validates the whole batch, then applies it under one lock so
// readers observe it all-or-nothing.
func (b *memoryBatch) Commit(_ context.Context) error {
	if len(b.mutations) > MaxBatchWrites {
		return fmt.Errorf("%d writes: %w", len(b.mutations), pkgerrors.ErrBatchTooLarge)
	}
	m := b.store
	m.mu.Lock()
	if m.failNextCommit != nil {
		err := m.failNextCommit
		m.failNextCommit = nil
		m.mu.Unlock()
		return err
	}
	for _, mut := range b.mutations {
		if mut.Kind == MutationUpdate {
			if _, ok := m.data[mut.Collection][mut.ID]; !ok {
				m.mu.Unlock()
				return fmt.Errorf("%s/%s: %w", mut.Collection, mut.ID, pkgerrors.ErrNotFound)
			}
		}
	}
	var changes []Change
	for _, mut := range b.mutations {
		switch mut.Kind {
		case MutationSet:
			changes = append(changes, m.applySet(mut.Collection, mut.ID, mut.Doc)...)
		case MutationUpdate:
			changes = append(changes, m.applyUpdate(mut.Collection, mut.ID, mut.Update)...)
		case MutationDelete:
			changes = append(changes, m.applyDelete(mut.Collection, mut.ID)...)
		}
	}
	m.mu.Unlock()
	m.emit(changes)
	return nil
}

// applySet/applyUpdate/applyDelete run with m.mu held and return the change
// events to emit once the lock is released.

func (m *Memory) applySet(collection, id string, doc Document) []Change {
	col := m.data[collection]
	if col == nil {
		col = make(map[string]Document)
		m.data[collection] = col
	}
	before, existed := col[id]
	stored := deepCopy(doc)
	resolveTimestamps(stored, time.Now())
	col[id] = stored
	kind := ChangeCreate
	var beforeCopy Document
	if existed {
		kind = ChangeUpdate
		beforeCopy = deepCopy(before)
	}
	return []Change{{Kind: kind, Collection: collection, ID: id, Before: beforeCopy, After: deepCopy(stored)}}
}

func (m *Memory) applyUpdate(collection, id string, update Update) []Change {
	doc := m.data[collection][id]
	before := deepCopy(doc)
	now := time.Now()
	for path, value := range update {
		switch op := value.(type) {
		case IncrementOp:
			current, _ := getPath(doc, path)
			if n, ok := numValue(current); ok {
				setPath(doc, path, n+op.Delta)
			} else {
				setPath(doc, path, op.Delta)
			}
		case ArrayUnionOp:
			current, _ := getPath(doc, path)
			setPath(doc, path, arrayUnion(current, op.Values))
		case ArrayRemoveOp:
			current, _ := getPath(doc, path)
			setPath(doc, path, arrayRemove(current, op.Values))
		case DeleteFieldOp:
			deletePath(doc, path)
		case ServerTimestampOp:
			setPath(doc, path, now)
		default:
			setPath(doc, path, deepCopyValue(value))
		}
	}
	return []Change{{Kind: ChangeUpdate, Collection: collection, ID: id, Before: before, After: deepCopy(doc)}}
}

func (m *Memory) applyDelete(collection, id string) []Change {
	before, ok := m.data[collection][id]
	if !ok {
		return nil
	}
	delete(m.data[collection], id)
	return []Change{{Kind: ChangeDelete, Collection: collection, ID: id, Before: deepCopy(before)}}
}

func (m *Memory) emit(changes []Change) {
	if len(changes) == 0 {
		return
	}
	m.mu.Lock()
	subs := make([]*subscriber, len(m.subs))
	copy(subs, m.subs)
	m.mu.Unlock()
	for _, c := range changes {
		for _, sub := range subs {
			select {
			case <-sub.ctx.Done():
			case sub.ch <- c:
			}
		}
	}
}

// --- dotted-path helpers ---

func getPath(doc Document, path string) (any, bool) {
	parts := strings.Split(path, ".")
	cur := any(doc)
	for i, part := range parts {
		node, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		v, ok := node[part]
		if !ok {
			return nil, false
		}
		if i == len(parts)-1 {
			return v, true
		}
		cur = v
	}
	return nil, false
}

func setPath(doc Document, path string, value any) {
	parts := strings.Split(path, ".")
	node := doc
	for _, part := range parts[:len(parts)-1] {
		next, ok := node[part].(map[string]any)
		if !ok {
			next = make(map[string]any)
			node[part] = next
		}
		node = next
	}
	node[parts[len(parts)-1]] = value
}

func deletePath(doc Document, path string) {
	parts := strings.Split(path, ".")
	node := doc
	for _, part := range parts[:len(parts)-1] {
		next, ok := node[part].(map[string]any)
		if !ok {
			return
		}
		node = next
	}
	delete(node, parts[len(parts)-1])
}

func arrayUnion(current any, values []any) []any {
	out := toAnySlice(current)
	for _, v := range values {
		found := false
		for _, e := range out {
			if equalValue(e, v) {
				found = true
				break
			}
		}
		if !found {
			out = append(out, deepCopyValue(v))
		}
	}
	return out
}

func arrayRemove(current any, values []any) []any {
	existing := toAnySlice(current)
	out := make([]any, 0, len(existing))
	for _, e := range existing {
		removed := false
		for _, v := range values {
			if equalValue(e, v) {
				removed = true
				break
			}
		}
		if !removed {
			out = append(out, e)
		}
	}
	return out
}

func toAnySlice(v any) []any {
	switch s := v.(type) {
	case []any:
		out := make([]any, len(s))
		copy(out, s)
		return out
	case []string:
		out := make([]any, 0, len(s))
		for _, e := range s {
			out = append(out, e)
		}
		return out
	default:
		return nil
	}
}

func equalValue(a, b any) bool {
	if na, ok := numValue(a); ok {
		if nb, ok := numValue(b); ok {
			return na == nb
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}

func numValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func resolveTimestamps(doc Document, now time.Time) {
	for k, v := range doc {
		switch t := v.(type) {
		case ServerTimestampOp:
			doc[k] = now
		case map[string]any:
			resolveTimestamps(t, now)
		}
	}
}

func deepCopy(doc Document) Document {
	if doc == nil {
		return nil
	}
	out := make(Document, len(doc))
	for k, v := range doc {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return deepCopy(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = deepCopyValue(e)
		}
		return out
	case []string:
		out := make([]string, len(t))
		copy(out, t)
		return out
	default:
		return v
	}
}
