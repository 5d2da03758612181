package store

import (
	"context"
)

// Document is a schemaless record held by the document store.
type Document = map[string]any

// MaxBatchWrites is the store's hard ceiling on writes per atomic batch.
const MaxBatchWrites = 500

// Client is the contract the core consumes from the underlying document
// store: per-document atomic partial updates, multi-document atomic batches
// bounded by MaxBatchWrites, and a change feed with before/after snapshots.
// The store engine itself is an external collaborator.
type Client interface {
	// Get returns a copy of the document, or errors.ErrNotFound.
	Get(ctx context.Context, collection, id string) (Document, error)
	// QueryEq returns every document in the collection whose field equals
	// value. Field may be a dotted path ("from.email", "<uid>.email").
	QueryEq(ctx context.Context, collection, field string, value any) ([]Snapshot, error)
	// Set creates or replaces a document.
	Set(ctx context.Context, collection, id string, doc Document) error
	// Update applies a partial update atomically to one existing document;
	// errors.ErrNotFound when the document does not exist.
	Update(ctx context.Context, collection, id string, update Update) error
	// Delete removes a document; deleting a missing document is a no-op.
	Delete(ctx context.Context, collection, id string) error
	// Batch starts an atomic multi-document write batch.
	Batch() WriteBatch
	// Watch delivers change events until ctx is done.
	Watch(ctx context.Context) <-chan Change
	Close(ctx context.Context) error
}

// Snapshot pairs a document with its id, as returned from queries.
type Snapshot struct {
	ID   string
	Data Document
}

// WriteBatch accumulates writes and commits them all-or-nothing. A batch
// holding more than MaxBatchWrites writes fails at Commit with
// errors.ErrBatchTooLarge.
type WriteBatch interface {
	Set(collection, id string, doc Document)
	Update(collection, id string, update Update)
	Delete(collection, id string)
	Add(m Mutation)
	Len() int
	Commit(ctx context.Context) error
}

// Update maps dotted field paths to plain values or to one of the
// operator values below.
type Update map[string]any

// IncrementOp atomically adds Delta to a numeric field.
type IncrementOp struct{ Delta float64 }

// ArrayUnionOp adds each value to an array field, skipping ones already
// present.
type ArrayUnionOp struct{ Values []any }

// ArrayRemoveOp removes each value from an array field.
type ArrayRemoveOp struct{ Values []any }

// DeleteFieldOp removes the field entirely.
type DeleteFieldOp struct{}

// ServerTimestampOp stores the commit-time timestamp.
type ServerTimestampOp struct{}

func Increment(delta float64) IncrementOp { return IncrementOp{Delta: delta} }

func ArrayUnion(values ...any) ArrayUnionOp { return ArrayUnionOp{Values: values} }

func ArrayRemove(values ...any) ArrayRemoveOp { return ArrayRemoveOp{Values: values} }

func DeleteField() DeleteFieldOp { return DeleteFieldOp{} }

func ServerTimestamp() ServerTimestampOp { return ServerTimestampOp{} }

// MutationKind discriminates the write types a Mutation can carry.
type MutationKind int

const (
	MutationSet MutationKind = iota
	MutationUpdate
	MutationDelete
)

// Mutation is one pending per-document write, the unit the batch executor
// drains. Cascade plans only carry idempotent writes (set, union, remove,
// field delete, document delete), so replaying a committed batch is safe.
type Mutation struct {
	Kind       MutationKind
	Collection string
	ID         string
	Doc        Document
	Update     Update
}

func SetMutation(collection, id string, doc Document) Mutation {
	return Mutation{Kind: MutationSet, Collection: collection, ID: id, Doc: doc}
}

func UpdateMutation(collection, id string, update Update) Mutation {
	return Mutation{Kind: MutationUpdate, Collection: collection, ID: id, Update: update}
}

func DeleteMutation(collection, id string) Mutation {
	return Mutation{Kind: MutationDelete, Collection: collection, ID: id}
}

// ChangeKind is the event type emitted by the store's change feed.
type ChangeKind string

const (
	ChangeCreate ChangeKind = "create"
	ChangeUpdate ChangeKind = "update"
	ChangeDelete ChangeKind = "delete"
)

// Change is one document change event. Before is nil for creates, After is
// nil for deletes; updates carry both snapshots.
type Change struct {
	Kind       ChangeKind `json:"kind"`
	Collection string     `json:"collection"`
	ID         string     `json:"id"`
	Before     Document   `json:"before,omitempty"`
	After      Document   `json:"after,omitempty"`
}
