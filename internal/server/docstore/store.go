// Package docstore is the document store adapter: generic get/query/set/
// update/delete/increment over named collections plus atomic batches.
//
// Field values follow JSON semantics on both backends: numbers come back as
// float64 and nested objects as map[string]any. Models write timestamps as
// unix-millisecond numbers, so they read back as float64 too.
package docstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/galleryselect/internal/common"
)

// Document is a stored record: its id within the collection and its fields.
type Document struct {
	ID     string
	Fields map[string]any
}

// Operator is a filter comparison. Only equality is supported.
type Operator string

const OpEqual Operator = "=="

// Filter restricts a query to documents whose Field compares to Value.
// Value must be a JSON scalar (string, number, bool).
type Filter struct {
	Field string
	Op    Operator
	Value any
}

// Eq builds an equality filter.
func Eq(field string, value any) Filter {
	return Filter{Field: field, Op: OpEqual, Value: value}
}

// OrderBy sorts query results on a single field. Ties are broken by id.
type OrderBy struct {
	Field      string
	Descending bool
}

// OpKind enumerates the write operations allowed inside a batch.
type OpKind int

const (
	OpSet OpKind = iota + 1
	OpUpdate
	OpDelete
	OpIncrement
)

// Op is a single write. Set replaces the document, Update merges fields into
// an existing document, Delete removes it (absent is not an error) and
// Increment adds Delta to a numeric field of an existing document.
type Op struct {
	Kind       OpKind
	Collection string
	ID         string
	Fields     map[string]any
	Field      string
	Delta      int64
}

func SetOp(collection, id string, fields map[string]any) Op {
	return Op{Kind: OpSet, Collection: collection, ID: id, Fields: fields}
}

func UpdateOp(collection, id string, fields map[string]any) Op {
	return Op{Kind: OpUpdate, Collection: collection, ID: id, Fields: fields}
}

func DeleteOp(collection, id string) Op {
	return Op{Kind: OpDelete, Collection: collection, ID: id}
}

func IncrementOp(collection, id, field string, delta int64) Op {
	return Op{Kind: OpIncrement, Collection: collection, ID: id, Field: field, Delta: delta}
}

// Store is the persistence boundary. Implementations return
// common.ErrorNotFound for missing documents on Get, Update and Increment, and
// wrap backend failures with common.ErrStoreUnavailable.
type Store interface {
	Get(ctx context.Context, collection, id string) (*Document, error)
	Query(ctx context.Context, collection string, filters []Filter, orderBy *OrderBy) ([]*Document, error)
	Set(ctx context.Context, collection, id string, fields map[string]any) error
	Update(ctx context.Context, collection, id string, fields map[string]any) error
	Delete(ctx context.Context, collection, id string) error
	Increment(ctx context.Context, collection, id, field string, delta int64) error

	// RunAtomicBatch applies every op or none of them.
	RunAtomicBatch(ctx context.Context, ops []Op) error
}

func validateFilters(filters []Filter) error {
	for _, f := range filters {
		if f.Op != OpEqual {
			return fmt.Errorf("%w: unsupported filter operator %q", common.ErrInvalidArgument, f.Op)
		}
		if f.Field == "" {
			return fmt.Errorf("%w: empty filter field", common.ErrInvalidArgument)
		}
	}
	return nil
}

func validateOp(op Op) error {
	if op.Collection == "" || op.ID == "" {
		return fmt.Errorf("%w: op requires collection and id", common.ErrInvalidArgument)
	}
	switch op.Kind {
	case OpSet, OpUpdate, OpDelete:
		return nil
	case OpIncrement:
		if op.Field == "" {
			return fmt.Errorf("%w: increment requires a field", common.ErrInvalidArgument)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown op kind %d", common.ErrInvalidArgument, op.Kind)
	}
}

// normalizeFields round-trips fields through JSON so that both backends hand
// back the same shapes.
func normalizeFields(fields map[string]any) (map[string]any, error) {
	if fields == nil {
		return map[string]any{}, nil
	}
	b, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("%w: encode fields: %v", common.ErrInvalidArgument, err)
	}
	out := map[string]any{}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("%w: decode fields: %v", common.ErrInvalidArgument, err)
	}
	return out, nil
}

func normalizeValue(v any) (any, error) {
	m, err := normalizeFields(map[string]any{"v": v})
	if err != nil {
		return nil, err
	}
	return m["v"], nil
}
