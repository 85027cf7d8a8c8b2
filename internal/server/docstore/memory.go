package docstore

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/dmitrijs2005/galleryselect/internal/common"
)

type docKey struct {
	collection string
	id         string
}

// MemoryStore keeps documents in process memory. It is used by tests and by
// the "memory" store backend for local development.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]map[string]map[string]any
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: map[string]map[string]map[string]any{}}
}

func (s *MemoryStore) Get(ctx context.Context, collection, id string) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	fields, ok := s.data[collection][id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &Document{ID: id, Fields: cloneFields(fields)}, nil
}

func (s *MemoryStore) Query(ctx context.Context, collection string, filters []Filter, orderBy *OrderBy) ([]*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
	}
	if err := validateFilters(filters); err != nil {
		return nil, err
	}
	want := make([]any, len(filters))
	for i, f := range filters {
		v, err := normalizeValue(f.Value)
		if err != nil {
			return nil, err
		}
		want[i] = v
	}

	s.mu.RLock()
	var docs []*Document
	for id, fields := range s.data[collection] {
		matched := true
		for i, f := range filters {
			if !reflect.DeepEqual(fields[f.Field], want[i]) {
				matched = false
				break
			}
		}
		if matched {
			docs = append(docs, &Document{ID: id, Fields: cloneFields(fields)})
		}
	}
	s.mu.RUnlock()

	sort.Slice(docs, func(i, j int) bool {
		if orderBy != nil {
			c := compareValues(docs[i].Fields[orderBy.Field], docs[j].Fields[orderBy.Field])
			if c != 0 {
				if orderBy.Descending {
					return c > 0
				}
				return c < 0
			}
		}
		return docs[i].ID < docs[j].ID
	})
	return docs, nil
}

func (s *MemoryStore) Set(ctx context.Context, collection, id string, fields map[string]any) error {
	return s.RunAtomicBatch(ctx, []Op{SetOp(collection, id, fields)})
}

func (s *MemoryStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	return s.RunAtomicBatch(ctx, []Op{UpdateOp(collection, id, fields)})
}

func (s *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	return s.RunAtomicBatch(ctx, []Op{DeleteOp(collection, id)})
}

func (s *MemoryStore) Increment(ctx context.Context, collection, id, field string, delta int64) error {
	return s.RunAtomicBatch(ctx, []Op{IncrementOp(collection, id, field, delta)})
}

type stagedDoc struct {
	fields  map[string]any
	deleted bool
}

// RunAtomicBatch stages every op on copies and publishes them only when the
// whole batch succeeded.
func (s *MemoryStore) RunAtomicBatch(ctx context.Context, ops []Op) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
	}
	for _, op := range ops {
		if err := validateOp(op); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	staged := map[docKey]*stagedDoc{}
	lookup := func(k docKey) *stagedDoc {
		if st, ok := staged[k]; ok {
			return st
		}
		st := &stagedDoc{deleted: true}
		if fields, ok := s.data[k.collection][k.id]; ok {
			st = &stagedDoc{fields: cloneFields(fields)}
		}
		staged[k] = st
		return st
	}

	for _, op := range ops {
		k := docKey{collection: op.Collection, id: op.ID}
		st := lookup(k)
		switch op.Kind {
		case OpSet:
			fields, err := normalizeFields(op.Fields)
			if err != nil {
				return err
			}
			st.fields, st.deleted = fields, false
		case OpUpdate:
			if st.deleted {
				return fmt.Errorf("update %s/%s: %w", op.Collection, op.ID, common.ErrorNotFound)
			}
			fields, err := normalizeFields(op.Fields)
			if err != nil {
				return err
			}
			for name, v := range fields {
				st.fields[name] = v
			}
		case OpDelete:
			st.fields, st.deleted = nil, true
		case OpIncrement:
			if st.deleted {
				return fmt.Errorf("increment %s/%s: %w", op.Collection, op.ID, common.ErrorNotFound)
			}
			current, _ := st.fields[op.Field].(float64)
			st.fields[op.Field] = current + float64(op.Delta)
		}
	}

	for k, st := range staged {
		if st.deleted {
			delete(s.data[k.collection], k.id)
			continue
		}
		coll, ok := s.data[k.collection]
		if !ok {
			coll = map[string]map[string]any{}
			s.data[k.collection] = coll
		}
		coll[k.id] = st.fields
	}
	return nil
}

// Len reports how many documents a collection holds.
func (s *MemoryStore) Len(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data[collection])
}

func cloneFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch value := v.(type) {
	case map[string]any:
		return cloneFields(value)
	case []any:
		out := make([]any, len(value))
		for i, item := range value {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return value
	}
}

// compareValues orders nil < bool < number < string; values of other kinds
// compare equal.
func compareValues(a, b any) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	switch av := a.(type) {
	case bool:
		bv := b.(bool)
		if av == bv {
			return 0
		}
		if !av {
			return -1
		}
		return 1
	case float64:
		bv := b.(float64)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
		return 0
	case string:
		bv := b.(string)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
		return 0
	}
	return 0
}

func rank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case float64:
		return 2
	case string:
		return 3
	default:
		return 4
	}
}
