// Package models defines the typed entities of the gallery selection server
// and their mapping to store documents. Documents are validated on read:
// a missing required field or a value of the wrong kind yields
// common.ErrInvalidDocument instead of a half-filled struct.
package models

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/galleryselect/internal/common"
	"github.com/dmitrijs2005/galleryselect/internal/timex"
)

// fieldReader pulls typed values out of a document and remembers the first
// problem it meets.
type fieldReader struct {
	kind   string
	id     string
	fields map[string]any
	err    error
}

func newFieldReader(kind, id string, fields map[string]any) *fieldReader {
	if fields == nil {
		fields = map[string]any{}
	}
	return &fieldReader{kind: kind, id: id, fields: fields}
}

func (r *fieldReader) fail(name, problem string) {
	if r.err == nil {
		r.err = fmt.Errorf("%w: %s %q: field %q %s", common.ErrInvalidDocument, r.kind, r.id, name, problem)
	}
}

func (r *fieldReader) lookup(name string, required bool) (any, bool) {
	v, ok := r.fields[name]
	if !ok || v == nil {
		if required {
			r.fail(name, "is missing")
		}
		return nil, false
	}
	return v, true
}

func (r *fieldReader) str(name string, required bool) string {
	v, ok := r.lookup(name, required)
	if !ok {
		return ""
	}
	s, isStr := v.(string)
	if !isStr {
		r.fail(name, "is not a string")
		return ""
	}
	if required && s == "" {
		r.fail(name, "is empty")
	}
	return s
}

func (r *fieldReader) boolean(name string) bool {
	v, ok := r.lookup(name, false)
	if !ok {
		return false
	}
	b, isBool := v.(bool)
	if !isBool {
		r.fail(name, "is not a boolean")
	}
	return b
}

func (r *fieldReader) number(name string, required bool) (int64, bool) {
	v, ok := r.lookup(name, required)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	default:
		r.fail(name, "is not a number")
		return 0, false
	}
}

func (r *fieldReader) integer(name string) int {
	n, _ := r.number(name, false)
	return int(n)
}

func (r *fieldReader) optInt(name string) *int {
	n, ok := r.number(name, false)
	if !ok {
		return nil
	}
	i := int(n)
	return &i
}

func (r *fieldReader) time(name string, required bool) time.Time {
	ms, ok := r.number(name, required)
	if !ok {
		return time.Time{}
	}
	return timex.FromUnixMilli(ms)
}

func (r *fieldReader) optTime(name string) *time.Time {
	ms, ok := r.number(name, false)
	if !ok {
		return nil
	}
	t := timex.FromUnixMilli(ms)
	return &t
}

func (r *fieldReader) strings(name string) []string {
	v, ok := r.lookup(name, false)
	if !ok {
		return []string{}
	}
	switch items := v.(type) {
	case []string:
		return append([]string{}, items...)
	case []any:
		out := make([]string, 0, len(items))
		for _, item := range items {
			s, isStr := item.(string)
			if !isStr {
				r.fail(name, "holds a non-string item")
				return []string{}
			}
			out = append(out, s)
		}
		return out
	default:
		r.fail(name, "is not a list")
		return []string{}
	}
}

func millisOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}
	return timex.UnixMilli(*t)
}

func intOrNil(i *int) any {
	if i == nil {
		return nil
	}
	return *i
}
