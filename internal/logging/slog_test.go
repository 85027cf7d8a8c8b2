package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// records decodes every JSON line written to buf.
func records(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	dec := json.NewDecoder(buf)
	for dec.More() {
		var rec map[string]any
		require.NoError(t, dec.Decode(&rec))
		out = append(out, rec)
	}
	return out
}

func TestSlogLogger_EmitsEachLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewJSONLogger(&buf, slog.LevelDebug)
	ctx := context.Background()

	log.Debug(ctx, "reconciled", "gallery_id", "g1")
	log.Info(ctx, "grant saved", "client_id", "c1")
	log.Warn(ctx, "notification failed", "attempt", 2)
	log.Error(ctx, "store down", "backend", "postgres")

	recs := records(t, &buf)
	require.Len(t, recs, 4)

	want := []struct{ level, msg, key string }{
		{"DEBUG", "reconciled", "gallery_id"},
		{"INFO", "grant saved", "client_id"},
		{"WARN", "notification failed", "attempt"},
		{"ERROR", "store down", "backend"},
	}
	for i, w := range want {
		assert.Equal(t, w.level, recs[i]["level"])
		assert.Equal(t, w.msg, recs[i]["msg"])
		assert.Contains(t, recs[i], w.key)
	}
}

func TestNewJSONLogger_FiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewJSONLogger(&buf, slog.LevelWarn)

	log.Debug(context.Background(), "hidden")
	log.Info(context.Background(), "hidden")
	log.Warn(context.Background(), "kept", "k", "v")

	recs := records(t, &buf)
	require.Len(t, recs, 1)
	assert.Equal(t, "kept", recs[0]["msg"])
	assert.Equal(t, "v", recs[0]["k"])
}

func TestSlogLogger_WithKeepsParentClean(t *testing.T) {
	var buf bytes.Buffer
	parent := NewSlogLogger(slog.New(slog.NewJSONHandler(&buf, nil)))
	child := parent.With("module", "packages")

	child.Info(context.Background(), "approved", "package_id", "p1")
	parent.Info(context.Background(), "plain")

	recs := records(t, &buf)
	require.Len(t, recs, 2)
	assert.Equal(t, "packages", recs[0]["module"])
	assert.Equal(t, "p1", recs[0]["package_id"])
	assert.NotContains(t, recs[1], "module")
}

func TestSlogLogger_ContextAttributes(t *testing.T) {
	var buf bytes.Buffer
	log := NewJSONLogger(&buf, slog.LevelInfo)

	ctx := ContextWith(context.Background(), "request_id", "r-1")
	ctx = ContextWith(ctx, "gallery_id", "g1")
	log.Warn(ctx, "deadline passed", "client_id", "c1")

	recs := records(t, &buf)
	require.Len(t, recs, 1)
	assert.Equal(t, "r-1", recs[0]["request_id"])
	assert.Equal(t, "g1", recs[0]["gallery_id"])
	assert.Equal(t, "c1", recs[0]["client_id"])
}

func TestContextWith_DoesNotLeakIntoParent(t *testing.T) {
	var buf bytes.Buffer
	log := NewJSONLogger(&buf, slog.LevelInfo)

	parent := ContextWith(context.Background(), "a", "1")
	_ = ContextWith(parent, "b", "2")
	log.Info(parent, "only parent")

	recs := records(t, &buf)
	require.Len(t, recs, 1)
	assert.Equal(t, "1", recs[0]["a"])
	assert.NotContains(t, recs[0], "b")
}

func TestContextWith_NoArgs(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, ctx, ContextWith(ctx))
}

func TestNop(t *testing.T) {
	var l Logger = Nop{}
	assert.NotPanics(t, func() {
		l.With("a", 1).Error(context.TODO(), "ignored")
	})
}
