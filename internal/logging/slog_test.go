package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextLogger_LevelsAndAttributes(t *testing.T) {
	var buf bytes.Buffer
	log := NewTextLogger(&buf, slog.LevelDebug)
	ctx := context.Background()

	log.Debug(ctx, "dbg", "a", 1)
	log.Info(ctx, "inf", "b", 2)
	log.Warn(ctx, "wrn", "c", 3)
	log.Error(ctx, "err", "d", 4)

	out := buf.String()
	for _, want := range []string{
		"level=DEBUG", "msg=dbg", "a=1",
		"level=INFO", "msg=inf", "b=2",
		"level=WARN", "msg=wrn", "c=3",
		"level=ERROR", "msg=err", "d=4",
	} {
		assert.Contains(t, out, want)
	}
}

func TestTextLogger_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewTextLogger(&buf, slog.LevelWarn)

	log.Info(context.Background(), "hidden")
	log.Warn(context.Background(), "shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestWith_AddsAttributes(t *testing.T) {
	var buf bytes.Buffer
	log := NewTextLogger(&buf, slog.LevelInfo).With("module", "sync_engine", "job_id", "j1")

	log.Info(context.Background(), "hello", "k", "v")

	for _, s := range []string{"module=sync_engine", "job_id=j1", "k=v"} {
		assert.Contains(t, buf.String(), s)
	}
}

func TestJSONLogger_EmitsJSONLines(t *testing.T) {
	var buf bytes.Buffer
	log := NewJSONLogger(&buf, slog.LevelInfo)

	log.Info(context.Background(), "started", "addr", ":50051")

	line := strings.TrimSpace(buf.String())
	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &rec))
	assert.Equal(t, "started", rec["msg"])
	assert.Equal(t, ":50051", rec["addr"])
}

func TestDiscard_DropsEverything(t *testing.T) {
	log := Discard()
	ctx := context.TODO()
	log.Error(ctx, "nobody hears this")
	log.With("a", 1).Info(ctx, "nor this")
}
