package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/01011010/notesum-hybrid/internal/logging"
	"github.com/01011010/notesum-hybrid/internal/parser"
)

var fixedNow = time.Date(2025, 3, 5, 10, 0, 0, 0, time.UTC)

func startWorker(t *testing.T) *Worker {
	t.Helper()
	p := parser.New(nil, parser.WithClock(func() time.Time { return fixedNow }))
	w := New(p, logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-errCh)
	})
	return w
}

func submit(t *testing.T, w *Worker, line int, text string) Response {
	t.Helper()
	resp, err := w.Submit(context.Background(), Request{LineNumber: line, LineText: text})
	require.NoError(t, err)
	assert.Equal(t, line, resp.LineNumber)
	return resp
}

func TestSubmit_DefinitionAndUse(t *testing.T) {
	w := startWorker(t)

	r := submit(t, w, 1, "x: 5")
	require.NotNil(t, r.Result)
	assert.Equal(t, "5", r.Result.Value)
	assert.Equal(t, []string{"x"}, r.Variables.Defines)
	assert.Empty(t, r.Reprocess)

	r = submit(t, w, 2, "x * 2")
	require.NotNil(t, r.Result)
	assert.Equal(t, "10", r.Result.Value)
	assert.Equal(t, []string{"x"}, r.Variables.Uses)

	r = submit(t, w, 1, "x: 7")
	assert.Equal(t, []int{2}, r.Reprocess)

	r = submit(t, w, 2, "x * 2")
	assert.Equal(t, "14", r.Result.Value)
}

func TestSubmit_TransitiveReprocess(t *testing.T) {
	w := startWorker(t)

	submit(t, w, 1, "a: 2")
	submit(t, w, 2, "b: a * 3")
	submit(t, w, 3, "b + 1")

	r := submit(t, w, 1, "a: 4")
	assert.Equal(t, []int{2, 3}, r.Reprocess)
}

func TestSubmit_EmptyLineDropsDefinitions(t *testing.T) {
	w := startWorker(t)

	submit(t, w, 1, "rate: 3")
	submit(t, w, 2, "rate * 2")

	r := submit(t, w, 1, "   ")
	assert.Nil(t, r.Result)
	assert.Equal(t, []int{2}, r.Reprocess)

	vars, err := w.Variables(context.Background())
	require.NoError(t, err)
	assert.NotContains(t, vars, "rate")
}

func TestSubmit_RedefinitionElsewhereDropsOldName(t *testing.T) {
	w := startWorker(t)

	submit(t, w, 1, "old: 1")
	submit(t, w, 1, "new: 2")

	vars, err := w.Variables(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"new": 2}, vars)
}

func TestSubmit_UnknownTimezoneFallsBackToUTC(t *testing.T) {
	w := startWorker(t)

	resp, err := w.Submit(context.Background(), Request{LineNumber: 1, LineText: "2 + 2", Timezone: "Mars/Olympus"})
	require.NoError(t, err)
	require.NotNil(t, resp.Result)
	assert.Equal(t, "4", resp.Result.Value)
	assert.Equal(t, time.UTC, w.zones["Mars/Olympus"])
}

func TestRemoveLineAndRenumber(t *testing.T) {
	w := startWorker(t)
	ctx := context.Background()

	submit(t, w, 1, "x: 1")
	submit(t, w, 3, "x + 1")

	require.NoError(t, w.Renumber(ctx, map[int]int{1: 1, 3: 4}))
	lines, err := w.RemoveLine(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []int{4}, lines)
}

func TestReset(t *testing.T) {
	w := startWorker(t)
	ctx := context.Background()

	submit(t, w, 1, "x: 1")
	require.NoError(t, w.Reset(ctx))

	vars, err := w.Variables(ctx)
	require.NoError(t, err)
	assert.Empty(t, vars)
}

func TestSubmit_AfterStop(t *testing.T) {
	w := New(nil, logging.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, w.Run(ctx))

	_, err := w.Submit(context.Background(), Request{LineNumber: 1, LineText: "1+1"})
	assert.ErrorIs(t, err, ErrStopped)
}

func TestSubmit_ContextCancelled(t *testing.T) {
	w := New(nil, logging.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := w.Submit(ctx, Request{LineNumber: 1, LineText: "1+1"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSubmit_CancelledWhileRunning(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	p := parser.New(nil, parser.WithClock(func() time.Time {
		once.Do(func() { close(entered) })
		<-release
		return fixedNow
	}))
	w := New(p, logging.Discard())

	runCtx, stop := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(runCtx) }()
	defer func() {
		stop()
		require.NoError(t, <-errCh)
	}()

	ctx, cancel := context.WithCancel(context.Background())
	type outcome struct {
		resp Response
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		resp, err := w.Submit(ctx, Request{LineNumber: 1, LineText: "buy milk tomorrow"})
		done <- outcome{resp, err}
	}()

	<-entered
	cancel()
	got := <-done
	require.ErrorIs(t, got.err, context.Canceled)
	assert.Nil(t, got.resp.Result)
	close(release)

	// the abandoned job completes and the loop keeps serving
	resp, err := w.Submit(context.Background(), Request{LineNumber: 2, LineText: "1+1"})
	require.NoError(t, err)
	require.NotNil(t, resp.Result)
	assert.Equal(t, "2", resp.Result.Value)
}
