// Package worker runs line interpretation off the caller's goroutine.
//
// A single goroutine owns the parser, the variable environment and the
// dependency graph, so none of them need locking beyond what they already
// do. Callers hand requests over a channel and block until the reply
// arrives or their context ends.
package worker

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/01011010/notesum-hybrid/internal/logging"
	"github.com/01011010/notesum-hybrid/internal/parser"
	"github.com/01011010/notesum-hybrid/internal/varenv"
)

// ErrStopped is returned when the worker loop is no longer running.
var ErrStopped = errors.New("worker stopped")

// Request asks for one line to be interpreted.
type Request struct {
	LineNumber int    `json:"lineNumber"`
	LineText   string `json:"lineText"`
	Timezone   string `json:"timezone,omitempty"`
}

// Response carries the interpretation of a line. Result is nil when no
// parser recognised the text. Reprocess lists other lines whose value
// depends on this one and should be submitted again.
type Response struct {
	LineNumber int             `json:"lineNumber"`
	Result     *parser.Result  `json:"result"`
	Variables  varenv.Analysis `json:"variables"`
	Reprocess  []int           `json:"reprocess,omitempty"`
}

type job func()

type Worker struct {
	parser *parser.Parser
	graph  *varenv.Graph
	log    logging.Logger

	zones map[string]*time.Location
	jobs  chan job
	done  chan struct{}
}

func New(p *parser.Parser, log logging.Logger) *Worker {
	if p == nil {
		p = parser.New(nil)
	}
	return &Worker{
		parser: p,
		graph:  varenv.NewGraph(),
		log:    log.With("module", "parse_worker"),
		zones:  make(map[string]*time.Location),
		jobs:   make(chan job),
		done:   make(chan struct{}),
	}
}

// Run serves requests until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	defer close(w.done)
	w.log.Debug(ctx, "Parse worker started")
	for {
		select {
		case <-ctx.Done():
			w.log.Debug(ctx, "Parse worker stopped")
			return nil
		case j := <-w.jobs:
			j()
		}
	}
}

// call runs fn on the worker goroutine and returns its value. The reply
// channel is buffered so the worker never blocks on a caller that gave up.
func call[T any](ctx context.Context, w *Worker, fn func() T) (T, error) {
	var zero T
	reply := make(chan T, 1)
	select {
	case w.jobs <- func() { reply <- fn() }:
	case <-w.done:
		return zero, ErrStopped
	case <-ctx.Done():
		return zero, ctx.Err()
	}
	select {
	case v := <-reply:
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Submit interprets one line.
func (w *Worker) Submit(ctx context.Context, req Request) (Response, error) {
	return call(ctx, w, func() Response { return w.process(ctx, req) })
}

// RemoveLine forgets a deleted line and returns the lines that depended
// on it.
func (w *Worker) RemoveLine(ctx context.Context, line int) ([]int, error) {
	return call(ctx, w, func() []int { return w.forget(line) })
}

// Renumber applies a structural edit to the dependency graph.
func (w *Worker) Renumber(ctx context.Context, oldToNew map[int]int) error {
	_, err := call(ctx, w, func() struct{} {
		w.graph.Renumber(oldToNew)
		return struct{}{}
	})
	return err
}

// Reset drops every variable and dependency, for example when another
// page is opened.
func (w *Worker) Reset(ctx context.Context) error {
	_, err := call(ctx, w, func() struct{} {
		w.graph.Clear()
		w.parser.Env().Clear()
		return struct{}{}
	})
	return err
}

// Variables returns a copy of the current bindings.
func (w *Worker) Variables(ctx context.Context) (map[string]float64, error) {
	return call(ctx, w, func() map[string]float64 { return w.parser.Env().Snapshot() })
}

func (w *Worker) process(ctx context.Context, req Request) Response {
	resp := Response{
		LineNumber: req.LineNumber,
		Variables:  varenv.Analysis{Defines: []string{}, Uses: []string{}},
	}

	if strings.TrimSpace(req.LineText) == "" {
		resp.Reprocess = w.forget(req.LineNumber)
		return resp
	}

	analysis := varenv.Analyze(req.LineText)
	resp.Variables = analysis

	before := w.graph.LinesToReprocess(req.LineNumber)
	for _, name := range w.graph.RemoveLine(req.LineNumber) {
		if !slices.Contains(analysis.Defines, name) {
			w.parser.Env().Delete(name)
		}
	}

	p := w.parser.WithLocation(w.location(ctx, req.Timezone))
	resp.Result = p.HandleInput(req.LineText)

	if resp.Result != nil && resp.Result.Number != nil {
		for _, name := range analysis.Defines {
			w.graph.Define(name, req.LineNumber)
		}
	}
	w.graph.Use(req.LineNumber, analysis.Uses)

	resp.Reprocess = union(before, w.graph.LinesToReprocess(req.LineNumber))
	w.log.Debug(ctx, "Line processed",
		"line", req.LineNumber,
		"matched", resp.Result != nil,
		"reprocess", len(resp.Reprocess))
	return resp
}

func (w *Worker) forget(line int) []int {
	out := w.graph.LinesToReprocess(line)
	for _, name := range w.graph.RemoveLine(line) {
		w.parser.Env().Delete(name)
	}
	return out
}

func (w *Worker) location(ctx context.Context, name string) *time.Location {
	if name == "" {
		return w.parser.Location()
	}
	if loc, ok := w.zones[name]; ok {
		return loc
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		w.log.Warn(ctx, "Unknown timezone, falling back to UTC", "timezone", name, "error", err)
		loc = time.UTC
	}
	w.zones[name] = loc
	return loc
}

func union(a, b []int) []int {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	seen := make(map[int]struct{}, len(a)+len(b))
	out := make([]int, 0, len(a)+len(b))
	for _, list := range [][]int{a, b} {
		for _, n := range list {
			if _, ok := seen[n]; ok {
				continue
			}
			seen[n] = struct{}{}
			out = append(out, n)
		}
	}
	slices.Sort(out)
	return out
}
