// Package varenv holds the document-wide variable bindings used by the line
// parser and the dependency graph that decides which lines to re-evaluate
// when a binding changes.
package varenv

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Environment is a flat, case-insensitive name to value map. There is no
// scoping; the last assignment wins.
type Environment struct {
	mu   sync.RWMutex
	vars map[string]float64
}

func New() *Environment {
	return &Environment{vars: make(map[string]float64)}
}

// NormalizeName trims and lowercases a variable name.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (e *Environment) Set(name string, value float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vars[NormalizeName(name)] = value
}

func (e *Environment) Get(name string) (float64, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, ok := e.vars[NormalizeName(name)]
	return v, ok
}

func (e *Environment) Delete(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.vars, NormalizeName(name))
}

func (e *Environment) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.vars)
}

// Snapshot returns a copy of the bindings.
func (e *Environment) Snapshot() map[string]float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[string]float64, len(e.vars))
	for k, v := range e.vars {
		out[k] = v
	}
	return out
}

func (e *Environment) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vars = make(map[string]float64)
}

// Substitute replaces whole-word occurrences of every bound name with its
// value. Longer names go first so "rate" never matches inside "rate_total".
// Negative values are parenthesised to keep "x - y" well formed.
func (e *Environment) Substitute(text string) string {
	e.mu.RLock()
	names := make([]string, 0, len(e.vars))
	for name := range e.vars {
		names = append(names, name)
	}
	values := make(map[string]float64, len(e.vars))
	for k, v := range e.vars {
		values[k] = v
	}
	e.mu.RUnlock()

	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})

	for _, name := range names {
		re := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(name) + `\b`)
		text = re.ReplaceAllLiteralString(text, FormatValue(values[name]))
	}
	return text
}

// FormatValue renders v the way substitution inserts it.
func FormatValue(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if v < 0 {
		return "(" + s + ")"
	}
	return s
}
