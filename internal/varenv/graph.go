package varenv

import (
	"regexp"
	"sort"
)

// Graph tracks which line defines each variable and which lines use it.
//
// Uses are recorded even for names that are not defined yet, so a later
// definition still reaches lines written before it.
type Graph struct {
	definedAt map[string]int
	lineUses  map[int]map[string]struct{}
	usedBy    map[string]map[int]struct{}
}

func NewGraph() *Graph {
	g := &Graph{}
	g.Clear()
	return g
}

func (g *Graph) Clear() {
	g.definedAt = make(map[string]int)
	g.lineUses = make(map[int]map[string]struct{})
	g.usedBy = make(map[string]map[int]struct{})
}

// Define records that line defines name, replacing any earlier definition.
func (g *Graph) Define(name string, line int) {
	g.definedAt[NormalizeName(name)] = line
}

// DefinedAt returns the line that defines name.
func (g *Graph) DefinedAt(name string) (int, bool) {
	line, ok := g.definedAt[NormalizeName(name)]
	return line, ok
}

// Use replaces the set of variables used by line.
func (g *Graph) Use(line int, names []string) {
	g.dropUses(line)
	if len(names) == 0 {
		return
	}
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		n = NormalizeName(n)
		set[n] = struct{}{}
		if g.usedBy[n] == nil {
			g.usedBy[n] = make(map[int]struct{})
		}
		g.usedBy[n][line] = struct{}{}
	}
	g.lineUses[line] = set
}

func (g *Graph) dropUses(line int) {
	for n := range g.lineUses[line] {
		delete(g.usedBy[n], line)
		if len(g.usedBy[n]) == 0 {
			delete(g.usedBy, n)
		}
	}
	delete(g.lineUses, line)
}

// Dependents returns the lines that use name, sorted.
func (g *Graph) Dependents(name string) []int {
	var out []int
	for line := range g.usedBy[NormalizeName(name)] {
		out = append(out, line)
	}
	sort.Ints(out)
	return out
}

// LinesToReprocess returns every line that directly or transitively depends
// on a variable defined by line, excluding line itself, sorted.
func (g *Graph) LinesToReprocess(line int) []int {
	seen := map[int]bool{line: true}
	queue := []int{line}
	var out []int

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for name, def := range g.definedAt {
			if def != cur {
				continue
			}
			for dep := range g.usedBy[name] {
				if seen[dep] {
					continue
				}
				seen[dep] = true
				out = append(out, dep)
				queue = append(queue, dep)
			}
		}
	}
	sort.Ints(out)
	return out
}

// RemoveLine forgets the line's definitions and uses. It returns the names
// whose definitions were dropped.
func (g *Graph) RemoveLine(line int) []string {
	var dropped []string
	for name, def := range g.definedAt {
		if def == line {
			dropped = append(dropped, name)
			delete(g.definedAt, name)
		}
	}
	g.dropUses(line)
	sort.Strings(dropped)
	return dropped
}

// Renumber applies a structural edit. Lines missing from oldToNew are
// treated as deleted.
func (g *Graph) Renumber(oldToNew map[int]int) {
	defined := make(map[string]int, len(g.definedAt))
	for name, old := range g.definedAt {
		if line, ok := oldToNew[old]; ok {
			defined[name] = line
		}
	}

	lineUses := make(map[int]map[string]struct{}, len(g.lineUses))
	usedBy := make(map[string]map[int]struct{}, len(g.usedBy))
	for old, names := range g.lineUses {
		line, ok := oldToNew[old]
		if !ok {
			continue
		}
		lineUses[line] = names
		for n := range names {
			if usedBy[n] == nil {
				usedBy[n] = make(map[int]struct{})
			}
			usedBy[n][line] = struct{}{}
		}
	}

	g.definedAt = defined
	g.lineUses = lineUses
	g.usedBy = usedBy
}

// Analysis lists the variables a line defines and uses.
type Analysis struct {
	Defines []string `json:"defines"`
	Uses    []string `json:"uses"`
}

var (
	assignRe     = regexp.MustCompile(`^\s*([a-zA-Z_][a-zA-Z0-9_]*)\s*[:=]\s*(.+)$`)
	identifierRe = regexp.MustCompile(`\b[a-zA-Z_][a-zA-Z0-9_]*\b`)
)

// Analyze extracts definitions and candidate uses from raw line text.
// Every identifier other than the defined name counts as a use; the graph
// only acts on those that name a variable.
func Analyze(line string) Analysis {
	a := Analysis{Defines: []string{}, Uses: []string{}}
	body := line
	if m := assignRe.FindStringSubmatch(line); m != nil {
		a.Defines = append(a.Defines, NormalizeName(m[1]))
		body = m[2]
	}

	seen := make(map[string]bool)
	for _, id := range identifierRe.FindAllString(body, -1) {
		id = NormalizeName(id)
		if seen[id] || (len(a.Defines) > 0 && id == a.Defines[0]) {
			continue
		}
		seen[id] = true
		a.Uses = append(a.Uses, id)
	}
	return a
}
