package parser

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Func is a callable available to formulas and natural-language phrases.
type Func func(args ...float64) (float64, error)

var ErrArity = errors.New("wrong number of arguments")

func fixed(n int, f func(a []float64) (float64, error)) Func {
	return func(args ...float64) (float64, error) {
		if len(args) < n {
			return 0, fmt.Errorf("%w: want %d, got %d", ErrArity, n, len(args))
		}
		return f(args[:n])
	}
}

func variadic(min int, f func(a []float64) (float64, error)) Func {
	return func(args ...float64) (float64, error) {
		if len(args) < min {
			return 0, fmt.Errorf("%w: want at least %d, got %d", ErrArity, min, len(args))
		}
		return f(args)
	}
}

func div(a, b float64) (float64, error) {
	if b == 0 {
		return 0, ErrDivisionByZero
	}
	return a / b, nil
}

func mean(a []float64) float64 {
	s := 0.0
	for _, v := range a {
		s += v
	}
	return s / float64(len(a))
}

// Functions is the predefined table used by "=" formulas and phrases such
// as "average of".
var Functions = map[string]Func{
	"sum": variadic(1, func(a []float64) (float64, error) {
		s := 0.0
		for _, v := range a {
			s += v
		}
		return s, nil
	}),
	"avg": variadic(1, func(a []float64) (float64, error) { return mean(a), nil }),
	"median": variadic(1, func(a []float64) (float64, error) {
		s := append([]float64(nil), a...)
		sort.Float64s(s)
		mid := len(s) / 2
		if len(s)%2 == 0 {
			return (s[mid-1] + s[mid]) / 2, nil
		}
		return s[mid], nil
	}),
	// sample standard deviation
	"stddev": variadic(2, func(a []float64) (float64, error) {
		m := mean(a)
		ss := 0.0
		for _, v := range a {
			ss += (v - m) * (v - m)
		}
		return math.Sqrt(ss / float64(len(a)-1)), nil
	}),
	"factorial": fixed(1, func(a []float64) (float64, error) {
		n := a[0]
		if n < 0 || n != math.Trunc(n) || n > 170 {
			return 0, fmt.Errorf("factorial of %v is undefined", n)
		}
		r := 1.0
		for i := 2.0; i <= n; i++ {
			r *= i
		}
		return r, nil
	}),
	"percentage": fixed(2, func(a []float64) (float64, error) {
		r, err := div(a[0], a[1])
		return r * 100, err
	}),
	"roi": fixed(2, func(a []float64) (float64, error) {
		r, err := div(a[0]-a[1], a[1])
		return r * 100, err
	}),
	"compound_interest": fixed(3, func(a []float64) (float64, error) {
		return a[0] * math.Pow(1+a[1], a[2]), nil
	}),
	"break_even": fixed(3, func(a []float64) (float64, error) {
		return div(a[0], a[1]-a[2])
	}),
	"velocity": fixed(2, func(a []float64) (float64, error) { return div(a[0], a[1]) }),
	"burn_rate": fixed(3, func(a []float64) (float64, error) {
		return div(a[0]-a[1], a[2])
	}),
	"pert": fixed(3, func(a []float64) (float64, error) {
		return (a[0] + 4*a[1] + a[2]) / 6, nil
	}),
	"cycle_time": fixed(2, func(a []float64) (float64, error) { return div(a[1], a[0]) }),
	"lead_time":  fixed(2, func(a []float64) (float64, error) { return a[1] - a[0], nil }),
	"communication_channels": fixed(1, func(a []float64) (float64, error) {
		return a[0] * (a[0] - 1) / 2, nil
	}),
	"resource_utilization": fixed(2, func(a []float64) (float64, error) {
		r, err := div(a[0], a[1])
		return r * 100, err
	}),
	"resource_overallocation": fixed(2, func(a []float64) (float64, error) {
		return a[0] - a[1], nil
	}),
	"variance": fixed(2, func(a []float64) (float64, error) {
		r, err := div(a[0]-a[1], a[1])
		return r * 100, err
	}),
}

type phrase struct {
	fn string
	re *regexp.Regexp
}

func phrases(fn string, ps ...string) []phrase {
	out := make([]phrase, 0, len(ps))
	for _, p := range ps {
		out = append(out, phrase{fn: fn, re: regexp.MustCompile(`\b` + regexp.QuoteMeta(p) + `\b`)})
	}
	return out
}

// phraseTable is checked in order; the first matching phrase wins.
var phraseTable = concat(
	phrases("sum", "sum of", "total of", "add"),
	phrases("avg", "average of", "mean of", "avg of"),
	phrases("median", "median of"),
	phrases("stddev", "standard deviation of", "std dev of"),
	phrases("factorial", "factorial of"),
	phrases("percentage", "percentage of", "percent of"),
	phrases("roi", "return on investment of", "roi of"),
	phrases("compound_interest", "compound interest of", "interest on"),
	phrases("break_even", "break even point of", "break-even of"),
	phrases("velocity", "velocity of", "speed of"),
	phrases("burn_rate", "burn rate of", "burning rate of"),
	phrases("pert", "pert of"),
	phrases("cycle_time", "cycle time of"),
	phrases("lead_time", "lead time of"),
	phrases("communication_channels", "comms channels of", "communication channels of"),
	phrases("resource_utilization", "resource utilization of"),
	phrases("resource_overallocation", "resource allocation of"),
	phrases("variance", "variance of"),
)

func concat(groups ...[]phrase) []phrase {
	var out []phrase
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

var (
	numberRe      = regexp.MustCompile(`\d+(?:\.\d+)?`)
	punctuationRe = regexp.MustCompile(`[.,](\D|$)`)
	spacesRe      = regexp.MustCompile(`\s+`)
)

// evalPhrase matches text against the phrase table and applies the
// function to every number in the text.
func evalPhrase(text string) (float64, bool) {
	clean := strings.ToLower(text)
	clean = punctuationRe.ReplaceAllString(clean, " $1")
	clean = strings.TrimSpace(spacesRe.ReplaceAllString(clean, " "))

	for _, ph := range phraseTable {
		if !ph.re.MatchString(clean) {
			continue
		}
		raw := numberRe.FindAllString(clean, -1)
		if len(raw) == 0 {
			continue
		}
		args := make([]float64, 0, len(raw))
		for _, r := range raw {
			n, err := strconv.ParseFloat(r, 64)
			if err != nil {
				return 0, false
			}
			args = append(args, n)
		}
		v, err := Functions[ph.fn](args...)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, false
		}
		return v, true
	}
	return 0, false
}
