package parser

import (
	"strings"
	"time"

	"github.com/01011010/notesum-hybrid/internal/varenv"
)

// Parser routes lines to the domain parsers. Variable bindings live in the
// shared environment so assignments on one line are visible on the next.
type Parser struct {
	env   *varenv.Environment
	cache *resultCache
	now   func() time.Time
	loc   *time.Location

	math MathParser
	unit UnitParser
	lang *LanguageParser
}

type Option func(*Parser)

// WithClock sets the source of "today".
func WithClock(now func() time.Time) Option {
	return func(p *Parser) { p.now = now }
}

func WithCacheSize(n int) Option {
	return func(p *Parser) { p.cache = newResultCache(n) }
}

func WithTimezone(loc *time.Location) Option {
	return func(p *Parser) { p.loc = loc }
}

func New(env *varenv.Environment, opts ...Option) *Parser {
	if env == nil {
		env = varenv.New()
	}
	p := &Parser{
		env:   env,
		cache: newResultCache(DefaultCacheSize),
		now:   time.Now,
		loc:   time.UTC,
	}
	for _, o := range opts {
		o(p)
	}
	p.wire()
	return p
}

func (p *Parser) wire() {
	p.math = MathParser{Env: p.env}
	p.lang = &LanguageParser{
		Env:      p.env,
		Now:      p.now,
		Location: p.loc,
		cache:    p.cache,
		handle:   p.HandleInput,
	}
}

// WithLocation returns a parser for another timezone that shares the
// environment and the cache.
func (p *Parser) WithLocation(loc *time.Location) *Parser {
	if loc == nil || loc.String() == p.loc.String() {
		return p
	}
	cp := &Parser{env: p.env, cache: p.cache, now: p.now, loc: loc}
	cp.wire()
	return cp
}

func (p *Parser) Env() *varenv.Environment { return p.env }

func (p *Parser) Location() *time.Location { return p.loc }

// HandleInput interprets one line. It never fails: bad input becomes a
// result of kind KindError, and nil means no parser recognised the line.
func (p *Parser) HandleInput(line string) *Result {
	trimmed := strings.TrimSpace(line)
	if strings.HasPrefix(trimmed, "=") {
		return p.formula(line, strings.TrimSpace(trimmed[1:]))
	}

	domain, err := Classify(line)
	if err != nil {
		return errorResult(err.Error(), ErrTypeValidation)
	}

	switch domain {
	case DomainMath:
		return p.math.Parse(line)
	case DomainUnit:
		return p.unit.Parse(line)
	default:
		return p.lang.Parse(line)
	}
}

func (p *Parser) formula(original, body string) *Result {
	if body == "" {
		return nil
	}
	v, err := Evaluate(p.env.Substitute(body), Functions)
	if err != nil {
		r := errorResult(err.Error(), ErrTypeFormula)
		r.Original = original
		return r
	}
	r := numberResult(v)
	r.Kind = KindFormula
	r.Original = original
	return r
}
