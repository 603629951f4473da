package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/01011010/notesum-hybrid/internal/varenv"
)

// MathParser evaluates lines that are pure arithmetic once variables are
// substituted. Anything else is declined.
type MathParser struct {
	Env *varenv.Environment
}

func (m MathParser) Parse(input string) *Result {
	expr := m.Env.Substitute(input)
	if !pureMathRe.MatchString(expr) {
		return nil
	}
	v, err := Evaluate(expr, nil)
	if err != nil {
		return nil
	}
	return numberResult(v)
}

var (
	assignmentRe = regexp.MustCompile(`^\s*([a-zA-Z_]\w*)\s*[:=]\s*(.+)$`)
	arithmeticRe = regexp.MustCompile(`(?i)^(.*?)\s*([+-])\s*(\d+)\s*(days?|workdays?|weeks?|months?|years?)\s*$`)
	weekRe       = regexp.MustCompile(`(?i)\bweek\s*(\d{1,2})\b`)
	proportionRe = regexp.MustCompile(`(?i)if\s+(\d+(?:\.\d+)?)\s*([a-zA-Z]+)\s+requires\s+(\d+(?:\.\d+)?)\s*([a-zA-Z]+)\s+than\s+(\d+(?:\.\d+)?)\s*([a-zA-Z]+)\s+requires\s*\?\?`)

	addPercentRe = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*\+\s*(\d+(?:\.\d+)?)%`)
	subPercentRe = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*-\s*(\d+(?:\.\d+)?)%`)
	mulPercentRe = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*\*\s*(\d+(?:\.\d+)?)%`)
	divPercentRe = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*/\s*(\d+(?:\.\d+)?)%`)
	percentOfRe  = regexp.MustCompile(`(?i)%\s+of\s+`)
	percentRe    = regexp.MustCompile(`(\d+(?:\.\d+)?)%`)
	wordRe       = regexp.MustCompile(`[A-Za-z]+`)
)

var countUnits = map[string]string{
	"days": "day", "workdays": "workday", "weeks": "week", "months": "month", "years": "year",
}

// fillerWords may surround a date without turning the line into an event.
var fillerWords = map[string]bool{
	"from": true, "to": true, "until": true, "till": true, "through": true, "thru": true,
	"between": true, "and": true, "in": true, "on": true, "at": true, "the": true, "of": true,
	"by": true, "day": true, "days": true, "workday": true, "workdays": true, "week": true,
	"weeks": true, "month": true, "months": true, "year": true, "years": true, "how": true,
	"many": true, "what": true, "is": true, "it": true, "date": true, "since": true,
	"left": true, "am": true, "pm": true,
}

const (
	arithmeticLayout = "2006-01-02 15:04:05 GMT-07:00"
	dayLayout        = "2006-01-02"
	longDayLayout    = "Monday, 2 January 2006"
)

// LanguageParser runs the ordered natural-language stages. The first stage
// that produces a result wins; a line no stage understands yields nil.
type LanguageParser struct {
	Env      *varenv.Environment
	Now      func() time.Time
	Location *time.Location

	cache  *resultCache
	handle func(string) *Result
}

func (l *LanguageParser) Parse(input string) *Result {
	// 1. arithmetic after substitution
	substituted := l.Env.Substitute(input)
	if pureMathRe.MatchString(substituted) {
		if v, err := Evaluate(substituted, nil); err == nil {
			return numberResult(v)
		}
	}

	// 2. assignment
	if m := assignmentRe.FindStringSubmatch(input); m != nil {
		if r := l.handle(strings.TrimSpace(m[2])); r != nil && r.Success && r.Number != nil {
			l.Env.Set(m[1], *r.Number)
			return r
		}
	}

	now := l.Now().In(l.Location)
	today := startOfDay(now)
	key := input + "\x00" + today.Format(dayLayout) + "\x00" + l.Location.String()

	// 3. cache
	if r, ok := l.cache.get(key); ok {
		return r
	}

	if r := l.parseDates(input, now, today); r != nil {
		l.cache.put(key, r)
		return r
	}

	// 8. numbers and percentages
	if r := parsePercentages(substituted); r != nil {
		return r
	}

	// 9. proportions
	return parseProportion(input)
}

// parseDates covers stages four to seven: date arithmetic, events, ISO
// week ranges and date spans counted in a unit.
func (l *LanguageParser) parseDates(input string, now, today time.Time) *Result {
	// an operator glued to a digit belongs to a date like 2025-03-07
	if idx := arithmeticRe.FindStringSubmatchIndex(input); idx != nil && (idx[4] == 0 || !isDigit(input[idx[4]-1])) {
		datePart, op := input[idx[2]:idx[3]], input[idx[4]:idx[5]]
		if spans := findDateSpans(datePart, today); len(spans) > 0 {
			n, _ := strconv.Atoi(input[idx[6]:idx[7]])
			if op == "-" {
				n = -n
			}
			t := addUnit(spans[0].Start, n, timeUnit(input[idx[8]:idx[9]]))
			return textResult(t.Format(arithmeticLayout))
		}
	}

	spans := findDateSpans(input, today)
	standalone := isStandaloneDateReference(input, spans)
	if len(spans) > 0 && !standalone {
		if r := extractEvent(input, spans); r != nil {
			return r
		}
	}

	if m := weekRe.FindStringSubmatch(input); m != nil {
		week, _ := strconv.Atoi(m[1])
		if week >= 1 && week <= 53 {
			year, _ := now.ISOWeek()
			start, end := ISOWeekRange(year, week, l.Location)
			if week == 1 && start.Month() == time.December {
				start, end = ISOWeekRange(year+1, week, l.Location)
			}
			return textResult(start.Format(dayLayout) + " - " + end.Format(dayLayout))
		}
	}

	if len(spans) == 0 {
		return nil
	}
	span := spans[0]

	fields := strings.Fields(strings.ToLower(input))
	last := strings.Trim(fields[len(fields)-1], wordTrimSet)
	if unit, ok := countUnits[last]; ok {
		from, to := today, span.Start
		if span.IsRange {
			from, to = span.Start, span.End
		}
		return numberResult(float64(diffUnit(from, to, unit)))
	}

	if standalone {
		value := span.Start.Format(longDayLayout)
		if span.IsRange {
			value += " - " + span.End.Format(longDayLayout)
		}
		return textResult(value)
	}
	return nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// isStandaloneDateReference reports whether the line is only a date phrase
// (a range, a week or quarter expression, a date with a unit) rather than
// something happening on that date.
func isStandaloneDateReference(input string, spans []dateSpan) bool {
	rest := stripSpans(input, spans)
	if _, _, loc, ok := findTimeOfDay(rest); ok {
		rest = rest[:loc[0]] + " " + rest[loc[1]:]
	}
	rest = weekRe.ReplaceAllString(rest, " ")
	for _, w := range wordRe.FindAllString(rest, -1) {
		if len(w) < 2 || fillerWords[strings.ToLower(w)] {
			continue
		}
		return false
	}
	return true
}

func parsePercentages(text string) *Result {
	expr := text
	if strings.Contains(expr, "%") && strings.ContainsAny(expr, "+-*/") {
		expr = addPercentRe.ReplaceAllString(expr, "${1} + (${1} * ${2} / 100)")
		expr = subPercentRe.ReplaceAllString(expr, "${1} - (${1} * ${2} / 100)")
		expr = mulPercentRe.ReplaceAllString(expr, "${1} * (${2} / 100)")
		expr = divPercentRe.ReplaceAllString(expr, "${1} / (${2} / 100)")
	}
	expr = percentOfRe.ReplaceAllString(expr, "% * ")
	expr = percentRe.ReplaceAllString(expr, "(${1}/100)")

	if pureMathRe.MatchString(expr) {
		if v, err := Evaluate(expr, nil); err == nil {
			return numberResult(v)
		}
		return nil
	}
	if v, ok := evalPhrase(text); ok {
		return numberResult(v)
	}
	return nil
}

// parseProportion solves "if A x requires B y than C z requires ??".
func parseProportion(input string) *Result {
	m := proportionRe.FindStringSubmatch(input)
	if m == nil {
		return nil
	}
	a, _ := strconv.ParseFloat(m[1], 64)
	b, _ := strconv.ParseFloat(m[3], 64)
	c, _ := strconv.ParseFloat(m[5], 64)
	if a == 0 {
		return nil
	}
	d := b * c / a
	r := numberResult(d)
	r.Unit = m[4]
	r.Value = fmt.Sprintf("%s %s requires %.2f %s", strconv.FormatFloat(c, 'f', -1, 64), m[6], d, m[4])
	return r
}
