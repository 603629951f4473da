package parser

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// AddWorkdays steps one day at a time in the direction of n and counts
// only Monday to Friday. The time of day is kept.
func AddWorkdays(start time.Time, n int) time.Time {
	step := 1
	if n < 0 {
		step = -1
		n = -n
	}
	d := start
	for count := 0; count < n; {
		d = d.AddDate(0, 0, step)
		if isWorkday(d) {
			count++
		}
	}
	return d
}

// CountWorkdays counts Monday to Friday days between start and end, both
// inclusive. The count is negative when end is before start.
func CountWorkdays(start, end time.Time) int {
	s, e := civilDay(start), civilDay(end)
	if e.Before(s) {
		return -CountWorkdays(end, start)
	}
	count := 0
	for d := s; !d.After(e); d = d.AddDate(0, 0, 1) {
		if isWorkday(d) {
			count++
		}
	}
	return count
}

// ISOWeekRange returns midnight of the Monday and of the Sunday of the ISO
// week in loc.
func ISOWeekRange(year, week int, loc *time.Location) (time.Time, time.Time) {
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, loc)
	offset := (int(jan4.Weekday()) + 6) % 7
	monday := jan4.AddDate(0, 0, -offset+(week-1)*7)
	return monday, monday.AddDate(0, 0, 6)
}

func isWorkday(t time.Time) bool {
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// civilDay drops the zone so day arithmetic ignores DST shifts.
func civilDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// addMonths clamps to the last day of the target month, so Jan 31 + 1
// month is Feb 28 (or 29).
func addMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	target := time.Date(y, m+time.Month(n), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	if last := daysIn(target.Year(), target.Month()); d > last {
		d = last
	}
	return time.Date(target.Year(), target.Month(), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysBetween(a, b time.Time) int {
	return int(civilDay(b).Sub(civilDay(a)).Hours() / 24)
}

func monthsBetween(a, b time.Time) int {
	if b.Before(a) {
		return -monthsBetween(b, a)
	}
	m := (b.Year()-a.Year())*12 + int(b.Month()-a.Month())
	if addMonths(a, m).After(b) {
		m--
	}
	return m
}

// timeUnit normalises "days", "Workday" and friends to a singular unit.
func timeUnit(s string) string {
	s = strings.TrimSuffix(strings.ToLower(s), "s")
	switch s {
	case "day", "workday", "week", "month", "year":
		return s
	}
	return ""
}

func addUnit(t time.Time, n int, unit string) time.Time {
	switch unit {
	case "day":
		return t.AddDate(0, 0, n)
	case "workday":
		return AddWorkdays(t, n)
	case "week":
		return t.AddDate(0, 0, 7*n)
	case "month":
		return addMonths(t, n)
	case "year":
		return addMonths(t, 12*n)
	}
	return t
}

func diffUnit(start, end time.Time, unit string) int {
	switch unit {
	case "day":
		return daysBetween(start, end)
	case "workday":
		return CountWorkdays(start, end)
	case "week":
		return daysBetween(start, end) / 7
	case "month":
		return monthsBetween(start, end)
	case "year":
		return monthsBetween(start, end) / 12
	}
	return 0
}

// dateSpan is a date-like phrase found in a line. Start and End are
// midnight in the parser's location; single days have Start == End.
type dateSpan struct {
	pos, end   int
	Start, End time.Time
	IsRange    bool
}

const monthPattern = `jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|aug(?:ust)?|sept?(?:ember)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?`
const weekdayPattern = `monday|tuesday|wednesday|thursday|friday|saturday|sunday`
const countPattern = `\d+|a|an|one|two|three|four|five|six|seven|eight|nine|ten|eleven|twelve`

var countWords = map[string]int{
	"a": 1, "an": 1, "one": 1, "two": 2, "three": 3, "four": 4, "five": 5, "six": 6,
	"seven": 7, "eight": 8, "nine": 9, "ten": 10, "eleven": 11, "twelve": 12,
}

func parseCount(s string) int {
	if n, ok := countWords[strings.ToLower(s)]; ok {
		return n
	}
	n, _ := strconv.Atoi(s)
	return n
}

func parseMonth(s string) time.Month {
	s = strings.ToLower(s)
	for m := time.January; m <= time.December; m++ {
		if strings.HasPrefix(strings.ToLower(m.String()), s[:3]) {
			return m
		}
	}
	return 0
}

func parseWeekday(s string) time.Weekday {
	s = strings.ToLower(s)
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.ToLower(d.String()) == s {
			return d
		}
	}
	return time.Sunday
}

type spanMatcher struct {
	re      *regexp.Regexp
	resolve func(today time.Time, m []string) (start, end time.Time, isRange, ok bool)
}

func single(t time.Time, ok bool) (time.Time, time.Time, bool, bool) {
	return t, t, false, ok
}

func validDate(y int, m time.Month, d int, loc *time.Location) (time.Time, bool) {
	if m < time.January || m > time.December || d < 1 || d > daysIn(y, m) {
		return time.Time{}, false
	}
	return time.Date(y, m, d, 0, 0, 0, 0, loc), true
}

func yearOr(s string, def int) int {
	if s == "" {
		return def
	}
	y, _ := strconv.Atoi(s)
	if y < 100 {
		y += 2000
	}
	return y
}

func weekStart(t time.Time) time.Time {
	return t.AddDate(0, 0, -((int(t.Weekday()) + 6) % 7))
}

var spanMatchers = []spanMatcher{
	{
		re: regexp.MustCompile(`\b(\d{4})-(\d{1,2})-(\d{1,2})\b`),
		resolve: func(today time.Time, m []string) (time.Time, time.Time, bool, bool) {
			y, _ := strconv.Atoi(m[1])
			mo, _ := strconv.Atoi(m[2])
			d, _ := strconv.Atoi(m[3])
			return single(validDate(y, time.Month(mo), d, today.Location()))
		},
	},
	{
		// month/day/year
		re: regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{4}|\d{2})\b`),
		resolve: func(today time.Time, m []string) (time.Time, time.Time, bool, bool) {
			mo, _ := strconv.Atoi(m[1])
			d, _ := strconv.Atoi(m[2])
			return single(validDate(yearOr(m[3], today.Year()), time.Month(mo), d, today.Location()))
		},
	},
	{
		re: regexp.MustCompile(`(?i)\b(` + monthPattern + `)\.?\s+(\d{1,2})(?:st|nd|rd|th)?(?:,?\s+(\d{4}))?\b`),
		resolve: func(today time.Time, m []string) (time.Time, time.Time, bool, bool) {
			d, _ := strconv.Atoi(m[2])
			return single(validDate(yearOr(m[3], today.Year()), parseMonth(m[1]), d, today.Location()))
		},
	},
	{
		re: regexp.MustCompile(`(?i)\b(\d{1,2})(?:st|nd|rd|th)?\s+(?:of\s+)?(` + monthPattern + `)(?:,?\s+(\d{4}))?\b`),
		resolve: func(today time.Time, m []string) (time.Time, time.Time, bool, bool) {
			d, _ := strconv.Atoi(m[1])
			return single(validDate(yearOr(m[3], today.Year()), parseMonth(m[2]), d, today.Location()))
		},
	},
	{
		re: regexp.MustCompile(`(?i)\b(` + monthPattern + `)\s+(\d{4})\b`),
		resolve: func(today time.Time, m []string) (time.Time, time.Time, bool, bool) {
			y, _ := strconv.Atoi(m[2])
			mo := parseMonth(m[1])
			start := time.Date(y, mo, 1, 0, 0, 0, 0, today.Location())
			return start, time.Date(y, mo, daysIn(y, mo), 0, 0, 0, 0, today.Location()), true, true
		},
	},
	{
		re: regexp.MustCompile(`(?i)\b(today|tonight|tomorrow|yesterday)\b`),
		resolve: func(today time.Time, m []string) (time.Time, time.Time, bool, bool) {
			switch strings.ToLower(m[1]) {
			case "tomorrow":
				return single(today.AddDate(0, 0, 1), true)
			case "yesterday":
				return single(today.AddDate(0, 0, -1), true)
			}
			return single(today, true)
		},
	},
	{
		re: regexp.MustCompile(`(?i)\b(?:(next|last|this|on|coming)\s+)?(` + weekdayPattern + `)\b`),
		resolve: func(today time.Time, m []string) (time.Time, time.Time, bool, bool) {
			wd := parseWeekday(m[2])
			switch strings.ToLower(m[1]) {
			case "next":
				next := weekStart(today).AddDate(0, 0, 7)
				return single(next.AddDate(0, 0, (int(wd)+6)%7), true)
			case "last":
				delta := (int(today.Weekday()) - int(wd) + 7) % 7
				if delta == 0 {
					delta = 7
				}
				return single(today.AddDate(0, 0, -delta), true)
			}
			delta := (int(wd) - int(today.Weekday()) + 7) % 7
			return single(today.AddDate(0, 0, delta), true)
		},
	},
	{
		re: regexp.MustCompile(`(?i)\b(next|last|this)\s+(week|weekend|month|year)\b`),
		resolve: func(today time.Time, m []string) (time.Time, time.Time, bool, bool) {
			shift := 0
			switch strings.ToLower(m[1]) {
			case "next":
				shift = 1
			case "last":
				shift = -1
			}
			switch strings.ToLower(m[2]) {
			case "week":
				s := weekStart(today).AddDate(0, 0, 7*shift)
				return s, s.AddDate(0, 0, 6), true, true
			case "weekend":
				s := weekStart(today).AddDate(0, 0, 7*shift+5)
				return s, s.AddDate(0, 0, 1), true, true
			case "month":
				s := addMonths(time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location()), shift)
				return s, s.AddDate(0, 0, daysIn(s.Year(), s.Month())-1), true, true
			default:
				y := today.Year() + shift
				return time.Date(y, 1, 1, 0, 0, 0, 0, today.Location()),
					time.Date(y, 12, 31, 0, 0, 0, 0, today.Location()), true, true
			}
		},
	},
	{
		re: regexp.MustCompile(`(?i)\bin\s+(` + countPattern + `)\s+(days?|workdays?|weeks?|months?|years?)\b`),
		resolve: func(today time.Time, m []string) (time.Time, time.Time, bool, bool) {
			return single(addUnit(today, parseCount(m[1]), timeUnit(m[2])), true)
		},
	},
	{
		re: regexp.MustCompile(`(?i)\b(` + countPattern + `)\s+(days?|workdays?|weeks?|months?|years?)\s+(ago|from now|later)\b`),
		resolve: func(today time.Time, m []string) (time.Time, time.Time, bool, bool) {
			n := parseCount(m[1])
			if strings.EqualFold(m[3], "ago") {
				n = -n
			}
			return single(addUnit(today, n, timeUnit(m[2])), true)
		},
	},
	{
		re: regexp.MustCompile(`(?i)\bq([1-4])(?:\s+(\d{4}))?\b`),
		resolve: func(today time.Time, m []string) (time.Time, time.Time, bool, bool) {
			q, _ := strconv.Atoi(m[1])
			y := yearOr(m[2], today.Year())
			s := time.Date(y, time.Month(3*(q-1)+1), 1, 0, 0, 0, 0, today.Location())
			e := addMonths(s, 3).AddDate(0, 0, -1)
			return s, e, true, true
		},
	},
	{
		re: regexp.MustCompile(`(?i)\b(first|second|third|fourth|last)\s+(week|weekend)\s+of\s+(` + monthPattern + `)(?:\s+(\d{4}))?\b`),
		resolve: func(today time.Time, m []string) (time.Time, time.Time, bool, bool) {
			y := yearOr(m[4], today.Year())
			mo := parseMonth(m[3])
			first := time.Date(y, mo, 1, 0, 0, 0, 0, today.Location())
			// first Monday of the month
			monday := first.AddDate(0, 0, (8-int(first.Weekday()))%7)
			var s time.Time
			switch strings.ToLower(m[1]) {
			case "first":
				s = monday
			case "second":
				s = monday.AddDate(0, 0, 7)
			case "third":
				s = monday.AddDate(0, 0, 14)
			case "fourth":
				s = monday.AddDate(0, 0, 21)
			default:
				last := time.Date(y, mo, daysIn(y, mo), 0, 0, 0, 0, today.Location())
				s = weekStart(last)
			}
			if strings.EqualFold(m[2], "weekend") {
				s = s.AddDate(0, 0, 5)
				return s, s.AddDate(0, 0, 1), true, true
			}
			return s, s.AddDate(0, 0, 6), true, true
		},
	},
}

var (
	rangeJoinRe   = regexp.MustCompile(`(?i)^\s*(?:to|until|till|through|thru|-|–|and)\s*$`)
	rangeFromRe   = regexp.MustCompile(`(?i)\b(?:from|between)\s+$`)
	betweenTailRe = regexp.MustCompile(`(?i)\bbetween\s+$`)
)

// findDateSpans returns the date phrases in text in order of appearance,
// with "X to Y" pairs merged into ranges. today must be midnight in the
// parser's location.
func findDateSpans(text string, today time.Time) []dateSpan {
	var cands []dateSpan
	for _, sm := range spanMatchers {
		for _, idx := range sm.re.FindAllStringSubmatchIndex(text, -1) {
			groups := make([]string, len(idx)/2)
			for i := range groups {
				if idx[2*i] >= 0 {
					groups[i] = text[idx[2*i]:idx[2*i+1]]
				}
			}
			start, end, isRange, ok := sm.resolve(today, groups)
			if !ok {
				continue
			}
			cands = append(cands, dateSpan{pos: idx[0], end: idx[1], Start: start, End: end, IsRange: isRange})
		}
	}

	// longest first, then leftmost; keep non-overlapping
	sort.SliceStable(cands, func(i, j int) bool {
		li, lj := cands[i].end-cands[i].pos, cands[j].end-cands[j].pos
		if li != lj {
			return li > lj
		}
		return cands[i].pos < cands[j].pos
	})
	var picked []dateSpan
	for _, c := range cands {
		overlaps := false
		for _, p := range picked {
			if c.pos < p.end && p.pos < c.end {
				overlaps = true
				break
			}
		}
		if !overlaps {
			picked = append(picked, c)
		}
	}
	sort.Slice(picked, func(i, j int) bool { return picked[i].pos < picked[j].pos })

	var out []dateSpan
	for i := 0; i < len(picked); i++ {
		cur := picked[i]
		if i+1 < len(picked) {
			next := picked[i+1]
			gap := text[cur.end:next.pos]
			if rangeJoinRe.MatchString(gap) {
				isAnd := strings.EqualFold(strings.TrimSpace(gap), "and")
				if !isAnd || betweenTailRe.MatchString(text[:cur.pos]) {
					merged := dateSpan{pos: cur.pos, end: next.end, Start: cur.Start, End: next.End, IsRange: true}
					if loc := rangeFromRe.FindStringIndex(text[:cur.pos]); loc != nil {
						merged.pos = loc[0]
					}
					out = append(out, merged)
					i++
					continue
				}
			}
		}
		out = append(out, cur)
	}
	return out
}

// stripSpans removes the spans from text and collapses whitespace.
func stripSpans(text string, spans []dateSpan) string {
	var b strings.Builder
	last := 0
	for _, s := range spans {
		b.WriteString(text[last:s.pos])
		b.WriteString(" ")
		last = s.end
	}
	b.WriteString(text[last:])
	return strings.TrimSpace(spacesRe.ReplaceAllString(b.String(), " "))
}

var timeOfDayRe = regexp.MustCompile(`(?i)\b(?:at\s+)?(\d{1,2})(?::([0-5]\d))?\s*(am|pm)\b|\b(?:at\s+)?([01]?\d|2[0-3]):([0-5]\d)\b`)

// findTimeOfDay returns the first clock time in text and its byte range.
func findTimeOfDay(text string) (hour, minute int, loc []int, ok bool) {
	m := timeOfDayRe.FindStringSubmatchIndex(text)
	if m == nil {
		return 0, 0, nil, false
	}
	group := func(i int) string {
		if m[2*i] < 0 {
			return ""
		}
		return text[m[2*i]:m[2*i+1]]
	}
	if group(1) != "" {
		hour, _ = strconv.Atoi(group(1))
		if hour < 1 || hour > 12 {
			return 0, 0, nil, false
		}
		minute, _ = strconv.Atoi(group(2))
		pm := strings.EqualFold(group(3), "pm")
		hour %= 12
		if pm {
			hour += 12
		}
	} else {
		hour, _ = strconv.Atoi(group(4))
		minute, _ = strconv.Atoi(group(5))
	}
	return hour, minute, m[:2], true
}
