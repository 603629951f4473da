package parser

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var statusMarkers = []struct {
	status EventStatus
	re     *regexp.Regexp
}{
	{StatusCompleted, regexp.MustCompile(`(?i)\b(?:completed|complete|done|finished|ok)\b|\[x\]`)},
	{StatusCancelled, regexp.MustCompile(`(?i)\b(?:cancelled|canceled|postponed|rescheduled)\b`)},
	{StatusTentative, regexp.MustCompile(`(?i)\b(?:tentative|maybe|possibly|tbc|to be confirmed)\b`)},
}

var nonPersonWords = map[string]bool{
	"monday": true, "tuesday": true, "wednesday": true, "thursday": true, "friday": true,
	"saturday": true, "sunday": true, "january": true, "february": true, "march": true,
	"april": true, "may": true, "june": true, "july": true, "august": true, "september": true,
	"october": true, "november": true, "december": true, "home": true, "office": true,
	"school": true, "work": true, "hospital": true, "proposal": true, "report": true,
	"meeting": true, "presentation": true, "today": true, "tomorrow": true, "yesterday": true,
}

var businessTerms = []string{
	"meeting", "presentation", "training", "session", "pitch", "review",
	"call", "submit", "create", "proposal",
}

var (
	checkboxRe   = regexp.MustCompile(`(?i)\[[ x]\]`)
	bulletRe     = regexp.MustCompile(`^[-*•]+\s*`)
	leadingOnRe  = regexp.MustCompile(`(?i)\s+\b(?:on|at|by)$`)
	withPrefixRe = regexp.MustCompile(`(?i)^with\s+`)
	personRe     = regexp.MustCompile(`^[A-Z][a-z]+$`)
	locationRe   = regexp.MustCompile(`\b(?:at|in)\s+(the\s+[A-Za-z]+|[A-Z][\w'-]*(?:\s+[A-Z][\w'-]*)*)`)
	wordTrimSet  = ".,;:!?()\"'"
)

var titleCaser = cases.Title(language.English, cases.NoLower)

// extractEvent builds a calendar event from a line that carries a date
// span and some action text.
func extractEvent(input string, spans []dateSpan) *Result {
	if len(spans) == 0 {
		return nil
	}

	status := StatusNew
	for _, m := range statusMarkers {
		if m.re.MatchString(input) {
			status = m.status
			break
		}
	}

	span := spans[0]
	start, end := span.Start, span.End
	rest := stripSpans(input, spans)
	if h, m, loc, ok := findTimeOfDay(rest); ok {
		start = time.Date(start.Year(), start.Month(), start.Day(), h, m, 0, 0, start.Location())
		if !span.IsRange {
			end = start
		}
		rest = strings.TrimSpace(rest[:loc[0]] + " " + rest[loc[1]:])
	}

	clean := checkboxRe.ReplaceAllString(rest, "")
	clean = bulletRe.ReplaceAllString(strings.TrimSpace(clean), "")
	clean = strings.TrimSpace(spacesRe.ReplaceAllString(clean, " "))
	clean = leadingOnRe.ReplaceAllString(clean, "")

	words := strings.Fields(clean)
	if len(words) == 0 {
		return nil
	}
	first := strings.Trim(words[0], wordTrimSet)
	if first == "" {
		return nil
	}
	title := titleCaser.String(first)
	description := withPrefixRe.ReplaceAllString(strings.Join(words[1:], " "), "")

	location := ""
	if m := locationRe.FindStringSubmatch(clean); m != nil {
		location = m[1]
	}
	locationWords := make(map[string]bool)
	for _, w := range strings.Fields(location) {
		locationWords[w] = true
	}

	attendees := []string{}
	seen := make(map[string]bool)
	for _, w := range strings.Fields(description) {
		w = strings.Trim(w, wordTrimSet)
		if !personRe.MatchString(w) || nonPersonWords[strings.ToLower(w)] || locationWords[w] || seen[w] {
			continue
		}
		seen[w] = true
		attendees = append(attendees, w)
	}

	category := "personal"
	lowered := strings.ToLower(title + " " + description)
	for _, term := range businessTerms {
		if strings.Contains(lowered, term) {
			category = "business"
			break
		}
	}

	ev := &Event{
		ID:          EventID(title, start, input),
		Title:       title,
		Description: description,
		Start:       start,
		End:         end,
		Category:    category,
		Status:      status,
		Location:    location,
		Attendees:   attendees,
		IsRange:     span.IsRange,
		Priority:    "medium",
		Text:        input,
	}

	value := fmt.Sprintf("%s Event: %s", status, start.Format("Mon, 02 Jan 2006"))
	if ev.IsRange {
		value += " to " + end.Format("Mon, 02 Jan 2006")
	}
	return &Result{Success: true, Value: value, Kind: KindEvent, Event: ev}
}

// EventID is a stable identity for an event so re-parsing an unchanged
// line does not produce a duplicate.
func EventID(title string, start time.Time, raw string) string {
	sum := sha256.Sum256([]byte(title + "|" + start.UTC().Format(time.RFC3339) + "|" + raw))
	return hex.EncodeToString(sum[:16])
}
