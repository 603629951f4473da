package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/01011010/notesum-hybrid/internal/parser"
)

var fixedNow = time.Date(2025, 3, 5, 10, 0, 0, 0, time.UTC)

func eventOf(t *testing.T, line string) *parser.Event {
	t.Helper()
	p := parser.New(nil, parser.WithClock(func() time.Time { return fixedNow }))
	r := p.HandleInput(line)
	require.NotNil(t, r)
	require.Equal(t, parser.KindEvent, r.Kind, line)
	require.NotNil(t, r.Event)
	return r.Event
}

func titles(evs []parser.Event) []string {
	out := make([]string, 0, len(evs))
	for _, ev := range evs {
		out = append(out, ev.Title)
	}
	return out
}

func TestSet_DeduplicatesByID(t *testing.T) {
	s := New()
	line := "Lunch with Sarah tomorrow at 1pm"

	assert.True(t, s.Set("p1", 1, eventOf(t, line)))
	assert.False(t, s.Set("p1", 1, eventOf(t, line)))
	assert.Equal(t, 1, s.Len())

	// same text on another line shares the event
	assert.True(t, s.Set("p1", 4, eventOf(t, line)))
	assert.Equal(t, 1, s.Len())

	assert.True(t, s.Remove("p1", 1))
	assert.Equal(t, 1, s.Len())
	assert.True(t, s.Remove("p1", 4))
	assert.Zero(t, s.Len())
	assert.False(t, s.Remove("p1", 4))
}

func TestSet_ReplacesEventWhenLineChanges(t *testing.T) {
	s := New()

	s.Set("p1", 1, eventOf(t, "Lunch with Sarah tomorrow at 1pm"))
	s.Set("p1", 2, eventOf(t, "Dentist friday"))

	assert.True(t, s.Set("p1", 1, eventOf(t, "Dinner with Sarah tomorrow at 7pm")))
	assert.Equal(t, []string{"Dinner", "Dentist"}, titles(s.Events()))

	// a line that no longer carries an event drops it
	assert.True(t, s.Set("p1", 2, nil))
	assert.Equal(t, []string{"Dinner"}, titles(s.Events()))
}

func TestRenumber(t *testing.T) {
	s := New()
	s.Set("p1", 1, eventOf(t, "Lunch with Sarah tomorrow at 1pm"))
	s.Set("p1", 2, eventOf(t, "Dentist friday"))
	s.Set("p1", 3, eventOf(t, "Conference at Berlin Expo next week"))
	s.Set("p2", 2, eventOf(t, "Dentist friday"))

	// line 2 of p1 removed, line 3 moves up
	s.Renumber("p1", map[int]int{1: 1, 3: 2})

	assert.Len(t, s.Events(), 3)
	assert.True(t, s.Remove("p1", 2))
	assert.Equal(t, []string{"Lunch", "Dentist"}, titles(s.Events()))

	// the shared event survives as long as p2 holds it
	s.ClearPage("p1")
	assert.Equal(t, []string{"Dentist"}, titles(s.Events()))
	s.ClearPage("p2")
	assert.Zero(t, s.Len())
}

func TestMonths(t *testing.T) {
	s := New()
	s.Set("p1", 1, eventOf(t, "Dentist friday"))
	s.Set("p1", 2, eventOf(t, "Call Mark on 2 april"))
	s.Set("p1", 3, eventOf(t, "Lunch with Sarah tomorrow at 1pm"))

	months := s.Months()
	require.Len(t, months, 2)
	assert.Equal(t, "March 2025", months[0].Key)
	assert.Equal(t, []string{"Lunch", "Dentist"}, titles(months[0].Events))
	assert.Equal(t, "April 2025", months[1].Key)
	assert.Len(t, months[1].Events, 1)
}

func TestEvents_ReturnsCopies(t *testing.T) {
	s := New()
	ev := eventOf(t, "Lunch with Sarah tomorrow at 1pm")
	s.Set("p1", 1, ev)
	ev.Attendees[0] = "changed"

	got := s.Events()
	require.Len(t, got, 1)
	assert.Equal(t, []string{"Sarah"}, got[0].Attendees)
	got[0].Attendees[0] = "again"
	assert.Equal(t, []string{"Sarah"}, s.Events()[0].Attendees)
}
