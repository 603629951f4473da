package parser

import "time"

// Kind tags a Result. Plain values have an empty kind.
type Kind string

const (
	KindValue   Kind = ""
	KindFormula Kind = "formula"
	KindEvent   Kind = "event"
	KindError   Kind = "error"
)

// Result is the interpretation of one line.
type Result struct {
	Success bool     `json:"success"`
	Value   string   `json:"value"`
	Number  *float64 `json:"number,omitempty"`
	Unit    string   `json:"unit,omitempty"`
	Kind    Kind     `json:"type,omitempty"`
	// Original is the raw input for formulas.
	Original  string `json:"original,omitempty"`
	Event     *Event `json:"event,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorType string `json:"errorType,omitempty"`
}

// Error types reported in failed results.
const (
	ErrTypeValidation = "VALIDATION_ERROR"
	ErrTypeFormula    = "FORMULA_ERROR"
	ErrTypeUnknown    = "UNKNOWN_ERROR"
)

type EventStatus string

const (
	StatusNew       EventStatus = "new"
	StatusCompleted EventStatus = "completed"
	StatusCancelled EventStatus = "cancelled"
	StatusTentative EventStatus = "tentative"
)

// Event is a calendar entry extracted from a line.
type Event struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Start       time.Time   `json:"start"`
	End         time.Time   `json:"end"`
	Category    string      `json:"category"`
	Status      EventStatus `json:"status"`
	Location    string      `json:"location,omitempty"`
	Attendees   []string    `json:"attendees"`
	IsRange     bool        `json:"isRange"`
	Priority    string      `json:"priority"`
	Text        string      `json:"text"`
}

func numberResult(v float64) *Result {
	return &Result{Success: true, Value: FormatNumber(v), Number: &v}
}

func textResult(s string) *Result {
	return &Result{Success: true, Value: s}
}

func errorResult(msg, typ string) *Result {
	return &Result{Kind: KindError, Error: msg, ErrorType: typ}
}
