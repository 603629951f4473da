// Package parser interprets single lines of a note: arithmetic, variable
// assignment, unit conversion, date arithmetic, calendar events,
// percentages and proportions.
package parser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/01011010/notesum-hybrid/internal/common"
)

// Domain is the interpretation family chosen for a line.
type Domain string

const (
	DomainMath     Domain = "math"
	DomainUnit     Domain = "unit"
	DomainLanguage Domain = "language"
)

var (
	pureMathRe      = regexp.MustCompile(`^[\d\s+\-*/().]+$`)
	unitShapeRe     = regexp.MustCompile(`(?i)(?:convert\s+)?\d+\.?\d*\s*[a-zA-Z°μ]+\s+(?:to|in|into)\s+[a-zA-Z°μ]+`)
	languageHintsRe = regexp.MustCompile(`(?i)\b(?:next|last|ago|from|later|in|today|tomorrow|yesterday)\b|\b(?:` + weekdayPattern + `)\b`)
)

// Classify picks the domain for line. It is pure and total apart from
// blank input, which fails with common.ErrValidation.
func Classify(line string) (Domain, error) {
	if strings.TrimSpace(line) == "" {
		return "", fmt.Errorf("%w: empty input", common.ErrValidation)
	}
	switch {
	case pureMathRe.MatchString(line):
		return DomainMath, nil
	case unitShapeRe.MatchString(line), siNotationRe.MatchString(line):
		return DomainUnit, nil
	case languageHintsRe.MatchString(line):
		return DomainLanguage, nil
	}
	return DomainLanguage, nil
}
