package core

import (
	"fmt"
	"strings"
)

// =============================================================================
// Severity
// =============================================================================

// Severity indicates the importance of a validation event.
type Severity int

// Severity levels for validation events, most severe first.
const (
	// SeverityError marks the model as broken.
	SeverityError Severity = iota
	// SeverityDanger indicates a likely defect that does not break the model.
	SeverityDanger
	// SeverityWarning indicates a potential issue that should be reviewed.
	SeverityWarning
	// SeverityNote indicates informational feedback.
	SeverityNote
)

// String returns the string representation of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityDanger:
		return "danger"
	case SeverityWarning:
		return "warning"
	case SeverityNote:
		return "note"
	default:
		return "unknown"
	}
}

// ParseSeverity converts a string to a Severity value.
// Returns the severity and true if valid, or SeverityWarning and false if invalid.
func ParseSeverity(s string) (Severity, bool) {
	switch strings.ToLower(s) {
	case "error":
		return SeverityError, true
	case "danger":
		return SeverityDanger, true
	case "warning":
		return SeverityWarning, true
	case "note":
		return SeverityNote, true
	default:
		return SeverityWarning, false
	}
}

// =============================================================================
// Validation events
// =============================================================================

// ValidationEvent is a single finding produced while assembling or
// validating a model.
type ValidationEvent struct {
	ID       string   `json:"id"`
	Severity Severity `json:"severity"`
	ShapeID  string   `json:"shape_id,omitempty"`
	Message  string   `json:"message"`
	// Source is the file the event originated from, if any.
	Source string `json:"source,omitempty"`
}

func (e ValidationEvent) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] ", strings.ToUpper(e.Severity.String()))
	if e.ShapeID != "" {
		fmt.Fprintf(&b, "%s: ", e.ShapeID)
	}
	b.WriteString(e.Message)
	fmt.Fprintf(&b, " | %s", e.ID)
	if e.Source != "" {
		fmt.Fprintf(&b, " (%s)", e.Source)
	}
	return b.String()
}

// ContainsErrors reports whether any event has error severity.
func ContainsErrors(events []ValidationEvent) bool {
	for _, e := range events {
		if e.Severity == SeverityError {
			return true
		}
	}
	return false
}

// CountBySeverity tallies events per severity.
func CountBySeverity(events []ValidationEvent) map[Severity]int {
	counts := make(map[Severity]int)
	for _, e := range events {
		counts[e.Severity]++
	}
	return counts
}
