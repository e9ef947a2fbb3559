package models

import (
	"fmt"
	"strings"
)

// Severity ranks how serious a finding is.
type Severity string

const (
	// SeverityInfo is informational only.
	SeverityInfo Severity = "info"
	// SeverityWarning should be reviewed but does not fail validation.
	SeverityWarning Severity = "warning"
	// SeverityError fails validation.
	SeverityError Severity = "error"
)

// Valid returns true if the severity is a known value.
func (s Severity) Valid() bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityError:
		return true
	default:
		return false
	}
}

// FindingCode is the stable machine-readable category of a finding.
type FindingCode string

const (
	// CodeBrokenReference means a referenced name resolves nowhere.
	CodeBrokenReference FindingCode = "broken_reference"
	// CodeTypeMismatch means two declarations of the same name carry
	// incompatible type families.
	CodeTypeMismatch FindingCode = "type_mismatch"
	// CodeOrphanedCapability means a declared operation has no handling
	// entry downstream.
	CodeOrphanedCapability FindingCode = "orphaned_capability"
	// CodeNamingMismatch means two names refer to the same thing but are
	// rendered in different conventions.
	CodeNamingMismatch FindingCode = "naming_mismatch"
	// CodeIncompleteExtraction means an artifact loaded without the
	// structural markers extraction needs.
	CodeIncompleteExtraction FindingCode = "incomplete_extraction"
)

// Finding is one coherence issue. Findings are accumulated, never mutated.
type Finding struct {
	// Severity ranks the finding.
	Severity Severity `json:"severity"`
	// Code is the stable category.
	Code FindingCode `json:"code"`
	// Source is the artifact the issue originates in.
	Source ArtifactType `json:"source"`
	// Target is the artifact the issue points at. May equal Source for
	// single-artifact findings.
	Target ArtifactType `json:"target"`
	// Field is the identifier involved, when one applies.
	Field string `json:"field,omitempty"`
	// Message is the human-readable description.
	Message string `json:"message"`
}

// Signature returns the identity used to detect the same issue recurring
// across validation iterations. The free-text message stays out of the key
// so rewording does not split a recurring issue.
func (f Finding) Signature() string {
	return fmt.Sprintf("%s|%s|%s", f.Source, f.Field, f.Code)
}

// String renders the finding for logs and plain output.
func (f Finding) String() string {
	var b strings.Builder
	b.WriteString(strings.ToUpper(string(f.Severity)))
	b.WriteString(" [")
	b.WriteString(string(f.Code))
	b.WriteString("] ")
	b.WriteString(string(f.Source))
	if f.Target != "" && f.Target != f.Source {
		b.WriteString(" -> ")
		b.WriteString(string(f.Target))
	}
	if f.Field != "" {
		b.WriteString(" ")
		b.WriteString(f.Field)
	}
	b.WriteString(": ")
	b.WriteString(f.Message)
	return b.String()
}

// Status is the overall outcome of one validation pass.
type Status string

const (
	// StatusPass means no findings at all.
	StatusPass Status = "PASS"
	// StatusWarnings means findings exist but none are errors.
	StatusWarnings Status = "WARNINGS"
	// StatusFail means at least one error-severity finding exists.
	StatusFail Status = "FAIL"
)

// Valid returns true if the status is a known value.
func (s Status) Valid() bool {
	switch s {
	case StatusPass, StatusWarnings, StatusFail:
		return true
	default:
		return false
	}
}

// AggregateStatus computes the overall status from a finding list. Pure:
// FAIL if any error exists, WARNINGS if any finding exists at all, PASS
// only for an empty list.
func AggregateStatus(findings []Finding) Status {
	if len(findings) == 0 {
		return StatusPass
	}
	for _, f := range findings {
		if f.Severity == SeverityError {
			return StatusFail
		}
	}
	return StatusWarnings
}

// CountBySeverity returns error, warning and info counts for a finding
// list.
func CountBySeverity(findings []Finding) (errors, warnings, infos int) {
	for _, f := range findings {
		switch f.Severity {
		case SeverityError:
			errors++
		case SeverityWarning:
			warnings++
		case SeverityInfo:
			infos++
		}
	}
	return errors, warnings, infos
}
