package analysis

import (
	"errors"
	"fmt"
)

// Sentinel errors wrapped at package boundaries.
var (
	ErrEmptyHand      = errors.New("hand is empty")
	ErrNoCandidates   = errors.New("no candidate patterns")
	ErrInvalidPattern = errors.New("invalid pattern")
	ErrUnknownPattern = errors.New("unknown pattern")
)

// FailureKind classifies why a stage could not produce normal output.
type FailureKind int

const (
	FailureNone FailureKind = iota
	// FailureInputValidation covers malformed pattern data and empty candidate sets.
	FailureInputValidation
	// FailurePartial is a single tile or pattern anomaly contained locally.
	FailurePartial
	// FailureEngine is a systemic fault; the result is empty with a diagnostic.
	FailureEngine
)

// String returns the kind name used in API payloads.
func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "none"
	case FailureInputValidation:
		return "input_validation"
	case FailurePartial:
		return "partial_computation"
	case FailureEngine:
		return "engine"
	}
	return fmt.Sprintf("failure(%d)", int(k))
}

// MarshalText implements encoding.TextMarshaler.
func (k FailureKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *FailureKind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "none", "":
		*k = FailureNone
	case "input_validation":
		*k = FailureInputValidation
	case "partial_computation":
		*k = FailurePartial
	case "engine":
		*k = FailureEngine
	default:
		return fmt.Errorf("unknown failure kind %q", text)
	}
	return nil
}

// Failure describes a contained fault attached to a result.
type Failure struct {
	Kind    FailureKind `json:"kind"`
	Subject string      `json:"subject,omitempty"`
	Message string      `json:"message"`
}

// Error implements error so a Failure can be logged or wrapped.
func (f Failure) Error() string {
	if f.Subject != "" {
		return fmt.Sprintf("%s: %s: %s", f.Kind, f.Subject, f.Message)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

// NewFailure builds a Failure from an error.
func NewFailure(kind FailureKind, subject string, err error) Failure {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return Failure{Kind: kind, Subject: subject, Message: msg}
}

// Recover converts a panic inside an engine stage into an engine failure. Use as
// `defer analysis.Recover(stage, &failure)`.
func Recover(stage string, out *Failure) {
	if r := recover(); r != nil {
		*out = Failure{Kind: FailureEngine, Subject: stage, Message: fmt.Sprintf("panic: %v", r)}
	}
}
