// Package diag collects errors and warnings surfaced by the workflow.
package diag

import (
	"github.com/zappabad/optionboard/internal/gateway"
)

// ID uniquely identifies a diagnostic.
type ID int64

// Severity ranks diagnostics.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warn"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// Source tells where a diagnostic came from.
type Source string

const (
	SourceGateway     Source = "gateway"
	SourceCorrelation Source = "correlation"
	SourceWorkflow    Source = "workflow"
	SourceTransport   Source = "transport"
)

// Diagnostic is one surfaced problem.
type Diagnostic struct {
	ID        ID
	Time      int64
	Source    Source
	Severity  Severity
	RequestID gateway.RequestID // 0 when not tied to a request
	Command   string            // kind of the originating command, if known
	Code      int
	Message   string
}

// Sink receives diagnostics. Implementations must not block.
type Sink interface {
	Report(Diagnostic)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Diagnostic)

func (f SinkFunc) Report(d Diagnostic) { f(d) }

// Discard drops every diagnostic.
var Discard Sink = SinkFunc(func(Diagnostic) {})
