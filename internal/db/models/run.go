// Package models defines data structures shared by the invoker, the history
// store and the CLI.
package models

import (
	"fmt"
	"time"
)

// Outcome classifies how an invocation ended.
type Outcome string

const (
	OutcomeSuccess            Outcome = "success"
	OutcomeConfigurationError Outcome = "configuration_error"
	OutcomeConnectionError    Outcome = "connection_error"
	OutcomeQueryError         Outcome = "query_error"
)

// Run is the record of one invocation: connect, run one operation, release.
type Run struct {
	ID         string        `json:"id" yaml:"id"`
	Operation  string        `json:"operation" yaml:"operation"`
	Target     string        `json:"target,omitempty" yaml:"target,omitempty"`
	AuthMode   string        `json:"auth_mode" yaml:"auth_mode"`
	Proxied    bool          `json:"proxied" yaml:"proxied"`
	TLS        bool          `json:"tls" yaml:"tls"`
	Outcome    Outcome       `json:"outcome" yaml:"outcome"`
	StatusCode int           `json:"status_code" yaml:"status_code"`
	Body       string        `json:"body" yaml:"body"`
	Error      string        `json:"error,omitempty" yaml:"error,omitempty"`
	StartedAt  time.Time     `json:"started_at" yaml:"started_at"`
	Duration   time.Duration `json:"duration" yaml:"duration"`

	// Err is the typed error behind Error. It is not persisted.
	Err error `json:"-" yaml:"-"`
}

// Succeeded returns true if the run returned a success status.
func (r *Run) Succeeded() bool {
	return r.Outcome == OutcomeSuccess
}

// FormatDuration returns the duration rounded to milliseconds.
func (r *Run) FormatDuration() string {
	if r.Duration <= 0 {
		return "0ms"
	}
	if r.Duration < time.Second {
		return fmt.Sprintf("%dms", r.Duration.Milliseconds())
	}
	return r.Duration.Round(10 * time.Millisecond).String()
}

// ShortID returns the first eight characters of the run id.
func (r *Run) ShortID() string {
	if len(r.ID) <= 8 {
		return r.ID
	}
	return r.ID[:8]
}
