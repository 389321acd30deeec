// Package eval runs scripted conversations against the orchestrator and
// checks the answers and handoff decisions.
package eval

import (
	"context"
	"time"

	"github.com/ziadkadry99/askdesk/internal/orchestrator"
)

// Chatter is the part of the orchestrator a suite needs.
type Chatter interface {
	Chat(ctx context.Context, req orchestrator.Request) (*orchestrator.Result, error)
}

// Expected error kinds for Case.ExpectError.
const (
	ErrorInvalidInput        = "invalid_input"
	ErrorUpstreamUnavailable = "upstream_unavailable"
)

// Suite is one YAML file of cases.
type Suite struct {
	Name string `yaml:"name"`
	// SharedSession runs every case in one conversation, in file order.
	SharedSession bool   `yaml:"shared_session"`
	Lang          string `yaml:"lang"`
	Cases         []Case `yaml:"cases"`

	Path string `yaml:"-"`
}

// Case is a single question and what the answer must satisfy.
type Case struct {
	Name           string   `yaml:"name"`
	Message        string   `yaml:"message"`
	Lang           string   `yaml:"lang"`
	ExpectHuman    *bool    `yaml:"expect_human"`
	ExpectContains []string `yaml:"expect_contains"`
	ExpectChunks   []string `yaml:"expect_chunks"`
	ExpectError    string   `yaml:"expect_error"`
}

// CaseResult is the outcome of one case.
type CaseResult struct {
	Suite      string
	Case       string
	Reply      string
	NeedsHuman bool
	SessionID  string
	Failures   []string
	Duration   time.Duration
}

// Passed reports whether every expectation held.
func (r CaseResult) Passed() bool {
	return len(r.Failures) == 0
}

// Report collects the results of a run.
type Report struct {
	Results  []CaseResult
	Duration time.Duration
}

// Failed returns the number of failing cases.
func (r *Report) Failed() int {
	n := 0
	for _, res := range r.Results {
		if !res.Passed() {
			n++
		}
	}
	return n
}

// Passed returns the number of passing cases.
func (r *Report) Passed() int {
	return len(r.Results) - r.Failed()
}
