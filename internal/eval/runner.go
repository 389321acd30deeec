package eval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/ziadkadry99/askdesk/internal/orchestrator"
	"github.com/ziadkadry99/askdesk/internal/progress"
)

// Runner executes suites against a Chatter.
type Runner struct {
	chat     Chatter
	reporter progress.Reporter
	logger   *slog.Logger
}

// NewRunner returns a runner. A nil reporter disables progress output and a
// nil logger means slog.Default().
func NewRunner(chat Chatter, reporter progress.Reporter, logger *slog.Logger) *Runner {
	if reporter == nil {
		reporter = progress.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		chat:     chat,
		reporter: reporter,
		logger:   logger.With("component", "eval"),
	}
}

// Run executes every case of every suite in order. It stops early only when
// ctx is done.
func (r *Runner) Run(ctx context.Context, suites []Suite) (*Report, error) {
	total := 0
	for _, s := range suites {
		total += len(s.Cases)
	}

	start := time.Now()
	report := &Report{}
	r.reporter.Start(total)
	defer r.reporter.Finish()

	done := 0
	for _, s := range suites {
		sessionID := ""
		for _, c := range s.Cases {
			if err := ctx.Err(); err != nil {
				report.Duration = time.Since(start)
				return report, err
			}

			res := r.runCase(ctx, s, c, sessionID)
			if s.SharedSession && res.SessionID != "" {
				sessionID = res.SessionID
			}
			report.Results = append(report.Results, res)

			done++
			r.reporter.Update(done, s.Name+": "+c.Name)
			r.logger.Debug("case finished", "suite", s.Name, "case", c.Name, "passed", res.Passed(), "duration", res.Duration)
		}
	}
	report.Duration = time.Since(start)
	return report, nil
}

func (r *Runner) runCase(ctx context.Context, s Suite, c Case, sessionID string) CaseResult {
	lang := c.Lang
	if lang == "" {
		lang = s.Lang
	}

	start := time.Now()
	res, err := r.chat.Chat(ctx, orchestrator.Request{
		Message:   c.Message,
		Lang:      lang,
		SessionID: sessionID,
	})
	out := CaseResult{
		Suite:    s.Name,
		Case:     c.Name,
		Duration: time.Since(start),
	}

	if err != nil {
		if c.ExpectError == "" {
			out.Failures = append(out.Failures, fmt.Sprintf("unexpected error: %v", err))
		} else if kind := errorKind(err); kind != c.ExpectError {
			out.Failures = append(out.Failures, fmt.Sprintf("expected error %s, got %v", c.ExpectError, err))
		}
		return out
	}

	out.Reply = res.ReplyText
	out.NeedsHuman = res.NeedsHuman
	out.SessionID = res.SessionID
	out.Failures = check(c, res)
	return out
}

func check(c Case, res *orchestrator.Result) []string {
	var failures []string
	if c.ExpectError != "" {
		failures = append(failures, fmt.Sprintf("expected error %s, got a reply", c.ExpectError))
	}
	if c.ExpectHuman != nil && *c.ExpectHuman != res.NeedsHuman {
		failures = append(failures, fmt.Sprintf("needsHuman = %t, want %t", res.NeedsHuman, *c.ExpectHuman))
	}

	reply := strings.ToLower(res.ReplyText)
	for _, want := range c.ExpectContains {
		if !strings.Contains(reply, strings.ToLower(want)) {
			failures = append(failures, fmt.Sprintf("reply does not contain %q", want))
		}
	}

	if len(c.ExpectChunks) > 0 {
		used := make([]string, len(res.UsedChunks))
		for i, u := range res.UsedChunks {
			used[i] = u.ID
		}
		for _, id := range c.ExpectChunks {
			if !slices.Contains(used, id) {
				failures = append(failures, fmt.Sprintf("chunk %s not used (used: %s)", id, strings.Join(used, ", ")))
			}
		}
	}
	return failures
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, orchestrator.ErrInvalidInput):
		return ErrorInvalidInput
	case errors.Is(err, orchestrator.ErrUpstreamUnavailable):
		return ErrorUpstreamUnavailable
	default:
		return ""
	}
}
