// Package gate decides when an answer should be escalated to a human.
package gate

import (
	"math"
	"strings"

	"github.com/ziadkadry99/askdesk/internal/retrieval"
)

// Reason names why an exchange was escalated.
type Reason string

const (
	ReasonLowRelevance    Reason = "low_relevance"
	ReasonUncertainAnswer Reason = "uncertain_answer"
)

// Decision is the outcome of the gate for one exchange.
type Decision struct {
	NeedsHuman bool
	Reasons    []Reason
}

// Escalate marks the decision as needing a human for reason. A decision is
// never downgraded once escalated.
func (d *Decision) Escalate(reason Reason) {
	d.NeedsHuman = true
	for _, r := range d.Reasons {
		if r == reason {
			return
		}
	}
	d.Reasons = append(d.Reasons, reason)
}

// Gate holds the configured threshold and uncertainty phrases.
type Gate struct {
	threshold float64
	phrases   []string
}

// New creates a gate. Phrases are matched case-insensitively; blank ones are
// ignored.
func New(threshold float64, phrases []string) *Gate {
	lowered := make([]string, 0, len(phrases))
	for _, p := range phrases {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			lowered = append(lowered, p)
		}
	}
	return &Gate{threshold: threshold, phrases: lowered}
}

// Threshold returns the configured relevance threshold.
func (g *Gate) Threshold() float64 {
	return g.threshold
}

// LowRelevance reports whether the best hit scores below the threshold.
func (g *Gate) LowRelevance(hits []retrieval.Hit) bool {
	return IsLowRelevance(hits, g.threshold)
}

// Uncertain reports whether reply contains an uncertainty phrase.
func (g *Gate) Uncertain(reply string) bool {
	if reply == "" {
		return false
	}
	lower := strings.ToLower(reply)
	for _, p := range g.phrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// Provisional evaluates retrieval alone, before any reply exists.
func (g *Gate) Provisional(hits []retrieval.Hit) Decision {
	var d Decision
	if g.LowRelevance(hits) {
		d.Escalate(ReasonLowRelevance)
	}
	return d
}

// Finalize applies the reply check to a provisional decision. It can only
// escalate.
func (g *Gate) Finalize(d Decision, reply string) Decision {
	out := Decision{NeedsHuman: d.NeedsHuman, Reasons: append([]Reason(nil), d.Reasons...)}
	if g.Uncertain(reply) {
		out.Escalate(ReasonUncertainAnswer)
	}
	return out
}

// NeedsHuman is the full decision for hits and reply.
func (g *Gate) NeedsHuman(hits []retrieval.Hit, reply string) Decision {
	return g.Finalize(g.Provisional(hits), reply)
}

// IsLowRelevance reports whether the first hit's score, or 0 without hits,
// is strictly below threshold. A NaN score counts as low.
func IsLowRelevance(hits []retrieval.Hit, threshold float64) bool {
	top := 0.0
	if len(hits) > 0 {
		top = hits[0].Score
	}
	if math.IsNaN(top) {
		return true
	}
	return top < threshold
}
