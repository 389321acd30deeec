// Package audit keeps a trail of who acted on human handoff requests.
package audit

import (
	"context"
	"time"
)

// ActorType identifies who performed an action.
type ActorType string

const (
	ActorAdmin  ActorType = "admin"
	ActorSystem ActorType = "system"
	ActorAgent  ActorType = "agent"
)

// Action describes what was done.
type Action string

const (
	ActionHandoffRequested Action = "handoff_requested"
	ActionHandoffResolved  Action = "handoff_resolved"
)

// Entry is a single audit trail record.
type Entry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	ActorType ActorType `json:"actor_type"`
	ActorID   string    `json:"actor_id"`
	Action    Action    `json:"action"`
	SessionID string    `json:"session_id"`
	HandoffID string    `json:"handoff_id"`
	Summary   string    `json:"summary"`
}

// Actor is the party a request acts on behalf of.
type Actor struct {
	Type ActorType
	ID   string
}

// SystemActor is attributed when no actor was attached to the context.
var SystemActor = Actor{Type: ActorSystem, ID: "askdesk"}

type actorKey struct{}

// WithActor attaches the acting party to ctx.
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

// ActorFrom returns the actor attached to ctx, or SystemActor.
func ActorFrom(ctx context.Context) Actor {
	if a, ok := ctx.Value(actorKey{}).(Actor); ok {
		return a
	}
	return SystemActor
}
