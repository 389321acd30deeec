package session

import "time"

// Policy decides how long sessions are retained. The zero value keeps every
// session for the lifetime of the process.
type Policy struct {
	// IdleTTL drops sessions not resolved for this long. Zero disables it.
	IdleTTL time.Duration
	// MaxSessions caps the number of retained sessions, evicting the least
	// recently resolved one first. Zero means unbounded.
	MaxSessions int
}

// KeepsForever reports whether the policy never evicts.
func (p Policy) KeepsForever() bool {
	return p.IdleTTL <= 0 && p.MaxSessions <= 0
}

func (p Policy) expired(now, lastSeen time.Time) bool {
	return p.IdleTTL > 0 && now.Sub(lastSeen) > p.IdleTTL
}
