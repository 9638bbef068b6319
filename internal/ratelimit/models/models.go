package models

import "time"

// Class groups routes that share one quota per actor.
type Class string

const (
	ClassCoinOps   Class = "coin_ops"
	ClassGodMode   Class = "god_mode"
	ClassCorporate Class = "corporate"
)

// Limit is the number of requests allowed in a sliding window.
type Limit struct {
	Requests int
	Window   time.Duration
}

func PerMinute(n int) Limit {
	return Limit{Requests: n, Window: time.Minute}
}

// Result is the outcome of one check. ResetAt is when the oldest counted
// request leaves the window.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter is the whole seconds until a slot frees up, at least one.
func (r Result) RetryAfter(now time.Time) int {
	secs := int(r.ResetAt.Sub(now).Round(time.Second) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}

// Key scopes a bucket to a route class and a caller.
func Key(class Class, caller string) string {
	return "rl:" + string(class) + ":" + caller
}
