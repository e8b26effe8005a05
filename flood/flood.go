// Package flood implements a sliding-window message-rate detector. A user
// floods when every consecutive gap between their last windowSize messages is
// below the configured interval.
package flood

import (
	"sync"
	"time"
)

const (
	DefaultWindowSize = 5
	DefaultInterval   = 500 * time.Millisecond
)

type Decision struct {
	Ban bool
	// Duration the caller should mute for; set only when Ban is true.
	Duration time.Duration
}

// Detector holds per (group, sender) message timestamp windows. State is
// in-memory and unbounded; cardinality is limited to active chatters.
type Detector struct {
	// SelfID is the bot's own account id; its messages are ignored.
	SelfID string
	// WindowSize is the number of recent timestamps considered.
	WindowSize int
	// Interval is the gap threshold; all gaps strictly below it trigger.
	Interval time.Duration

	mu         sync.Mutex
	windows    map[string][]time.Time
	lastbanned map[string]time.Time
}

func NewDetector(selfID string) *Detector {
	return &Detector{
		SelfID:     selfID,
		WindowSize: DefaultWindowSize,
		Interval:   DefaultInterval,
		windows:    make(map[string][]time.Time),
		lastbanned: make(map[string]time.Time),
	}
}

// Observe records one message arrival and decides whether the sender should
// be muted. banDuration is the group's configured flood mute duration; when
// it is zero or negative the check is skipped entirely.
//
// After a trigger, the same sender cannot re-trigger until banDuration has
// elapsed since the trigger; the cooldown mark is written before the caller
// gets to act, so near-simultaneous observations cannot both trigger. The
// detector itself performs no I/O; a failed mute downstream is not rolled
// back here.
func (d *Detector) Observe(group, sender string, now time.Time, banDuration time.Duration) Decision {
	if sender == d.SelfID || banDuration <= 0 {
		return Decision{}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	key := group + "/" + sender
	if last, ok := d.lastbanned[key]; ok && now.Sub(last) < banDuration {
		// post-ban grace period
		return Decision{}
	}

	w := append(d.windows[key], now)
	if len(w) > d.WindowSize {
		w = w[len(w)-d.WindowSize:]
	}
	d.windows[key] = w

	if len(w) < d.WindowSize {
		return Decision{}
	}
	for i := 1; i < len(w); i++ {
		if w[i].Sub(w[i-1]) >= d.Interval {
			return Decision{}
		}
	}

	// mark the cooldown before the caller can act on the decision
	d.lastbanned[key] = now
	delete(d.windows, key)
	return Decision{Ban: true, Duration: banDuration}
}
