// Package admission decides group join requests with an ordered rule list.
// Some rules have side effects: matching a reject keyword or exhausting the
// attempt limit auto-blacklists the requester (persisted), while an approval
// clears their attempt counter.
package admission

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/groupwarden/groupwarden/settings"
)

type Decision int

const (
	// Manual means no rule decided; the request is forwarded to human
	// moderators untouched.
	Manual Decision = iota
	Approve
	Reject
)

func (d Decision) String() string {
	switch d {
	case Approve:
		return "approve"
	case Reject:
		return "reject"
	default:
		return "manual"
	}
}

// Policy evaluates join requests. Attempt counters are process-local on
// purpose: they throttle rapid-fire join abuse within one process lifetime,
// and a restart wiping them is acceptable.
type Policy struct {
	Settings *settings.Moderation
	Logger   *slog.Logger

	mu       sync.Mutex
	attempts map[string]int
}

func NewPolicy(s *settings.Moderation, logger *slog.Logger) *Policy {
	if logger == nil {
		logger = slog.Default()
	}
	return &Policy{
		Settings: s,
		Logger:   logger,
		attempts: make(map[string]int),
	}
}

// Decide runs the rules in order, first match wins. level is nil when the
// account's level is hidden or unknown; the level gate only fires on a known
// level. Call exactly once per join request: the attempt counter increments
// as a side effect of evaluation.
func (p *Policy) Decide(ctx context.Context, group, user, comment string, level *int) (Decision, string) {
	// 1. blacklist
	if p.Settings.IsBlocked(ctx, group, user) {
		return Reject, "blacklisted"
	}

	// 2. level gate
	minLevel := p.Settings.MinLevel(ctx, group)
	if minLevel > 0 && level != nil && *level < minLevel {
		return Reject, "level too low"
	}

	if comment != "" {
		lower := strings.ToLower(comment)

		// 3. reject keyword: one bad comment permanently blacklists
		for _, kw := range p.Settings.RejectKeywords(ctx, group) {
			if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
				if err := p.Settings.AddBlockID(ctx, group, user); err != nil {
					p.Logger.Error("blacklisting rejected joiner failed", "group", group, "user", user, "err", err)
				}
				return Reject, "matched reject keyword"
			}
		}

		// 4. accept keyword
		for _, kw := range p.Settings.AcceptKeywords(ctx, group) {
			if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
				p.clearAttempts(group, user)
				return Approve, "matched accept keyword"
			}
		}
	}

	// 5. attempt exhaustion
	if maxAttempts := p.Settings.MaxAttempts(ctx, group); maxAttempts > 0 {
		if p.bumpAttempts(group, user) >= maxAttempts {
			if err := p.Settings.AddBlockID(ctx, group, user); err != nil {
				p.Logger.Error("blacklisting exhausted joiner failed", "group", group, "user", user, "err", err)
			}
			return Reject, "attempt limit exceeded"
		}
	}

	// 6. default
	if p.Settings.AutoRejectUnmatched(ctx, group) {
		return Reject, "no keyword matched"
	}
	return Manual, "no keyword matched"
}

func (p *Policy) bumpAttempts(group, user string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	k := group + "/" + user
	p.attempts[k]++
	return p.attempts[k]
}

func (p *Policy) clearAttempts(group, user string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.attempts, group+"/"+user)
}
