// Package vote manages ban-by-vote sessions. Each group holds at most one
// live session; a session resolves exactly once, either early when a side
// reaches the threshold or at expiry by simple majority.
package vote

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

var (
	ErrAlreadyActive   = errors.New("a ban vote is already active in this group")
	ErrNoActiveSession = errors.New("no active ban vote in this group")
)

type Outcome int

const (
	OutcomePending Outcome = iota
	OutcomePassed
	OutcomeRejected
)

func (o Outcome) String() string {
	switch o {
	case OutcomePassed:
		return "passed"
	case OutcomeRejected:
		return "rejected"
	default:
		return "pending"
	}
}

// Progress is a snapshot of a session, returned from Cast and passed to the
// settlement hook.
type Progress struct {
	Target      string
	Agree       int
	Disagree    int
	Threshold   int
	BanDuration time.Duration
	// ExpiresAt is when the session settles by majority if no side reaches
	// the threshold first.
	ExpiresAt time.Time
	Outcome   Outcome
	// Expired is set when the outcome came from TTL settlement rather than
	// an early threshold.
	Expired bool
}

// Muter executes the ban once a vote passes.
type Muter interface {
	Mute(ctx context.Context, group, user string, d time.Duration) error
}

type session struct {
	target      string
	votes       map[string]bool
	banDuration time.Duration
	threshold   int
	expiresAt   time.Time
}

func (s *session) counts() (agree, disagree int) {
	for _, v := range s.votes {
		if v {
			agree++
		} else {
			disagree++
		}
	}
	return
}

func (s *session) progress() Progress {
	agree, disagree := s.counts()
	return Progress{
		Target:      s.target,
		Agree:       agree,
		Disagree:    disagree,
		Threshold:   s.threshold,
		BanDuration: s.banDuration,
		ExpiresAt:   s.expiresAt,
	}
}

// Consensus owns all live sessions, keyed by group.
type Consensus struct {
	Logger *slog.Logger
	Muter  Muter
	// OnSettled, if set, is called after a session resolves at expiry (not on
	// early threshold resolution, whose outcome is returned from Cast).
	OnSettled func(group string, p Progress)

	mu       sync.Mutex
	sessions map[string]*session
}

func NewConsensus(muter Muter, logger *slog.Logger) *Consensus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consensus{
		Logger:   logger,
		Muter:    muter,
		sessions: make(map[string]*session),
	}
}

// Start opens a session for group targeting target, and schedules settlement
// at now+ttl. Returns ErrAlreadyActive, without touching the existing
// session, if the group's slot is taken.
func (c *Consensus) Start(ctx context.Context, group, target string, banDuration, ttl time.Duration, threshold int) error {
	c.mu.Lock()
	if _, ok := c.sessions[group]; ok {
		c.mu.Unlock()
		return ErrAlreadyActive
	}
	s := &session{
		target:      target,
		votes:       make(map[string]bool),
		banDuration: banDuration,
		threshold:   threshold,
		expiresAt:   time.Now().Add(ttl),
	}
	c.sessions[group] = s
	c.mu.Unlock()

	// Settlement is not cancelled on early resolution; it re-checks that this
	// exact session is still present when it fires.
	time.AfterFunc(ttl, func() {
		c.settle(group, s)
	})

	c.Logger.Info("ban vote started", "group", group, "target", target, "threshold", threshold, "ttl", ttl)
	return nil
}

// Cast records or overwrites voter's stance. When a side reaches the
// threshold the slot is freed before the ban executes, so a repeat Cast
// always sees ErrNoActiveSession.
func (c *Consensus) Cast(ctx context.Context, group, voter string, agree bool) (Progress, error) {
	c.mu.Lock()
	s, ok := c.sessions[group]
	if !ok {
		c.mu.Unlock()
		return Progress{}, ErrNoActiveSession
	}
	s.votes[voter] = agree
	p := s.progress()
	switch {
	case p.Agree >= s.threshold:
		p.Outcome = OutcomePassed
	case p.Disagree >= s.threshold:
		p.Outcome = OutcomeRejected
	default:
		c.mu.Unlock()
		return p, nil
	}
	delete(c.sessions, group)
	c.mu.Unlock()

	if p.Outcome == OutcomePassed {
		c.executeBan(ctx, group, p)
	} else {
		c.Logger.Info("ban vote rejected", "group", group, "target", p.Target)
	}
	return p, nil
}

// Active returns a snapshot of the group's live session, if any.
func (c *Consensus) Active(group string) (Progress, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[group]
	if !ok {
		return Progress{}, false
	}
	return s.progress(), true
}

// settle resolves the session at expiry, by simple majority of cast votes
// with ties rejecting. No-op when the slot was already freed (or re-taken by
// a newer session).
func (c *Consensus) settle(group string, expected *session) {
	c.mu.Lock()
	s, ok := c.sessions[group]
	if !ok || s != expected {
		c.mu.Unlock()
		return
	}
	delete(c.sessions, group)
	p := s.progress()
	c.mu.Unlock()

	p.Expired = true
	if p.Agree > p.Disagree {
		p.Outcome = OutcomePassed
		c.executeBan(context.Background(), group, p)
	} else {
		p.Outcome = OutcomeRejected
		c.Logger.Info("ban vote expired, rejected", "group", group, "target", p.Target, "agree", p.Agree, "disagree", p.Disagree)
	}
	if c.OnSettled != nil {
		c.OnSettled(group, p)
	}
}

func (c *Consensus) executeBan(ctx context.Context, group string, p Progress) {
	if c.Muter == nil {
		return
	}
	if err := c.Muter.Mute(ctx, group, p.Target, p.BanDuration); err != nil {
		// not retried, and the resolution stands
		c.Logger.Error("vote ban failed", "group", group, "target", p.Target, "err", err)
	} else {
		c.Logger.Info("ban vote passed", "group", group, "target", p.Target, "duration", p.BanDuration)
	}
}
