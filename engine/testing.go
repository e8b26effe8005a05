package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/groupwarden/groupwarden/actuator"
	"github.com/groupwarden/groupwarden/admission"
	"github.com/groupwarden/groupwarden/countstore"
	"github.com/groupwarden/groupwarden/flood"
	"github.com/groupwarden/groupwarden/settings"
	"github.com/groupwarden/groupwarden/vote"
	"github.com/groupwarden/groupwarden/wordguard"
)

// RecordingActuator captures moderation actions instead of performing them.
type RecordingActuator struct {
	mu sync.Mutex

	Mutes    []MuteCall
	Deletes  []string
	Resolved []ResolveCall
	Sent     []SentMessage

	// Users maps user id to the info returned from LookupUserInfo; unknown
	// ids resolve to a bare id with no level.
	Users map[string]actuator.UserInfo

	// Fail, if set, is returned from every mutating call.
	Fail error
}

type MuteCall struct {
	Group    string
	User     string
	Duration time.Duration
}

type ResolveCall struct {
	Flag    string
	Approve bool
	Reason  string
}

type SentMessage struct {
	Group string
	Text  string
}

func NewRecordingActuator() *RecordingActuator {
	return &RecordingActuator{
		Users: make(map[string]actuator.UserInfo),
	}
}

func (a *RecordingActuator) SetUser(id, nickname string, level *int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Users[id] = actuator.UserInfo{UserID: id, Nickname: nickname, Level: level}
}

func (a *RecordingActuator) Mute(ctx context.Context, group, user string, d time.Duration) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.Fail != nil {
		return a.Fail
	}
	a.Mutes = append(a.Mutes, MuteCall{Group: group, User: user, Duration: d})
	return nil
}

func (a *RecordingActuator) DeleteMessage(ctx context.Context, messageID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.Fail != nil {
		return a.Fail
	}
	a.Deletes = append(a.Deletes, messageID)
	return nil
}

func (a *RecordingActuator) ResolveJoinRequest(ctx context.Context, flag string, approve bool, reason string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.Fail != nil {
		return a.Fail
	}
	a.Resolved = append(a.Resolved, ResolveCall{Flag: flag, Approve: approve, Reason: reason})
	return nil
}

func (a *RecordingActuator) LookupUserInfo(ctx context.Context, user string) (*actuator.UserInfo, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if info, ok := a.Users[user]; ok {
		return &info, nil
	}
	return &actuator.UserInfo{UserID: user, Nickname: user}, nil
}

func (a *RecordingActuator) SendGroupMessage(ctx context.Context, group, text string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.Fail != nil {
		return a.Fail
	}
	a.Sent = append(a.Sent, SentMessage{Group: group, Text: text})
	return nil
}

// EngineTestFixture builds a fully in-memory engine wired to a recording
// actuator.
func EngineTestFixture() (*Engine, *RecordingActuator) {
	act := NewRecordingActuator()
	logger := slog.Default()
	mod := settings.NewModeration(settings.NewMemStore(), logger)
	eng := &Engine{
		Logger:    logger,
		SelfID:    "10000",
		Config:    DefaultConfig(),
		Settings:  mod,
		Counters:  countstore.NewMemCountStore(),
		Flood:     flood.NewDetector("10000"),
		Votes:     vote.NewConsensus(act, logger),
		Admission: admission.NewPolicy(mod, logger),
		Lexicon:   &wordguard.Lexicon{Words: []string{"builtinbad"}},
		Actuator:  act,
	}
	eng.Votes.OnSettled = eng.AnnounceVoteSettled
	return eng, act
}
