package settings

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"
)

// Moderation is the typed view over a Store that the moderation core reads.
// Every getter has a documented default which applies when the setting is
// absent or the store read fails; store failures are logged and never
// propagated, so a flaky backend degrades to default behavior instead of
// breaking event handling.
type Moderation struct {
	Store  Store
	Logger *slog.Logger
}

func NewModeration(store Store, logger *slog.Logger) *Moderation {
	if logger == nil {
		logger = slog.Default()
	}
	return &Moderation{Store: store, Logger: logger}
}

func getJSON[T any](m *Moderation, ctx context.Context, group, key string, def T) T {
	raw, err := m.Store.Get(ctx, group, key)
	if errors.Is(err, ErrNotFound) {
		return def
	}
	if err != nil {
		m.Logger.Warn("settings read failed, using default", "group", group, "key", key, "err", err)
		return def
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		m.Logger.Warn("settings value malformed, using default", "group", group, "key", key, "err", err)
		return def
	}
	return out
}

func (m *Moderation) set(ctx context.Context, group, key string, val any) error {
	raw, err := json.Marshal(val)
	if err != nil {
		return err
	}
	return m.Store.Set(ctx, group, key, raw)
}

// durations are persisted as integer seconds, matching the chat platform's
// mute API units

func (m *Moderation) getSeconds(ctx context.Context, group, key string) time.Duration {
	return time.Duration(getJSON(m, ctx, group, key, 0)) * time.Second
}

// WordBanTime is the mute duration applied on a banned-word match. Zero
// disables the mute (the recall still happens).
func (m *Moderation) WordBanTime(ctx context.Context, group string) time.Duration {
	return m.getSeconds(ctx, group, KeyWordBanTime)
}

func (m *Moderation) SetWordBanTime(ctx context.Context, group string, d time.Duration) error {
	return m.set(ctx, group, KeyWordBanTime, int(d/time.Second))
}

// SpamBanTime is the mute duration applied on a flood trigger. Zero disables
// flood detection for the group entirely.
func (m *Moderation) SpamBanTime(ctx context.Context, group string) time.Duration {
	return m.getSeconds(ctx, group, KeySpamBanTime)
}

func (m *Moderation) SetSpamBanTime(ctx context.Context, group string, d time.Duration) error {
	return m.set(ctx, group, KeySpamBanTime, int(d/time.Second))
}

func (m *Moderation) BannedWords(ctx context.Context, group string) []string {
	return getJSON(m, ctx, group, KeyCustomBanWords, []string(nil))
}

func (m *Moderation) SetBannedWords(ctx context.Context, group string, words []string) error {
	return m.set(ctx, group, KeyCustomBanWords, words)
}

func (m *Moderation) BuiltinBanEnabled(ctx context.Context, group string) bool {
	return getJSON(m, ctx, group, KeyBuiltinBanEnabled, false)
}

func (m *Moderation) SetBuiltinBanEnabled(ctx context.Context, group string, on bool) error {
	return m.set(ctx, group, KeyBuiltinBanEnabled, on)
}

func (m *Moderation) LinkRecallEnabled(ctx context.Context, group string) bool {
	return getJSON(m, ctx, group, KeyLinkRecallEnabled, false)
}

func (m *Moderation) SetLinkRecallEnabled(ctx context.Context, group string, on bool) error {
	return m.set(ctx, group, KeyLinkRecallEnabled, on)
}

func (m *Moderation) LinkWhitelist(ctx context.Context, group string) []string {
	return getJSON(m, ctx, group, KeyLinkWhitelist, []string(nil))
}

func (m *Moderation) SetLinkWhitelist(ctx context.Context, group string, domains []string) error {
	return m.set(ctx, group, KeyLinkWhitelist, domains)
}

// JoinReviewEnabled gates all join-admission processing for the group.
func (m *Moderation) JoinReviewEnabled(ctx context.Context, group string) bool {
	return getJSON(m, ctx, group, KeyJoinReviewEnabled, false)
}

func (m *Moderation) SetJoinReviewEnabled(ctx context.Context, group string, on bool) error {
	return m.set(ctx, group, KeyJoinReviewEnabled, on)
}

func (m *Moderation) AcceptKeywords(ctx context.Context, group string) []string {
	return getJSON(m, ctx, group, KeyAcceptKeywords, []string(nil))
}

func (m *Moderation) SetAcceptKeywords(ctx context.Context, group string, kws []string) error {
	return m.set(ctx, group, KeyAcceptKeywords, kws)
}

func (m *Moderation) RejectKeywords(ctx context.Context, group string) []string {
	return getJSON(m, ctx, group, KeyRejectKeywords, []string(nil))
}

func (m *Moderation) SetRejectKeywords(ctx context.Context, group string, kws []string) error {
	return m.set(ctx, group, KeyRejectKeywords, kws)
}

// MinLevel is the minimum account level required to join. Zero disables the
// level gate.
func (m *Moderation) MinLevel(ctx context.Context, group string) int {
	return getJSON(m, ctx, group, KeyMinLevel, 0)
}

func (m *Moderation) SetMinLevel(ctx context.Context, group string, level int) error {
	return m.set(ctx, group, KeyMinLevel, level)
}

// MaxAttempts is how many unmatched join attempts a user gets before being
// auto-blacklisted. Zero disables the attempt limit.
func (m *Moderation) MaxAttempts(ctx context.Context, group string) int {
	return getJSON(m, ctx, group, KeyMaxAttempts, 0)
}

func (m *Moderation) SetMaxAttempts(ctx context.Context, group string, n int) error {
	return m.set(ctx, group, KeyMaxAttempts, n)
}

func (m *Moderation) AutoRejectUnmatched(ctx context.Context, group string) bool {
	return getJSON(m, ctx, group, KeyAutoRejectUnmatched, false)
}

func (m *Moderation) SetAutoRejectUnmatched(ctx context.Context, group string, on bool) error {
	return m.set(ctx, group, KeyAutoRejectUnmatched, on)
}

func (m *Moderation) BlockIDs(ctx context.Context, group string) []string {
	return getJSON(m, ctx, group, KeyBlockIDs, []string(nil))
}

func (m *Moderation) SetBlockIDs(ctx context.Context, group string, ids []string) error {
	return m.set(ctx, group, KeyBlockIDs, ids)
}

func (m *Moderation) IsBlocked(ctx context.Context, group, user string) bool {
	for _, id := range m.BlockIDs(ctx, group) {
		if id == user {
			return true
		}
	}
	return false
}

// AddBlockID appends user to the group blacklist if not already present.
func (m *Moderation) AddBlockID(ctx context.Context, group, user string) error {
	ids := m.BlockIDs(ctx, group)
	for _, id := range ids {
		if id == user {
			return nil
		}
	}
	return m.SetBlockIDs(ctx, group, append(ids, user))
}

func (m *Moderation) RemoveBlockID(ctx context.Context, group, user string) error {
	ids := m.BlockIDs(ctx, group)
	out := ids[:0]
	for _, id := range ids {
		if id != user {
			out = append(out, id)
		}
	}
	if len(out) == len(ids) {
		return nil
	}
	return m.SetBlockIDs(ctx, group, out)
}

func (m *Moderation) WelcomeTemplate(ctx context.Context, group string) string {
	return getJSON(m, ctx, group, KeyWelcomeTemplate, "")
}

func (m *Moderation) SetWelcomeTemplate(ctx context.Context, group, tmpl string) error {
	return m.set(ctx, group, KeyWelcomeTemplate, tmpl)
}

// JoinBanTime is an optional mute applied to every new member on joining.
func (m *Moderation) JoinBanTime(ctx context.Context, group string) time.Duration {
	return m.getSeconds(ctx, group, KeyJoinBanTime)
}

func (m *Moderation) SetJoinBanTime(ctx context.Context, group string, d time.Duration) error {
	return m.set(ctx, group, KeyJoinBanTime, int(d/time.Second))
}

func (m *Moderation) LeaveNotify(ctx context.Context, group string) bool {
	return getJSON(m, ctx, group, KeyLeaveNotify, false)
}

func (m *Moderation) SetLeaveNotify(ctx context.Context, group string, on bool) error {
	return m.set(ctx, group, KeyLeaveNotify, on)
}

// LeaveBlock makes voluntary leavers get auto-blacklisted.
func (m *Moderation) LeaveBlock(ctx context.Context, group string) bool {
	return getJSON(m, ctx, group, KeyLeaveBlock, false)
}

func (m *Moderation) SetLeaveBlock(ctx context.Context, group string, on bool) error {
	return m.set(ctx, group, KeyLeaveBlock, on)
}
