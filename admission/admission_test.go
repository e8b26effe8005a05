package admission

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groupwarden/groupwarden/settings"
)

func newFixture(t *testing.T) (*Policy, *settings.Moderation) {
	t.Helper()
	mod := settings.NewModeration(settings.NewMemStore(), nil)
	return NewPolicy(mod, nil), mod
}

func intPtr(v int) *int { return &v }

func TestBlacklistShortCircuits(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	p, mod := newFixture(t)

	require.NoError(mod.AddBlockID(ctx, "g1", "u1"))
	require.NoError(mod.SetAcceptKeywords(ctx, "g1", []string{"friend"}))

	// even a matching accept comment cannot save a blacklisted user
	d, reason := p.Decide(ctx, "g1", "u1", "hi, friend sent me", intPtr(99))
	assert.Equal(Reject, d)
	assert.Equal("blacklisted", reason)
}

func TestLevelGate(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	p, mod := newFixture(t)

	require.NoError(mod.SetMinLevel(ctx, "g1", 10))

	d, reason := p.Decide(ctx, "g1", "u1", "", intPtr(5))
	assert.Equal(Reject, d)
	assert.Equal("level too low", reason)

	// unknown level skips the gate
	d, _ = p.Decide(ctx, "g1", "u2", "", nil)
	assert.Equal(Manual, d)

	d, _ = p.Decide(ctx, "g1", "u3", "", intPtr(10))
	assert.Equal(Manual, d)
}

func TestRejectKeywordBlacklists(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	p, mod := newFixture(t)

	require.NoError(mod.SetRejectKeywords(ctx, "g1", []string{"CRYPTO"}))

	d, reason := p.Decide(ctx, "g1", "u1", "best crypto deals", nil)
	assert.Equal(Reject, d)
	assert.Equal("matched reject keyword", reason)
	// auto-learning side effect persisted
	assert.True(mod.IsBlocked(ctx, "g1", "u1"))

	// next attempt hits rule 1 instead
	d, reason = p.Decide(ctx, "g1", "u1", "normal comment", nil)
	assert.Equal(Reject, d)
	assert.Equal("blacklisted", reason)
}

func TestAcceptKeyword(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	p, mod := newFixture(t)

	require.NoError(mod.SetAcceptKeywords(ctx, "g1", []string{"invited by admin"}))

	d, reason := p.Decide(ctx, "g1", "u1", "I was Invited By Admin yesterday", nil)
	assert.Equal(Approve, d)
	assert.Equal("matched accept keyword", reason)
	assert.False(mod.IsBlocked(ctx, "g1", "u1"))
}

func TestRejectKeywordWinsOverAccept(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	p, mod := newFixture(t)

	require.NoError(mod.SetRejectKeywords(ctx, "g1", []string{"spam"}))
	require.NoError(mod.SetAcceptKeywords(ctx, "g1", []string{"friend"}))

	d, reason := p.Decide(ctx, "g1", "u1", "friend of spam", nil)
	assert.Equal(Reject, d)
	assert.Equal("matched reject keyword", reason)
}

func TestAttemptExhaustion(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	p, mod := newFixture(t)

	require.NoError(mod.SetMaxAttempts(ctx, "g1", 3))

	d, _ := p.Decide(ctx, "g1", "u1", "", nil)
	assert.Equal(Manual, d)
	d, _ = p.Decide(ctx, "g1", "u1", "", nil)
	assert.Equal(Manual, d)

	d, reason := p.Decide(ctx, "g1", "u1", "", nil)
	assert.Equal(Reject, d)
	assert.Equal("attempt limit exceeded", reason)
	assert.True(mod.IsBlocked(ctx, "g1", "u1"))

	// other users keep their own counter
	d, _ = p.Decide(ctx, "g1", "u2", "", nil)
	assert.Equal(Manual, d)
}

func TestApprovalClearsAttempts(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	p, mod := newFixture(t)

	require.NoError(mod.SetMaxAttempts(ctx, "g1", 2))
	require.NoError(mod.SetAcceptKeywords(ctx, "g1", []string{"pass"}))

	d, _ := p.Decide(ctx, "g1", "u1", "", nil)
	assert.Equal(Manual, d)

	// approval resets the counter
	d, _ = p.Decide(ctx, "g1", "u1", "pass", nil)
	assert.Equal(Approve, d)

	// counter starts over: first unmatched attempt is Manual again
	d, _ = p.Decide(ctx, "g1", "u1", "", nil)
	assert.Equal(Manual, d)
	d, reason := p.Decide(ctx, "g1", "u1", "", nil)
	assert.Equal(Reject, d)
	assert.Equal("attempt limit exceeded", reason)
}

func TestAutoRejectUnmatched(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	p, mod := newFixture(t)

	require.NoError(mod.SetAutoRejectUnmatched(ctx, "g1", true))

	d, reason := p.Decide(ctx, "g1", "u1", "whatever", nil)
	assert.Equal(Reject, d)
	assert.Equal("no keyword matched", reason)
	// no blacklist side effect on the default rule
	assert.False(mod.IsBlocked(ctx, "g1", "u1"))
}
