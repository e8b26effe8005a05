package vote

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingMuter struct {
	mu    sync.Mutex
	calls []string
}

func (m *recordingMuter) Mute(ctx context.Context, group, user string, d time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, group+"/"+user)
	return nil
}

func (m *recordingMuter) muted() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func TestSingleSlot(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	c := NewConsensus(&recordingMuter{}, nil)

	assert.NoError(c.Start(ctx, "g1", "u1", time.Minute, time.Hour, 2))
	// second start on the same group rejected, session untouched
	assert.ErrorIs(c.Start(ctx, "g1", "u2", time.Minute, time.Hour, 2), ErrAlreadyActive)
	p, ok := c.Active("g1")
	assert.True(ok)
	assert.Equal("u1", p.Target)

	// other groups get their own slot
	assert.NoError(c.Start(ctx, "g2", "u2", time.Minute, time.Hour, 2))
}

func TestCastWithoutSession(t *testing.T) {
	assert := assert.New(t)
	_, err := NewConsensus(&recordingMuter{}, nil).Cast(context.Background(), "g1", "v1", true)
	assert.ErrorIs(err, ErrNoActiveSession)
}

func TestEarlyPass(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	muter := &recordingMuter{}
	c := NewConsensus(muter, nil)

	require.NoError(c.Start(ctx, "g1", "u1", time.Minute, time.Hour, 2))

	p, err := c.Cast(ctx, "g1", "v1", true)
	require.NoError(err)
	assert.Equal(OutcomePending, p.Outcome)
	assert.Equal(1, p.Agree)

	p, err = c.Cast(ctx, "g1", "v2", true)
	require.NoError(err)
	assert.Equal(OutcomePassed, p.Outcome)
	assert.Equal(2, p.Agree)
	assert.Equal([]string{"g1/u1"}, muter.muted())

	// slot freed immediately
	_, err = c.Cast(ctx, "g1", "v3", true)
	assert.ErrorIs(err, ErrNoActiveSession)
	_, ok := c.Active("g1")
	assert.False(ok)
}

func TestEarlyReject(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	muter := &recordingMuter{}
	c := NewConsensus(muter, nil)

	require.NoError(c.Start(ctx, "g1", "u1", time.Minute, time.Hour, 2))
	_, err := c.Cast(ctx, "g1", "v1", false)
	require.NoError(err)
	p, err := c.Cast(ctx, "g1", "v2", false)
	require.NoError(err)
	assert.Equal(OutcomeRejected, p.Outcome)
	assert.Empty(muter.muted())

	_, err = c.Cast(ctx, "g1", "v3", true)
	assert.ErrorIs(err, ErrNoActiveSession)
}

func TestRevoteOverwrites(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	c := NewConsensus(&recordingMuter{}, nil)

	require.NoError(c.Start(ctx, "g1", "u1", time.Minute, time.Hour, 3))
	p, err := c.Cast(ctx, "g1", "v1", true)
	require.NoError(err)
	assert.Equal(1, p.Agree)
	assert.Equal(0, p.Disagree)

	// same voter flips: only the final stance counts
	p, err = c.Cast(ctx, "g1", "v1", false)
	require.NoError(err)
	assert.Equal(0, p.Agree)
	assert.Equal(1, p.Disagree)
}

func TestExpiryNoVotesRejects(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	muter := &recordingMuter{}
	c := NewConsensus(muter, nil)

	settled := make(chan Progress, 1)
	c.OnSettled = func(group string, p Progress) {
		settled <- p
	}

	require.NoError(c.Start(ctx, "g1", "u1", time.Minute, 20*time.Millisecond, 2))

	select {
	case p := <-settled:
		assert.Equal(OutcomeRejected, p.Outcome)
		assert.True(p.Expired)
	case <-time.After(2 * time.Second):
		t.Fatal("vote did not settle")
	}
	assert.Empty(muter.muted())
	_, ok := c.Active("g1")
	assert.False(ok)
}

func TestExpiryMajorityBans(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	muter := &recordingMuter{}
	c := NewConsensus(muter, nil)

	settled := make(chan Progress, 1)
	c.OnSettled = func(group string, p Progress) {
		settled <- p
	}

	// threshold 5 is never reached; majority at expiry decides
	require.NoError(c.Start(ctx, "g1", "u1", time.Minute, 20*time.Millisecond, 5))
	_, err := c.Cast(ctx, "g1", "v1", true)
	require.NoError(err)
	_, err = c.Cast(ctx, "g1", "v2", true)
	require.NoError(err)
	_, err = c.Cast(ctx, "g1", "v3", false)
	require.NoError(err)

	select {
	case p := <-settled:
		assert.Equal(OutcomePassed, p.Outcome)
		assert.Equal(2, p.Agree)
		assert.Equal(1, p.Disagree)
	case <-time.After(2 * time.Second):
		t.Fatal("vote did not settle")
	}
	assert.Equal([]string{"g1/u1"}, muter.muted())
}

func TestSettleAfterEarlyResolutionIsNoop(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	muter := &recordingMuter{}
	c := NewConsensus(muter, nil)

	settledCount := 0
	done := make(chan struct{})
	c.OnSettled = func(group string, p Progress) {
		settledCount++
		close(done)
	}

	require.NoError(c.Start(ctx, "g1", "u1", time.Minute, 20*time.Millisecond, 1))
	p, err := c.Cast(ctx, "g1", "v1", true)
	require.NoError(err)
	require.Equal(OutcomePassed, p.Outcome)

	// a fresh session can take the slot; the old timer must not settle it
	require.NoError(c.Start(ctx, "g1", "u2", time.Minute, time.Hour, 2))

	select {
	case <-done:
		t.Fatal("expired timer settled a resolved session")
	case <-time.After(100 * time.Millisecond):
	}
	assert.Equal(0, settledCount)
	// only the early resolution banned
	assert.Equal([]string{"g1/u1"}, muter.muted())
	pr, ok := c.Active("g1")
	assert.True(ok)
	assert.Equal("u2", pr.Target)
}

func TestTieAtExpiryRejects(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	muter := &recordingMuter{}
	c := NewConsensus(muter, nil)

	settled := make(chan Progress, 1)
	c.OnSettled = func(group string, p Progress) {
		settled <- p
	}

	require.NoError(c.Start(ctx, "g1", "u1", time.Minute, 20*time.Millisecond, 5))
	_, err := c.Cast(ctx, "g1", "v1", true)
	require.NoError(err)
	_, err = c.Cast(ctx, "g1", "v2", false)
	require.NoError(err)

	select {
	case p := <-settled:
		assert.Equal(OutcomeRejected, p.Outcome)
	case <-time.After(2 * time.Second):
		t.Fatal("vote did not settle")
	}
	assert.Empty(muter.muted())
}

func TestActiveReportsExpiry(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	c := NewConsensus(&recordingMuter{}, nil)

	before := time.Now()
	require.NoError(t, c.Start(ctx, "g1", "u1", time.Minute, time.Hour, 2))

	p, ok := c.Active("g1")
	assert.True(ok)
	assert.False(p.ExpiresAt.Before(before.Add(time.Hour)))
	assert.True(p.ExpiresAt.Before(before.Add(time.Hour+time.Minute)))
}
