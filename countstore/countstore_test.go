package countstore

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMemCountStoreBasics(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	cs := NewMemCountStore()

	c, err := cs.GetCount(ctx, "flood-trigger", "g1", PeriodTotal)
	assert.NoError(err)
	assert.Equal(0, c)
	assert.NoError(cs.Increment(ctx, "flood-trigger", "g1"))
	assert.NoError(cs.Increment(ctx, "flood-trigger", "g1"))

	for _, period := range []string{PeriodTotal, PeriodDay, PeriodHour} {
		c, err = cs.GetCount(ctx, "flood-trigger", "g1", period)
		assert.NoError(err)
		assert.Equal(2, c)
	}

	// counters are scoped by value
	c, err = cs.GetCount(ctx, "flood-trigger", "g2", PeriodTotal)
	assert.NoError(err)
	assert.Equal(0, c)

	assert.NoError(cs.IncrementDistinct(ctx, "spammers", "g1", "u1"))
	assert.NoError(cs.IncrementDistinct(ctx, "spammers", "g1", "u1"))
	assert.NoError(cs.IncrementDistinct(ctx, "spammers", "g1", "u2"))
	c, err = cs.GetCountDistinct(ctx, "spammers", "g1", PeriodDay)
	assert.NoError(err)
	assert.Equal(2, c)
}

func TestMemCountStoreConcurrent(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	cs := NewMemCountStore()

	// interleaved writers and readers; run with -race
	var wg sync.WaitGroup
	wg.Add(4)
	for i := 0; i < 4; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				assert.NoError(cs.Increment(ctx, "msg", "g1"))
				_, err := cs.GetCount(ctx, "msg", "g1", PeriodTotal)
				assert.NoError(err)
			}
		}()
	}
	wg.Wait()

	c, err := cs.GetCount(ctx, "msg", "g1", PeriodTotal)
	assert.NoError(err)
	assert.Equal(100, c)
}
