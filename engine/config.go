package engine

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"
)

// mute durations are capped by the platform at 30 days
const maxPlatformBan = 30 * 24 * time.Hour

type Config struct {
	// VoteTTL is how long a ban vote stays open before majority settlement.
	VoteTTL time.Duration
	// VoteThreshold is the vote count that resolves a session early.
	VoteThreshold int
	// MinBanTime/MaxBanTime bound requested ban durations, and bound the
	// random duration used when none is requested.
	MinBanTime time.Duration
	MaxBanTime time.Duration
}

func DefaultConfig() Config {
	return Config{
		VoteTTL:       60 * time.Second,
		VoteThreshold: 5,
		MinBanTime:    60 * time.Second,
		MaxBanTime:    600 * time.Second,
	}
}

// BanDuration clamps a requested duration into the configured range, or picks
// a random in-range duration when the request is zero.
func (c Config) BanDuration(requested time.Duration) time.Duration {
	min, max := c.MinBanTime, c.MaxBanTime
	if min < time.Second {
		min = time.Second
	}
	if max > maxPlatformBan {
		max = maxPlatformBan
	}
	if max < min {
		max = min
	}
	if requested <= 0 {
		return min + time.Duration(rand.Int63n(int64(max-min)+1))
	}
	if requested < min {
		return min
	}
	if requested > max {
		return max
	}
	return requested
}

// ParseBanTimeRange parses a "min~max" range in seconds, e.g. "60~600".
func ParseBanTimeRange(s string) (time.Duration, time.Duration, error) {
	parts := strings.SplitN(s, "~", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid ban time range %q: expected min~max", s)
	}
	minSec, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid ban time range %q: %w", s, err)
	}
	maxSec, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid ban time range %q: %w", s, err)
	}
	if minSec < 1 {
		minSec = 1
	}
	max := time.Duration(maxSec) * time.Second
	if max > maxPlatformBan {
		max = maxPlatformBan
	}
	min := time.Duration(minSec) * time.Second
	if max < min {
		return 0, 0, fmt.Errorf("invalid ban time range %q: max below min", s)
	}
	return min, max, nil
}
