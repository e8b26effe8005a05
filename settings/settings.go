// Package settings provides per-group moderation settings storage.
//
// Values are stored as raw JSON blobs keyed by (group, key). The Store
// interface has mem, redis, and gorm-backed implementations; the Moderation
// wrapper layers typed accessors with documented defaults on top, so a missing
// or unreadable setting always degrades to its default instead of failing.
package settings

import (
	"context"
	"errors"
)

// ErrNotFound indicates the (group, key) pair has never been set.
var ErrNotFound = errors.New("setting not found")

type Store interface {
	// Get returns the raw JSON value for (group, key), or ErrNotFound.
	Get(ctx context.Context, group, key string) ([]byte, error)
	Set(ctx context.Context, group, key string, val []byte) error
	Delete(ctx context.Context, group, key string) error
}

// Setting keys used by the moderation core.
const (
	KeyWordBanTime         = "word_ban_time"
	KeyCustomBanWords      = "custom_ban_words"
	KeyBuiltinBanEnabled   = "builtin_ban"
	KeySpamBanTime         = "spamming_ban_time"
	KeyLinkRecallEnabled   = "link_recall"
	KeyLinkWhitelist       = "link_whitelist"
	KeyJoinReviewEnabled   = "join_review"
	KeyAcceptKeywords      = "accept_keywords"
	KeyRejectKeywords      = "reject_keywords"
	KeyMinLevel            = "min_level"
	KeyMaxAttempts         = "max_attempts"
	KeyAutoRejectUnmatched = "auto_reject_unmatched"
	KeyBlockIDs            = "block_ids"
	KeyWelcomeTemplate     = "welcome_template"
	KeyJoinBanTime         = "join_ban_time"
	KeyLeaveNotify         = "leave_notify"
	KeyLeaveBlock          = "leave_block"
)
