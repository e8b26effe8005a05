// Package actuator wraps the chat platform's moderation API: muting users,
// recalling messages, resolving join requests. The engine treats any
// implementation as best-effort; failures are reported, never retried beyond
// the transport layer, and never roll back decision state.
package actuator

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrPermissionDenied means the bot lacks privilege for the action in
	// that group (not an admin, or target outranks it).
	ErrPermissionDenied = errors.New("actuator: permission denied")
	// ErrNotFound means the target (message, user, pending request) is gone.
	ErrNotFound = errors.New("actuator: not found")
	// ErrTransport wraps transient failures talking to the platform.
	ErrTransport = errors.New("actuator: transport error")
)

type UserInfo struct {
	UserID   string
	Nickname string
	// Level is nil when the account hides it.
	Level *int
}

type Client interface {
	// Mute silences user in group for d. A zero d lifts an existing mute.
	Mute(ctx context.Context, group, user string, d time.Duration) error
	// DeleteMessage recalls a message by platform id.
	DeleteMessage(ctx context.Context, messageID string) error
	// ResolveJoinRequest approves or rejects a pending join request. reason
	// is shown to the requester on rejection.
	ResolveJoinRequest(ctx context.Context, flag string, approve bool, reason string) error
	LookupUserInfo(ctx context.Context, user string) (*UserInfo, error)
	SendGroupMessage(ctx context.Context, group, text string) error
}
