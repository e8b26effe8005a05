// Package consumer subscribes to the chat platform's websocket event stream
// and dispatches decoded events to the moderation engine. The stream carries
// JSON frames with a post_type discriminator; frames we don't moderate
// (private messages, heartbeats, unrelated notices) are skipped.
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/carlmjohnson/versioninfo"
	"github.com/gorilla/websocket"

	"github.com/groupwarden/groupwarden/engine"
)

// StreamConsumer reads the event stream and feeds the engine. It reconnects
// with capped exponential backoff until the context is cancelled.
type StreamConsumer struct {
	Logger *slog.Logger
	Engine *engine.Engine
	// Host is the websocket endpoint, eg ws://localhost:6700/event.
	Host string
	// Token is the optional access token sent as a Bearer header.
	Token string
}

// streamEvent is the wire superset of the frames we care about. Numeric ids
// stay int64 on the wire; the engine works with string ids.
type streamEvent struct {
	PostType string `json:"post_type"`

	// message
	MessageType string `json:"message_type,omitempty"`
	MessageID   int64  `json:"message_id,omitempty"`
	RawMessage  string `json:"raw_message,omitempty"`

	// request
	RequestType string `json:"request_type,omitempty"`
	Comment     string `json:"comment,omitempty"`
	Flag        string `json:"flag,omitempty"`

	// notice
	NoticeType string `json:"notice_type,omitempty"`
	SubType    string `json:"sub_type,omitempty"`

	GroupID int64 `json:"group_id,omitempty"`
	UserID  int64 `json:"user_id,omitempty"`
	Time    int64 `json:"time,omitempty"`
}

// Run blocks until ctx is cancelled, reconnecting on stream failures.
func (sc *StreamConsumer) Run(ctx context.Context) error {
	if sc.Engine == nil {
		return fmt.Errorf("nil engine")
	}
	if _, err := url.Parse(sc.Host); err != nil {
		return fmt.Errorf("invalid event stream URI: %w", err)
	}

	backoff := time.Second
	for {
		err := sc.runOnce(ctx)
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			return ctx.Err()
		}
		sc.Logger.Warn("event stream disconnected; will reconnect", "err", err, "backoff", backoff.String())
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

func (sc *StreamConsumer) runOnce(ctx context.Context) error {
	hdr := http.Header{
		"User-Agent": []string{fmt.Sprintf("warden/%s", versioninfo.Short())},
	}
	if sc.Token != "" {
		hdr.Set("Authorization", "Bearer "+sc.Token)
	}
	con, _, err := websocket.DefaultDialer.DialContext(ctx, sc.Host, hdr)
	if err != nil {
		return fmt.Errorf("dialing event stream failed: %w", err)
	}
	defer con.Close()
	sc.Logger.Info("subscribed to event stream", "upstream", sc.Host)

	// unblock ReadMessage when the context is cancelled; the watcher must
	// exit with the connection, not with the whole consumer
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			con.Close()
		case <-done:
		}
	}()

	for {
		_, raw, err := con.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("reading event frame failed: %w", err)
		}
		sc.handleFrame(ctx, raw)
	}
}

// handleFrame decodes and dispatches one frame. Decode and dispatch failures
// are logged, never fatal to the stream.
func (sc *StreamConsumer) handleFrame(ctx context.Context, raw []byte) {
	var evt streamEvent
	if err := json.Unmarshal(raw, &evt); err != nil {
		sc.Logger.Warn("skipping undecodable event frame", "err", err)
		return
	}

	switch evt.PostType {
	case "message":
		if evt.MessageType != "group" {
			return
		}
		// flood detection needs sub-second resolution; the frame's time
		// field is whole seconds, so use arrival time instead
		err := sc.Engine.ProcessMessage(ctx, engine.MessageEvent{
			Group:     strconv.FormatInt(evt.GroupID, 10),
			Sender:    strconv.FormatInt(evt.UserID, 10),
			MessageID: strconv.FormatInt(evt.MessageID, 10),
			Text:      evt.RawMessage,
			Time:      time.Now(),
		})
		if err != nil {
			sc.Logger.Error("processing message failed", "group", evt.GroupID, "err", err)
		}
	case "request":
		if evt.RequestType != "group" || evt.SubType != "add" {
			return
		}
		err := sc.Engine.ProcessJoinRequest(ctx, engine.JoinRequest{
			Group:   strconv.FormatInt(evt.GroupID, 10),
			User:    strconv.FormatInt(evt.UserID, 10),
			Comment: evt.Comment,
			Flag:    evt.Flag,
		})
		if err != nil {
			sc.Logger.Error("processing join request failed", "group", evt.GroupID, "err", err)
		}
	case "notice":
		var change string
		switch evt.NoticeType {
		case "group_increase":
			change = engine.MemberJoined
		case "group_decrease":
			// kicks are moderator actions already; only voluntary leaves
			// go through leave handling
			if evt.SubType != "leave" {
				return
			}
			change = engine.MemberLeft
		default:
			return
		}
		err := sc.Engine.ProcessMemberChange(ctx, engine.MemberChange{
			Group:  strconv.FormatInt(evt.GroupID, 10),
			User:   strconv.FormatInt(evt.UserID, 10),
			Change: change,
		})
		if err != nil {
			sc.Logger.Error("processing member change failed", "group", evt.GroupID, "err", err)
		}
	}
}
