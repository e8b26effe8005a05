// Package engine ties the moderation components together: inbound chat events
// fan out to the word, link, and flood checks; join requests go through the
// admission policy; vote commands go to the consensus manager. The engine owns
// all external I/O (actuator calls, operator notices); the components
// themselves only decide.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/groupwarden/groupwarden/actuator"
	"github.com/groupwarden/groupwarden/admission"
	"github.com/groupwarden/groupwarden/countstore"
	"github.com/groupwarden/groupwarden/flood"
	"github.com/groupwarden/groupwarden/linkguard"
	"github.com/groupwarden/groupwarden/settings"
	"github.com/groupwarden/groupwarden/vote"
	"github.com/groupwarden/groupwarden/wordguard"
)

type Engine struct {
	Logger   *slog.Logger
	SelfID   string
	Config   Config
	Settings *settings.Moderation
	Counters countstore.CountStore

	Flood     *flood.Detector
	Votes     *vote.Consensus
	Admission *admission.Policy
	// Lexicon is the optional builtin banned-word list (nil disables it).
	Lexicon *wordguard.Lexicon

	Actuator actuator.Client
	// Notifier is optional; without it operator reports are only logged.
	Notifier Notifier
}

// MessageEvent is one inbound group message.
type MessageEvent struct {
	Group     string
	Sender    string
	MessageID string
	Text      string
	Time      time.Time
}

// JoinRequest is a pending group join application. Flag is the platform's
// opaque handle for resolving the request.
type JoinRequest struct {
	Group   string
	User    string
	Comment string
	Flag    string
}

const (
	MemberJoined = "joined"
	MemberLeft   = "left"
)

// MemberChange is a membership notice (increase or voluntary decrease).
type MemberChange struct {
	Group  string
	User   string
	Change string
}

// ProcessMessage runs the word, link, and flood checks against one message.
// The three checks are independent; a hit on one does not stop the others.
func (eng *Engine) ProcessMessage(ctx context.Context, evt MessageEvent) error {
	start := time.Now()
	defer func() {
		eventProcessDuration.WithLabelValues("message").Observe(time.Since(start).Seconds())
		// recover any panics from check execution, like an HTTP server would
		if r := recover(); r != nil {
			eventErrorCount.WithLabelValues("message").Inc()
			eng.Logger.Error("message processing exception", "r", r, "group", evt.Group, "sender", evt.Sender)
		}
	}()
	eventProcessCount.WithLabelValues("message").Inc()

	if err := eng.Counters.Increment(ctx, "message", evt.Group); err != nil {
		eng.Logger.Warn("counter increment failed", "group", evt.Group, "err", err)
	}

	eng.checkBannedWords(ctx, evt)
	eng.checkLinks(ctx, evt)
	eng.checkFlood(ctx, evt)
	return nil
}

func (eng *Engine) checkBannedWords(ctx context.Context, evt MessageEvent) {
	logger := eng.Logger.With("group", evt.Group, "sender", evt.Sender)

	words := eng.Settings.BannedWords(ctx, evt.Group)
	word, hit := wordguard.Scan(evt.Text, words)
	if !hit && eng.Lexicon != nil && eng.Settings.BuiltinBanEnabled(ctx, evt.Group) {
		word, hit = wordguard.Scan(evt.Text, eng.Lexicon.Words)
	}
	if !hit {
		return
	}
	logger.Info("banned word matched", "word", word)

	recallCount.WithLabelValues("word").Inc()
	if err := eng.Actuator.DeleteMessage(ctx, evt.MessageID); err != nil {
		eng.reportActionFailure(ctx, "delete_msg", evt.Group, err)
	}

	if banTime := eng.Settings.WordBanTime(ctx, evt.Group); banTime > 0 {
		muteCount.WithLabelValues("word").Inc()
		if err := eng.Actuator.Mute(ctx, evt.Group, evt.Sender, banTime); err != nil {
			eng.reportActionFailure(ctx, "mute", evt.Group, err)
		}
	}
}

func (eng *Engine) checkLinks(ctx context.Context, evt MessageEvent) {
	if !eng.Settings.LinkRecallEnabled(ctx, evt.Group) {
		return
	}
	whitelist := eng.Settings.LinkWhitelist(ctx, evt.Group)
	url, found := linkguard.FirstViolation(evt.Text, whitelist)
	if !found {
		return
	}
	eng.Logger.Info("recalling message with non-whitelisted link", "group", evt.Group, "sender", evt.Sender, "url", url)

	recallCount.WithLabelValues("link").Inc()
	if err := eng.Actuator.DeleteMessage(ctx, evt.MessageID); err != nil {
		eng.reportActionFailure(ctx, "delete_msg", evt.Group, err)
	}
}

func (eng *Engine) checkFlood(ctx context.Context, evt MessageEvent) {
	banTime := eng.Settings.SpamBanTime(ctx, evt.Group)
	dec := eng.Flood.Observe(evt.Group, evt.Sender, evt.Time, banTime)
	if !dec.Ban {
		return
	}
	eng.Logger.Info("flood detected", "group", evt.Group, "sender", evt.Sender, "duration", dec.Duration)

	if err := eng.Counters.IncrementDistinct(ctx, "flood-spammers", evt.Group, evt.Sender); err != nil {
		eng.Logger.Warn("counter increment failed", "group", evt.Group, "err", err)
	}

	// a failed mute is reported but the detector's cooldown stands
	muteCount.WithLabelValues("flood").Inc()
	if err := eng.Actuator.Mute(ctx, evt.Group, evt.Sender, dec.Duration); err != nil {
		eng.reportActionFailure(ctx, "mute", evt.Group, err)
		return
	}
	eng.announce(ctx, evt.Group, fmt.Sprintf("%s was muted for flooding", eng.displayName(ctx, evt.Sender)))
}

// ProcessJoinRequest evaluates the admission policy and resolves the request
// with the platform, unless the group has review disabled or the decision is
// manual.
func (eng *Engine) ProcessJoinRequest(ctx context.Context, req JoinRequest) error {
	start := time.Now()
	defer func() {
		eventProcessDuration.WithLabelValues("join-request").Observe(time.Since(start).Seconds())
		if r := recover(); r != nil {
			eventErrorCount.WithLabelValues("join-request").Inc()
			eng.Logger.Error("join request processing exception", "r", r, "group", req.Group, "user", req.User)
		}
	}()
	eventProcessCount.WithLabelValues("join-request").Inc()

	if !eng.Settings.JoinReviewEnabled(ctx, req.Group) {
		return nil
	}
	logger := eng.Logger.With("group", req.Group, "user", req.User)

	nickname := req.User
	var level *int
	info, err := eng.Actuator.LookupUserInfo(ctx, req.User)
	if err != nil {
		// level stays unknown; the level gate will not fire
		logger.Warn("user info lookup failed", "err", err)
	} else {
		nickname = info.Nickname
		level = info.Level
	}

	decision, reason := eng.Admission.Decide(ctx, req.Group, req.User, req.Comment, level)
	joinDecisionCount.WithLabelValues(decision.String()).Inc()
	logger.Info("join request decided", "decision", decision.String(), "reason", reason)

	notice := fmt.Sprintf("join request in group %s: %s (%s)", req.Group, nickname, req.User)
	if req.Comment != "" {
		notice += "\ncomment: " + req.Comment
	}

	if decision == admission.Manual {
		eng.notifyOperator(ctx, notice+"\nneeds manual review: "+reason)
		return nil
	}

	approve := decision == admission.Approve
	if err := eng.Actuator.ResolveJoinRequest(ctx, req.Flag, approve, reason); err != nil {
		// the admission side effects (blacklist, counters) stand regardless
		eng.reportActionFailure(ctx, "set_group_add_request", req.Group, err)
		return nil
	}
	eng.notifyOperator(ctx, fmt.Sprintf("%s\nauto-%sed: %s", notice, decision.String(), reason))
	return nil
}

// ProcessMemberChange handles membership notices: welcome/join-mute on
// increase, leave notice and optional auto-blacklist on voluntary decrease.
func (eng *Engine) ProcessMemberChange(ctx context.Context, evt MemberChange) error {
	start := time.Now()
	defer func() {
		eventProcessDuration.WithLabelValues("member-change").Observe(time.Since(start).Seconds())
		if r := recover(); r != nil {
			eventErrorCount.WithLabelValues("member-change").Inc()
			eng.Logger.Error("member change processing exception", "r", r, "group", evt.Group, "user", evt.User)
		}
	}()
	eventProcessCount.WithLabelValues("member-change").Inc()

	if evt.User == eng.SelfID {
		return nil
	}

	switch evt.Change {
	case MemberJoined:
		if tmpl := eng.Settings.WelcomeTemplate(ctx, evt.Group); tmpl != "" {
			msg := strings.ReplaceAll(tmpl, "{nickname}", eng.displayName(ctx, evt.User))
			eng.announce(ctx, evt.Group, msg)
		}
		if banTime := eng.Settings.JoinBanTime(ctx, evt.Group); banTime > 0 {
			muteCount.WithLabelValues("join").Inc()
			if err := eng.Actuator.Mute(ctx, evt.Group, evt.User, banTime); err != nil {
				eng.reportActionFailure(ctx, "mute", evt.Group, err)
			}
		}
	case MemberLeft:
		if !eng.Settings.LeaveNotify(ctx, evt.Group) {
			return nil
		}
		msg := fmt.Sprintf("%s (%s) left the group", eng.displayName(ctx, evt.User), evt.User)
		if eng.Settings.LeaveBlock(ctx, evt.Group) {
			if err := eng.Settings.AddBlockID(ctx, evt.Group, evt.User); err != nil {
				eng.Logger.Error("blacklisting leaver failed", "group", evt.Group, "user", evt.User, "err", err)
			} else {
				msg += ", blacklisted"
			}
		}
		eng.announce(ctx, evt.Group, msg)
	}
	return nil
}

// StartBanVote opens a ban vote against target. A zero requested duration
// picks a random duration from the configured range.
func (eng *Engine) StartBanVote(ctx context.Context, group, target string, requested time.Duration) error {
	banDuration := eng.Config.BanDuration(requested)
	err := eng.Votes.Start(ctx, group, target, banDuration, eng.Config.VoteTTL, eng.Config.VoteThreshold)
	if errors.Is(err, vote.ErrAlreadyActive) {
		eng.announce(ctx, group, "a ban vote is already in progress")
		return err
	}
	if err != nil {
		return err
	}
	eng.announce(ctx, group, fmt.Sprintf(
		"ban vote started against %s (%s mute). Vote within %s.",
		eng.displayName(ctx, target), banDuration, eng.Config.VoteTTL))
	return nil
}

// CastBanVote records a vote and announces the resulting progress or outcome.
func (eng *Engine) CastBanVote(ctx context.Context, group, voter string, agree bool) (vote.Progress, error) {
	p, err := eng.Votes.Cast(ctx, group, voter, agree)
	if errors.Is(err, vote.ErrNoActiveSession) {
		eng.announce(ctx, group, "no ban vote is in progress")
		return p, err
	}
	if err != nil {
		return p, err
	}
	switch p.Outcome {
	case vote.OutcomePassed:
		voteOutcomeCount.WithLabelValues("passed").Inc()
		eng.announce(ctx, group, fmt.Sprintf("vote passed, %s muted", eng.displayName(ctx, p.Target)))
	case vote.OutcomeRejected:
		voteOutcomeCount.WithLabelValues("rejected").Inc()
		eng.announce(ctx, group, fmt.Sprintf("vote rejected, %s is safe", eng.displayName(ctx, p.Target)))
	default:
		eng.announce(ctx, group, fmt.Sprintf(
			"ban vote against %s: %d/%d agree, %d/%d disagree",
			eng.displayName(ctx, p.Target), p.Agree, p.Threshold, p.Disagree, p.Threshold))
	}
	return p, nil
}

// AnnounceVoteSettled reports TTL settlements; wire it to
// vote.Consensus.OnSettled.
func (eng *Engine) AnnounceVoteSettled(group string, p vote.Progress) {
	ctx := context.Background()
	switch p.Outcome {
	case vote.OutcomePassed:
		voteOutcomeCount.WithLabelValues("expired-passed").Inc()
		eng.announce(ctx, group, fmt.Sprintf("vote closed, %s muted", eng.displayName(ctx, p.Target)))
	default:
		voteOutcomeCount.WithLabelValues("expired-rejected").Inc()
		eng.announce(ctx, group, fmt.Sprintf("vote closed without a majority, %s is safe", eng.displayName(ctx, p.Target)))
	}
}

// displayName resolves a user's nickname, falling back to the raw id.
func (eng *Engine) displayName(ctx context.Context, user string) string {
	info, err := eng.Actuator.LookupUserInfo(ctx, user)
	if err != nil || info.Nickname == "" {
		return user
	}
	return info.Nickname
}

func (eng *Engine) announce(ctx context.Context, group, text string) {
	if err := eng.Actuator.SendGroupMessage(ctx, group, text); err != nil {
		eng.Logger.Warn("group announcement failed", "group", group, "err", err)
	}
}

// reportActionFailure classifies a failed moderation action: permission
// problems go to the operator channel, transient failures are only logged.
// Nothing is retried and no decision state is rolled back.
func (eng *Engine) reportActionFailure(ctx context.Context, action, group string, err error) {
	actuatorErrorCount.WithLabelValues(action).Inc()
	if errors.Is(err, actuator.ErrPermissionDenied) {
		eng.Logger.Error("insufficient privilege for moderation action", "action", action, "group", group, "err", err)
		eng.notifyOperator(ctx, fmt.Sprintf("missing permission for %s in group %s", action, group))
		return
	}
	eng.Logger.Error("moderation action failed", "action", action, "group", group, "err", err)
}

func (eng *Engine) notifyOperator(ctx context.Context, text string) {
	if eng.Notifier == nil {
		eng.Logger.Info("operator notice", "text", text)
		return
	}
	if err := eng.Notifier.SendOperator(ctx, text); err != nil {
		eng.Logger.Warn("operator notification failed", "err", err)
	}
}
