package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var eventProcessDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name: "groupwarden_event_duration_sec",
	Help: "Total duration of moderation event processing",
}, []string{"type"})

var eventProcessCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "groupwarden_event_processed",
	Help: "Number of events processed",
}, []string{"type"})

var eventErrorCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "groupwarden_event_errors",
	Help: "Number of events which failed processing",
}, []string{"type"})

var recallCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "groupwarden_message_recalls",
	Help: "Number of messages recalled",
}, []string{"reason"})

var muteCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "groupwarden_mutes",
	Help: "Number of mutes applied",
}, []string{"reason"})

var joinDecisionCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "groupwarden_join_decisions",
	Help: "Number of join-admission decisions",
}, []string{"decision"})

var voteOutcomeCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "groupwarden_vote_outcomes",
	Help: "Number of resolved ban votes",
}, []string{"outcome"})

var actuatorErrorCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "groupwarden_actuator_errors",
	Help: "Number of failed moderation actions",
}, []string{"action"})
