package actioner

import (
	"github.com/hma-go/actioner/actioner/engine"
	"github.com/hma-go/actioner/actioner/event"
	"github.com/hma-go/actioner/actioner/labels"
	"github.com/hma-go/actioner/actioner/policy"
)

type Engine = engine.Engine
type Dispatcher = engine.Dispatcher
type BatchSummary = engine.BatchSummary
type RecordOutcome = engine.RecordOutcome
type ReactionGate = engine.ReactionGate
type ReactionResolver = engine.ReactionResolver

type Label = labels.Label
type MatchMessage = event.MatchMessage
type Envelope = event.Envelope
type Snapshot = policy.Snapshot

var (
	ErrConfigMissing         = engine.ErrConfigMissing
	ErrMalformedInput        = engine.ErrMalformedInput
	ErrRepositoryUnavailable = engine.ErrRepositoryUnavailable
	ErrPublishFailure        = engine.ErrPublishFailure
	ErrConfigAnomaly         = engine.ErrConfigAnomaly

	EvaluateRules       = engine.EvaluateRules
	ResolveSupersession = engine.ResolveSupersession
)
