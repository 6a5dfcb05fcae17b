package engine

import (
	"errors"
)

var (
	// required process configuration (queue locators, policy source) is absent; fatal at startup
	ErrConfigMissing = errors.New("required configuration missing")
	// an inbound envelope could not be parsed in to a match message
	ErrMalformedInput = errors.New("malformed match envelope")
	// policy configuration could not be loaded, after retries
	ErrRepositoryUnavailable = errors.New("policy repository unavailable")
	// a message could not be published to its outbound queue, after retries
	ErrPublishFailure = errors.New("failed to publish message")
	// inconsistent policy configuration (eg, actions which supersede each other); resolved deterministically and logged, never fatal
	ErrConfigAnomaly = errors.New("policy configuration anomaly")
)

type FailureKind string

const (
	FailureNone                  FailureKind = ""
	FailureMalformedInput        FailureKind = "malformed-input"
	FailureRepositoryUnavailable FailureKind = "repository-unavailable"
	FailurePublish               FailureKind = "publish-failure"
	FailureInternal              FailureKind = "internal"
)

func classifyFailure(err error) FailureKind {
	switch {
	case err == nil:
		return FailureNone
	case errors.Is(err, ErrMalformedInput):
		return FailureMalformedInput
	case errors.Is(err, ErrRepositoryUnavailable):
		return FailureRepositoryUnavailable
	case errors.Is(err, ErrPublishFailure):
		return FailurePublish
	default:
		return FailureInternal
	}
}
