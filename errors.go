package kaya

import "errors"

// Sentinel errors returned by the registry, roster, coordinator and session.
var (
	ErrUnknownCapability      = errors.New("kaya: unknown capability")
	ErrDuplicateCapability    = errors.New("kaya: duplicate capability")
	ErrUnresolvableCapability = errors.New("kaya: unresolvable capability")
	ErrRegistrySealed         = errors.New("kaya: registry sealed")

	ErrUnknownAgent      = errors.New("kaya: unknown agent")
	ErrDuplicateAgent    = errors.New("kaya: duplicate agent")
	ErrInvalidDefinition = errors.New("kaya: invalid agent definition")
	ErrDelegationFailed  = errors.New("kaya: delegation failed")
	ErrTaskCancelled     = errors.New("kaya: task cancelled")
	ErrBridgeUnavailable = errors.New("kaya: bridge unavailable")
	ErrSessionClosed     = errors.New("kaya: session closed")
	ErrTurnInProgress    = errors.New("kaya: turn in progress")
	ErrMaxTurns          = errors.New("kaya: max turns reached")
	ErrBudgetExhausted   = errors.New("kaya: budget exhausted")
)
