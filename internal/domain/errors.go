package domain

import "errors"

var (
	// ErrInvalidMarketState is returned when an operation references a
	// market that was evicted or a payload that failed ingress validation.
	ErrInvalidMarketState = errors.New("invalid market state")

	// ErrSizeTooSmall is the sizer's rejection when the clamped stake falls
	// below the minimum tradable unit. Expected outcome, not a fault.
	ErrSizeTooSmall = errors.New("position size below minimum tradable unit")

	// ErrPositionNotFound is returned when a resolve references an unknown
	// position id.
	ErrPositionNotFound = errors.New("position not found")
)
