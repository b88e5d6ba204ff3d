package venue

import "errors"

// Rejection sentinels. Each is returned synchronously with zero state
// change; callers map them to HTTP statuses at the API layer.
var (
	// ErrPaused rejects mutating operations while the venue is halted.
	ErrPaused = errors.New("venue: paused")

	// ErrUnauthorized rejects privileged operations from non-operators.
	ErrUnauthorized = errors.New("venue: unauthorized")

	// ErrInsufficientCollateral rejects orders whose margin exceeds the
	// trader's free collateral.
	ErrInsufficientCollateral = errors.New("venue: insufficient collateral")

	// ErrNonceMismatch rejects signed requests whose nonce does not equal
	// the trader's stored nonce exactly.
	ErrNonceMismatch = errors.New("venue: nonce mismatch")

	// ErrInvalidOrder rejects orders with a non-positive quantity or
	// price, or an unknown side.
	ErrInvalidOrder = errors.New("venue: invalid order")

	// ErrInvalidAmount rejects non-positive transfer amounts.
	ErrInvalidAmount = errors.New("venue: invalid amount")
)
