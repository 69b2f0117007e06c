package service

import (
	"errors"
	"fmt"
)

// Sentinels of the service layer. The transport maps them onto reply codes:
// validation failures and collaborator failures reject the operation without
// mutating state, settlement failures surface as opaque operational errors.
var (
	ErrNoCompatibleOrder = errors.New("no compatible order")
	ErrOrderNotFound     = errors.New("order not found, already cancelled or already executed")
	ErrNotOrderOwner     = errors.New("order does not belong to user")
	ErrUserNotFound      = errors.New("user not found")
	ErrAccountBlocked    = errors.New("account blocked")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrBelowMinimum      = errors.New("order total below minimum")
	ErrInvalidPrice      = errors.New("invalid price")
	ErrInvalidOrderType  = errors.New("invalid order type")
	ErrPairUnavailable   = errors.New("pair unavailable")
	ErrCoinUnavailable   = errors.New("coin unavailable")
)

// SettlementError wraps any failure raised inside the matching loop or the
// atomic settlement write. Its cause stays inspectable through errors.Is.
type SettlementError struct {
	Err error
}

func (e *SettlementError) Error() string {
	return fmt.Sprintf("settlement failed: %v", e.Err)
}

func (e *SettlementError) Unwrap() error {
	return e.Err
}

// CollaboratorError marks a failed call to an external service; it is
// reported to callers as a rejected operation with the collaborator's message.
type CollaboratorError struct {
	Collaborator string
	Err          error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s: %v", e.Collaborator, e.Err)
}

func (e *CollaboratorError) Unwrap() error {
	return e.Err
}
