package nats

import (
	"errors"

	serviceErrors "github.com/bitmercado/ms-orders/internal/errors/service"
)

// Reply codes grouped by how the gateway should treat the failure.
const (
	codeValidation   = "validation"
	codeNotFound     = "not_found"
	codeCollaborator = "collaborator"
	codeSettlement   = "settlement"
	codeInternal     = "internal"
)

var (
	errInternal   = errors.New("internal error")
	errBadRequest = errors.New("malformed request")
)

// Rejection is the uniform failure reply of every subject.
type Rejection struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

var validationSentinels = []error{
	serviceErrors.ErrInvalidPrice,
	serviceErrors.ErrInvalidOrderType,
	serviceErrors.ErrBelowMinimum,
	serviceErrors.ErrInsufficientFunds,
	serviceErrors.ErrAccountBlocked,
	serviceErrors.ErrPairUnavailable,
	serviceErrors.ErrCoinUnavailable,
	serviceErrors.ErrNotOrderOwner,
}

var notFoundSentinels = []error{
	serviceErrors.ErrOrderNotFound,
	serviceErrors.ErrUserNotFound,
	serviceErrors.ErrNoCompatibleOrder,
}

// rejectionFor maps a service error onto the caller-facing rejection,
// exposing only sentinel messages and masking internals.
func rejectionFor(err error) Rejection {
	if errors.Is(err, errBadRequest) {
		return Rejection{Message: errBadRequest.Error(), Code: codeValidation}
	}
	for _, sentinel := range validationSentinels {
		if errors.Is(err, sentinel) {
			return Rejection{Message: sentinel.Error(), Code: codeValidation}
		}
	}
	for _, sentinel := range notFoundSentinels {
		if errors.Is(err, sentinel) {
			return Rejection{Message: sentinel.Error(), Code: codeNotFound}
		}
	}

	var settlementErr *serviceErrors.SettlementError
	if errors.As(err, &settlementErr) {
		return Rejection{Message: "settlement failed", Code: codeSettlement}
	}

	var collaboratorErr *serviceErrors.CollaboratorError
	if errors.As(err, &collaboratorErr) {
		return Rejection{
			Message: collaboratorErr.Collaborator + " unavailable",
			Code:    codeCollaborator,
		}
	}

	return Rejection{Message: "internal error", Code: codeInternal}
}
