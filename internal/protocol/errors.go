package protocol

import (
	"errors"

	"paulette.land/internal/auction"
	"paulette.land/internal/auth"
	"paulette.land/internal/registry"
	"paulette.land/internal/token"
)

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// Ledger lifecycle.
	ErrNotInitialized     = "E_NOT_INITIALIZED"
	ErrAlreadyInitialized = "E_ALREADY_INITIALIZED"

	// Auth & replay protection.
	ErrUnauthorized   = "E_UNAUTHORIZED"
	ErrIncorrectNonce = "E_INCORRECT_NONCE"
	ErrInvokerNonce   = "E_INVOKER_NONCE"

	// Office state machine.
	ErrDuplicateID    = "E_DUPLICATE_ID"
	ErrNotForSale     = "E_NOT_FOR_SALE"
	ErrNotFound       = "E_NOT_FOUND"
	ErrBidRejected    = "E_BID_REJECTED"
	ErrNotExpired     = "E_NOT_EXPIRED"
	ErrTransferFailed = "E_TRANSFER_FAILED"

	// Token ledger.
	ErrToken = "E_TOKEN"

	ErrInternal = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest:    {},
	ErrNotInitialized:     {},
	ErrAlreadyInitialized: {},
	ErrUnauthorized:       {},
	ErrIncorrectNonce:     {},
	ErrInvokerNonce:       {},
	ErrDuplicateID:        {},
	ErrNotForSale:         {},
	ErrNotFound:           {},
	ErrBidRejected:        {},
	ErrNotExpired:         {},
	ErrTransferFailed:     {},
	ErrToken:              {},
	ErrInternal:           {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}

// CodeFor maps a ledger error to its wire code.
func CodeFor(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, registry.ErrNotInitialized):
		return ErrNotInitialized
	case errors.Is(err, registry.ErrAlreadyInitialized):
		return ErrAlreadyInitialized
	case errors.Is(err, auth.ErrUnauthorized), errors.Is(err, auth.ErrInvalidSignature):
		return ErrUnauthorized
	case errors.Is(err, auth.ErrIncorrectNonce):
		return ErrIncorrectNonce
	case errors.Is(err, auth.ErrInvokerNonceMismatch):
		return ErrInvokerNonce
	case errors.Is(err, registry.ErrDuplicateID):
		return ErrDuplicateID
	case errors.Is(err, registry.ErrNotForSale):
		return ErrNotForSale
	case errors.Is(err, registry.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, registry.ErrBidRejected):
		return ErrBidRejected
	case errors.Is(err, registry.ErrNotExpired):
		return ErrNotExpired
	case errors.Is(err, registry.ErrTransferFailed):
		return ErrTransferFailed
	case errors.Is(err, registry.ErrBadOfficeID),
		errors.Is(err, auction.ErrBadRef),
		errors.Is(err, token.ErrBadRef):
		return ErrProtoBadRequest
	case errors.Is(err, auction.ErrExists), errors.Is(err, auction.ErrNotFound), errors.Is(err, auction.ErrBadPrice):
		return ErrInternal
	case errors.Is(err, token.ErrExists),
		errors.Is(err, token.ErrNotFound),
		errors.Is(err, token.ErrNotAdmin),
		errors.Is(err, token.ErrNegativeAmount),
		errors.Is(err, token.ErrInsufficientBalance),
		errors.Is(err, token.ErrInsufficientAllowance):
		return ErrToken
	default:
		return ErrInternal
	}
}
