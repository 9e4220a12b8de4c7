package service

import (
	"errors"
	"fmt"
	"strings"

	"go-marketplace/pkg/validator"
)

// Error classes. Handlers map these to HTTP status codes.
var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrConflict     = errors.New("conflict")
	ErrBusinessRule = errors.New("business rule violation")
	ErrUpstream     = errors.New("upstream service failure")
)

var (
	ErrUserNotFound        = newError(ErrNotFound, "user not found")
	ErrProductNotFound     = newError(ErrNotFound, "product not found")
	ErrTransactionNotFound = newError(ErrNotFound, "transaction not found")
	ErrChatNotFound        = newError(ErrNotFound, "chat message not found")
	ErrReceiverNotFound    = newError(ErrNotFound, "receiver not found")

	ErrInvalidCredentials = newError(ErrUnauthorized, "invalid email or password")
	ErrInvalidGoogleToken = newError(ErrUnauthorized, "invalid google id token")
	ErrUnverifiedEmail    = newError(ErrUnauthorized, "google account e-mail is not verified")

	ErrEmailExists         = newError(ErrConflict, "email already registered")
	ErrUsernameTaken       = newError(ErrConflict, "username already taken")
	ErrConcurrentUpdate    = newError(ErrConflict, "transaction was modified concurrently, reload and retry")
	ErrNotProductOwner     = newError(ErrForbidden, "you do not own this product")
	ErrNotTransactionParty = newError(ErrForbidden, "you are not part of this transaction")
	ErrOnlyBuyerCancel     = newError(ErrForbidden, "only the buyer can cancel a transaction")
	ErrOnlySellerComplete  = newError(ErrForbidden, "only the seller can complete a transaction")
	ErrOnlySellerRefund    = newError(ErrForbidden, "only the seller can refund a transaction")
	ErrOnlyBuyerPay        = newError(ErrForbidden, "only the buyer can pay for a transaction")
	ErrNotReceiver         = newError(ErrForbidden, "only the receiver can update message status")
	ErrNotSender           = newError(ErrForbidden, "only the sender can delete a message")
	ErrInvalidSignature    = newError(ErrForbidden, "invalid notification signature")

	ErrCannotBuyOwnProduct = newError(ErrBusinessRule, "you cannot buy your own product")
	ErrInsufficientStock   = newError(ErrBusinessRule, "insufficient stock")
	ErrNotPending          = newError(ErrBusinessRule, "transaction is no longer pending")
	ErrInvalidTransition   = newError(ErrBusinessRule, "status change not allowed")
	ErrCannotMessageSelf   = newError(ErrBusinessRule, "you cannot send a message to yourself")
	ErrWrongPassword       = newError(ErrBusinessRule, "current password is incorrect")
	ErrNoPasswordSet       = newError(ErrBusinessRule, "account has no password, sign in with google")
	ErrInvalidResetToken   = newError(ErrBusinessRule, "reset token is invalid or expired")
)

// Error is a domain error whose message is safe to show to clients.
// It unwraps to its class so callers can use errors.Is(err, ErrForbidden).
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

// ValidationError carries field-level failures from request validation.
type ValidationError struct {
	Fields []*validator.ErrorResponse
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("field '%s' failed on '%s'", f.FailedField, f.Tag))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func validate(req interface{}) error {
	if errs := validator.ValidateStruct(req); len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

func upstream(what string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrUpstream, what, err)
}
