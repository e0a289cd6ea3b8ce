package common

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies business-rule failures. Anything that is not an *Error is an
// infrastructure failure.
type Kind string

const (
	KindNotFound                Kind = "not_found"
	KindForbidden               Kind = "forbidden"
	KindInsufficientFunds       Kind = "insufficient_funds"
	KindInsufficientIngredients Kind = "insufficient_ingredients"
	KindInsufficientInventory   Kind = "insufficient_inventory"
	KindNoRecipe                Kind = "no_recipe"
	KindInvalidState            Kind = "invalid_state"
	KindValidation              Kind = "validation_error"
)

// Error is a typed business failure with enough detail for a client to render it.
type Error struct {
	Kind    Kind                   `json:"kind"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *Error) Error() string { return e.Message }

// Is matches any *Error of the same kind, so errors.Is(err, ErrNotFound) works
// regardless of message or details.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// With returns a copy of e carrying an extra detail.
func (e *Error) With(key string, value interface{}) *Error {
	details := make(map[string]interface{}, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	return &Error{Kind: e.Kind, Message: e.Message, Details: details}
}

var (
	ErrNotFound                = &Error{Kind: KindNotFound, Message: "not found"}
	ErrForbidden               = &Error{Kind: KindForbidden, Message: "forbidden"}
	ErrInsufficientFunds       = &Error{Kind: KindInsufficientFunds, Message: "insufficient funds"}
	ErrInsufficientIngredients = &Error{Kind: KindInsufficientIngredients, Message: "insufficient ingredients"}
	ErrInsufficientInventory   = &Error{Kind: KindInsufficientInventory, Message: "insufficient inventory"}
	ErrNoRecipe                = &Error{Kind: KindNoRecipe, Message: "no recipe"}
	ErrInvalidState            = &Error{Kind: KindInvalidState, Message: "invalid state"}
	ErrValidation              = &Error{Kind: KindValidation, Message: "validation error"}
)

func newError(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...interface{}) *Error {
	return newError(KindNotFound, format, args...)
}

func Forbidden(format string, args ...interface{}) *Error {
	return newError(KindForbidden, format, args...)
}

func InsufficientFunds(required, available int64) *Error {
	return newError(KindInsufficientFunds, "insufficient funds: required %d, available %d", required, available).
		With("required", required).
		With("available", available)
}

func InsufficientInventory(format string, args ...interface{}) *Error {
	return newError(KindInsufficientInventory, format, args...)
}

func NoRecipe(drugID string) *Error {
	return newError(KindNoRecipe, "drug %s has no recipe", drugID).With("drug_id", drugID)
}

func InvalidState(format string, args ...interface{}) *Error {
	return newError(KindInvalidState, format, args...)
}

func Validation(format string, args ...interface{}) *Error {
	return newError(KindValidation, format, args...)
}

// Shortfall is one missing ingredient or drug in an all-or-nothing debit.
type Shortfall struct {
	ItemID    string `json:"item_id"`
	Name      string `json:"name"`
	Required  int    `json:"required"`
	Available int    `json:"available"`
}

func InsufficientIngredients(shortfalls []Shortfall) *Error {
	msg := "insufficient ingredients:"
	for i, s := range shortfalls {
		if i > 0 {
			msg += ","
		}
		msg += fmt.Sprintf(" %s (required %d, available %d)", s.Name, s.Required, s.Available)
	}
	return &Error{
		Kind:    KindInsufficientIngredients,
		Message: msg,
		Details: map[string]interface{}{"shortfalls": shortfalls},
	}
}

// KindOf returns the kind of a business error, or "" for infrastructure errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// HTTPStatus maps an error to the status code the handlers respond with.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindInsufficientFunds:
		return http.StatusPaymentRequired
	case KindInsufficientIngredients, KindInsufficientInventory, KindInvalidState:
		return http.StatusConflict
	case KindNoRecipe:
		return http.StatusUnprocessableEntity
	case KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
