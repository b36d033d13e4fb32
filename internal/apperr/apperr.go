// Package apperr is the closed set of errors the order pipeline reports to callers.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindValidation Kind = iota + 1
	KindBusiness
	KindGateway
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindBusiness:
		return "business"
	case KindGateway:
		return "gateway"
	default:
		return "internal"
	}
}

type Code string

const (
	CodeItemsRequired        Code = "items_required"
	CodeItemsTooMany         Code = "items_too_many"
	CodeInvalidProductID     Code = "invalid_product_id"
	CodeInvalidQuantity      Code = "invalid_quantity"
	CodeOptionIDsTooMany     Code = "option_ids_too_many"
	CodeInvalidOptionID      Code = "invalid_option_id"
	CodeDuplicateOptionID    Code = "duplicate_option_id"
	CodeInvalidTotalPrice    Code = "invalid_total_price"
	CodeInvalidOrderType     Code = "invalid_order_type"
	CodeInvalidPaymentMethod Code = "invalid_payment_method"
	CodeInvalidInput         Code = "invalid_input"
	CodeInvalidStatus        Code = "invalid_status"

	CodeProductUnavailable Code = "product_unavailable"
	CodeOptionUnavailable  Code = "option_unavailable"
	CodeTotalMismatch      Code = "total_mismatch"
	CodeOrderNotFound      Code = "order_not_found"
	CodeNotCancelable      Code = "not_cancelable"
	CodeOrderAlreadyPaid   Code = "order_already_paid"
	CodeOrderNotPayable    Code = "order_not_payable"
	CodeAmountMismatch     Code = "amount_mismatch"
	CodeInvalidTransition  Code = "invalid_transition"
	CodeOrderStateChanged  Code = "order_state_changed"
	CodeForbidden          Code = "forbidden"

	CodePaymentFailed      Code = "payment_failed"
	CodeGatewayUnavailable Code = "gateway_unavailable"

	CodeInternal Code = "internal"
)

var kinds = map[Code]Kind{
	CodeItemsRequired:        KindValidation,
	CodeItemsTooMany:         KindValidation,
	CodeInvalidProductID:     KindValidation,
	CodeInvalidQuantity:      KindValidation,
	CodeOptionIDsTooMany:     KindValidation,
	CodeInvalidOptionID:      KindValidation,
	CodeDuplicateOptionID:    KindValidation,
	CodeInvalidTotalPrice:    KindValidation,
	CodeInvalidOrderType:     KindValidation,
	CodeInvalidPaymentMethod: KindValidation,
	CodeInvalidInput:         KindValidation,
	CodeInvalidStatus:        KindValidation,

	CodeProductUnavailable: KindBusiness,
	CodeOptionUnavailable:  KindBusiness,
	CodeTotalMismatch:      KindBusiness,
	CodeOrderNotFound:      KindBusiness,
	CodeNotCancelable:      KindBusiness,
	CodeOrderAlreadyPaid:   KindBusiness,
	CodeOrderNotPayable:    KindBusiness,
	CodeAmountMismatch:     KindBusiness,
	CodeInvalidTransition:  KindBusiness,
	CodeOrderStateChanged:  KindBusiness,
	CodeForbidden:          KindBusiness,

	CodePaymentFailed:      KindGateway,
	CodeGatewayUnavailable: KindGateway,

	CodeInternal: KindInternal,
}

func (c Code) Kind() Kind {
	if k, ok := kinds[c]; ok {
		return k
	}
	return KindInternal
}

// NoIndex marks an error that does not point at a particular order line.
const NoIndex = -1

type Error struct {
	Code   Code
	Index  int
	Field  string
	Reason string
	Err    error
}

func (e *Error) Kind() Kind {
	return e.Code.Kind()
}

func (e *Error) Error() string {
	msg := string(e.Code)
	if e.Index != NoIndex {
		msg = fmt.Sprintf("%s at index %d", msg, e.Index)
	}
	if e.Field != "" {
		msg += " (" + e.Field + ")"
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on code alone, so errors.Is(err, ErrTotalMismatch) ignores index and reason.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

func New(code Code, reason string) *Error {
	return &Error{Code: code, Index: NoIndex, Reason: reason}
}

func At(code Code, index int) *Error {
	return &Error{Code: code, Index: index}
}

func Field(code Code, field, reason string) *Error {
	return &Error{Code: code, Index: NoIndex, Field: field, Reason: reason}
}

func Wrap(code Code, err error) *Error {
	return &Error{Code: code, Index: NoIndex, Err: err}
}

func Internal(err error) *Error {
	return Wrap(CodeInternal, err)
}

// From returns the *Error carried by err, treating anything unknown as internal.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal(err)
}

func KindOf(err error) Kind {
	return From(err).Kind()
}

var (
	ErrItemsRequired      = New(CodeItemsRequired, "")
	ErrProductUnavailable = New(CodeProductUnavailable, "")
	ErrOptionUnavailable  = New(CodeOptionUnavailable, "")
	ErrTotalMismatch      = New(CodeTotalMismatch, "")
	ErrOrderNotFound      = New(CodeOrderNotFound, "")
	ErrNotCancelable      = New(CodeNotCancelable, "")
	ErrOrderAlreadyPaid   = New(CodeOrderAlreadyPaid, "")
	ErrOrderNotPayable    = New(CodeOrderNotPayable, "")
	ErrAmountMismatch     = New(CodeAmountMismatch, "")
	ErrInvalidTransition  = New(CodeInvalidTransition, "")
	ErrInvalidStatus      = New(CodeInvalidStatus, "")
	ErrOrderStateChanged  = New(CodeOrderStateChanged, "")
	ErrForbidden          = New(CodeForbidden, "")
	ErrPaymentFailed      = New(CodePaymentFailed, "")
	ErrGatewayUnavailable = New(CodeGatewayUnavailable, "")
	ErrInternal           = New(CodeInternal, "")
)
