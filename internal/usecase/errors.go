package usecase

import (
	"errors"
	"fmt"
)

// 業務エラーの種別。HTTPステータスへの変換はhandler側で行う。
type ErrorKind string

const (
	KindValidation   ErrorKind = "validation"
	KindNotFound     ErrorKind = "not_found"
	KindConflict     ErrorKind = "conflict"
	KindUnauthorized ErrorKind = "unauthorized"
	KindForbidden    ErrorKind = "forbidden"
	KindGateway      ErrorKind = "gateway" // 決済ゲートウェイ起因。リトライ可。
	KindInternal     ErrorKind = "internal"
)

type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func NewValidationError(message string) error {
	return &Error{Kind: KindValidation, Message: message}
}

func NewNotFoundError(message string) error {
	return &Error{Kind: KindNotFound, Message: message}
}

func NewConflictError(message string) error {
	return &Error{Kind: KindConflict, Message: message}
}

func NewUnauthorizedError(message string) error {
	return &Error{Kind: KindUnauthorized, Message: message}
}

func NewForbiddenError(message string) error {
	return &Error{Kind: KindForbidden, Message: message}
}

func NewGatewayError(message string) error {
	return &Error{Kind: KindGateway, Message: message}
}

func NewInternalError(message string) error {
	return &Error{Kind: KindInternal, Message: message}
}

func AsError(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}
