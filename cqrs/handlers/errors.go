package handlers

import "errors"

var (
	errNilMessage   = errors.New("cqrs/handlers: message is nil")
	errNilLogic     = errors.New("cqrs/handlers: handler logic is nil")
	errNilMarshaler = errors.New("cqrs/handlers: marshaler is nil")
	errWrongKind    = errors.New("cqrs/handlers: unexpected message kind")
)
