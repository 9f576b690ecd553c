package app

import "errors"

var (
	errManagerSeed    = errors.New("app: manager seed must be id:cpf")
	errUnknownBackend = errors.New("app: unknown bus backend")
)
