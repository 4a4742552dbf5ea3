package printjob

import "errors"

var (
	ErrEmptyPayload = errors.New("print job payload is empty")
	ErrNoPrinter    = errors.New("printer identity is empty")
)
