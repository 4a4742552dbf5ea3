package receipt

import "errors"

var (
	ErrUnknownDialect = errors.New("unknown printer dialect")
	ErrEmptyDocument  = errors.New("document has no lines")
)
