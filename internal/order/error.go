package order

import "errors"

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrOrderTerminal     = errors.New("order is in a terminal status")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalidStatus     = errors.New("unknown order status")
	ErrEmptyOrder        = errors.New("order has no lines")
	ErrMissingCustomer   = errors.New("customer contact is required")
)
