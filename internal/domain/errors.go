package domain

import "errors"

var (
	ErrInvalidTransition  = errors.New("illegal order status transition")
	ErrUnknownStatus      = errors.New("unknown order status")
	ErrEmptyCart          = errors.New("cart is empty, nothing to checkout")
	ErrEmailTaken         = errors.New("email is already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrNotAuthenticated   = errors.New("no authenticated user")
)
