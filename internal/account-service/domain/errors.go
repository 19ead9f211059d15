package domain

import "errors"

var (
	ErrMissingSignupFields = errors.New("missing required fields")
	ErrMissingCredentials  = errors.New("missing email or password")
	ErrUserExists          = errors.New("user already exists")
	ErrUserNotFound        = errors.New("user not found")
	ErrIncorrectPassword   = errors.New("incorrect password")
	ErrEmailRequired       = errors.New("email is required")
	ErrMissingPlanOrMethod = errors.New("missing plan or payment method")
)
