package service

import "errors"

var (
	// ErrUnauthorized: no identity, or an identity without an email.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNoAgency: the caller's email matches no agency.
	ErrNoAgency = errors.New("no agency linked to this account")
	// ErrForbidden: the caller's agency lacks the required capability.
	ErrForbidden = errors.New("forbidden")
	// ErrProductNotFound: a simulation or reservation names an unknown product.
	ErrProductNotFound = errors.New("product not found")
	// ErrInvalidInput wraps request validation failures.
	ErrInvalidInput = errors.New("invalid input")
)
