package errors

import "errors"

var (
	// ErrNotFound is a generic sentinel for missing documents.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument is a generic sentinel for invalid input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrMalformedAmount marks a transaction whose amount or fee cannot be
	// read as a number; aggregation refuses to write garbage into balances.
	ErrMalformedAmount = errors.New("malformed amount")
	// ErrBatchTooLarge marks a write batch exceeding the store's ceiling.
	ErrBatchTooLarge = errors.New("batch exceeds write limit")
)
