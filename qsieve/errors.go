// Copyright (c) 2023 Colin McRae

package qsieve

import "errors"

// Errors
var (
	// ErrInvalidInput rejects n <= 1 or prime n handed to FindDivisor.
	ErrInvalidInput = errors.New("input must be a composite greater than 1")
	// ErrInsufficientRelations reports that no divisor emerged: a matrix
	// with no usable null vectors, which the sieve path recovers from by
	// sieving more, or a 64-bit rho run that found nothing.
	ErrInsufficientRelations = errors.New("insufficient relations")
	// ErrCancelled reports a user cancellation or expired budget; a
	// partial factorization may accompany it.
	ErrCancelled = errors.New("factorization cancelled")
)
