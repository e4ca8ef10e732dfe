package envutil

import (
	"cmp"
	"errors"
	"fmt"
)

// ErrNonPositive is returned by Positive.
var ErrNonPositive = errors.New("value must be positive")

// Option modifies a Reader. String, Bool and friends accept options so that
// callers can supply defaults, missing errors and validation inline.
type Option[T any] func(Reader[T]) Reader[T]

// Default supplies a value to use when the variable is missing.
func Default[T any](dfl T) Option[T] {
	return func(rdr Reader[T]) Reader[T] {
		return rdr.WithDefault(dfl)
	}
}

// IfMissing supplies the error to report when the variable is missing.
func IfMissing[T any](err error) Option[T] {
	return func(rdr Reader[T]) Reader[T] {
		return rdr.WithErrorIfMissing(err)
	}
}

// Validate runs f on the value; a non-nil error is attached to the Reader.
func Validate[T any](f func(T) error) Option[T] {
	return func(rdr Reader[T]) Reader[T] {
		return rdr.Map(func(val T) (T, error) {
			return val, f(val)
		})
	}
}

// Positive is a Validate option rejecting zero and negative values.
func Positive[T cmp.Ordered]() Option[T] {
	return Validate(func(val T) error {
		var zero T

		if val <= zero {
			return fmt.Errorf("%w: got %v", ErrNonPositive, val)
		}

		return nil
	})
}
