// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package reshape

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorKind classifies why a reshape was rejected.
type ErrorKind int

const (
	// KindNone is the kind of valid verdicts.
	KindNone ErrorKind = iota

	// KindShapeMismatch means the element counts can't be reconciled, even allowing the wildcard to take any
	// positive value.
	KindShapeMismatch

	// KindNonPositiveDimension means a literal dimension (or a bound symbolic axis) is zero or negative.
	// The wildcard marker -1 is the only negative value accepted in a target shape.
	KindNonPositiveDimension

	// KindSolverInconclusive means the solver backend couldn't decide: it returned Unknown, failed, or
	// ran past its deadline. It is never treated as valid.
	KindSolverInconclusive

	// KindMalformedShape means the request is outside the supported form: a wildcard in the input shape,
	// or more than one wildcard in the target shape.
	KindMalformedShape
)

var (
	ErrShapeMismatch        = errors.New("shape mismatch")
	ErrNonPositiveDimension = errors.New("non-positive dimension")
	ErrSolverInconclusive   = errors.New("solver inconclusive")
	ErrMalformedShape       = errors.New("malformed shape")
)

// String implements fmt.Stringer.
func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "None"
	case KindShapeMismatch:
		return "ShapeMismatch"
	case KindNonPositiveDimension:
		return "NonPositiveDimension"
	case KindSolverInconclusive:
		return "SolverInconclusive"
	case KindMalformedShape:
		return "MalformedShape"
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// Sentinel returns the sentinel error of the kind, to be used with errors.Is. It is nil for KindNone.
func (k ErrorKind) Sentinel() error {
	switch k {
	case KindShapeMismatch:
		return ErrShapeMismatch
	case KindNonPositiveDimension:
		return ErrNonPositiveDimension
	case KindSolverInconclusive:
		return ErrSolverInconclusive
	case KindMalformedShape:
		return ErrMalformedShape
	}
	return nil
}

// Error is the error form of an invalid Verdict, see Verdict.Err.
//
// It matches (errors.Is) the sentinel of its Kind, and the underlying cause if there is one.
type Error struct {
	Kind   ErrorKind
	Reason string
	Cause  error
}

// Error implements error.
func (e *Error) Error() string {
	return e.Reason
}

// Unwrap returns the sentinel of the kind and the cause, if any.
func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if sentinel := e.Kind.Sentinel(); sentinel != nil {
		errs = append(errs, sentinel)
	}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}
