// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package reshape

import (
	"fmt"

	"github.com/gomlx/reshapecheck/pkg/core/shapes"
)

// CountOverflow is the value of Verdict.InputElementCount and Verdict.TargetElementCount when the count
// doesn't fit an int. The Reason of the verdict still holds the exact count.
const CountOverflow = -1

// Verdict of a reshape validation. It is immutable once returned.
type Verdict struct {
	Valid bool
	Kind  ErrorKind

	// Reason is a human-readable explanation for an invalid verdict. Empty for valid ones.
	Reason string

	// InputElementCount is the product of the literal input dimensions (after applying the bindings),
	// or CountOverflow.
	InputElementCount int

	// TargetElementCount is the product of the literal target dimensions, skipping the wildcard and unbound
	// symbolic axes, or CountOverflow. With a wildcard this is a partial product and not the total the
	// target asks for.
	TargetElementCount int

	// Resolved is the target shape with the axes the constraints determine filled in: the wildcard and
	// bound symbolic axes, and a symbolic axis only present in the target. Symbolic axes that can take any
	// value keep their name (e.g. [batch 6] for [batch 6] -> [batch -1]), and a wildcard that depends on
	// them stays -1.
	//
	// Only set (rank > 0) for valid verdicts, when the backend returned a model or the target is concrete.
	Resolved shapes.Shape

	// Backend is the name of the solver backend that decided the verdict, if one was used.
	Backend string

	cause error
}

// Err returns nil for a valid verdict, or an *Error otherwise.
func (v Verdict) Err() error {
	if v.Valid {
		return nil
	}
	return &Error{Kind: v.Kind, Reason: v.Reason, Cause: v.cause}
}

// Equal returns whether both verdicts report the same outcome.
func (v Verdict) Equal(v2 Verdict) bool {
	return v.Valid == v2.Valid && v.Kind == v2.Kind && v.Reason == v2.Reason &&
		v.InputElementCount == v2.InputElementCount && v.TargetElementCount == v2.TargetElementCount &&
		v.Resolved.Equal(v2.Resolved) && v.Backend == v2.Backend
}

// String implements fmt.Stringer.
func (v Verdict) String() string {
	if v.Valid {
		if v.Resolved.Rank() > 0 {
			return fmt.Sprintf("valid: resolved to %s", v.Resolved)
		}
		return "valid"
	}
	return fmt.Sprintf("invalid (%s): %s", v.Kind, v.Reason)
}
