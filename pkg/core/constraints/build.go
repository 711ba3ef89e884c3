// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package constraints

import (
	"fmt"

	"github.com/gomlx/reshapecheck/pkg/core/shapes"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

var (
	// ErrMultipleWildcards is returned by Build when the target shape has more than one wildcard axis.
	ErrMultipleWildcards = errors.New("at most one wildcard dimension is allowed")

	// ErrInputWildcard is returned by Build when the input shape has a wildcard axis: only the target can
	// ask for a dimension to be inferred.
	ErrInputWildcard = errors.New("wildcard dimension not allowed in the input shape")

	// ErrInvalidInputDimension is returned by Build when a literal input dimension is not positive.
	ErrInvalidInputDimension = errors.New("input dimensions must be positive")
)

// Build translates a reshape request into a constraint Set.
//
// Named symbolic axes share one variable per name across both shapes. If bindings holds a value
// for the name, the variable is bound to it, otherwise it is left free (and positive).
//
// Build only rejects requests outside the supported form: a wildcard in the input, more than one
// wildcard in the target, or an illegal literal in the input. Illegal literals in the target are
// encoded like any other literal, and make the Set unsatisfiable.
func Build(input, target shapes.Shape, bindings shapes.AxisBindings) (*Set, error) {
	if axes := input.WildcardAxes(); len(axes) > 0 {
		return nil, errors.Wrapf(ErrInputWildcard, "input shape %s has a wildcard at axis %d", input, axes[0])
	}
	if axes := input.NonPositiveAxes(); len(axes) > 0 {
		return nil, errors.Wrapf(ErrInvalidInputDimension, "input shape %s has dimension %d at axis %d",
			input, input.Dimensions[axes[0]], axes[0])
	}
	if axes := target.WildcardAxes(); len(axes) > 1 {
		return nil, errors.Wrapf(ErrMultipleWildcards, "target shape %s has wildcards at axes %v", target, axes)
	}

	set := &Set{}
	symbols := make(map[string]VarID)
	symbolFor := func(name string) VarID {
		if id, found := symbols[name]; found {
			return id
		}
		id := set.NewVariable(name, SideSymbolic, -1)
		symbols[name] = id
		if value, bound := bindings[name]; bound {
			set.EqualLiteral(id, value)
		}
		set.GreaterThan(id, 0)
		return id
	}

	lhs := make([]VarID, 0, input.Rank())
	for axis, dim := range input.Dimensions {
		if name := input.AxisName(axis); name != "" {
			lhs = append(lhs, symbolFor(name))
			continue
		}
		id := set.NewVariable(fmt.Sprintf("in[%d]", axis), SideInput, axis)
		set.EqualLiteral(id, dim)
		lhs = append(lhs, id)
	}

	rhs := make([]VarID, 0, target.Rank())
	for axis, dim := range target.Dimensions {
		if name := target.AxisName(axis); name != "" {
			rhs = append(rhs, symbolFor(name))
			continue
		}
		id := set.NewVariable(fmt.Sprintf("out[%d]", axis), SideTarget, axis)
		if dim != shapes.Wildcard {
			set.EqualLiteral(id, dim)
		}
		set.GreaterThan(id, 0)
		rhs = append(rhs, id)
	}

	set.ProductEqual(lhs, rhs)
	if klog.V(2).Enabled() {
		klog.Infof("constraints for reshape %s -> %s:\n%s", input, target, set)
	}
	return set, nil
}
