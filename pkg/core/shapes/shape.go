// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package shapes defines Shape, the description of a tensor's dimensions used when checking
// whether a reshape is legal.
//
// A Shape is an ordered list of dimensions. Each dimension is one of:
//
//   - A concrete size: a positive integer.
//   - The Wildcard marker (-1): "infer this size from the total number of elements". Only meaningful
//     in the target of a reshape, and at most once.
//   - A named symbolic axis (e.g. "batch"): a size that is not known, but is the same wherever the
//     same name appears. Its value may later be given by AxisBindings.
//
// Any other non-positive value (0, -2, ...) can be stored, so that it can be diagnosed, but it is
// never a legal size.
//
// ## Glossary
//
//   - Rank: number of axes of a Shape.
//   - Axis: the index of a dimension.
//   - Dimension: the size of a Shape in one of its axes.
//   - Element count (or size): the product of all dimensions.
//   - Scalar: a Shape with rank 0, it has exactly one element.
//
// Example: `shapes.Make(4, 2, 3)` has rank 3 and 24 elements, and `shapes.MakeDynamic("batch", 8, -1)`
// has a named axis "batch", a concrete axis and a wildcard.
package shapes

import (
	"fmt"
	"math"
	"math/big"
	"slices"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/reshapecheck/pkg/support/xmath"
)

const (
	// Wildcard is the dimension value used to ask for a dimension to be inferred from the element count.
	Wildcard = -1

	// DimSymbolic is the value stored in Shape.Dimensions for named symbolic axes.
	// The actual identity of the axis is given by its name in Shape.AxisNames.
	DimSymbolic = math.MinInt32
)

// Shape is the ordered list of dimensions of a tensor, or of the requested output of a reshape.
//
// Use Make or MakeDynamic to create a new shape, or Parse to read one from text.
type Shape struct {
	Dimensions []int

	// AxisNames holds the name of each symbolic axis, and "" for the other axes.
	// It is nil if no axis is named.
	AxisNames []string
}

// Make returns a Shape with the given dimensions.
//
// Contrary to most shape constructors it doesn't panic on invalid values: a Shape here describes
// a request, and it is up to the reshape checker to report on illegal dimensions.
func Make(dimensions ...int) Shape {
	return Shape{Dimensions: slices.Clone(dimensions)}
}

// MakeDynamic returns a Shape where each dimension is either an int (concrete size or Wildcard) or a
// string, the name of a symbolic axis.
//
// It panics (see package github.com/gomlx/exceptions) if given a value of any other type, or an empty name.
func MakeDynamic(dimensions ...any) Shape {
	s := Shape{Dimensions: make([]int, len(dimensions))}
	for axis, dim := range dimensions {
		switch v := dim.(type) {
		case int:
			s.Dimensions[axis] = v
		case string:
			if v == "" {
				exceptions.Panicf("shapes.MakeDynamic(%v): axis %d has an empty name", dimensions, axis)
			}
			s.setAxisName(axis, v)
		default:
			exceptions.Panicf("shapes.MakeDynamic(%v): axis %d has unsupported type %T, only int and string are accepted",
				dimensions, axis, dim)
		}
	}
	return s
}

func (s *Shape) setAxisName(axis int, name string) {
	if s.AxisNames == nil {
		s.AxisNames = make([]string, len(s.Dimensions))
	}
	s.AxisNames[axis] = name
	s.Dimensions[axis] = DimSymbolic
}

// Scalar returns a shape with rank 0.
func Scalar() Shape {
	return Shape{}
}

// Rank of the shape, that is, the number of axes.
func (s Shape) Rank() int { return len(s.Dimensions) }

// IsScalar returns whether the shape has rank 0.
func (s Shape) IsScalar() bool { return s.Rank() == 0 }

// Dim returns the dimension of the given axis. axis can take negative numbers, in which
// case it counts from the end -- so axis=-1 refers to the last axis.
// Like with a slice indexing, it panics for an out-of-bound axis.
func (s Shape) Dim(axis int) int {
	adjustedAxis := axis
	if adjustedAxis < 0 {
		adjustedAxis += s.Rank()
	}
	if adjustedAxis < 0 || adjustedAxis >= s.Rank() {
		exceptions.Panicf("Shape.Dim(%d) out-of-bounds for rank %d (shape=%s)", axis, s.Rank(), s)
	}
	return s.Dimensions[adjustedAxis]
}

// AxisName returns the name of the axis, or "" if the axis is not a named symbolic axis.
func (s Shape) AxisName(axis int) string {
	if s.AxisNames == nil || axis < 0 || axis >= len(s.AxisNames) {
		return ""
	}
	return s.AxisNames[axis]
}

// IsSymbolic returns whether the axis is a named symbolic axis.
func (s Shape) IsSymbolic(axis int) bool { return s.AxisName(axis) != "" }

// IsWildcard returns whether the axis holds the Wildcard marker.
func (s Shape) IsWildcard(axis int) bool {
	return !s.IsSymbolic(axis) && s.Dimensions[axis] == Wildcard
}

// IsConcrete returns whether the axis holds a literal size: it is neither symbolic nor a wildcard.
// Notice the literal may still be an illegal (non-positive) size.
func (s Shape) IsConcrete(axis int) bool {
	return !s.IsSymbolic(axis) && s.Dimensions[axis] != Wildcard
}

// HasNamedAxes returns whether any axis is a named symbolic axis.
func (s Shape) HasNamedAxes() bool {
	for _, name := range s.AxisNames {
		if name != "" {
			return true
		}
	}
	return false
}

// WildcardAxes returns the axes holding the Wildcard marker.
func (s Shape) WildcardAxes() (axes []int) {
	for axis := range s.Dimensions {
		if s.IsWildcard(axis) {
			axes = append(axes, axis)
		}
	}
	return
}

// NonPositiveAxes returns the concrete axes whose literal is not a legal size (<= 0).
// The Wildcard marker is not included.
func (s Shape) NonPositiveAxes() (axes []int) {
	for axis, dim := range s.Dimensions {
		if s.IsConcrete(axis) && dim <= 0 {
			axes = append(axes, axis)
		}
	}
	return
}

// IsFullyConcrete returns true if all axes have a literal size: no wildcards or symbolic axes.
func (s Shape) IsFullyConcrete() bool {
	for axis := range s.Dimensions {
		if !s.IsConcrete(axis) {
			return false
		}
	}
	return true
}

// Size returns the number of elements of the shape, the product of all dimensions.
// It is only meaningful for fully concrete shapes, see ConcreteSize otherwise.
//
// It panics (see package github.com/gomlx/exceptions) if the product overflows int.
func (s Shape) Size() int {
	size, ok := xmath.CheckedProduct(s.Dimensions...)
	if !ok {
		exceptions.Panicf("shape %s has more than %d elements", s, math.MaxInt)
	}
	return size
}

// ConcreteSize returns the product of the literal dimensions, skipping wildcards and symbolic axes.
// It returns false if the product overflows int.
//
// For a fully concrete shape it is the same as Size. Otherwise, it is only a partial product: this is
// the element count reported in reshape diagnostics.
func (s Shape) ConcreteSize() (size int, ok bool) {
	size = 1
	for axis, d := range s.Dimensions {
		if !s.IsConcrete(axis) {
			continue
		}
		if size, ok = xmath.CheckedMul(size, d); !ok {
			return 0, false
		}
	}
	return size, true
}

// ConcreteSizeString returns the exact decimal value of ConcreteSize, even when it overflows int.
func (s Shape) ConcreteSizeString() string {
	size := big.NewInt(1)
	for axis, d := range s.Dimensions {
		if s.IsConcrete(axis) {
			size.Mul(size, big.NewInt(int64(d)))
		}
	}
	return size.String()
}

// Clone returns a deep copy of the shape.
func (s Shape) Clone() (s2 Shape) {
	s2.Dimensions = slices.Clone(s.Dimensions)
	if s.AxisNames != nil {
		s2.AxisNames = slices.Clone(s.AxisNames)
	}
	return
}

// Equal compares two shapes for equality of dimensions and axis names.
func (s Shape) Equal(s2 Shape) bool {
	if s.Rank() != s2.Rank() {
		return false
	}
	for axis := range s.Dimensions {
		if s.AxisName(axis) != s2.AxisName(axis) {
			return false
		}
		if !s.IsSymbolic(axis) && s.Dimensions[axis] != s2.Dimensions[axis] {
			return false
		}
	}
	return true
}

// String implements fmt.Stringer, it pretty-prints the shape as in "[batch 8 -1]".
func (s Shape) String() string {
	parts := make([]string, s.Rank())
	for axis, dim := range s.Dimensions {
		if name := s.AxisName(axis); name != "" {
			parts[axis] = name
		} else {
			parts[axis] = fmt.Sprintf("%d", dim)
		}
	}
	return "[" + strings.Join(parts, " ") + "]"
}
