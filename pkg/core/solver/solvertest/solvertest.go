// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package solvertest holds a conformance test suite for solver backends.
package solvertest

import (
	"context"
	"testing"

	"github.com/gomlx/reshapecheck/pkg/core/constraints"
	"github.com/gomlx/reshapecheck/pkg/core/shapes"
	"github.com/gomlx/reshapecheck/pkg/core/solver"
	"github.com/stretchr/testify/require"
)

// Case is one reshape request and the expected result of checking its constraint Set.
type Case struct {
	Name          string
	Input, Target shapes.Shape
	Bindings      shapes.AxisBindings
	Want          solver.Status

	// WantTarget, if set, are the expected values of the target variables in the model, in axis order.
	WantTarget []int
}

// Cases every complete backend should decide.
var Cases = []Case{
	{Name: "equal_counts", Input: shapes.Make(4, 2, 3), Target: shapes.Make(4, 6), Want: solver.Sat,
		WantTarget: []int{4, 6}},
	{Name: "different_counts", Input: shapes.Make(4, 2, 3), Target: shapes.Make(4, 7), Want: solver.Unsat},
	{Name: "wildcard_last", Input: shapes.Make(4, 2, 3), Target: shapes.Make(4, -1), Want: solver.Sat,
		WantTarget: []int{4, 6}},
	{Name: "wildcard_12", Input: shapes.Make(6, 4), Target: shapes.Make(2, -1), Want: solver.Sat,
		WantTarget: []int{2, 12}},
	{Name: "wildcard_first", Input: shapes.Make(6, 4), Target: shapes.Make(-1, 8), Want: solver.Sat,
		WantTarget: []int{3, 8}},
	{Name: "wildcard_not_divisible", Input: shapes.Make(6, 4), Target: shapes.Make(5, -1), Want: solver.Unsat},
	{Name: "wildcard_too_large", Input: shapes.Make(6, 4), Target: shapes.Make(48, -1), Want: solver.Unsat},
	{Name: "wildcard_only", Input: shapes.Make(6, 4), Target: shapes.Make(-1), Want: solver.Sat,
		WantTarget: []int{24}},
	{Name: "non_positive_literal", Input: shapes.Make(6, 4), Target: shapes.Make(-2, -1), Want: solver.Unsat},
	{Name: "zero_literal", Input: shapes.Make(6, 4), Target: shapes.Make(0, 24), Want: solver.Unsat},
	{Name: "scalar_to_ones", Input: shapes.Scalar(), Target: shapes.Make(1, -1), Want: solver.Sat,
		WantTarget: []int{1, 1}},
	{Name: "symbolic_cancels", Input: shapes.MakeDynamic("batch", 512), Target: shapes.MakeDynamic("batch", 8, 64),
		Want: solver.Sat},
	{Name: "symbolic_mismatch", Input: shapes.MakeDynamic("batch", 512), Target: shapes.MakeDynamic("batch", 8, 63),
		Want: solver.Unsat},
	{Name: "symbolic_wildcard", Input: shapes.MakeDynamic("batch", "seq", 512),
		Target: shapes.MakeDynamic("batch", "seq", 8, -1), Want: solver.Sat, WantTarget: []int{0, 0, 8, 64}},
	{Name: "symbolic_bound", Input: shapes.MakeDynamic("batch", 6), Target: shapes.Make(4, -1),
		Bindings: shapes.AxisBindings{"batch": 2}, Want: solver.Sat, WantTarget: []int{4, 3}},
	{Name: "symbolic_bound_not_divisible", Input: shapes.MakeDynamic("batch", 6), Target: shapes.Make(4, -1),
		Bindings: shapes.AxisBindings{"batch": 3}, Want: solver.Unsat},
	{Name: "symbolic_bound_non_positive", Input: shapes.MakeDynamic("batch", 6), Target: shapes.Make(-1),
		Bindings: shapes.AxisBindings{"batch": 0}, Want: solver.Unsat},
	{Name: "symbolic_only_in_target", Input: shapes.Make(6, 4), Target: shapes.MakeDynamic("heads", 8),
		Want: solver.Sat, WantTarget: []int{3, 8}},
	{Name: "symbolic_only_in_target_not_divisible", Input: shapes.Make(6, 4), Target: shapes.MakeDynamic("heads", 5),
		Want: solver.Unsat},
	{Name: "symbolic_squared", Input: shapes.Make(16), Target: shapes.MakeDynamic("side", "side"),
		Want: solver.Sat, WantTarget: []int{4, 4}},
	{Name: "symbolic_squared_not_square", Input: shapes.Make(8), Target: shapes.MakeDynamic("side", "side"),
		Want: solver.Unsat},
	{Name: "symbolic_in_input_wildcard_out", Input: shapes.MakeDynamic("batch", 6), Target: shapes.Make(-1),
		Want: solver.Sat},
}

// Run checks every Case with a fresh backend from newBackend.
func Run(t *testing.T, newBackend func() solver.Backend) {
	for _, tc := range Cases {
		t.Run(tc.Name, func(t *testing.T) {
			set, err := constraints.Build(tc.Input, tc.Target, tc.Bindings)
			require.NoError(t, err)
			backend := newBackend()
			defer solver.Finalize(backend)
			result, err := backend.Check(context.Background(), set)
			require.NoError(t, err)
			require.Equalf(t, tc.Want, result.Status, "%s -> %s: detail=%q", tc.Input, tc.Target, result.Detail)
			if result.Status != solver.Sat {
				return
			}
			require.NotNil(t, result.Model)
			ok, err := solver.Evaluate(set, result.Model)
			require.NoError(t, err)
			require.True(t, ok, "model %v doesn't satisfy:\n%s", result.Model, set)
			if tc.WantTarget != nil {
				for _, v := range set.Variables {
					if v.Side == constraints.SideTarget {
						require.Equalf(t, tc.WantTarget[v.Axis], result.Model[v.ID], "target axis %d", v.Axis)
					}
				}
			}
		})
	}
}
