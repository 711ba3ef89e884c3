// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package arith implements the default solver backend: it decides reshape constraint systems in closed
// form, with integer arithmetic, falling back to a bounded enumeration of divisors for the rare case
// of a symbolic axis repeated within one shape.
package arith

import (
	"context"
	"fmt"

	"github.com/gomlx/reshapecheck/pkg/core/constraints"
	"github.com/gomlx/reshapecheck/pkg/core/solver"
	"github.com/gomlx/reshapecheck/pkg/support/xmath"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// BackendName to be used in RESHAPECHECK_BACKEND to specify this backend.
const BackendName = "arith"

// DefaultMaxSteps is the default budget of the divisors enumeration, see option "max_steps".
const DefaultMaxSteps = 1_000_000

func init() {
	solver.Register(BackendName, New)
}

// Backend implements solver.Backend with integer arithmetic.
type Backend struct {
	maxSteps int
}

// Compile-time check that arith.Backend implements solver.Backend.
var _ solver.Backend = &Backend{}

// New constructs a new arith Backend.
//
// The config string is a comma-separated list of options:
//
//   - "max_steps=N": budget of candidates tried when enumerating divisors, after which the check
//     returns Unknown. Defaults to DefaultMaxSteps.
func New(config string) (solver.Backend, error) {
	opts, err := solver.ParseOptions(BackendName, config, "max_steps")
	if err != nil {
		return nil, err
	}
	b := &Backend{}
	if b.maxSteps, err = opts.Int("max_steps", DefaultMaxSteps); err != nil {
		return nil, err
	}
	if b.maxSteps <= 0 {
		return nil, errors.Errorf("arith backend option max_steps must be > 0, got %d", b.maxSteps)
	}
	return b, nil
}

// Name implements solver.Named.
func (b *Backend) Name() string { return BackendName }

// Check implements solver.Backend.
func (b *Backend) Check(ctx context.Context, set *constraints.Set) (solver.Result, error) {
	if err := ctx.Err(); err != nil {
		return solver.Result{Status: solver.Unknown, Detail: err.Error()}, nil
	}
	problem, decided := solver.Reduce(set)
	if decided != nil {
		return *decided, nil
	}
	klog.V(2).Infof("arith: solving %s", problem)

	s := &search{ctx: ctx, stepsLeft: b.maxSteps}
	assignment, status, detail := s.solve(problem)
	if status != solver.Sat {
		return solver.Result{Status: status, Detail: detail}, nil
	}
	model := problem.Model(assignment)
	ok, err := solver.Evaluate(set, model)
	if err != nil {
		return solver.Result{}, errors.WithMessage(err, "arith backend produced an incomplete model")
	}
	if !ok {
		return solver.Result{}, errors.Errorf("arith backend produced a model that doesn't satisfy %s", problem)
	}
	return solver.Result{Status: solver.Sat, Model: model}, nil
}

type search struct {
	ctx       context.Context
	stepsLeft int
}

func (s *search) solve(p *solver.Problem) (map[constraints.VarID]int, solver.Status, string) {
	lhs, rhs := p.LHSKnown, p.RHSKnown
	switch {
	case p.NumFree() == 0:
		if lhs != rhs {
			return nil, solver.Unsat, fmt.Sprintf("%d != %d", lhs, rhs)
		}
		return nil, solver.Sat, ""

	case len(p.RHSFree) == 0:
		return s.solveOneSided(p.LHSFree, rhs, lhs)

	case len(p.LHSFree) == 0:
		return s.solveOneSided(p.RHSFree, lhs, rhs)
	}

	// Free variables on both sides: if one side has a variable with exponent 1, it can absorb
	// whatever the other side becomes.
	g := solver.GCD(lhs, rhs)
	if a, found := linearVariable(p.LHSFree); found {
		return s.solveTwoSided(a, p.LHSFree, p.RHSFree, lhs/g, rhs/g)
	}
	if a, found := linearVariable(p.RHSFree); found {
		return s.solveTwoSided(a, p.RHSFree, p.LHSFree, rhs/g, lhs/g)
	}
	return nil, solver.Unknown, fmt.Sprintf("no closed form for %s", p)
}

// solveOneSided finds positive values for free such that known * Product(v^k) == other.
func (s *search) solveOneSided(free map[constraints.VarID]int, other, known int) (map[constraints.VarID]int, solver.Status, string) {
	if other%known != 0 {
		return nil, solver.Unsat, fmt.Sprintf("%d is not divisible by %d", other, known)
	}
	quotient := other / known
	assignment := make(map[constraints.VarID]int, len(free))
	if a, found := linearVariable(free); found {
		for v := range free {
			assignment[v] = 1
		}
		assignment[a] = quotient
		return assignment, solver.Sat, ""
	}
	status := s.enumerate(solver.SortedFree(free), free, quotient, assignment)
	switch status {
	case solver.Unsat:
		return nil, status, fmt.Sprintf("%d is not a product of the required powers", quotient)
	case solver.Unknown:
		return nil, status, "divisors enumeration exceeded its budget or was cancelled"
	}
	return assignment, status, ""
}

// enumerate tries divisors d of remaining for vars[0] (such that d^k divides it), recursively.
func (s *search) enumerate(vars []constraints.VarID, exponents map[constraints.VarID]int, remaining int,
	assignment map[constraints.VarID]int) solver.Status {
	if len(vars) == 0 {
		if remaining == 1 {
			return solver.Sat
		}
		return solver.Unsat
	}
	v, k := vars[0], exponents[vars[0]]
	sawUnknown := false
	for d := 1; ; d++ {
		s.stepsLeft--
		if s.stepsLeft < 0 || s.ctx.Err() != nil {
			return solver.Unknown
		}
		power, ok := pow(d, k)
		if !ok || power > remaining {
			break
		}
		if remaining%power != 0 {
			continue
		}
		assignment[v] = d
		switch s.enumerate(vars[1:], exponents, remaining/power, assignment) {
		case solver.Sat:
			return solver.Sat
		case solver.Unknown:
			sawUnknown = true
		}
	}
	delete(assignment, v)
	if sawUnknown {
		return solver.Unknown
	}
	return solver.Unsat
}

// solveTwoSided solves known * a * Product(rest) == otherKnown * Product(other), where a has exponent 1:
// every variable in other is set to known, and a absorbs the difference.
func (s *search) solveTwoSided(a constraints.VarID, side, other map[constraints.VarID]int, known, otherKnown int) (
	map[constraints.VarID]int, solver.Status, string) {
	assignment := make(map[constraints.VarID]int, len(side)+len(other))
	totalExponent := 0
	for v, k := range other {
		assignment[v] = known
		totalExponent += k
	}
	for v := range side {
		assignment[v] = 1
	}
	// otherKnown * known^totalExponent == known * a, with known and otherKnown coprime.
	power, ok := pow(known, totalExponent-1)
	if ok {
		assignment[a], ok = xmath.CheckedMul(otherKnown, power)
	}
	if !ok {
		return nil, solver.Unknown, "solution overflows int"
	}
	return assignment, solver.Sat, ""
}

// linearVariable returns the lowest-id variable with exponent 1.
func linearVariable(free map[constraints.VarID]int) (constraints.VarID, bool) {
	for _, v := range solver.SortedFree(free) {
		if free[v] == 1 {
			return v, true
		}
	}
	return 0, false
}

// pow returns base^exp, and false on overflow.
func pow(base, exp int) (int, bool) {
	result := 1
	for range exp {
		var ok bool
		if result, ok = xmath.CheckedMul(result, base); !ok {
			return 0, false
		}
	}
	return result, true
}
