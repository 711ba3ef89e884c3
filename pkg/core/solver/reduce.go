// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package solver

import (
	"context"
	"fmt"
	"math/big"
	"slices"
	"strconv"
	"strings"

	"github.com/gomlx/reshapecheck/pkg/core/constraints"
	"github.com/pkg/errors"
)

// Problem is a constraint Set after the presolve done by Reduce: literal bindings are folded into
// known products, and a variable appearing on both sides of the product equality is cancelled out.
//
// What remains to be decided is whether there are positive integers for the free variables such that:
//
//	LHSKnown * Product(v^k for v, k in LHSFree) == RHSKnown * Product(v^k for v, k in RHSFree)
type Problem struct {
	Set *constraints.Set

	// Values of the variables bound to a literal.
	Values map[constraints.VarID]int

	LHSKnown, RHSKnown int

	// LHSFree and RHSFree map the free variables of each side of the product to their exponent.
	// A variable is never on both sides.
	LHSFree, RHSFree map[constraints.VarID]int
}

// Reduce does the presolve shared by the backends.
//
// It returns either a Problem to be solved, or a decided Result: Unsat if some literal contradicts
// the constraints, or Unknown if the Set is not of a form the backends support (e.g. element counts
// that overflow int even after removing their common factor, or no product equality).
func Reduce(set *constraints.Set) (*Problem, *Result) {
	p := &Problem{
		Set:     set,
		Values:  make(map[constraints.VarID]int),
		LHSFree: make(map[constraints.VarID]int),
		RHSFree: make(map[constraints.VarID]int),
	}
	unsat := func(format string, args ...any) (*Problem, *Result) {
		return nil, &Result{Status: Unsat, Detail: fmt.Sprintf(format, args...)}
	}
	unknown := func(format string, args ...any) (*Problem, *Result) {
		return nil, &Result{Status: Unknown, Detail: fmt.Sprintf(format, args...)}
	}

	for _, c := range set.Constraints {
		if c.Kind != constraints.KindEqualLiteral {
			continue
		}
		v := c.Vars[0]
		if existing, found := p.Values[v]; found && existing != c.Literal {
			return unsat("%s bound to both %d and %d", set.Variable(v), existing, c.Literal)
		}
		p.Values[v] = c.Literal
	}

	positive := make(map[constraints.VarID]bool)
	var product *constraints.Constraint
	for ii, c := range set.Constraints {
		switch c.Kind {
		case constraints.KindGreaterThan:
			v := c.Vars[0]
			if value, bound := p.Values[v]; bound {
				if value <= c.Literal {
					return unsat("%s: %d is not > %d", set.Variable(v), value, c.Literal)
				}
				continue
			}
			if c.Literal != 0 {
				return unknown("unsupported lower bound %q on a free variable", set.Format(c))
			}
			positive[v] = true
		case constraints.KindProductEqual:
			if product != nil {
				return unknown("only one product equality is supported")
			}
			product = &set.Constraints[ii]
		}
	}
	if product == nil {
		return unknown("no product equality found")
	}

	lhs, ok := p.fold(product.Vars, p.LHSFree)
	if !ok {
		return unknown("left-hand side of %s has a non-positive factor", set.Format(*product))
	}
	rhs, ok := p.fold(product.RHS, p.RHSFree)
	if !ok {
		return unknown("right-hand side of %s has a non-positive factor", set.Format(*product))
	}
	if !lhs.IsInt64() || !rhs.IsInt64() {
		// Dividing both sides by their common factor doesn't change the solutions.
		g := new(big.Int).GCD(nil, nil, lhs, rhs)
		lhs.Quo(lhs, g)
		rhs.Quo(rhs, g)
		if !lhs.IsInt64() || !rhs.IsInt64() {
			return unknown("element counts of %s overflow int, even after dividing both sides by %s",
				set.Format(*product), g)
		}
	}
	p.LHSKnown, p.RHSKnown = int(lhs.Int64()), int(rhs.Int64())
	for v := range p.LHSFree {
		if !positive[v] {
			return unknown("free variable %s is not constrained to be positive", set.Variable(v))
		}
	}
	for v := range p.RHSFree {
		if !positive[v] {
			return unknown("free variable %s is not constrained to be positive", set.Variable(v))
		}
	}

	// Positive variables on both sides cancel out.
	for v, lhsExp := range p.LHSFree {
		rhsExp, found := p.RHSFree[v]
		if !found {
			continue
		}
		common := min(lhsExp, rhsExp)
		p.decrement(p.LHSFree, v, common)
		p.decrement(p.RHSFree, v, common)
	}
	return p, nil
}

// fold multiplies the values of the bound variables in ids, and counts the free ones in free.
// It returns false if a factor is not positive.
func (p *Problem) fold(ids []constraints.VarID, free map[constraints.VarID]int) (*big.Int, bool) {
	known := big.NewInt(1)
	for _, v := range ids {
		value, bound := p.Values[v]
		if !bound {
			free[v]++
			continue
		}
		if value <= 0 {
			return nil, false
		}
		known.Mul(known, big.NewInt(int64(value)))
	}
	return known, true
}

func (p *Problem) decrement(free map[constraints.VarID]int, v constraints.VarID, by int) {
	free[v] -= by
	if free[v] == 0 {
		delete(free, v)
	}
}

// NumFree returns the number of distinct free variables left on both sides.
func (p *Problem) NumFree() int { return len(p.LHSFree) + len(p.RHSFree) }

// SortedFree returns the free variables of the given side map, sorted by id.
func SortedFree(free map[constraints.VarID]int) []constraints.VarID {
	ids := make([]constraints.VarID, 0, len(free))
	for v := range free {
		ids = append(ids, v)
	}
	slices.Sort(ids)
	return ids
}

// Model completes assignment (values for free variables) with the bound values, and sets any other
// variable of the Set (e.g. the ones cancelled out) to 1.
func (p *Problem) Model(assignment map[constraints.VarID]int) map[constraints.VarID]int {
	model := make(map[constraints.VarID]int, p.Set.NumVariables())
	for ii := range p.Set.Variables {
		v := constraints.VarID(ii)
		if value, found := p.Values[v]; found {
			model[v] = value
		} else if value, found := assignment[v]; found {
			model[v] = value
		} else {
			model[v] = 1
		}
	}
	return model
}

// String implements fmt.Stringer.
func (p *Problem) String() string {
	side := func(known int, free map[constraints.VarID]int) string {
		parts := []string{strconv.Itoa(known)}
		for _, v := range SortedFree(free) {
			name := p.Set.Variable(v).Name
			if k := free[v]; k > 1 {
				name = fmt.Sprintf("%s^%d", name, k)
			}
			parts = append(parts, name)
		}
		return strings.Join(parts, "*")
	}
	return side(p.LHSKnown, p.LHSFree) + " == " + side(p.RHSKnown, p.RHSFree)
}

// Evaluate returns whether the model satisfies every constraint of the set.
// It returns an error if the model misses a variable.
func Evaluate(set *constraints.Set, model map[constraints.VarID]int) (bool, error) {
	value := func(v constraints.VarID) (int, error) {
		x, found := model[v]
		if !found {
			return 0, errors.Errorf("model has no value for variable %s", set.Variable(v))
		}
		return x, nil
	}
	product := func(ids []constraints.VarID) (*big.Int, error) {
		result := big.NewInt(1)
		for _, v := range ids {
			x, err := value(v)
			if err != nil {
				return nil, err
			}
			result.Mul(result, big.NewInt(int64(x)))
		}
		return result, nil
	}
	for _, c := range set.Constraints {
		switch c.Kind {
		case constraints.KindEqualLiteral, constraints.KindGreaterThan:
			x, err := value(c.Vars[0])
			if err != nil {
				return false, err
			}
			if (c.Kind == constraints.KindEqualLiteral && x != c.Literal) ||
				(c.Kind == constraints.KindGreaterThan && x <= c.Literal) {
				return false, nil
			}
		case constraints.KindProductEqual:
			lhs, err := product(c.Vars)
			if err != nil {
				return false, err
			}
			rhs, err := product(c.RHS)
			if err != nil {
				return false, err
			}
			if lhs.Cmp(rhs) != 0 {
				return false, nil
			}
		}
	}
	return true, nil
}

// GCD of two positive integers.
func GCD(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// Divisors returns the positive divisors of n (n > 0), in increasing order.
//
// It returns nil if there are more than limit divisors (limit <= 0 means no limit), or ctx's error if it
// is done before the search finishes.
func Divisors(ctx context.Context, n, limit int) ([]int, error) {
	var small, large []int
	for d := 1; d <= n/d; d++ {
		if d%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if n%d != 0 {
			continue
		}
		small = append(small, d)
		if d != n/d {
			large = append(large, n/d)
		}
		if limit > 0 && len(small)+len(large) > limit {
			return nil, nil
		}
	}
	slices.Reverse(large)
	return append(small, large...), nil
}
