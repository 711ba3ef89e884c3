// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package sat

import (
	"context"
	"fmt"

	"github.com/gomlx/reshapecheck/pkg/core/constraints"
	rsolver "github.com/gomlx/reshapecheck/pkg/core/solver"
	"github.com/gomlx/reshapecheck/pkg/support/xmath"
)

// checkEvery is the number of iterations between checks of the context in the encoding loops.
const checkEvery = 4096

// encoding of a Problem as CNF clauses, in the DIMACS convention used by gophersat: variables are
// numbered from 1, and a negative literal is the negation of the variable.
type encoding struct {
	vars     []constraints.VarID
	domains  [][]int
	firstLit []int
	numLits  int
	clauses  [][]int

	// complete is true if the domains contain every solution of the problem.
	complete bool
}

// encode returns nil and the reason if the encoding exceeds the limits, or if ctx is done first.
func encode(ctx context.Context, p *rsolver.Problem, maxDomain, maxClauses int) (*encoding, string) {
	enc := &encoding{}
	var bound int
	switch {
	case len(p.RHSFree) == 0:
		bound, enc.complete = p.RHSKnown, true
	case len(p.LHSFree) == 0:
		bound, enc.complete = p.LHSKnown, true
	default:
		g := rsolver.GCD(p.LHSKnown, p.RHSKnown)
		var ok bool
		if bound, ok = xmath.CheckedMul(p.LHSKnown/g, p.RHSKnown/g); !ok {
			return nil, "bound for the candidate domains overflows int"
		}
	}
	domain, err := rsolver.Divisors(ctx, bound, maxDomain)
	if err != nil {
		return nil, fmt.Sprintf("interrupted listing the divisors of %d: %v", bound, err)
	}
	if domain == nil {
		return nil, fmt.Sprintf("%d has more than max_domain=%d divisors", bound, maxDomain)
	}

	enc.vars = append(rsolver.SortedFree(p.LHSFree), rsolver.SortedFree(p.RHSFree)...)
	numTuples := 1
	for _, v := range enc.vars {
		enc.domains = append(enc.domains, domain)
		enc.firstLit = append(enc.firstLit, enc.numLits+1)
		enc.numLits += len(domain)
		var ok bool
		if numTuples, ok = xmath.CheckedMul(numTuples, len(domain)); !ok || numTuples > maxClauses {
			return nil, fmt.Sprintf("more than max_clauses=%d candidate combinations (at variable %s)",
				maxClauses, p.Set.Variable(v))
		}
	}
	for ii := range enc.vars {
		enc.exactlyOne(ii)
	}
	if detail := enc.blockViolations(ctx, p, maxClauses); detail != "" {
		return nil, detail
	}
	return enc, ""
}

func (enc *encoding) lit(varIdx, valueIdx int) int {
	return enc.firstLit[varIdx] + valueIdx
}

// exactlyOne adds the clauses forcing exactly one candidate value for the variable: at-least-one as one
// clause, at-most-one with the sequential counter encoding, using len(domain)-1 auxiliary variables.
func (enc *encoding) exactlyOne(varIdx int) {
	n := len(enc.domains[varIdx])
	atLeastOne := make([]int, n)
	for ii := range n {
		atLeastOne[ii] = enc.lit(varIdx, ii)
	}
	enc.clauses = append(enc.clauses, atLeastOne)
	if n == 1 {
		return
	}
	firstAux := enc.numLits + 1
	enc.numLits += n - 1
	for ii := 0; ii < n-1; ii++ {
		aux := firstAux + ii
		enc.clauses = append(enc.clauses,
			[]int{-enc.lit(varIdx, ii), aux},
			[]int{-enc.lit(varIdx, ii+1), -aux})
		if ii < n-2 {
			enc.clauses = append(enc.clauses, []int{-aux, aux + 1})
		}
	}
}

// blockViolations adds one clause per combination of candidate values violating the product equality.
// It returns the reason if that exceeds maxClauses or ctx is done first, and "" otherwise.
func (enc *encoding) blockViolations(ctx context.Context, p *rsolver.Problem, maxClauses int) string {
	indices := make([]int, len(enc.vars))
	for count := 1; ; count++ {
		if count%checkEvery == 0 && ctx.Err() != nil {
			return fmt.Sprintf("interrupted encoding the product equality: %v", ctx.Err())
		}
		if !enc.satisfies(p, indices) {
			if len(enc.clauses) >= maxClauses {
				return fmt.Sprintf("more than max_clauses=%d clauses", maxClauses)
			}
			clause := make([]int, len(indices))
			for ii, valueIdx := range indices {
				clause[ii] = -enc.lit(ii, valueIdx)
			}
			enc.clauses = append(enc.clauses, clause)
		}
		// Next combination, odometer style.
		ii := len(indices) - 1
		for ; ii >= 0; ii-- {
			indices[ii]++
			if indices[ii] < len(enc.domains[ii]) {
				break
			}
			indices[ii] = 0
		}
		if ii < 0 {
			return ""
		}
	}
}

func (enc *encoding) satisfies(p *rsolver.Problem, indices []int) bool {
	lhs, rhs := p.LHSKnown, p.RHSKnown
	for ii, v := range enc.vars {
		value := enc.domains[ii][indices[ii]]
		side, exponent := &lhs, p.LHSFree[v]
		if exponent == 0 {
			side, exponent = &rhs, p.RHSFree[v]
		}
		for range exponent {
			var ok bool
			if *side, ok = xmath.CheckedMul(*side, value); !ok {
				return false
			}
		}
	}
	return lhs == rhs
}

// decode returns the value of each free variable from the SAT model (model[i] is the value of
// boolean variable i+1).
func (enc *encoding) decode(model []bool) map[constraints.VarID]int {
	assignment := make(map[constraints.VarID]int, len(enc.vars))
	for ii, v := range enc.vars {
		for valueIdx, value := range enc.domains[ii] {
			lit := enc.lit(ii, valueIdx)
			if lit-1 < len(model) && model[lit-1] {
				assignment[v] = value
				break
			}
		}
	}
	return assignment
}
