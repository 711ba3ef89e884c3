// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package sat implements a solver backend that encodes the reshape constraint system as a boolean
// satisfiability problem, solved with github.com/crillab/gophersat.
//
// Each free variable gets a finite domain of candidate values (divisors of the known element counts),
// one-hot encoded: one boolean per candidate, exactly one of them true. The product equality is then
// encoded by blocking every combination of candidates that violates it.
//
// When all free variables are on the same side of the product equality, the domains hold every
// possible solution, and an unsatisfiable encoding proves the reshape impossible. Otherwise the
// domains are only a heuristic, and an unsatisfiable encoding is reported as Unknown.
package sat

import (
	"context"
	"fmt"
	"time"

	"github.com/crillab/gophersat/solver"
	"github.com/gomlx/reshapecheck/pkg/core/constraints"
	rsolver "github.com/gomlx/reshapecheck/pkg/core/solver"
	"github.com/gomlx/reshapecheck/pkg/support/xsync"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// BackendName to be used in RESHAPECHECK_BACKEND to specify this backend.
const BackendName = "sat"

const (
	// DefaultMaxDomain is the default limit on the number of candidate values of one variable.
	DefaultMaxDomain = 4096

	// DefaultMaxClauses is the default limit on the number of clauses of the encoding.
	DefaultMaxClauses = 1 << 20
)

func init() {
	rsolver.Register(BackendName, New)
}

// Backend implements solver.Backend using a SAT solver.
type Backend struct {
	maxDomain, maxClauses int
}

// Compile-time check that sat.Backend implements solver.Backend.
var _ rsolver.Backend = &Backend{}

// New constructs a new SAT Backend.
//
// The config string is a comma-separated list of options:
//
//   - "max_domain=N": maximum number of candidate values for a variable. Defaults to DefaultMaxDomain.
//   - "max_clauses=N": maximum number of clauses of the encoding. Defaults to DefaultMaxClauses.
//
// Exceeding any of the limits makes the check return Unknown.
func New(config string) (rsolver.Backend, error) {
	opts, err := rsolver.ParseOptions(BackendName, config, "max_domain", "max_clauses")
	if err != nil {
		return nil, err
	}
	b := &Backend{}
	if b.maxDomain, err = opts.Int("max_domain", DefaultMaxDomain); err != nil {
		return nil, err
	}
	if b.maxClauses, err = opts.Int("max_clauses", DefaultMaxClauses); err != nil {
		return nil, err
	}
	if b.maxDomain <= 0 || b.maxClauses <= 0 {
		return nil, errors.Errorf("sat backend options max_domain and max_clauses must be > 0, got %d and %d",
			b.maxDomain, b.maxClauses)
	}
	return b, nil
}

// Name implements solver.Named.
func (b *Backend) Name() string { return BackendName }

type outcome struct {
	enc    *encoding
	detail string
	status solver.Status
	model  []bool
	err    error
}

// Check implements solver.Backend.
//
// The encoding and the SAT solver run in a separate goroutine. The encoding stops soon after ctx is
// done, but the SAT solver itself can't be interrupted: if ctx is done before it finishes, Check returns
// Unknown immediately and the solver goroutine is left to finish on its own.
func (b *Backend) Check(ctx context.Context, set *constraints.Set) (rsolver.Result, error) {
	if err := ctx.Err(); err != nil {
		return rsolver.Result{Status: rsolver.Unknown, Detail: err.Error()}, nil
	}
	problem, decided := rsolver.Reduce(set)
	if decided != nil {
		return *decided, nil
	}
	if problem.NumFree() == 0 {
		if problem.LHSKnown != problem.RHSKnown {
			return rsolver.Result{Status: rsolver.Unsat,
				Detail: fmt.Sprintf("%d != %d", problem.LHSKnown, problem.RHSKnown)}, nil
		}
		return rsolver.Result{Status: rsolver.Sat, Model: problem.Model(nil)}, nil
	}

	latch := xsync.NewLatchWithValue[outcome]()
	start := time.Now()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				latch.Trigger(outcome{status: solver.Indet, err: errors.Errorf("sat backend panicked: %v", r)})
			}
		}()
		enc, detail := encode(ctx, problem, b.maxDomain, b.maxClauses)
		if enc == nil {
			latch.Trigger(outcome{status: solver.Indet, detail: detail})
			return
		}
		klog.V(2).Infof("sat: solving %s with %d boolean variables and %d clauses", problem, enc.numLits, len(enc.clauses))
		s := solver.New(solver.ParseSlice(enc.clauses))
		status := s.Solve()
		var model []bool
		var err error
		if status == solver.Sat {
			model, err = modelOf(s)
		}
		latch.Trigger(outcome{enc: enc, status: status, model: model, err: err})
	}()
	out, ok := latch.WaitContext(ctx)
	if !ok {
		return rsolver.Result{Status: rsolver.Unknown, Detail: fmt.Sprintf("SAT solver interrupted after %s: %v",
			time.Since(start), ctx.Err())}, nil
	}
	if out.err != nil {
		return rsolver.Result{}, out.err
	}
	if out.enc == nil {
		return rsolver.Result{Status: rsolver.Unknown, Detail: out.detail}, nil
	}
	enc := out.enc

	switch out.status {
	case solver.Sat:
		model := problem.Model(enc.decode(out.model))
		if ok, err := rsolver.Evaluate(set, model); err != nil || !ok {
			return rsolver.Result{}, errors.Errorf("sat backend decoded a model that doesn't satisfy %s (err=%v)", problem, err)
		}
		return rsolver.Result{Status: rsolver.Sat, Model: model}, nil
	case solver.Unsat:
		if !enc.complete {
			return rsolver.Result{Status: rsolver.Unknown,
				Detail: "no solution within the candidate domains, but they don't cover every solution"}, nil
		}
		return rsolver.Result{Status: rsolver.Unsat, Detail: fmt.Sprintf("no assignment satisfies %s", problem)}, nil
	}
	return rsolver.Result{Status: rsolver.Unknown, Detail: "SAT solver returned an indeterminate status"}, nil
}

// modelOf returns the model of a solver whose status is Sat.
// The signature of Model changed across gophersat releases, both forms are accepted.
func modelOf(s *solver.Solver) ([]bool, error) {
	switch m := any(s).(type) {
	case interface{ Model() []bool }:
		return m.Model(), nil
	case interface{ Model() ([]bool, error) }:
		return m.Model()
	}
	return nil, errors.New("unsupported gophersat version: can't retrieve the model")
}
