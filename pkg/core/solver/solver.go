// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package solver defines the interface to a satisfiability backend able to decide the constraint
// systems built by package constraints, and a registry of available backends.
//
// A backend is created per check and discarded afterward: it must not be shared by concurrent
// checks. Use NewWithConfig (or New) to create one from a configuration string formatted as
// "<backend_name>:<backend_options>".
//
// The standard backends can be included with:
//
//	import _ "github.com/gomlx/reshapecheck/pkg/core/solver/default"
package solver

import (
	"context"
	"fmt"

	"github.com/gomlx/reshapecheck/pkg/core/constraints"
)

// Status of a satisfiability check.
type Status int

const (
	// Unknown means the backend couldn't decide: it ran out of time or of some other budget.
	Unknown Status = iota

	// Sat means there is an assignment of the variables satisfying all constraints.
	Sat

	// Unsat means no assignment of the variables satisfies all constraints.
	Unsat
)

// String implements fmt.Stringer.
func (s Status) String() string {
	switch s {
	case Unknown:
		return "UNKNOWN"
	case Sat:
		return "SATISFIABLE"
	case Unsat:
		return "UNSATISFIABLE"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Result of a satisfiability check.
type Result struct {
	Status Status

	// Model maps each variable to a satisfying value. Only set for Sat, and optional.
	Model map[constraints.VarID]int

	// Detail is an optional human-readable explanation, mostly used for Unknown.
	Detail string
}

// Backend decides whether a constraint Set is satisfiable.
type Backend interface {
	// Check the satisfiability of the set. It should return an Unknown result, and not block,
	// once ctx is done.
	//
	// An error means the backend failed, and it is treated as an inconclusive result.
	Check(ctx context.Context, set *constraints.Set) (Result, error)
}

// Named is optionally implemented by a Backend to report its name.
type Named interface {
	Name() string
}

// Finalizer is optionally implemented by a Backend that holds resources to release after its check.
type Finalizer interface {
	Finalize()
}

// NameOf returns the name of the backend, if it implements Named, or its Go type otherwise.
func NameOf(backend Backend) string {
	if named, ok := backend.(Named); ok {
		return named.Name()
	}
	return fmt.Sprintf("%T", backend)
}

// Finalize the backend, if it implements Finalizer.
func Finalize(backend Backend) {
	if f, ok := backend.(Finalizer); ok {
		f.Finalize()
	}
}
