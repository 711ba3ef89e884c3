// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package reshape validates tensor reshape requests: whether an input shape can be reshaped into a
// target shape (which may hold one wildcard -1 dimension to be inferred) preserving the number of
// elements.
//
// The request is translated to an integer constraint system (see package constraints) and decided by
// a solver backend (see package solver). The standard backends are registered with:
//
//	import _ "github.com/gomlx/reshapecheck/pkg/core/solver/default"
//
// Example:
//
//	verdict := reshape.Check([]int{4, 2, 3}, []int{4, -1})
//	fmt.Println(verdict.Valid, verdict.Resolved) // true [4 6]
package reshape

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/reshapecheck/pkg/core/constraints"
	"github.com/gomlx/reshapecheck/pkg/core/shapes"
	"github.com/gomlx/reshapecheck/pkg/core/solver"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// DefaultTimeout is the default per-call deadline given to the solver backend.
const DefaultTimeout = 5 * time.Second

// Validator of reshape requests. Create it with New and configure it with the With* methods.
//
// A Validator holds only configuration: it can be used concurrently, and each validation creates its own
// constraint set and its own solver backend.
type Validator struct {
	backendConfig string
	constructor   solver.Constructor
	timeout       time.Duration
	bindings      shapes.AxisBindings
	parallelism   int
}

// New returns a Validator using the default solver backend (see solver.DefaultConfigString), with
// DefaultTimeout.
func New() *Validator {
	return &Validator{
		timeout:     DefaultTimeout,
		parallelism: runtime.NumCPU(),
	}
}

// WithBackend sets the solver backend configuration, formatted as "<backend_name>:<backend_options>".
// An empty config uses the default backend. It returns the Validator itself, so calls can be chained.
func (v *Validator) WithBackend(config string) *Validator {
	v.backendConfig = config
	v.constructor = nil
	return v
}

// WithConstructor sets the constructor of the solver backend, called with an empty config for each
// validation. It takes precedence over WithBackend.
func (v *Validator) WithConstructor(constructor solver.Constructor) *Validator {
	v.constructor = constructor
	return v
}

// WithTimeout sets the per-call deadline of the solver backend. If 0, there is no deadline besides
// the one of the context passed to Validate.
func (v *Validator) WithTimeout(timeout time.Duration) *Validator {
	v.timeout = timeout
	return v
}

// WithBindings sets values for named symbolic axes. Axes without a binding are left free.
func (v *Validator) WithBindings(bindings shapes.AxisBindings) *Validator {
	v.bindings = bindings.Clone()
	return v
}

// WithParallelism sets the number of validations ValidateAll runs in parallel.
// 0 runs them sequentially, and a negative value means unlimited.
func (v *Validator) WithParallelism(parallelism int) *Validator {
	v.parallelism = parallelism
	return v
}

// Timeout returns the per-call deadline of the solver backend.
func (v *Validator) Timeout() time.Duration { return v.timeout }

// newBackend creates the fresh backend used by one validation.
func (v *Validator) newBackend() (solver.Backend, error) {
	if v.constructor != nil {
		return v.constructor("")
	}
	if v.backendConfig == "" {
		return solver.New()
	}
	return solver.NewWithConfig(v.backendConfig)
}

// Validate whether input can be reshaped into target.
//
// It never panics: every failure, including of the solver backend, is reported in the Verdict.
func (v *Validator) Validate(ctx context.Context, input, target shapes.Shape) (verdict Verdict) {
	start := time.Now()
	boundInput, boundTarget := input.Resolve(v.bindings), target.Resolve(v.bindings)
	verdict.InputElementCount = elementCount(boundInput)
	verdict.TargetElementCount = elementCount(boundTarget)
	defer func() {
		if klog.V(1).Enabled() {
			klog.Infof("reshape %s -> %s (bindings %q): %s (backend=%q, elapsed %s)",
				input, target, v.bindings.Key(), verdict, verdict.Backend, time.Since(start))
		}
	}()

	if reason := v.nonPositiveReason(input, target); reason != "" {
		return verdict.invalid(KindNonPositiveDimension, reason, nil)
	}
	set, err := constraints.Build(input, target, v.bindings)
	if err != nil {
		return verdict.invalid(KindMalformedShape, fmt.Sprintf("invalid reshape %s -> %s: %v", input, target, err), err)
	}

	backend, err := v.newBackend()
	if err != nil {
		err = errors.WithMessage(err, "failed to create solver backend")
		return verdict.invalid(KindSolverInconclusive, inconclusiveReason(input, target, err.Error()), err)
	}
	verdict.Backend = solver.NameOf(backend)
	defer solver.Finalize(backend)

	if v.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.timeout)
		defer cancel()
	}
	result, err := check(ctx, backend, set)
	if err != nil {
		klog.Warningf("reshape %s -> %s: solver backend %q failed: %+v", input, target, verdict.Backend, err)
		return verdict.invalid(KindSolverInconclusive, inconclusiveReason(input, target, err.Error()), err)
	}

	switch result.Status {
	case solver.Sat:
		verdict.Valid = true
		verdict.Kind = KindNone
		verdict.Resolved = resolvedTarget(set, boundTarget, result.Model)
		return verdict
	case solver.Unsat:
		return verdict.invalid(KindShapeMismatch, fmt.Sprintf("invalid reshape %s (%s elements) -> %s (%s elements)",
			input, boundInput.ConcreteSizeString(), target, boundTarget.ConcreteSizeString()), nil)
	}
	detail := result.Detail
	if detail == "" {
		detail = result.Status.String()
	}
	klog.Warningf("reshape %s -> %s: solver backend %q inconclusive: %s", input, target, verdict.Backend, detail)
	return verdict.invalid(KindSolverInconclusive, inconclusiveReason(input, target, detail), nil)
}

// invalid returns a copy of the verdict marked invalid.
func (v Verdict) invalid(kind ErrorKind, reason string, cause error) Verdict {
	v.Valid = false
	v.Kind = kind
	v.Reason = reason
	v.cause = cause
	v.Resolved = shapes.Shape{}
	return v
}

// elementCount returns the diagnostic element count of the shape, or CountOverflow.
func elementCount(s shapes.Shape) int {
	if size, ok := s.ConcreteSize(); ok {
		return size
	}
	return CountOverflow
}

func inconclusiveReason(input, target shapes.Shape, detail string) string {
	return fmt.Sprintf("solver inconclusive for reshape %s -> %s: %s", input, target, detail)
}

// check runs the backend, converting a panic into an error.
func check(ctx context.Context, backend solver.Backend, set *constraints.Set) (result solver.Result, err error) {
	if exception := exceptions.Try(func() { result, err = backend.Check(ctx, set) }); exception != nil {
		if e, ok := exception.(error); ok {
			return solver.Result{}, errors.Wrap(e, "solver backend panicked")
		}
		return solver.Result{}, errors.Errorf("solver backend panicked: %v", exception)
	}
	if err == nil && result.Status != solver.Sat && ctx.Err() != nil {
		// The backend may have reported Unsat for a partial search cut by the deadline: it can't be trusted.
		result = solver.Result{Status: solver.Unknown, Detail: ctx.Err().Error()}
	}
	return
}

// nonPositiveReason returns the reason why a literal input or target dimension, or the binding of one of
// their symbolic axes, is not positive. It returns "" if they are all positive.
func (v *Validator) nonPositiveReason(input, target shapes.Shape) string {
	for _, s := range []struct {
		name  string
		shape shapes.Shape
	}{{"input", input}, {"target", target}} {
		if axes := s.shape.NonPositiveAxes(); len(axes) > 0 {
			dim := s.shape.Dimensions[axes[0]]
			return fmt.Sprintf("invalid reshape %s -> %s: %s dimension %d at axis %d is not positive "+
				"(only %d is accepted, as the wildcard of the target)", input, target, s.name, dim, axes[0], shapes.Wildcard)
		}
		for _, name := range s.shape.AxisNamesSet() {
			if value, found := v.bindings[name]; found && value <= 0 {
				return fmt.Sprintf("invalid reshape %s -> %s: axis %q is bound to %d, which is not positive",
					input, target, name, value)
			}
		}
	}
	return ""
}

// resolvedTarget returns the target with the axes the constraints determine set to their value in the
// model. Symbolic axes left free keep their name, and a wildcard whose value depends on them stays a
// Wildcard. It returns an empty Shape if there is no model.
func resolvedTarget(set *constraints.Set, target shapes.Shape, model map[constraints.VarID]int) shapes.Shape {
	if target.IsFullyConcrete() {
		return target.Clone()
	}
	if model == nil {
		return shapes.Shape{}
	}
	determined := determinedVariables(set)
	for _, c := range set.Constraints {
		if c.Kind != constraints.KindProductEqual || len(c.RHS) != target.Rank() {
			continue
		}
		// The right-hand side of the product holds one variable per target axis, in order.
		dims := make([]any, len(c.RHS))
		for axis, id := range c.RHS {
			value, found := model[id]
			switch {
			case found && determined[id]:
				dims[axis] = value
			case target.IsSymbolic(axis):
				dims[axis] = target.AxisName(axis)
			default:
				dims[axis] = shapes.Wildcard
			}
		}
		return shapes.MakeDynamic(dims...)
	}
	return shapes.Shape{}
}

// determinedVariables returns the variables that have the same value in every solution of the set:
// the ones bound to a literal, plus the only free variable left after cancelling the symbolic axes
// common to both sides, if there is just one.
func determinedVariables(set *constraints.Set) map[constraints.VarID]bool {
	problem, decided := solver.Reduce(set)
	if decided != nil {
		return nil
	}
	determined := make(map[constraints.VarID]bool, len(problem.Values)+1)
	for id := range problem.Values {
		determined[id] = true
	}
	if problem.NumFree() == 1 {
		for id := range problem.LHSFree {
			determined[id] = true
		}
		for id := range problem.RHSFree {
			determined[id] = true
		}
	}
	return determined
}

var defaultValidator = New()

// Check validates the reshape of input into target with the default Validator.
func Check(input, target []int) Verdict {
	return defaultValidator.Validate(context.Background(), shapes.Make(input...), shapes.Make(target...))
}

// MustReshape validates the reshape of input into target with the default Validator, and returns the target
// dimensions with the wildcard resolved.
//
// It panics (with an error, see github.com/gomlx/exceptions) if the reshape is not valid.
func MustReshape(input, target []int) []int {
	verdict := Check(input, target)
	if !verdict.Valid {
		panic(errors.WithStack(verdict.Err()))
	}
	if verdict.Resolved.Rank() != len(target) || !verdict.Resolved.IsFullyConcrete() {
		exceptions.Panicf("reshape %v -> %v is valid, but the solver backend %q didn't resolve the target dimensions",
			input, target, verdict.Backend)
	}
	return verdict.Resolved.Dimensions
}
