// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package reshape_test

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/reshapecheck/pkg/core/constraints"
	. "github.com/gomlx/reshapecheck/pkg/core/reshape"
	"github.com/gomlx/reshapecheck/pkg/core/shapes"
	"github.com/gomlx/reshapecheck/pkg/core/solver"
	_ "github.com/gomlx/reshapecheck/pkg/core/solver/default"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var backendConfigs = []string{"arith", "sat"}

func TestScenarios(t *testing.T) {
	testCases := []struct {
		name                    string
		input, target           []int
		valid                   bool
		kind                    ErrorKind
		inputCount, targetCount int
		resolved                []int
	}{
		{"same_count", []int{4, 2, 3}, []int{4, 6}, true, KindNone, 24, 24, []int{4, 6}},
		{"different_count", []int{4, 2, 3}, []int{4, 7}, false, KindShapeMismatch, 24, 28, nil},
		{"infer_6", []int{4, 2, 3}, []int{4, -1}, true, KindNone, 24, 4, []int{4, 6}},
		{"infer_12", []int{6, 4}, []int{2, -1}, true, KindNone, 24, 2, []int{2, 12}},
		{"negative_literal", []int{6, 4}, []int{-2, -1}, false, KindNonPositiveDimension, 24, -2, nil},
	}
	for _, config := range backendConfigs {
		validator := New().WithBackend(config)
		for _, tc := range testCases {
			t.Run(config+"/"+tc.name, func(t *testing.T) {
				verdict := validator.Validate(context.Background(), shapes.Make(tc.input...), shapes.Make(tc.target...))
				require.Equalf(t, tc.valid, verdict.Valid, "verdict: %s", verdict)
				assert.Equal(t, tc.kind, verdict.Kind)
				assert.Equal(t, tc.inputCount, verdict.InputElementCount)
				assert.Equal(t, tc.targetCount, verdict.TargetElementCount)
				assert.Equal(t, tc.resolved, verdict.Resolved.Dimensions)
				if tc.valid {
					assert.Empty(t, verdict.Reason)
					assert.NoError(t, verdict.Err())
					assert.Equal(t, config, verdict.Backend)
				} else {
					assert.NotEmpty(t, verdict.Reason)
					assert.True(t, errors.Is(verdict.Err(), tc.kind.Sentinel()))
				}
			})
		}
	}
}

func TestMismatchReason(t *testing.T) {
	verdict := Check([]int{4, 2, 3}, []int{4, 7})
	require.False(t, verdict.Valid)
	assert.Equal(t, "invalid reshape [4 2 3] (24 elements) -> [4 7] (28 elements)", verdict.Reason)
	assert.Equal(t, "invalid (ShapeMismatch): "+verdict.Reason, verdict.String())

	var reshapeErr *Error
	require.True(t, errors.As(verdict.Err(), &reshapeErr))
	assert.Equal(t, KindShapeMismatch, reshapeErr.Kind)
	assert.Equal(t, verdict.Reason, reshapeErr.Error())
	assert.False(t, errors.Is(verdict.Err(), ErrSolverInconclusive))
}

func TestNonPositiveDimension(t *testing.T) {
	testCases := []struct {
		name          string
		input, target shapes.Shape
		bindings      shapes.AxisBindings
	}{
		{"zero_in_target", shapes.Make(6, 4), shapes.Make(0, 24), nil},
		{"negative_in_target", shapes.Make(6, 4), shapes.Make(-3, 8), nil},
		{"zero_in_input", shapes.Make(0, 4), shapes.Make(-1), nil},
		{"non_positive_binding", shapes.MakeDynamic("batch", 6), shapes.Make(-1), shapes.AxisBindings{"batch": 0}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			verdict := New().WithBindings(tc.bindings).Validate(context.Background(), tc.input, tc.target)
			require.False(t, verdict.Valid)
			require.Equal(t, KindNonPositiveDimension, verdict.Kind, "verdict: %s", verdict)
			assert.True(t, errors.Is(verdict.Err(), ErrNonPositiveDimension))
			assert.Empty(t, verdict.Backend, "no backend should be needed")
		})
	}
}

func TestMalformedShape(t *testing.T) {
	testCases := []struct {
		name          string
		input, target []int
		cause         error
	}{
		{"two_wildcards", []int{6, 4}, []int{-1, -1}, constraints.ErrMultipleWildcards},
		{"input_wildcard", []int{-1, 4}, []int{2, 12}, constraints.ErrInputWildcard},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			verdict := Check(tc.input, tc.target)
			require.False(t, verdict.Valid)
			require.Equal(t, KindMalformedShape, verdict.Kind)
			assert.True(t, errors.Is(verdict.Err(), ErrMalformedShape))
			assert.True(t, errors.Is(verdict.Err(), tc.cause))
		})
	}
}

func TestSymbolicAxes(t *testing.T) {
	for _, config := range backendConfigs {
		t.Run(config, func(t *testing.T) {
			validator := New().WithBackend(config).WithBindings(shapes.AxisBindings{"batch": 32})
			input := shapes.MakeDynamic("batch", 512)
			verdict := validator.Validate(context.Background(), input, shapes.MakeDynamic("batch", 8, -1))
			require.True(t, verdict.Valid, "verdict: %s", verdict)
			assert.Equal(t, shapes.Make(32, 8, 64), verdict.Resolved)
			assert.Equal(t, 32*512, verdict.InputElementCount)

			verdict = validator.Validate(context.Background(), input, shapes.MakeDynamic("batch", 7, -1))
			require.False(t, verdict.Valid)
			assert.Equal(t, KindShapeMismatch, verdict.Kind)

			// Unbound symbolic axes cancel out.
			verdict = New().WithBackend(config).Validate(context.Background(),
				shapes.MakeDynamic("batch", "seq", 512), shapes.MakeDynamic("batch", "seq", 8, 64))
			require.True(t, verdict.Valid, "verdict: %s", verdict)
			assert.Equal(t, shapes.MakeDynamic("batch", "seq", 8, 64), verdict.Resolved)
		})
	}
}

func TestResolvedSymbolicAxes(t *testing.T) {
	testCases := []struct {
		name          string
		input, target shapes.Shape
		bindings      shapes.AxisBindings
		resolved      shapes.Shape
	}{
		// The wildcard doesn't depend on the value of batch.
		{"free_axis_kept", shapes.MakeDynamic("batch", 6), shapes.MakeDynamic("batch", -1), nil,
			shapes.MakeDynamic("batch", 6)},
		// Any value of batch works: the wildcard stays unresolved.
		{"wildcard_depends_on_free_axis", shapes.MakeDynamic("batch", 6), shapes.Make(-1), nil,
			shapes.Make(-1)},
		{"target_concrete", shapes.MakeDynamic("batch", 6), shapes.Make(3, 8), nil,
			shapes.Make(3, 8)},
		// A target-only symbolic axis is determined by the element count.
		{"target_only_axis", shapes.Make(6, 4), shapes.MakeDynamic("n", 4), nil,
			shapes.Make(6, 4)},
		{"bound_axis", shapes.MakeDynamic("batch", 6), shapes.Make(-1), shapes.AxisBindings{"batch": 2},
			shapes.Make(12)},
	}
	for _, config := range backendConfigs {
		for _, tc := range testCases {
			t.Run(config+"/"+tc.name, func(t *testing.T) {
				verdict := New().WithBackend(config).WithBindings(tc.bindings).
					Validate(context.Background(), tc.input, tc.target)
				require.True(t, verdict.Valid, "verdict: %s", verdict)
				assert.Truef(t, tc.resolved.Equal(verdict.Resolved), "resolved to %s, wanted %s",
					verdict.Resolved, tc.resolved)
			})
		}
	}

	// MustReshape only takes concrete shapes, and always returns a concrete result.
	assert.Equal(t, []int{2, 12}, MustReshape([]int{6, 4}, []int{2, -1}))
}

func TestElementCountOverflow(t *testing.T) {
	const big = 1 << 32
	for _, config := range backendConfigs {
		validator := New().WithBackend(config)
		t.Run(config+"/identity", func(t *testing.T) {
			verdict := validator.Validate(context.Background(), shapes.Make(big, big), shapes.Make(big, big))
			require.True(t, verdict.Valid, "verdict: %s", verdict)
			assert.Equal(t, CountOverflow, verdict.InputElementCount)
			assert.Equal(t, CountOverflow, verdict.TargetElementCount)
			assert.Equal(t, []int{big, big}, verdict.Resolved.Dimensions)
		})
		t.Run(config+"/mismatch", func(t *testing.T) {
			verdict := validator.Validate(context.Background(), shapes.Make(big, big), shapes.Make(big, 3))
			require.False(t, verdict.Valid)
			require.Equal(t, KindShapeMismatch, verdict.Kind, "verdict: %s", verdict)
			assert.Equal(t, CountOverflow, verdict.InputElementCount)
			assert.Equal(t, 3*big, verdict.TargetElementCount)
			assert.Contains(t, verdict.Reason, "(18446744073709551616 elements)")
			assert.Contains(t, verdict.Reason, "(12884901888 elements)")
		})
		t.Run(config+"/wildcard", func(t *testing.T) {
			verdict := validator.Validate(context.Background(), shapes.Make(big, big), shapes.Make(big, -1, 4))
			require.True(t, verdict.Valid, "verdict: %s", verdict)
			assert.Equal(t, CountOverflow, verdict.InputElementCount)
			assert.Equal(t, 4*big, verdict.TargetElementCount)
			assert.Equal(t, []int{big, 1 << 30, 4}, verdict.Resolved.Dimensions)
		})
	}
}

// oracle computes the expected validity of a reshape of concrete shapes with at most one wildcard.
func oracle(input, target []int) bool {
	inputSize, targetSize, wildcard := 1, 1, false
	for _, d := range input {
		inputSize *= d
	}
	for _, d := range target {
		if d == shapes.Wildcard {
			wildcard = true
			continue
		}
		if d <= 0 {
			return false
		}
		targetSize *= d
	}
	if wildcard {
		return inputSize%targetSize == 0
	}
	return inputSize == targetSize
}

func randomDims(rng *rand.Rand) []int {
	dims := make([]int, 1+rng.IntN(4))
	for i := range dims {
		dims[i] = 1 + rng.IntN(6)
	}
	return dims
}

func TestProperties(t *testing.T) {
	for _, config := range backendConfigs {
		t.Run(config, func(t *testing.T) {
			rng := rand.New(rand.NewPCG(42, 7))
			validator := New().WithBackend(config)
			for range 200 {
				input, target := randomDims(rng), randomDims(rng)
				switch rng.IntN(4) {
				case 0:
					target[rng.IntN(len(target))] = shapes.Wildcard
				case 1:
					target[rng.IntN(len(target))] = -rng.IntN(4) - 2
				}
				name := fmt.Sprintf("%v->%v", input, target)
				verdict := validator.Validate(context.Background(), shapes.Make(input...), shapes.Make(target...))
				require.Equalf(t, oracle(input, target), verdict.Valid, "%s: %s", name, verdict)
				require.Equal(t, shapes.Make(input...).Size(), verdict.InputElementCount, name)
				targetCount, ok := shapes.Make(target...).ConcreteSize()
				require.True(t, ok, name)
				require.Equal(t, targetCount, verdict.TargetElementCount, name)
				if verdict.Valid {
					require.True(t, verdict.Resolved.IsFullyConcrete(), name)
					require.Equal(t, verdict.InputElementCount, verdict.Resolved.Size(), name)
				} else {
					require.NotEqual(t, KindSolverInconclusive, verdict.Kind, name)
				}

				again := validator.Validate(context.Background(), shapes.Make(input...), shapes.Make(target...))
				require.True(t, verdict.Equal(again), "%s: verdicts differ: %s / %s", name, verdict, again)
			}
		})
	}
}

type fakeBackend struct {
	check     func(ctx context.Context) (solver.Result, error)
	finalized *atomic.Int32
}

func (f *fakeBackend) Check(ctx context.Context, _ *constraints.Set) (solver.Result, error) {
	return f.check(ctx)
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) Finalize() {
	if f.finalized != nil {
		f.finalized.Add(1)
	}
}

func fakeConstructor(check func(ctx context.Context) (solver.Result, error), finalized *atomic.Int32) solver.Constructor {
	return func(string) (solver.Backend, error) {
		return &fakeBackend{check: check, finalized: finalized}, nil
	}
}

func TestSolverInconclusive(t *testing.T) {
	testCases := []struct {
		name  string
		check func(ctx context.Context) (solver.Result, error)
	}{
		{"unknown", func(context.Context) (solver.Result, error) {
			return solver.Result{Status: solver.Unknown, Detail: "gave up"}, nil
		}},
		{"error", func(context.Context) (solver.Result, error) {
			return solver.Result{}, errors.New("backend crashed")
		}},
		{"panic", func(context.Context) (solver.Result, error) {
			panic("backend panicked")
		}},
		{"panic_with_error", func(context.Context) (solver.Result, error) {
			panic(errors.New("backend panicked"))
		}},
		{"deadline", func(ctx context.Context) (solver.Result, error) {
			<-ctx.Done()
			return solver.Result{Status: solver.Unknown, Detail: ctx.Err().Error()}, nil
		}},
		{"unsat_after_deadline", func(ctx context.Context) (solver.Result, error) {
			<-ctx.Done()
			return solver.Result{Status: solver.Unsat}, nil
		}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var finalized atomic.Int32
			validator := New().WithConstructor(fakeConstructor(tc.check, &finalized)).WithTimeout(10 * time.Millisecond)
			verdict := validator.Validate(context.Background(), shapes.Make(4, 2, 3), shapes.Make(4, 6))
			require.False(t, verdict.Valid, "inconclusive must never be valid")
			require.Equal(t, KindSolverInconclusive, verdict.Kind)
			assert.Contains(t, verdict.Reason, "solver inconclusive")
			assert.True(t, errors.Is(verdict.Err(), ErrSolverInconclusive))
			assert.Equal(t, "fake", verdict.Backend)
			assert.Equal(t, int32(1), finalized.Load(), "backend must be finalized")
		})
	}

	t.Run("unknown_backend", func(t *testing.T) {
		verdict := New().WithBackend("nonexistent").Validate(context.Background(), shapes.Make(4), shapes.Make(2, 2))
		require.False(t, verdict.Valid)
		require.Equal(t, KindSolverInconclusive, verdict.Kind)
		assert.Empty(t, verdict.Backend)
	})

	t.Run("sat_deadline_while_encoding", func(t *testing.T) {
		// Listing the divisors of a large semiprime takes seconds.
		validator := New().WithBackend("sat").WithTimeout(50 * time.Millisecond)
		start := time.Now()
		verdict := validator.Validate(context.Background(), shapes.Make(1000000007, 1000000009), shapes.Make(-1))
		require.Less(t, time.Since(start), 500*time.Millisecond)
		require.False(t, verdict.Valid)
		require.Equal(t, KindSolverInconclusive, verdict.Kind, "verdict: %s", verdict)
		assert.Equal(t, "sat", verdict.Backend)
	})

	t.Run("cancelled_context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		verdict := New().WithBackend("sat").Validate(ctx, shapes.Make(4, 2, 3), shapes.Make(4, -1))
		require.False(t, verdict.Valid)
		require.Equal(t, KindSolverInconclusive, verdict.Kind)
	})
}

func TestFreshBackendPerCall(t *testing.T) {
	var created atomic.Int32
	constructor := func(string) (solver.Backend, error) {
		created.Add(1)
		return &fakeBackend{check: func(context.Context) (solver.Result, error) {
			return solver.Result{Status: solver.Sat}, nil
		}}, nil
	}
	validator := New().WithConstructor(constructor)
	for range 3 {
		verdict := validator.Validate(context.Background(), shapes.Make(6, 4), shapes.Make(2, -1))
		require.True(t, verdict.Valid)
		assert.Equal(t, 0, verdict.Resolved.Rank(), "no model was returned")
	}
	assert.Equal(t, int32(3), created.Load())
}

func TestValidateAll(t *testing.T) {
	requests := make([]Request, 0, 40)
	for i := 1; i <= 40; i++ {
		requests = append(requests, Request{Input: shapes.Make(i, 6), Target: shapes.Make(3, -1)})
	}
	for _, parallelism := range []int{0, 4, -1} {
		t.Run(fmt.Sprintf("parallelism=%d", parallelism), func(t *testing.T) {
			var done atomic.Int32
			verdicts := New().WithParallelism(parallelism).ValidateAll(context.Background(), requests,
				func(int, Verdict) { done.Add(1) })
			require.Len(t, verdicts, len(requests))
			assert.Equal(t, int32(len(requests)), done.Load())
			for i, verdict := range verdicts {
				require.True(t, verdict.Valid, "request %d: %s", i, verdict)
				assert.Equal(t, []int{3, 2 * (i + 1)}, verdict.Resolved.Dimensions)
			}
		})
	}
}

func TestMustReshape(t *testing.T) {
	assert.Equal(t, []int{4, 6}, MustReshape([]int{4, 2, 3}, []int{4, -1}))

	err := exceptions.TryCatch[error](func() { MustReshape([]int{4, 2, 3}, []int{4, 7}) })
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrShapeMismatch))
	assert.Contains(t, err.Error(), "24 elements")
}

func TestErrorKindString(t *testing.T) {
	assert.Equal(t, "ShapeMismatch", KindShapeMismatch.String())
	assert.Equal(t, "ErrorKind(17)", ErrorKind(17).String())
	assert.Nil(t, KindNone.Sentinel())
}
