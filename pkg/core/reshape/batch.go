// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package reshape

import (
	"context"

	"github.com/gomlx/reshapecheck/pkg/core/shapes"
	"github.com/gomlx/reshapecheck/pkg/support/workerspool"
	"k8s.io/klog/v2"
)

// Request to reshape Input into Target.
type Request struct {
	Input, Target shapes.Shape
}

// ValidateAll validates the requests in parallel (see WithParallelism), and returns their verdicts in the
// same order.
//
// If onDone is not nil, it is called (possibly concurrently) after each request is validated.
func (v *Validator) ValidateAll(ctx context.Context, requests []Request, onDone func(i int, verdict Verdict)) []Verdict {
	verdicts := make([]Verdict, len(requests))
	pool := workerspool.New().SetMaxParallelism(v.parallelism)
	klog.V(1).Infof("validating %d reshape requests with parallelism %d", len(requests), pool.MaxParallelism())
	pool.ForEach(len(requests), func(i int) {
		verdicts[i] = v.Validate(ctx, requests[i].Input, requests[i].Target)
		if onDone != nil {
			onDone(i, verdicts[i])
		}
	})
	return verdicts
}
