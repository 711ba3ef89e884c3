// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package _default includes the standard solver backends, "arith" (the default) and "sat".
//
// To use it simply include:
//
//	import _ "github.com/gomlx/reshapecheck/pkg/core/solver/default"
package _default

import (
	_ "github.com/gomlx/reshapecheck/pkg/core/solver/arith"
	_ "github.com/gomlx/reshapecheck/pkg/core/solver/sat"
)
