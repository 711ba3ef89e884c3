// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package xmath

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCheckedMul(t *testing.T) {
	v, ok := CheckedMul(1<<31, 1<<31)
	require.True(t, ok)
	require.Equal(t, 1<<62, v)
	_, ok = CheckedMul(1<<32, 1<<32)
	require.False(t, ok)
	v, ok = CheckedMul(-3, 4)
	require.True(t, ok)
	require.Equal(t, -12, v)
	v, ok = CheckedMul(-3, -4)
	require.True(t, ok)
	require.Equal(t, 12, v)
	v, ok = CheckedMul(math.MaxInt, 1)
	require.True(t, ok)
	require.Equal(t, math.MaxInt, v)
}

func TestCheckedProduct(t *testing.T) {
	v, ok := CheckedProduct()
	require.True(t, ok)
	require.Equal(t, 1, v)
	v, ok = CheckedProduct(4, 2, 3)
	require.True(t, ok)
	require.Equal(t, 24, v)
	_, ok = CheckedProduct(1<<32, 1<<32, 0)
	require.False(t, ok, "overflow is reported even if a later factor is 0")
}
