// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package xmath implements integer helpers that detect overflow.
package xmath

import (
	"math"
	"math/bits"
)

// CheckedMul returns a*b, and false if the result overflows int.
func CheckedMul(a, b int) (int, bool) {
	negative := (a < 0) != (b < 0)
	hi, lo := bits.Mul64(absUint64(a), absUint64(b))
	if hi != 0 || lo > math.MaxInt {
		return 0, false
	}
	if negative {
		return -int(lo), true
	}
	return int(lo), true
}

// CheckedProduct returns the product of values, and false if it overflows int.
// The product of no values is 1.
func CheckedProduct(values ...int) (int, bool) {
	product := 1
	for _, v := range values {
		var ok bool
		if product, ok = CheckedMul(product, v); !ok {
			return 0, false
		}
	}
	return product, true
}

func absUint64(x int) uint64 {
	if x < 0 {
		return uint64(-x)
	}
	return uint64(x)
}
