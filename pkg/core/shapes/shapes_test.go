// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package shapes

import (
	"testing"

	"github.com/gomlx/exceptions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertConcreteSize(t *testing.T, want int, s Shape) {
	t.Helper()
	size, ok := s.ConcreteSize()
	require.True(t, ok, "ConcreteSize of %s overflowed", s)
	assert.Equal(t, want, size)
}

func TestShape(t *testing.T) {
	s := Make(4, 2, 3)
	assert.Equal(t, 3, s.Rank())
	assert.Equal(t, 24, s.Size())
	assertConcreteSize(t, 24, s)
	assert.Equal(t, 3, s.Dim(-1))
	assert.True(t, s.IsFullyConcrete())
	assert.False(t, s.HasNamedAxes())
	assert.Equal(t, "[4 2 3]", s.String())

	scalar := Scalar()
	assert.True(t, scalar.IsScalar())
	assert.Equal(t, 1, scalar.Size())
	assert.Equal(t, "[]", scalar.String())

	require.Panics(t, func() { _ = s.Dim(3) })
}

func TestWildcardAndNonPositive(t *testing.T) {
	s := Make(-2, -1, 0, 5)
	assert.Equal(t, []int{1}, s.WildcardAxes())
	assert.Equal(t, []int{0, 2}, s.NonPositiveAxes())
	assert.True(t, s.IsWildcard(1))
	assert.False(t, s.IsConcrete(1))
	assert.True(t, s.IsConcrete(0))
	assertConcreteSize(t, 0, s)

	s = Make(4, -1)
	assertConcreteSize(t, 4, s)
	assert.Empty(t, s.NonPositiveAxes())
	assert.False(t, s.IsFullyConcrete())
}

func TestSizeOverflow(t *testing.T) {
	s := Make(1<<32, 1<<32)
	_, ok := s.ConcreteSize()
	require.False(t, ok)
	require.Equal(t, "18446744073709551616", s.ConcreteSizeString())
	err := exceptions.TryCatch[error](func() { _ = s.Size() })
	require.Error(t, err)

	// Wildcards and symbolic axes are not part of the product.
	s = MakeDynamic(1<<32, "batch", -1, 1<<30)
	size, ok := s.ConcreteSize()
	require.True(t, ok)
	require.Equal(t, 1<<62, size)
	require.Equal(t, "4611686018427387904", s.ConcreteSizeString())
}

func TestMakeDynamic(t *testing.T) {
	s := MakeDynamic("batch", 512, -1)
	require.Equal(t, DimSymbolic, s.Dimensions[0])
	require.Equal(t, "batch", s.AxisName(0))
	require.Equal(t, "", s.AxisName(1))
	require.True(t, s.IsSymbolic(0))
	require.False(t, s.IsWildcard(0))
	require.True(t, s.IsWildcard(2))
	require.True(t, s.HasNamedAxes())
	assertConcreteSize(t, 512, s)
	require.Equal(t, "[batch 512 -1]", s.String())

	// Only ints and strings are accepted.
	err := exceptions.TryCatch[error](func() { _ = MakeDynamic(1.5) })
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported type")
	err = exceptions.TryCatch[error](func() { _ = MakeDynamic("") })
	require.Error(t, err)
}

func TestShapeEqualAndClone(t *testing.T) {
	require.True(t, Make(32, 512).Equal(MakeDynamic(32, 512)))
	require.False(t, Make(32, 512).Equal(MakeDynamic("batch", 512)))
	require.False(t, MakeDynamic("batch", 512).Equal(MakeDynamic("time", 512)))
	require.False(t, Make(32).Equal(Make(32, 1)))

	original := MakeDynamic("batch", "seq", 512)
	clone := original.Clone()
	require.True(t, original.Equal(clone))
	clone.Dimensions[2] = 32
	clone.AxisNames[0] = "modified"
	require.Equal(t, 512, original.Dimensions[2])
	require.Equal(t, "batch", original.AxisNames[0])
}

func TestParse(t *testing.T) {
	tests := []struct {
		text string
		want Shape
	}{
		{"4,2,3", Make(4, 2, 3)},
		{"[4 -1]", Make(4, -1)},
		{"(batch, seq, 512)", MakeDynamic("batch", "seq", 512)},
		{" [ 6 , -2 ] ", Make(6, -2)},
		{"[]", Scalar()},
		{"", Scalar()},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, err := Parse(tt.text)
			require.NoError(t, err)
			require.Truef(t, tt.want.Equal(got), "Parse(%q)=%s, wanted %s", tt.text, got, tt.want)
		})
	}

	for _, text := range []string{"4,x-1", "[4, 2.5]", "9a"} {
		_, err := Parse(text)
		require.Errorf(t, err, "Parse(%q) should have failed", text)
	}
}
