// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gomlx/reshapecheck/pkg/core/reshape"
	"github.com/gomlx/reshapecheck/pkg/core/shapes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePairs(t *testing.T) {
	text := `
# Reshapes of a [4 2 3] tensor.
4,2,3 -> 4,6
[4 2 3] -> [4 -1]
batch 512	batch 8 -1
`
	requests, err := parsePairs(strings.NewReader(text))
	require.NoError(t, err)
	require.Len(t, requests, 3)
	assert.True(t, requests[0].Target.Equal(shapes.Make(4, 6)))
	assert.True(t, requests[1].Target.Equal(shapes.Make(4, -1)))
	assert.True(t, requests[2].Input.Equal(shapes.MakeDynamic("batch", 512)))

	_, err = parsePairs(strings.NewReader("4,2,3 4,6\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 1")

	_, err = parsePairs(strings.NewReader("4,2,3 -> 4,x!\n"))
	require.Error(t, err)
}

func TestReadPairsAndRender(t *testing.T) {
	fileName := filepath.Join(t.TempDir(), "pairs.txt")
	require.NoError(t, os.WriteFile(fileName, []byte("4,2,3 -> 4,7\n6,4 -> 2,-1\n"), 0o644))
	requests, err := readPairs(fileName)
	require.NoError(t, err)

	verdicts := validate(context.Background(), reshape.New().WithBackend("arith"), requests)
	require.Len(t, verdicts, 2)
	assert.False(t, verdicts[0].Valid)
	assert.True(t, verdicts[1].Valid)

	row := verdictRow(requests[0], verdicts[0])
	assert.Equal(t, "24", row[2])
	assert.Equal(t, "28", row[3])
	assert.Contains(t, row[6], "(28 elements)")
	assert.Equal(t, "resolved to [2 12]", verdictRow(requests[1], verdicts[1])[6])
	assert.Contains(t, renderVerdicts(requests, verdicts), "[6 4]")

	_, err = readPairs(filepath.Join(t.TempDir(), "missing.txt"))
	require.Error(t, err)
}

func TestRenderOverflowCounts(t *testing.T) {
	requests := []reshape.Request{{Input: shapes.Make(1<<32, 1<<32), Target: shapes.Make(1<<32, 3)}}
	verdicts := validate(context.Background(), reshape.New().WithBackend("arith"), requests)
	require.Len(t, verdicts, 1)
	row := verdictRow(requests[0], verdicts[0])
	assert.Equal(t, "overflow", row[2])
	assert.Equal(t, "12,884,901,888", row[3])
	assert.Contains(t, row[6], "(18446744073709551616 elements)")
}

func TestRenderSymbolicResolution(t *testing.T) {
	requests := []reshape.Request{{Input: shapes.MakeDynamic("batch", 6), Target: shapes.MakeDynamic("batch", -1)}}
	verdicts := validate(context.Background(), reshape.New(), requests)
	require.True(t, verdicts[0].Valid)
	assert.Equal(t, "resolved to [batch 6]", verdictRow(requests[0], verdicts[0])[6])
}

func TestProgressDescription(t *testing.T) {
	assert.Equal(t, "Validating reshapes (timeout 250ms each)",
		progressDescription(reshape.New().WithTimeout(250*time.Millisecond)))
	assert.Equal(t, "Validating reshapes", progressDescription(reshape.New().WithTimeout(0)))
}
