// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"testing"

	"github.com/gomlx/fusion/pkg/core/dtypes"
	"github.com/stretchr/testify/require"
)

func TestTensor(t *testing.T) {
	tensor := Tensor(3, dtypes.Float16, 2, 5)
	require.Equal(t, 2, tensor.Rank())
	require.Equal(t, "T3", tensor.ID.String())
	require.Equal(t, "T3(Float16)[2 5]", tensor.String())
}

func TestHandle(t *testing.T) {
	h := ContiguousHandle(2, 3, 4)
	require.Equal(t, []int{12, 4, 1}, h.Strides)
	require.Equal(t, 3, h.Rank())
	require.True(t, h.IsContiguous(2))
	require.False(t, h.IsContiguous(0))

	strides := []int{1, 8}
	h = StridedHandle(strides...)
	strides[0] = 5
	require.Equal(t, []int{1, 8}, h.Strides)
	require.True(t, h.IsContiguous(0))
}

func TestMapContext(t *testing.T) {
	var ctx Context = MapContext{1: 100}
	global, found := ctx.GlobalID(1)
	require.True(t, found)
	require.Equal(t, TensorID(100), global)
	_, found = ctx.GlobalID(2)
	require.False(t, found)
}
