// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"testing"

	"github.com/gomlx/fusion/backends"
	"github.com/gomlx/fusion/pkg/core/dtypes"
	"github.com/gomlx/fusion/pkg/fusion/ir"
	"github.com/gomlx/fusion/pkg/fusion/vectorization"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/require"
)

func TestTableRows(t *testing.T) {
	runtime := must.M1(backends.NewWithConfig("cuda"))
	resolver := vectorization.Build(runtime).MustDone()
	plan := ir.NewPlan().
		AddInput(ir.Tensor(0, dtypes.Float32, 8, 16), ir.ContiguousHandle(8, 16)).
		AddInput(ir.Tensor(1, dtypes.Float32, 16, 8), ir.StridedHandle(1, 16)).
		AddSwap(ir.Tensor(2, dtypes.Float32, 8, 16), ir.Tensor(1, dtypes.Float32, 16, 8), false, 0, 1).
		AddReshape(ir.Tensor(3, dtypes.Float32, 2, 4, 16), ir.Tensor(0, dtypes.Float32, 8, 16), true).
		AddOutput(ir.Tensor(4, dtypes.Float32, 8, 15))
	mapping := resolver.MustResolve(plan)

	rows := tableRows(resolver, plan, mapping)
	require.Equal(t, [][]string{
		{"T0", "(Float32)[8 16]", "input; reshaped as T3(Float32)[2 4 16], both read", "aligned(4)", "16 B"},
		{"T1", "(Float32)[16 8]", "input, read as T2 with axes [0 1] swapped", "aligned(4)", "16 B"},
		{"T4", "(Float32)[8 15]", "output", "aligned(1)", "4 B"},
	}, rows)
}
