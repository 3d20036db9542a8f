// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package vectorization

import (
	"testing"

	"github.com/gomlx/fusion/backends"
	"github.com/gomlx/fusion/pkg/core/dtypes"
	"github.com/gomlx/fusion/pkg/fusion/ir"
	"github.com/stretchr/testify/require"
)

// fixedRuntime reports the same line sizes for every dtype.
type fixedRuntime []int

func (r fixedRuntime) Name() string                   { return "fixed" }
func (r fixedRuntime) Description() string            { return "fixed line sizes, for tests" }
func (r fixedRuntime) LineSizes(_ dtypes.DType) []int { return r }

var _ backends.Runtime = fixedRuntime(nil)

// testRuntime supports line sizes 4, 2 and 1 for Float32.
func testRuntime() backends.Runtime {
	return backends.NewVectorRuntime("test", "test runtime", 16, 0)
}

func vectsOf(m *Mapping) (ids []ir.TensorID, vects []Vect) {
	for id, v := range m.All() {
		ids = append(ids, id)
		vects = append(vects, v)
	}
	return
}

func TestBuild(t *testing.T) {
	r, err := Build(testRuntime()).Done()
	require.NoError(t, err)
	require.Equal(t, []int{4, 2, 1}, r.LineSizes())
	require.Equal(t, dtypes.Float32, r.DType())
	require.Equal(t, "test", r.Runtime().Name())

	r = Build(testRuntime()).DType(dtypes.Float16).MaxLineSize(4).MustDone()
	require.Equal(t, []int{8, 4, 2, 1}, r.LineSizes())
	require.Contains(t, r.String(), "max=4")

	_, err = Build(nil).Done()
	require.Error(t, err)
	_, err = Build(testRuntime()).DType(dtypes.InvalidDType).Done()
	require.Error(t, err)
	_, err = Build(testRuntime()).MaxLineSize(0).Done()
	require.ErrorContains(t, err, "MaxLineSize(0)")
	_, err = Build(fixedRuntime{}).Done()
	require.ErrorContains(t, err, "no line sizes")
	require.Panics(t, func() { Build(nil).MustDone() })

	// The overrides are copied.
	overrides := NewOverrides().Set(0, 2)
	r = Build(testRuntime()).Overrides(overrides).MustDone()
	overrides.Set(0, 1)
	require.Equal(t, []int{2}, r.candidates(0))
	require.Equal(t, []int{4, 2, 1}, r.candidates(1))
}

func TestResolve(t *testing.T) {
	r := Build(testRuntime()).MustDone()
	plan := ir.NewPlan().
		AddInput(ir.Tensor(0, dtypes.Float32, 8, 16), ir.ContiguousHandle(8, 16)).
		AddInput(ir.Tensor(1, dtypes.Float32, 8, 1), ir.StridedHandle(1, 1)).
		AddInput(ir.Tensor(2, dtypes.Float32, 16, 8), ir.StridedHandle(1, 16)).
		AddInput(ir.Tensor(3, dtypes.Float32, 8, 16), ir.ContiguousHandle(8, 16)).
		AddInput(ir.Tensor(4, dtypes.Float32, 8, 16), ir.StridedHandle(1, 8)).
		AddSwap(ir.Tensor(10, dtypes.Float32, 8, 16), ir.Tensor(2, dtypes.Float32, 16, 8), false, 0, 1).
		AddReshape(ir.Tensor(11, dtypes.Float32, 2, 4, 16), ir.Tensor(3, dtypes.Float32, 8, 16), true).
		AddOutput(ir.Tensor(20, dtypes.Float32, 8, 15)).
		AddOutput(ir.Tensor(21, dtypes.Float32, 8, 16))
	mapping, err := r.Resolve(plan)
	require.NoError(t, err)

	ids, vects := vectsOf(mapping)
	require.Equal(t, []ir.TensorID{0, 1, 2, 3, 4, 20, 21}, ids)
	require.Equal(t, []Vect{
		Aligned(4),    // Contiguous input.
		Broadcasted(), // Size 1 axis.
		Aligned(4),    // Read swapped from column-major storage.
		Aligned(4),    // Input and reshaped view agree.
		Aligned(1),    // Strided input.
		Aligned(1),    // Output, 15 not divisible.
		Aligned(4),    // Output.
	}, vects)

	// Aliased views don't get their own entries.
	_, found := mapping.Get(10)
	require.False(t, found)
	_, found = mapping.Get(11)
	require.False(t, found)

	// Deterministic.
	for range 3 {
		require.True(t, r.MustResolve(plan).Equal(mapping))
	}

	// Empty plan.
	mapping, err = r.Resolve(ir.NewPlan())
	require.NoError(t, err)
	require.Equal(t, 0, mapping.Len())
}

func TestResolve_Conflicts(t *testing.T) {
	r := Build(testRuntime()).MaxLineSize(2).MustDone()

	// Inputs are not bounded by the max line size, but their reshaped views are.
	plan := ir.NewPlan().
		AddInput(ir.Tensor(0, dtypes.Float32, 8, 16), ir.ContiguousHandle(8, 16)).
		AddReshape(ir.Tensor(1, dtypes.Float32, 2, 4, 16), ir.Tensor(0, dtypes.Float32, 8, 16), false)
	mapping := r.MustResolve(plan)
	require.Equal(t, "{T0:aligned(1)}", mapping.String())

	// Broadcast input, reshape read as well.
	plan = ir.NewPlan().
		AddInput(ir.Tensor(0, dtypes.Float32, 8, 1), ir.StridedHandle(1, 1)).
		AddReshape(ir.Tensor(1, dtypes.Float32, 2, 4, 1), ir.Tensor(0, dtypes.Float32, 8, 1), true)
	require.Equal(t, "{T0:broadcast}", r.MustResolve(plan).String())

	// Aligned input, broadcast reshape.
	plan = ir.NewPlan().
		AddInput(ir.Tensor(0, dtypes.Float32, 8, 2), ir.ContiguousHandle(8, 2)).
		AddReshape(ir.Tensor(1, dtypes.Float32, 8, 2, 1), ir.Tensor(0, dtypes.Float32, 8, 2), false)
	require.Equal(t, "{T0:aligned(1)}", r.MustResolve(plan).String())

	// Two reshapes of a tensor that is not an input: the first one is inserted, then merged.
	plan = ir.NewPlan().
		AddReshape(ir.Tensor(1, dtypes.Float32, 2, 2, 16), ir.Tensor(0, dtypes.Float32, 4, 16), false).
		AddReshape(ir.Tensor(2, dtypes.Float32, 64), ir.Tensor(0, dtypes.Float32, 4, 16), false)
	require.Equal(t, "{T0:aligned(1)}", r.MustResolve(plan).String())
}

func TestResolve_Overrides(t *testing.T) {
	const tensorA, tensorB ir.TensorID = 0, 1
	plan := ir.NewPlan().
		AddInput(ir.Tensor(tensorA, dtypes.Float32, 8, 16), ir.ContiguousHandle(8, 16)).
		AddInput(ir.Tensor(tensorB, dtypes.Float32, 8, 16), ir.ContiguousHandle(8, 16)).
		AddReshape(ir.Tensor(2, dtypes.Float32, 128, 16), ir.Tensor(5, dtypes.Float32, 8, 16, 16), false)

	r := Build(fixedRuntime{8, 1}).Overrides(NewOverrides().Set(tensorA, 2).SetDefault(4)).MustDone()
	require.Equal(t, "{T0:aligned(2), T1:aligned(4), T5:aligned(4)}", r.MustResolve(plan).String())

	// Reshapes use the overrides of the original tensor.
	r = r.WithOverrides(NewOverrides().Set(5, 2))
	require.Equal(t, "{T0:aligned(8), T1:aligned(8), T5:aligned(2)}", r.MustResolve(plan).String())

	// An empty default disables packing.
	r = r.WithOverrides(NewOverrides().SetDefault())
	require.Equal(t, "{T0:aligned(1), T1:aligned(1), T5:aligned(1)}", r.MustResolve(plan).String())
}

func TestResolve_Axis(t *testing.T) {
	r := Build(testRuntime()).Axis(0).MustDone()
	plan := ir.NewPlan().
		AddInput(ir.Tensor(0, dtypes.Float32, 8, 16), ir.ContiguousHandle(8, 16)).
		AddInput(ir.Tensor(1, dtypes.Float32, 8, 16), ir.StridedHandle(1, 8)).
		AddOutput(ir.Tensor(2, dtypes.Float32, 8, 3))
	require.Equal(t, "{T0:aligned(1), T1:aligned(4), T2:aligned(4)}", r.MustResolve(plan).String())
}

func TestResolve_InvalidPlan(t *testing.T) {
	r := Build(testRuntime()).MustDone()
	plan := ir.NewPlan().
		AddInput(ir.Tensor(0, dtypes.Float32, 16, 8), ir.StridedHandle(1, 16)).
		AddSwap(ir.Tensor(1, dtypes.Float32, 8, 16), ir.Tensor(0, dtypes.Float32, 16, 8), false, 0, 2)
	_, err := r.Resolve(plan)
	require.ErrorContains(t, err, "out-of-bounds")
	require.Panics(t, func() { r.MustResolve(plan) })
}

func TestResolveInContext(t *testing.T) {
	const local, global ir.TensorID = 10, 0
	r := Build(testRuntime()).Overrides(NewOverrides().Set(local, 2)).MustDone()
	plan := ir.NewPlan().AddInput(ir.Tensor(global, dtypes.Float32, 8, 16), ir.ContiguousHandle(8, 16))

	mapping, err := r.ResolveInContext(plan, ir.MapContext{local: global})
	require.NoError(t, err)
	require.Equal(t, "{T0:aligned(2)}", mapping.String())

	// Without the context the override doesn't apply.
	require.Equal(t, "{T0:aligned(4)}", r.MustResolve(plan).String())

	_, err = r.ResolveInContext(plan, ir.MapContext{})
	require.ErrorContains(t, err, "unknown to the execution context")
}
