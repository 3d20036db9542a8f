// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package vectorization decides, for every tensor of a fusion group, its line size: how many
// contiguous elements the fused kernel loads or stores as one packed access.
//
// A fused kernel has exactly one line size per tensor, shared by every operation that touches it.
// So the Resolver reconciles the strides of the storage bound to each input, the logical shapes,
// broadcasting (size-1 axes), reshape aliasing and transposed ("swapped") views into one Mapping
// from tensor id to Vect, the decision for that tensor.
//
// Example:
//
//	runtime := must.M1(backends.NewWithConfig("cuda"))
//	resolver := vectorization.Build(runtime).DType(dtypes.Float16).MaxLineSize(4).MustDone()
//	plan := ir.NewPlan().
//		AddInput(ir.Tensor(0, dtypes.Float16, 8, 16), ir.ContiguousHandle(8, 16)).
//		AddOutput(ir.Tensor(1, dtypes.Float16, 8, 16))
//	mapping, err := resolver.Resolve(plan)
//
// Every decision falls back to Aligned(1), the unpacked access, whenever packing cannot be proven
// safe: the resolution itself never fails on shapes it cannot pack.
//
// ## Glossary
//
//   - Line size: number of contiguous elements accessed together as one vector-register-sized unit.
//   - Broadcast: an axis of extent 1 whose value is replicated rather than packed.
//   - Multi-read: a tensor read through more than one aliasing view (reshape or transpose) within the
//     fusion group, requiring the views' line sizes to agree.
package vectorization
