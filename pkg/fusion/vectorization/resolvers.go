// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package vectorization

import (
	"github.com/gomlx/fusion/pkg/fusion/ir"
)

// resolveInput decides the line size of an input tensor bound to a storage handle.
//
// The axis is relative to the handle's strides. A size-1 axis is broadcast, a non-contiguous axis is never packed.
func resolveInput(handle ir.Handle, tensor ir.TensorIR, axis int, candidates []int) Vect {
	axis, ok := adjustAxis(axis, handle.Rank())
	if !ok || axis >= tensor.Rank() {
		return Aligned(1)
	}
	extent := tensor.Shape.Dimensions[axis]
	if extent == 1 {
		return Broadcasted()
	}
	if !handle.IsContiguous(axis) {
		return Aligned(1)
	}
	return firstLineSize(candidates, func(lineSize int) bool {
		return divides(lineSize, extent)
	})
}

// resolveOutput decides the line size of an output tensor. Outputs are not allocated yet, so there
// are no strides to check, but the line size is bounded by maxLineSize.
func resolveOutput(tensor ir.TensorIR, axis, maxLineSize int, candidates []int) Vect {
	axis, ok := adjustAxis(axis, tensor.Rank())
	if !ok {
		return Aligned(1)
	}
	extent := tensor.Shape.Dimensions[axis]
	return firstLineSize(candidates, func(lineSize int) bool {
		return divides(lineSize, extent) && lineSize <= maxLineSize
	})
}

// resolveReshape decides the line size of a tensor reshaped from original without a copy.
//
// Only reshapes that keep the last axis are packed. When both views are read (multiReads), the
// line size must also divide the original's last axis.
func resolveReshape(reshaped, original ir.TensorIR, multiReads bool, axis, maxLineSize int, candidates []int) Vect {
	axis, ok := adjustAxis(axis, reshaped.Rank())
	if !ok {
		return Aligned(1)
	}
	reshapedExtent := reshaped.Shape.Dimensions[axis]
	if !multiReads && reshapedExtent == 1 {
		return Broadcasted()
	}
	if axis != reshaped.Rank()-1 {
		return Aligned(1)
	}
	originalExtent := original.Shape.Dim(-1)
	if originalExtent != reshapedExtent {
		return Aligned(1)
	}
	return firstLineSize(candidates, func(lineSize int) bool {
		if lineSize > maxLineSize || !divides(lineSize, reshapedExtent) {
			return false
		}
		return !multiReads || divides(lineSize, originalExtent)
	})
}

// swappedPartner returns the physical axis holding the logical axis once dims are exchanged.
func swappedPartner(axis int, dims [2]int) int {
	switch axis {
	case dims[0]:
		return dims[1]
	case dims[1]:
		return dims[0]
	default:
		return axis
	}
}

// resolveSwapped decides the line size of a tensor that is original with the axes in dims exchanged.
//
// The contiguity rules differ with multiReads: with several reads both the vectorization axis and its
// swapped partner must have stride 1, otherwise only the partner. Without multiReads the line size must
// also divide the original's extent at the vectorization axis.
func resolveSwapped(handle ir.Handle, swapped, original ir.TensorIR, multiReads bool, dims [2]int,
	axis, maxLineSize int, candidates []int) Vect {
	axis, ok := adjustAxis(axis, swapped.Rank())
	if !ok || axis >= original.Rank() || axis >= handle.Rank() {
		return Aligned(1)
	}
	swappedExtent := swapped.Shape.Dimensions[axis]
	originalExtent := original.Shape.Dimensions[axis]

	partner := swappedPartner(axis, dims)
	if partner < 0 || partner >= handle.Rank() {
		return Aligned(1)
	}
	if multiReads && !handle.IsContiguous(axis) {
		return Aligned(1)
	}
	if !handle.IsContiguous(partner) {
		return Aligned(1)
	}

	if !multiReads && swappedExtent == 1 {
		return Broadcasted()
	}
	return firstLineSize(candidates, func(lineSize int) bool {
		if lineSize > maxLineSize || !divides(lineSize, swappedExtent) {
			return false
		}
		return multiReads || divides(lineSize, originalExtent)
	})
}
