// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package shapes defines Shape, the logical shape (DType and dimensions) of a tensor in a fusion group.
//
// ## Glossary
//
//   - Rank: number of axes (dimensions) of a Tensor.
//   - Axis: is the index of a dimension on a multidimensional Tensor. Here we refer to a
//     dimension index as "axis" (plural axes), and its size as its dimension (or extent).
//   - Strides: for each axis, how many elements one has to skip in the flat storage to move
//     one position along that axis. A stride of 1 means the axis is contiguous in memory.
//
// Example: a tensor of shape `(Float32)[8 16]` stored row-major has strides `[16 1]`: its last
// axis is contiguous, so up to 16 consecutive elements along it can be loaded together.
package shapes

import (
	"fmt"
	"slices"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/fusion/pkg/core/dtypes"
	"github.com/pkg/errors"
)

// Shape represents the logical shape of a tensor.
//
// Use Make to create a new shape.
type Shape struct {
	DType      dtypes.DType `json:"dtype"`
	Dimensions []int        `json:"dimensions"`
}

// Make returns a Shape structure filled with the values given.
//
// Dimensions of size 0 are accepted (zero-sized tensors do show up in fusion groups), negative ones panic.
func Make(dtype dtypes.DType, dimensions ...int) Shape {
	s := Shape{Dimensions: slices.Clone(dimensions), DType: dtype}
	for _, dim := range dimensions {
		if dim < 0 {
			exceptions.Panicf("shapes.Make(%s): cannot create a shape with an axis with dimension < 0", s)
		}
	}
	return s
}

// Invalid returns an invalid shape.
//
// Invalid().Ok() == false.
func Invalid() Shape {
	return Shape{DType: dtypes.InvalidDType}
}

// Ok returns whether this is a valid Shape. A "zero" shape, that is just instantiating it with Shape{} will be invalid.
func (s Shape) Ok() bool { return s.DType != dtypes.InvalidDType }

// Rank of the shape, that is, the number of dimensions.
func (s Shape) Rank() int { return len(s.Dimensions) }

// IsScalar returns whether the shape represents a scalar, that is there are no dimensions (rank==0).
func (s Shape) IsScalar() bool { return s.Ok() && s.Rank() == 0 }

// AdjustAxis converts a possibly negative axis (counting from the end, so -1 is the last axis) to
// its non-negative index. It returns an error if the axis is out-of-bounds for the shape rank.
func AdjustAxis(axis, rank int) (int, error) {
	adjustedAxis := axis
	if adjustedAxis < 0 {
		adjustedAxis += rank
	}
	if adjustedAxis < 0 || adjustedAxis >= rank {
		return 0, errors.Errorf("axis %d out-of-bounds for rank %d", axis, rank)
	}
	return adjustedAxis, nil
}

// Dim returns the dimension of the given axis. axis can take negative numbers, in which
// case it counts as starting from the end -- so axis=-1 refers to the last axis.
// Like with a slice indexing, it panics for an out-of-bound axis.
func (s Shape) Dim(axis int) int {
	adjustedAxis, err := AdjustAxis(axis, s.Rank())
	if err != nil {
		exceptions.Panicf("Shape.Dim(%d) for shape %s: %v", axis, s, err)
	}
	return s.Dimensions[adjustedAxis]
}

// Size returns the number of elements of DType are needed for this shape. It's the product of all dimensions.
func (s Shape) Size() (size int) {
	size = 1
	for _, d := range s.Dimensions {
		size *= d
	}
	return
}

// IsZeroSize returns whether any of the dimensions is 0, in which case the tensor holds no elements.
func (s Shape) IsZeroSize() bool {
	return slices.Contains(s.Dimensions, 0)
}

// Memory returns the number of bytes used to store the shape's elements.
func (s Shape) Memory() uintptr {
	return uintptr(s.DType.Size()) * uintptr(s.Size())
}

// Strides returns the strides for each axis of the shape, assuming a "row-major" layout
// in memory.
//
// Notice the strides are **not in bytes**, but in indices.
func (s Shape) Strides() []int {
	return RowMajorStrides(s.Dimensions)
}

// RowMajorStrides returns the strides of a densely packed row-major layout for the given dimensions.
// If any dimension is zero, all strides are 0.
func RowMajorStrides(dimensions []int) (strides []int) {
	rank := len(dimensions)
	if rank == 0 {
		return
	}
	strides = make([]int, rank)
	if slices.Contains(dimensions, 0) {
		// Some axis is zero-dimension.
		return
	}
	currentStride := 1
	for axis := rank - 1; axis >= 0; axis-- {
		strides[axis] = currentStride
		currentStride *= dimensions[axis]
	}
	return
}

// String implements stringer, pretty-prints the shape.
func (s Shape) String() string {
	if s.Rank() == 0 {
		return fmt.Sprintf("(%s)", s.DType)
	}
	return fmt.Sprintf("(%s)%v", s.DType, s.Dimensions)
}

// Clone returns a new deep copy of the shape.
func (s Shape) Clone() Shape {
	return Shape{DType: s.DType, Dimensions: slices.Clone(s.Dimensions)}
}

// Equal compares two shapes for equality: dtype and dimensions are compared.
func (s Shape) Equal(s2 Shape) bool {
	return s.DType == s2.DType && slices.Equal(s.Dimensions, s2.Dimensions)
}
