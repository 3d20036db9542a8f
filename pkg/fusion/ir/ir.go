// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package ir holds the facts the fusion tracer hands over to the line-size resolver: tensor
// identities, their per-operation descriptors, the storage handles bound to inputs and the
// Plan of a fusion group (inputs, reshape-aliased pairs, dimension-swapped pairs and outputs).
//
// Everything here is read-only once built: a Plan is constructed per fusion-group compilation
// and never mutated while being resolved.
package ir

import (
	"fmt"
	"slices"

	"github.com/gomlx/fusion/pkg/core/dtypes"
	"github.com/gomlx/fusion/pkg/core/shapes"
)

// TensorID identifies the logical role of a tensor within a fusion group.
//
// It is not a storage handle: several TensorIDs may alias the same storage through a reshape or a transpose.
type TensorID uint64

// String implements fmt.Stringer.
func (id TensorID) String() string {
	return fmt.Sprintf("T%d", uint64(id))
}

// TensorIR is the immutable description of a tensor as seen by one operation of the fusion group.
type TensorIR struct {
	ID    TensorID     `json:"id"`
	Shape shapes.Shape `json:"shape"`
}

// Tensor is a shortcut to create a TensorIR.
func Tensor(id TensorID, dtype dtypes.DType, dimensions ...int) TensorIR {
	return TensorIR{ID: id, Shape: shapes.Make(dtype, dimensions...)}
}

// Rank of the tensor.
func (t TensorIR) Rank() int { return t.Shape.Rank() }

// String implements fmt.Stringer.
func (t TensorIR) String() string {
	return fmt.Sprintf("%s%s", t.ID, t.Shape)
}

// Handle is the storage bound to an input tensor, as provided by the execution context.
//
// Only its strides matter for line sizes. Dimensions is optional, and set only when the storage is
// reused across views with a different shape than the tensor descriptor.
type Handle struct {
	Strides    []int `json:"strides"`
	Dimensions []int `json:"dimensions,omitempty"`
}

// ContiguousHandle returns a Handle for a densely packed row-major storage of the given dimensions.
func ContiguousHandle(dimensions ...int) Handle {
	return Handle{Strides: shapes.RowMajorStrides(dimensions)}
}

// StridedHandle returns a Handle with the given strides.
func StridedHandle(strides ...int) Handle {
	return Handle{Strides: slices.Clone(strides)}
}

// Rank of the storage, that is, the number of strides.
func (h Handle) Rank() int { return len(h.Strides) }

// IsContiguous returns whether the given axis has stride 1.
func (h Handle) IsContiguous(axis int) bool {
	return h.Strides[axis] == 1
}

// Context translates tensor identities local to one execution of a fusion group into the
// global identities of the execution context the group is currently running in.
type Context interface {
	// GlobalID returns the global identity for the local one, and whether it is known.
	GlobalID(local TensorID) (TensorID, bool)
}

// MapContext is a Context backed by a map from local to global identities.
type MapContext map[TensorID]TensorID

// GlobalID implements Context.
func (m MapContext) GlobalID(local TensorID) (TensorID, bool) {
	global, found := m[local]
	return global, found
}
