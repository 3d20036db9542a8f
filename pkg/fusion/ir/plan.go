// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"encoding/json"
	"io"
	"strings"

	"github.com/gomlx/fusion/pkg/support/fsutil"
	"github.com/gomlx/fusion/pkg/support/sets"
	"github.com/pkg/errors"
)

// BoundInput is an input tensor of the fusion group along with the storage handle bound to it.
type BoundInput struct {
	Tensor TensorIR `json:"tensor"`
	Handle Handle   `json:"handle"`
}

// ReshapePair describes a tensor logically reshaped from Original without a physical copy.
//
// MultiReads is set when both views are read independently within the fusion group.
type ReshapePair struct {
	Reshaped   TensorIR `json:"reshaped"`
	Original   TensorIR `json:"original"`
	MultiReads bool     `json:"multi_reads"`
}

// SwapPair describes a tensor that is a view of Original with the two axes in Dims exchanged.
type SwapPair struct {
	Swapped    TensorIR `json:"swapped"`
	Original   TensorIR `json:"original"`
	MultiReads bool     `json:"multi_reads"`
	Dims       [2]int   `json:"dims"`
}

// Plan holds all tensors touched by one fusion group, grouped by how they are accessed.
type Plan struct {
	Inputs   []BoundInput  `json:"inputs"`
	Reshapes []ReshapePair `json:"reshapes,omitempty"`
	Swaps    []SwapPair    `json:"swaps,omitempty"`
	Outputs  []TensorIR    `json:"outputs,omitempty"`
}

// NewPlan returns an empty Plan, to be filled with the Add* methods.
func NewPlan() *Plan {
	return &Plan{}
}

// AddInput appends an input tensor bound to the given storage handle. It returns the plan itself.
func (p *Plan) AddInput(tensor TensorIR, handle Handle) *Plan {
	p.Inputs = append(p.Inputs, BoundInput{Tensor: tensor, Handle: handle})
	return p
}

// AddReshape appends a reshape-aliased pair. It returns the plan itself.
func (p *Plan) AddReshape(reshaped, original TensorIR, multiReads bool) *Plan {
	p.Reshapes = append(p.Reshapes, ReshapePair{Reshaped: reshaped, Original: original, MultiReads: multiReads})
	return p
}

// AddSwap appends a dimension-swapped pair, where axes dim0 and dim1 of original are exchanged.
// It returns the plan itself.
func (p *Plan) AddSwap(swapped, original TensorIR, multiReads bool, dim0, dim1 int) *Plan {
	p.Swaps = append(p.Swaps, SwapPair{Swapped: swapped, Original: original, MultiReads: multiReads, Dims: [2]int{dim0, dim1}})
	return p
}

// AddOutput appends an output tensor. It returns the plan itself.
func (p *Plan) AddOutput(tensor TensorIR) *Plan {
	p.Outputs = append(p.Outputs, tensor)
	return p
}

// SwapForOriginal returns the first dimension-swapped pair whose original tensor is id.
func (p *Plan) SwapForOriginal(id TensorID) (SwapPair, bool) {
	for _, swap := range p.Swaps {
		if swap.Original.ID == id {
			return swap, true
		}
	}
	return SwapPair{}, false
}

// NumTensors returns the number of tensor descriptors in the plan (counting each pair as two).
func (p *Plan) NumTensors() int {
	return len(p.Inputs) + 2*len(p.Reshapes) + 2*len(p.Swaps) + len(p.Outputs)
}

// Validate checks the plan is structurally sound: it doesn't check whether tensors can be vectorized,
// only that all indices the resolver will use are in range.
func (p *Plan) Validate() error {
	inputIDs := sets.Make[TensorID](len(p.Inputs))
	for ii, input := range p.Inputs {
		if err := validateTensor(input.Tensor); err != nil {
			return errors.WithMessagef(err, "input #%d", ii)
		}
		if inputIDs.Has(input.Tensor.ID) {
			return errors.Errorf("input #%d: tensor %s is bound more than once", ii, input.Tensor.ID)
		}
		inputIDs.Insert(input.Tensor.ID)
		if input.Handle.Rank() != input.Tensor.Rank() {
			return errors.Errorf("input #%d: handle has %d strides, but tensor %s has rank %d",
				ii, input.Handle.Rank(), input.Tensor, input.Tensor.Rank())
		}
		if len(input.Handle.Dimensions) != 0 && len(input.Handle.Dimensions) != input.Handle.Rank() {
			return errors.Errorf("input #%d: handle has %d strides but %d dimensions",
				ii, input.Handle.Rank(), len(input.Handle.Dimensions))
		}
		if swap, found := p.SwapForOriginal(input.Tensor.ID); found && swap.Swapped.Rank() != input.Handle.Rank() {
			return errors.Errorf("input #%d: handle has %d strides, but it is read transposed as %s",
				ii, input.Handle.Rank(), swap.Swapped)
		}
	}
	for ii, reshape := range p.Reshapes {
		if err := validateTensor(reshape.Reshaped); err != nil {
			return errors.WithMessagef(err, "reshape #%d (reshaped)", ii)
		}
		if err := validateTensor(reshape.Original); err != nil {
			return errors.WithMessagef(err, "reshape #%d (original)", ii)
		}
	}
	for ii, swap := range p.Swaps {
		if err := validateTensor(swap.Swapped); err != nil {
			return errors.WithMessagef(err, "swap #%d (swapped)", ii)
		}
		if err := validateTensor(swap.Original); err != nil {
			return errors.WithMessagef(err, "swap #%d (original)", ii)
		}
		if swap.Swapped.Rank() != swap.Original.Rank() {
			return errors.Errorf("swap #%d: swapped tensor %s and original %s have different ranks",
				ii, swap.Swapped, swap.Original)
		}
		for _, dim := range swap.Dims {
			if dim < 0 || dim >= swap.Swapped.Rank() {
				return errors.Errorf("swap #%d: swapped axis %d out-of-bounds for rank %d", ii, dim, swap.Swapped.Rank())
			}
		}
	}
	for ii, output := range p.Outputs {
		if err := validateTensor(output); err != nil {
			return errors.WithMessagef(err, "output #%d", ii)
		}
	}
	return nil
}

func validateTensor(t TensorIR) error {
	if !t.Shape.Ok() {
		return errors.Errorf("tensor %s has an invalid dtype", t.ID)
	}
	if t.Rank() == 0 {
		return errors.Errorf("tensor %s is a scalar, there is no axis to vectorize", t.ID)
	}
	for _, dim := range t.Shape.Dimensions {
		if dim < 0 {
			return errors.Errorf("tensor %s has negative dimension in shape %s", t.ID, t.Shape)
		}
	}
	return nil
}

// ParsePlan reads a JSON encoded plan.
//
// Inputs without strides in their handle are assumed to be densely packed in row-major order.
func ParsePlan(r io.Reader) (*Plan, error) {
	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields()
	plan := &Plan{}
	if err := decoder.Decode(plan); err != nil {
		return nil, errors.Wrapf(err, "failed to decode fusion plan")
	}
	for ii := range plan.Inputs {
		input := &plan.Inputs[ii]
		if len(input.Handle.Strides) == 0 {
			dims := input.Handle.Dimensions
			if len(dims) == 0 {
				dims = input.Tensor.Shape.Dimensions
			}
			input.Handle.Strides = ContiguousHandle(dims...).Strides
		}
	}
	return plan, nil
}

// ParsePlanString is a convenience wrapper around ParsePlan.
func ParsePlanString(text string) (*Plan, error) {
	return ParsePlan(strings.NewReader(text))
}

// LoadPlan reads a JSON encoded plan from the given file. A leading "~" in path is expanded.
func LoadPlan(path string) (*Plan, error) {
	f, err := fsutil.OpenFile(path)
	if err != nil {
		return nil, errors.WithMessagef(err, "fusion plan file")
	}
	defer func() { _ = f.Close() }()
	plan, err := ParsePlan(f)
	if err != nil {
		return nil, errors.WithMessagef(err, "in file %q", path)
	}
	return plan, nil
}
