// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package vectorization

import (
	"fmt"
	"math"
	"slices"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/fusion/backends"
	"github.com/gomlx/fusion/pkg/core/dtypes"
	"github.com/gomlx/fusion/pkg/fusion/ir"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// LastAxis selects the last axis of each tensor as the vectorization axis. It is the default.
const LastAxis = -1

// Config for a Resolver. Create it with Build, set the options and call Done.
type Config struct {
	runtime     backends.Runtime
	dtype       dtypes.DType
	maxLineSize int
	axis        int
	overrides   *LineSizeOverrides
	err         error
}

// Build a Resolver for the given runtime. Call the Config methods to set options, and finally Done.
//
// Defaults: DType Float32, the last axis of each tensor and no bound on the line size of outputs and aliases.
func Build(runtime backends.Runtime) *Config {
	return &Config{
		runtime:     runtime,
		dtype:       dtypes.Float32,
		maxLineSize: math.MaxInt,
		axis:        LastAxis,
	}
}

func (c *Config) setError(err error) {
	if c.err != nil {
		return
	}
	c.err = err
}

// DType sets the smallest element type vectorized in the fusion group. The runtime's line sizes for it
// are the default candidates for every tensor.
func (c *Config) DType(dtype dtypes.DType) *Config {
	if !dtype.IsValid() {
		c.setError(errors.Errorf("vectorization.Config.DType(%s): invalid dtype", dtype))
	}
	c.dtype = dtype
	return c
}

// MaxLineSize bounds the line size of outputs, reshaped and swapped tensors. It is the smallest
// maximum line size among all tensors cooperating in the fusion group.
func (c *Config) MaxLineSize(maxLineSize int) *Config {
	if maxLineSize < 1 {
		c.setError(errors.Errorf("vectorization.Config.MaxLineSize(%d): it must be >= 1", maxLineSize))
	}
	c.maxLineSize = maxLineSize
	return c
}

// Axis sets the vectorization axis, shared by all tensors of the fusion group. Negative values count
// from the end, see LastAxis.
func (c *Config) Axis(axis int) *Config {
	c.axis = axis
	return c
}

// Overrides sets candidate line sizes to use instead of the runtime's ones. The overrides are copied.
func (c *Config) Overrides(overrides *LineSizeOverrides) *Config {
	c.overrides = overrides.Clone()
	return c
}

// Done creates the Resolver or returns the first configuration error.
func (c *Config) Done() (*Resolver, error) {
	if c.err != nil {
		return nil, c.err
	}
	if c.runtime == nil {
		return nil, errors.Errorf("vectorization.Build() requires a runtime, got nil")
	}
	lineSizes := c.runtime.LineSizes(c.dtype)
	if len(lineSizes) == 0 {
		return nil, errors.Errorf("runtime %q reports no line sizes for dtype %s", c.runtime.Name(), c.dtype)
	}
	r := &Resolver{
		runtime:     c.runtime,
		dtype:       c.dtype,
		maxLineSize: c.maxLineSize,
		axis:        c.axis,
		overrides:   c.overrides,
		lineSizes:   slices.Clone(lineSizes),
	}
	klog.V(1).Infof("vectorization: created %s", r)
	return r, nil
}

// MustDone is like Done, but panics on error.
func (c *Config) MustDone() *Resolver {
	r, err := c.Done()
	if err != nil {
		panic(err)
	}
	return r
}

// Resolver computes the Mapping of line sizes for fusion groups.
//
// It is immutable, and can be used concurrently to resolve independent fusion groups.
type Resolver struct {
	runtime     backends.Runtime
	dtype       dtypes.DType
	maxLineSize int
	axis        int
	overrides   *LineSizeOverrides

	// lineSizes natively supported by the runtime for dtype.
	lineSizes []int
}

// String implements fmt.Stringer.
func (r *Resolver) String() string {
	maxStr := "unbounded"
	if r.maxLineSize != math.MaxInt {
		maxStr = fmt.Sprintf("%d", r.maxLineSize)
	}
	return fmt.Sprintf("Resolver{runtime=%s, dtype=%s, line sizes=%v, max=%s, axis=%d, overrides=%s}",
		r.runtime.Name(), r.dtype, r.lineSizes, maxStr, r.axis, r.overrides)
}

// LineSizes returns the runtime's line sizes used as default candidates.
func (r *Resolver) LineSizes() []int { return slices.Clone(r.lineSizes) }

// DType returns the reference element type of the resolver.
func (r *Resolver) DType() dtypes.DType { return r.dtype }

// Runtime returns the runtime the resolver was built for.
func (r *Resolver) Runtime() backends.Runtime { return r.runtime }

// WithOverrides returns a copy of the resolver using the given overrides instead.
func (r *Resolver) WithOverrides(overrides *LineSizeOverrides) *Resolver {
	r2 := *r
	r2.overrides = overrides.Clone()
	return &r2
}

// candidates returns the ordered line sizes to try for the tensor id.
func (r *Resolver) candidates(id ir.TensorID) []int {
	if lineSizes, found := r.overrides.Lookup(id); found {
		return lineSizes
	}
	return r.lineSizes
}

// Resolve returns the line size of every tensor of the fusion group described by plan.
//
// It only fails if the plan is malformed (see ir.Plan.Validate): tensors that cannot be packed get Aligned(1).
func (r *Resolver) Resolve(plan *ir.Plan) (*Mapping, error) {
	if err := plan.Validate(); err != nil {
		return nil, errors.WithMessagef(err, "invalid fusion plan")
	}
	return r.resolve(plan), nil
}

// MustResolve is like Resolve, but panics on error.
func (r *Resolver) MustResolve(plan *ir.Plan) *Mapping {
	mapping, err := r.Resolve(plan)
	if err != nil {
		panic(err)
	}
	return mapping
}

// ResolveInContext first translates the tensor ids of the overrides to the global ids of the execution
// context ctx, and then resolves the plan.
//
// It returns an error if an overridden tensor is unknown to ctx.
func (r *Resolver) ResolveInContext(plan *ir.Plan, ctx ir.Context) (*Mapping, error) {
	var remapped *Resolver
	err := exceptions.TryCatch[error](func() {
		remapped = &Resolver{}
		*remapped = *r
		remapped.overrides = r.overrides.Remap(ctx)
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to remap line-size overrides")
	}
	return remapped.Resolve(plan)
}

// resolve implements Resolve for a validated plan.
//
// The order matters: inputs first (inserted directly, or merged into the original of a swapped pair),
// then reshape-aliased tensors merged into their original, and finally outputs, which never alias inputs.
func (r *Resolver) resolve(plan *ir.Plan) *Mapping {
	mapping := NewMapping()
	for _, input := range plan.Inputs {
		id := input.Tensor.ID
		if swap, found := plan.SwapForOriginal(id); found {
			v := resolveSwapped(input.Handle, swap.Swapped, swap.Original, swap.MultiReads, swap.Dims,
				r.axis, r.maxLineSize, r.candidates(id))
			merged := mapping.Merge(swap.Original.ID, v)
			if klog.V(2).Enabled() {
				klog.Infof("vectorization: input %s read swapped as %s (dims=%v, multi_reads=%v): %s -> %s",
					input.Tensor, swap.Swapped, swap.Dims, swap.MultiReads, v, merged)
			}
			continue
		}
		v := resolveInput(input.Handle, input.Tensor, r.axis, r.candidates(id))
		mapping.Insert(id, v)
		if klog.V(2).Enabled() {
			klog.Infof("vectorization: input %s (strides=%v): %s", input.Tensor, input.Handle.Strides, v)
		}
	}

	for _, reshape := range plan.Reshapes {
		v := resolveReshape(reshape.Reshaped, reshape.Original, reshape.MultiReads,
			r.axis, r.maxLineSize, r.candidates(reshape.Original.ID))
		merged := mapping.Merge(reshape.Original.ID, v)
		if klog.V(2).Enabled() {
			klog.Infof("vectorization: %s reshaped as %s (multi_reads=%v): %s -> %s",
				reshape.Original, reshape.Reshaped, reshape.MultiReads, v, merged)
		}
	}

	for _, output := range plan.Outputs {
		v := resolveOutput(output, r.axis, r.maxLineSize, r.candidates(output.ID))
		mapping.Insert(output.ID, v)
		if klog.V(2).Enabled() {
			klog.Infof("vectorization: output %s: %s", output, v)
		}
	}
	klog.V(1).Infof("vectorization: resolved %d tensors: %s", mapping.Len(), mapping)
	return mapping
}
