// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package backends

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gomlx/fusion/pkg/core/dtypes"
	"github.com/pkg/errors"
)

// VectorRuntime is a Runtime whose packed accesses are limited by the width in bytes of its vector
// registers (or load instructions), and optionally by a maximum number of lanes.
type VectorRuntime struct {
	name, description string

	// VectorBytes is the widest packed access in bytes.
	VectorBytes int

	// MaxLanes is the maximum number of elements per packed access, or 0 for no limit besides VectorBytes.
	MaxLanes int
}

var _ Runtime = (*VectorRuntime)(nil)

// NewVectorRuntime creates a VectorRuntime with the given limits.
func NewVectorRuntime(name, description string, vectorBytes, maxLanes int) *VectorRuntime {
	return &VectorRuntime{name: name, description: description, VectorBytes: vectorBytes, MaxLanes: maxLanes}
}

// Name implements Runtime.
func (r *VectorRuntime) Name() string { return r.name }

// Description implements Runtime.
func (r *VectorRuntime) Description() string {
	if r.MaxLanes > 0 {
		return fmt.Sprintf("%s (%d-byte vectors, at most %d lanes)", r.description, r.VectorBytes, r.MaxLanes)
	}
	return fmt.Sprintf("%s (%d-byte vectors)", r.description, r.VectorBytes)
}

// LineSizes implements Runtime. It returns the powers of 2 that fit a vector of the runtime, largest first.
//
// Element types without a byte size (InvalidDType) only support line size 1.
func (r *VectorRuntime) LineSizes(dtype dtypes.DType) []int {
	elementSize := dtype.Size()
	if elementSize <= 0 {
		return []int{1}
	}
	lanes := r.VectorBytes / elementSize
	if r.MaxLanes > 0 && lanes > r.MaxLanes {
		lanes = r.MaxLanes
	}
	largest := 1
	for largest*2 <= lanes {
		largest *= 2
	}
	lineSizes := make([]int, 0, 8)
	for lineSize := largest; lineSize >= 1; lineSize /= 2 {
		lineSizes = append(lineSizes, lineSize)
	}
	return lineSizes
}

// vectorConstructor returns a Constructor for a VectorRuntime with the given defaults, that can be
// changed with the configuration keys "max_bytes" and "max_lanes". Example: "max_bytes=32,max_lanes=8".
func vectorConstructor(name, description string, vectorBytes, maxLanes int) Constructor {
	return func(config string) (Runtime, error) {
		r := NewVectorRuntime(name, description, vectorBytes, maxLanes)
		if err := r.parseConfig(config); err != nil {
			return nil, err
		}
		return r, nil
	}
}

func (r *VectorRuntime) parseConfig(config string) error {
	for _, part := range strings.Split(config, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, valueStr, found := strings.Cut(part, "=")
		if !found {
			return errors.Errorf("invalid %s runtime configuration %q, expected \"key=value\"", r.name, part)
		}
		value, err := strconv.Atoi(valueStr)
		if err != nil {
			return errors.Wrapf(err, "invalid value for %s runtime configuration key %q", r.name, key)
		}
		switch key {
		case "max_bytes":
			if value < 1 {
				return errors.Errorf("%s runtime: max_bytes must be >= 1, got %d", r.name, value)
			}
			r.VectorBytes = value
		case "max_lanes":
			if value < 0 {
				return errors.Errorf("%s runtime: max_lanes must be >= 0, got %d", r.name, value)
			}
			r.MaxLanes = value
		default:
			return errors.Errorf("unknown %s runtime configuration key %q", r.name, key)
		}
	}
	return nil
}

func init() {
	Register("cuda", vectorConstructor("cuda", "CUDA GPU, 128-bit global loads", 16, 0))
	Register("wgpu", vectorConstructor("wgpu", "WebGPU, vec4 accesses", 16, 4))
	Register("cpu", vectorConstructor("cpu", "CPU, AVX2 registers", 32, 0))
}
