// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package vectorization

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/fusion/pkg/fusion/ir"
	"github.com/gomlx/fusion/pkg/support/fsutil"
	"github.com/gomlx/fusion/pkg/support/xslices"
	"github.com/pkg/errors"
)

// LineSizeOverrides replaces the runtime's natively supported line sizes by caller chosen candidates,
// per tensor and/or for all tensors without a specific entry.
//
// Candidates are tried in order, and the first one satisfying the constraints of the tensor wins.
//
// A nil *LineSizeOverrides is valid and holds no overrides.
type LineSizeOverrides struct {
	tensors  map[ir.TensorID][]int
	defaults []int
}

// NewOverrides returns an empty LineSizeOverrides.
func NewOverrides() *LineSizeOverrides {
	return &LineSizeOverrides{}
}

func checkLineSizes(lineSizes []int) error {
	for _, lineSize := range lineSizes {
		if lineSize < 1 {
			return errors.Errorf("line sizes must be >= 1, got %v", lineSizes)
		}
	}
	return nil
}

// Set the candidate line sizes for the tensor id, replacing any previous entry. It returns itself.
//
// It panics if a line size is < 1.
func (o *LineSizeOverrides) Set(id ir.TensorID, lineSizes ...int) *LineSizeOverrides {
	if err := checkLineSizes(lineSizes); err != nil {
		exceptions.Panicf("LineSizeOverrides.Set(%s): %v", id, err)
	}
	if o.tensors == nil {
		o.tensors = make(map[ir.TensorID][]int)
	}
	o.tensors[id] = slices.Clone(lineSizes)
	return o
}

// SetDefault sets the candidate line sizes used for tensors without a specific entry. It returns itself.
//
// It panics if a line size is < 1.
func (o *LineSizeOverrides) SetDefault(lineSizes ...int) *LineSizeOverrides {
	if err := checkLineSizes(lineSizes); err != nil {
		exceptions.Panicf("LineSizeOverrides.SetDefault(): %v", err)
	}
	o.defaults = slices.Clone(lineSizes)
	if o.defaults == nil {
		o.defaults = []int{}
	}
	return o
}

// Lookup returns the candidate line sizes for the tensor id: its own entry if set, otherwise the
// default if set. If neither is set it returns false, and the runtime's line sizes should be used.
//
// The returned slice is owned by LineSizeOverrides and must not be modified.
func (o *LineSizeOverrides) Lookup(id ir.TensorID) ([]int, bool) {
	if o == nil {
		return nil, false
	}
	if lineSizes, found := o.tensors[id]; found {
		return lineSizes, true
	}
	if o.defaults != nil {
		return o.defaults, true
	}
	return nil, false
}

// IsEmpty returns whether there are no overrides at all.
func (o *LineSizeOverrides) IsEmpty() bool {
	return o == nil || (len(o.tensors) == 0 && o.defaults == nil)
}

// Remap returns a new LineSizeOverrides with the tensor ids translated to the global ids of the given
// execution context. The default candidates are kept.
//
// It panics if an overridden tensor is not known to the context: it means the fusion group references a
// tensor that doesn't exist in the current execution, and resolving it would give an inconsistent result.
func (o *LineSizeOverrides) Remap(ctx ir.Context) *LineSizeOverrides {
	if o == nil {
		return nil
	}
	remapped := &LineSizeOverrides{defaults: slices.Clone(o.defaults)}
	if o.tensors == nil {
		return remapped
	}
	remapped.tensors = make(map[ir.TensorID][]int, len(o.tensors))
	for _, local := range xslices.SortedKeys(o.tensors) {
		global, found := ctx.GlobalID(local)
		if !found {
			exceptions.Panicf("LineSizeOverrides.Remap(): tensor %s has line-size overrides, but it is unknown "+
				"to the execution context", local)
		}
		remapped.tensors[global] = slices.Clone(o.tensors[local])
	}
	return remapped
}

// Clone returns a deep copy.
func (o *LineSizeOverrides) Clone() *LineSizeOverrides {
	if o == nil {
		return nil
	}
	c := &LineSizeOverrides{defaults: slices.Clone(o.defaults)}
	if o.tensors != nil {
		c.tensors = make(map[ir.TensorID][]int, len(o.tensors))
		for id, lineSizes := range o.tensors {
			c.tensors[id] = slices.Clone(lineSizes)
		}
	}
	return c
}

// String implements fmt.Stringer.
func (o *LineSizeOverrides) String() string {
	if o.IsEmpty() {
		return "LineSizeOverrides{}"
	}
	var parts []string
	for _, id := range xslices.SortedKeys(o.tensors) {
		parts = append(parts, fmt.Sprintf("%s:%v", id, o.tensors[id]))
	}
	if o.defaults != nil {
		parts = append(parts, fmt.Sprintf("default:%v", o.defaults))
	}
	return "LineSizeOverrides{" + strings.Join(parts, ", ") + "}"
}

type serializedOverrides struct {
	Tensors map[ir.TensorID][]int `json:"tensors,omitempty"`
	Default []int                 `json:"default"`
}

// MarshalJSON implements json.Marshaler.
func (o *LineSizeOverrides) MarshalJSON() ([]byte, error) {
	return json.Marshal(serializedOverrides{Tensors: o.tensors, Default: o.defaults})
}

// UnmarshalJSON implements json.Unmarshaler. It fails for line sizes < 1.
func (o *LineSizeOverrides) UnmarshalJSON(data []byte) error {
	var s serializedOverrides
	if err := json.Unmarshal(data, &s); err != nil {
		return errors.Wrapf(err, "failed to decode line-size overrides")
	}
	for id, lineSizes := range s.Tensors {
		if err := checkLineSizes(lineSizes); err != nil {
			return errors.WithMessagef(err, "line-size overrides for tensor %s", id)
		}
	}
	if err := checkLineSizes(s.Default); err != nil {
		return errors.WithMessagef(err, "default line-size overrides")
	}
	*o = LineSizeOverrides{tensors: s.Tensors, defaults: s.Default}
	return nil
}

// ParseOverrides reads JSON encoded LineSizeOverrides, formatted as
// `{"tensors": {"<tensor_id>": [4, 2]}, "default": [2, 1]}`.
func ParseOverrides(r io.Reader) (*LineSizeOverrides, error) {
	o := NewOverrides()
	if err := json.NewDecoder(r).Decode(o); err != nil {
		return nil, err
	}
	return o, nil
}

// LoadOverrides reads JSON encoded LineSizeOverrides from the given file. See ParseOverrides.
// A leading "~" in path is expanded.
func LoadOverrides(path string) (*LineSizeOverrides, error) {
	f, err := fsutil.OpenFile(path)
	if err != nil {
		return nil, errors.WithMessagef(err, "line-size overrides file")
	}
	defer func() { _ = f.Close() }()
	o, err := ParseOverrides(f)
	if err != nil {
		return nil, errors.WithMessagef(err, "in file %q", path)
	}
	return o, nil
}
