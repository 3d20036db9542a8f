// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package vectorization

import (
	"encoding/json"
	"fmt"
	"iter"
	"maps"
	"slices"
	"strings"

	"github.com/gomlx/fusion/pkg/fusion/ir"
	"github.com/pkg/errors"
)

// Mapping holds the line-size decision of every tensor of a fusion group.
//
// It keeps the insertion order of the tensor ids, so iterating over it is deterministic.
// It is not safe for concurrent modification.
type Mapping struct {
	index map[ir.TensorID]int
	ids   []ir.TensorID
	vects []Vect
}

// NewMapping returns an empty Mapping.
func NewMapping() *Mapping {
	return &Mapping{index: make(map[ir.TensorID]int)}
}

// Len returns the number of tensors in the mapping.
func (m *Mapping) Len() int { return len(m.ids) }

// Get returns the decision for the tensor id, if there is one.
func (m *Mapping) Get(id ir.TensorID) (Vect, bool) {
	idx, found := m.index[id]
	if !found {
		return Vect{}, false
	}
	return m.vects[idx], true
}

// LineSize returns the line size for the tensor id, or 1 if it is not in the mapping.
func (m *Mapping) LineSize(id ir.TensorID) int {
	v, found := m.Get(id)
	if !found {
		return 1
	}
	return v.LineSize()
}

// Insert sets the decision for the tensor id, overwriting any previous one.
func (m *Mapping) Insert(id ir.TensorID, v Vect) {
	if idx, found := m.index[id]; found {
		m.vects[idx] = v
		return
	}
	m.index[id] = len(m.ids)
	m.ids = append(m.ids, id)
	m.vects = append(m.vects, v)
}

// Merge records the proposal v for a tensor that may already have a decision, because it is read through
// several aliasing views. The recorded decision is safe for every view. It returns the recorded decision.
//
// See mergeVects for the precedence rules.
func (m *Mapping) Merge(id ir.TensorID, v Vect) Vect {
	existing, found := m.Get(id)
	if !found {
		m.Insert(id, v)
		return v
	}
	merged := mergeVects(existing, v)
	m.Insert(id, merged)
	return merged
}

// mergeVects combines an existing decision with a new proposal:
//
//   - An existing Broadcasted is kept.
//   - Aligned followed by a Broadcasted proposal becomes Aligned(1).
//   - Two Aligned with different widths become Aligned(1), equal widths are kept.
func mergeVects(existing, proposal Vect) Vect {
	if existing.IsBroadcast() {
		return existing
	}
	if proposal.IsBroadcast() || proposal.width != existing.width {
		return Aligned(1)
	}
	return existing
}

// All iterates over the tensor ids and their decisions in insertion order.
func (m *Mapping) All() iter.Seq2[ir.TensorID, Vect] {
	return func(yield func(ir.TensorID, Vect) bool) {
		for ii, id := range m.ids {
			if !yield(id, m.vects[ii]) {
				return
			}
		}
	}
}

// Sorted iterates over the tensor ids, in ascending order, and their decisions.
func (m *Mapping) Sorted() iter.Seq2[ir.TensorID, Vect] {
	ids := slices.Sorted(slices.Values(m.ids))
	return func(yield func(ir.TensorID, Vect) bool) {
		for _, id := range ids {
			if !yield(id, m.vects[m.index[id]]) {
				return
			}
		}
	}
}

// Clone returns a copy of the mapping.
func (m *Mapping) Clone() *Mapping {
	c := NewMapping()
	for id, v := range m.All() {
		c.Insert(id, v)
	}
	return c
}

// Map returns the decisions as a Go map.
func (m *Mapping) Map() map[ir.TensorID]Vect {
	result := make(map[ir.TensorID]Vect, len(m.ids))
	for id, v := range m.All() {
		result[id] = v
	}
	return result
}

// Equal returns whether both mappings hold the same decisions, regardless of insertion order.
func (m *Mapping) Equal(other *Mapping) bool {
	if m.Len() != other.Len() {
		return false
	}
	for id, v := range m.All() {
		otherV, found := other.Get(id)
		if !found || otherV != v {
			return false
		}
	}
	return true
}

// String implements fmt.Stringer, listing the decisions sorted by tensor id.
func (m *Mapping) String() string {
	parts := make([]string, 0, m.Len())
	for id, v := range m.Sorted() {
		parts = append(parts, fmt.Sprintf("%s:%s", id, v))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// MarshalJSON implements json.Marshaler, as an object of tensor id to decision.
func (m *Mapping) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Map())
}

// UnmarshalJSON implements json.Unmarshaler. The insertion order becomes the ascending order of the ids.
func (m *Mapping) UnmarshalJSON(data []byte) error {
	var decoded map[ir.TensorID]Vect
	if err := json.Unmarshal(data, &decoded); err != nil {
		return errors.Wrapf(err, "failed to decode line-size mapping")
	}
	*m = *NewMapping()
	for _, id := range slices.Sorted(maps.Keys(decoded)) {
		m.Insert(id, decoded[id])
	}
	return nil
}
