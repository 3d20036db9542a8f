// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package vectorization

import "github.com/gomlx/fusion/pkg/core/shapes"

// firstLineSize scans the candidates in order and returns Aligned with the first line size
// accepted. If none is accepted it returns Aligned(1), which is always safe.
func firstLineSize(candidates []int, accept func(lineSize int) bool) Vect {
	for _, lineSize := range candidates {
		if accept(lineSize) {
			return Aligned(lineSize)
		}
	}
	return Aligned(1)
}

// divides returns whether extent is a non-zero multiple of lineSize.
//
// Zero-sized axes are never packed.
func divides(lineSize, extent int) bool {
	return lineSize >= 1 && extent > 0 && extent%lineSize == 0
}

// adjustAxis resolves LastAxis (or any negative axis) against the rank. ok is false if the axis
// doesn't exist for the rank.
func adjustAxis(axis, rank int) (adjusted int, ok bool) {
	adjusted, err := shapes.AdjustAxis(axis, rank)
	return adjusted, err == nil
}
