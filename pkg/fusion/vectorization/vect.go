// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package vectorization

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
)

// Vect is the line-size decision for one tensor: either Broadcasted or Aligned with a width.
//
// The zero value is Broadcasted.
type Vect struct {
	// width is 0 for Broadcasted.
	width int
}

// Broadcasted returns the decision for a tensor whose vectorization axis has extent 1 and is replicated:
// its effective line size is 1.
func Broadcasted() Vect { return Vect{} }

// Aligned returns the decision for a tensor accessed with lines of width consecutive elements.
// It panics if width < 1.
func Aligned(width int) Vect {
	if width < 1 {
		exceptions.Panicf("vectorization.Aligned(%d): line size must be >= 1", width)
	}
	return Vect{width: width}
}

// LineSize returns the number of elements accessed together. It is 1 for Broadcasted.
func (v Vect) LineSize() int {
	if v.width == 0 {
		return 1
	}
	return v.width
}

// IsBroadcast returns whether the decision is Broadcasted.
func (v Vect) IsBroadcast() bool { return v.width == 0 }

// LimitToOne keeps Broadcasted as is, and downgrades any Aligned decision to Aligned(1).
func (v Vect) LimitToOne() Vect {
	if v.IsBroadcast() {
		return v
	}
	return Aligned(1)
}

// String implements fmt.Stringer: "broadcast" or "aligned(<width>)".
func (v Vect) String() string {
	if v.IsBroadcast() {
		return "broadcast"
	}
	return fmt.Sprintf("aligned(%d)", v.width)
}

// MarshalText implements encoding.TextMarshaler.
func (v Vect) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler, the inverse of String.
func (v *Vect) UnmarshalText(text []byte) error {
	str := strings.TrimSpace(string(text))
	if str == "broadcast" {
		*v = Broadcasted()
		return nil
	}
	inner, found := strings.CutPrefix(str, "aligned(")
	if !found || !strings.HasSuffix(inner, ")") {
		return errors.Errorf("invalid line-size decision %q, expected \"broadcast\" or \"aligned(<width>)\"", str)
	}
	width, err := strconv.Atoi(strings.TrimSuffix(inner, ")"))
	if err != nil {
		return errors.Wrapf(err, "invalid width in line-size decision %q", str)
	}
	if width < 1 {
		return errors.Errorf("invalid width %d in line-size decision %q", width, str)
	}
	*v = Aligned(width)
	return nil
}
