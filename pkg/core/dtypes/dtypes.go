// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package dtypes includes the DType enum for the element types of tensors in a fusion group.
//
// The line-size resolver only needs to know the names of the dtypes and how many bytes each
// element takes, since the natively supported line sizes of a runtime are given in bytes per
// vector register.
package dtypes

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/x448/float16"
)

func init() {
	// Add a mapping to the lower-case version of dtypes.
	keys := slices.Collect(maps.Keys(MapOfNames))
	for _, key := range keys {
		lowerKey := strings.ToLower(key)
		if lowerKey == key {
			continue
		}
		if _, found := MapOfNames[lowerKey]; found {
			continue
		}
		MapOfNames[lowerKey] = MapOfNames[key]
	}
}

// String implements fmt.Stringer.
func (dtype DType) String() string {
	if name, found := canonicalNames[dtype]; found {
		return name
	}
	return fmt.Sprintf("DType(%d)", int32(dtype))
}

// FromName returns the DType for the given name, case-insensitive. Aliases like "f32" or "bf16" are accepted.
func FromName(name string) (DType, error) {
	if dtype, found := MapOfNames[name]; found && dtype != InvalidDType {
		return dtype, nil
	}
	if dtype, found := MapOfNames[strings.ToLower(name)]; found && dtype != InvalidDType {
		return dtype, nil
	}
	return InvalidDType, errors.Errorf("unknown dtype %q", name)
}

// MarshalText implements encoding.TextMarshaler, so dtypes are serialized by name.
func (dtype DType) MarshalText() ([]byte, error) {
	if _, found := canonicalNames[dtype]; !found {
		return nil, errors.Errorf("cannot marshal unknown dtype %d", int32(dtype))
	}
	return []byte(dtype.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. It accepts names, aliases or the numeric enum value.
func (dtype *DType) UnmarshalText(text []byte) error {
	name := string(text)
	if v, err := strconv.Atoi(name); err == nil {
		if _, found := canonicalNames[DType(v)]; !found {
			return errors.Errorf("unknown dtype value %d", v)
		}
		*dtype = DType(v)
		return nil
	}
	parsed, err := FromName(name)
	if err != nil {
		return err
	}
	*dtype = parsed
	return nil
}

// FromGenericsType returns the DType enum for the given type that this package knows about.
func FromGenericsType[T Supported]() DType {
	var t T
	switch (any(t)).(type) {
	case float64:
		return Float64
	case float32:
		return Float32
	case float16.Float16:
		return Float16
	case int:
		if strconv.IntSize == 32 {
			return Int32
		}
		return Int64
	case int64:
		return Int64
	case int32:
		return Int32
	case int16:
		return Int16
	case int8:
		return Int8
	case bool:
		return Bool
	case uint8:
		return Uint8
	case uint16:
		return Uint16
	case uint32:
		return Uint32
	case uint64:
		return Uint64
	}
	return InvalidDType
}

// Bits returns the number of bits of one element of the given DType, or 0 for InvalidDType.
func (dtype DType) Bits() int {
	switch dtype {
	case Bool, Int8, Uint8, F8E5M2, F8E4M3FN:
		return 8
	case Int16, Uint16, Float16, BFloat16:
		return 16
	case Int32, Uint32, Float32:
		return 32
	case Int64, Uint64, Float64:
		return 64
	default:
		return 0
	}
}

// Size returns the number of bytes for the given DType, or 0 for InvalidDType.
func (dtype DType) Size() int {
	return dtype.Bits() / 8
}

// IsValid returns whether dtype is one of the known element types.
func (dtype DType) IsValid() bool {
	return dtype.Bits() > 0
}

// IsFloat returns whether dtype is a floating point type, including the 8-bit formats.
func (dtype DType) IsFloat() bool {
	switch dtype {
	case Float16, BFloat16, Float32, Float64, F8E5M2, F8E4M3FN:
		return true
	}
	return false
}

// IsInt returns whether dtype is a signed or unsigned integer type.
func (dtype DType) IsInt() bool {
	return dtype == Int64 || dtype == Int32 || dtype == Int16 || dtype == Int8 ||
		dtype == Uint8 || dtype == Uint16 || dtype == Uint32 || dtype == Uint64
}

// Supported lists the Go types that can be converted to a DType with FromGenericsType.
type Supported interface {
	bool | float16.Float16 | float32 | float64 | int | int8 | int16 | int32 | int64 | uint8 | uint16 | uint32 | uint64
}
