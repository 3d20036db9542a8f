// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package dtypes

// DType is an enum for the element type of a tensor taking part in a fusion group.
//
// The numeric values follow the PJRT buffer type enum, so they stay compatible with
// dtypes serialized by other GoMLX tools.
type DType int32

const (
	// InvalidDType is the zero value, it is never a valid element type.
	InvalidDType DType = 0

	// Bool values are stored as one byte per element.
	Bool DType = 1

	Int8  DType = 2
	Int16 DType = 3
	Int32 DType = 4
	Int64 DType = 5

	Uint8  DType = 6
	Uint16 DType = 7
	Uint32 DType = 8
	Uint64 DType = 9

	Float16 DType = 10
	Float32 DType = 11
	Float64 DType = 12

	// BFloat16 is the "brain float" format: 1 sign bit, 8 exponent bits and 7 mantissa bits.
	BFloat16 DType = 13

	// Truncated 8 bit floating-point formats, commonly used in quantized fusion groups.
	F8E5M2   DType = 16
	F8E4M3FN DType = 17
)

// Short aliases.
const (
	PRED = Bool
	S8   = Int8
	S16  = Int16
	S32  = Int32
	S64  = Int64
	U8   = Uint8
	U16  = Uint16
	U32  = Uint32
	U64  = Uint64
	F16  = Float16
	F32  = Float32
	F64  = Float64
	BF16 = BFloat16
)

// MapOfNames to their dtypes. It includes also aliases to the various dtypes.
// It is also later initialized to include the lower-case version of the names.
var MapOfNames = map[string]DType{
	"InvalidDType": InvalidDType,
	"Bool":         Bool,
	"PRED":         Bool,
	"Int8":         Int8,
	"S8":           Int8,
	"Int16":        Int16,
	"S16":          Int16,
	"Int32":        Int32,
	"S32":          Int32,
	"Int64":        Int64,
	"S64":          Int64,
	"Uint8":        Uint8,
	"U8":           Uint8,
	"Uint16":       Uint16,
	"U16":          Uint16,
	"Uint32":       Uint32,
	"U32":          Uint32,
	"Uint64":       Uint64,
	"U64":          Uint64,
	"Float16":      Float16,
	"F16":          Float16,
	"Float32":      Float32,
	"F32":          Float32,
	"Float64":      Float64,
	"F64":          Float64,
	"BFloat16":     BFloat16,
	"BF16":         BFloat16,
	"F8E5M2":       F8E5M2,
	"F8E4M3FN":     F8E4M3FN,
}

// canonicalNames is used by DType.String.
var canonicalNames = map[DType]string{
	InvalidDType: "InvalidDType",
	Bool:         "Bool",
	Int8:         "Int8",
	Int16:        "Int16",
	Int32:        "Int32",
	Int64:        "Int64",
	Uint8:        "Uint8",
	Uint16:       "Uint16",
	Uint32:       "Uint32",
	Uint64:       "Uint64",
	Float16:      "Float16",
	Float32:      "Float32",
	Float64:      "Float64",
	BFloat16:     "BFloat16",
	F8E5M2:       "F8E5M2",
	F8E4M3FN:     "F8E4M3FN",
}
