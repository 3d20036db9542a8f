// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package xslices provide missing functionality to the slices package.
package xslices

import (
	"cmp"
	"flag"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/exp/constraints"
)

// Map executes the given function sequentially for every element on in, and returns a mapped slice.
func Map[In, Out any](in []In, fn func(e In) Out) (out []Out) {
	out = make([]Out, len(in))
	for ii, e := range in {
		out[ii] = fn(e)
	}
	return
}

// SortedKeys returns the sorted keys of a map in the form of a slice.
func SortedKeys[K cmp.Ordered, V any](m map[K]V) []K {
	return slices.Sorted(maps.Keys(m))
}

// Max scans the slice and returns the maximum value, or the zero value for an empty slice.
func Max[T cmp.Ordered](slice []T) (max T) {
	if len(slice) == 0 {
		return
	}
	return slices.Max(slice)
}

// ParseInt parses one integer of type T, checking it fits the type.
func ParseInt[T constraints.Integer](valueStr string) (T, error) {
	var zero T
	value, err := strconv.ParseInt(strings.TrimSpace(valueStr), 10, 64)
	if err != nil {
		return zero, errors.Wrapf(err, "failed to parse %q as an integer", valueStr)
	}
	converted := T(value)
	if int64(converted) != value {
		return zero, errors.Errorf("value %d out of range for %T", value, zero)
	}
	return converted, nil
}

// ParseList parses a comma-separated list of values using parserFn for each element.
// An empty string returns an empty (non-nil) slice.
func ParseList[T any](listStr string, parserFn func(valueStr string) (T, error)) ([]T, error) {
	if strings.TrimSpace(listStr) == "" {
		return make([]T, 0), nil
	}
	parts := strings.Split(listStr, ",")
	parsed := make([]T, len(parts))
	for ii, part := range parts {
		var err error
		parsed[ii], err = parserFn(part)
		if err != nil {
			return nil, err
		}
	}
	return parsed, nil
}

// Flag creates a flag for []T with the given name, description and default value.
// It takes as input a parser for an individual T value.
func Flag[T any](name string, defaultValue []T, usage string,
	parserFn func(valueStr string) (T, error)) *[]T {
	return FlagSet(flag.CommandLine, name, defaultValue, usage, parserFn)
}

// FlagSet is like Flag, but defines the flag in the given flag.FlagSet.
func FlagSet[T any](fs *flag.FlagSet, name string, defaultValue []T, usage string,
	parserFn func(valueStr string) (T, error)) *[]T {
	f := &genericSliceFlagImpl[T]{
		parsedSlice: defaultValue,
		parserFn:    parserFn,
	}
	fs.Var(f, name, usage)
	return &f.parsedSlice
}

// genericSliceFlagImpl implements flag.Value for a generic type.
type genericSliceFlagImpl[T any] struct {
	parsedSlice []T
	parserFn    func(valueStr string) (T, error)
}

func (f *genericSliceFlagImpl[T]) String() string {
	if f == nil || len(f.parsedSlice) == 0 {
		return ""
	}
	return strings.Join(Map(f.parsedSlice, func(e T) string { return fmt.Sprintf("%v", e) }), ",")
}

func (f *genericSliceFlagImpl[T]) Set(listStr string) error {
	parsed, err := ParseList(listStr, f.parserFn)
	if err != nil {
		return err
	}
	f.parsedSlice = parsed
	return nil
}
