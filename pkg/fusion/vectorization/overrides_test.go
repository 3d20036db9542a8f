// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package vectorization

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gomlx/fusion/pkg/fusion/ir"
	"github.com/stretchr/testify/require"
)

func TestLineSizeOverrides_Lookup(t *testing.T) {
	const tensorA, tensorB ir.TensorID = 1, 2

	// Nil and empty overrides fall back to the runtime line sizes.
	var nilOverrides *LineSizeOverrides
	_, found := nilOverrides.Lookup(tensorA)
	require.False(t, found)
	require.True(t, nilOverrides.IsEmpty())
	_, found = NewOverrides().Lookup(tensorA)
	require.False(t, found)

	o := NewOverrides().Set(tensorA, 2)
	lineSizes, found := o.Lookup(tensorA)
	require.True(t, found)
	require.Equal(t, []int{2}, lineSizes)
	_, found = o.Lookup(tensorB)
	require.False(t, found)

	o.SetDefault(4)
	lineSizes, found = o.Lookup(tensorA)
	require.True(t, found)
	require.Equal(t, []int{2}, lineSizes)
	lineSizes, found = o.Lookup(tensorB)
	require.True(t, found)
	require.Equal(t, []int{4}, lineSizes)

	// Set replaces the previous entry.
	o.Set(tensorA, 8, 1)
	lineSizes, _ = o.Lookup(tensorA)
	require.Equal(t, []int{8, 1}, lineSizes)

	// Default only.
	lineSizes, found = NewOverrides().SetDefault(2, 1).Lookup(tensorB)
	require.True(t, found)
	require.Equal(t, []int{2, 1}, lineSizes)

	require.Panics(t, func() { NewOverrides().Set(tensorA, 4, 0) })
	require.Panics(t, func() { NewOverrides().SetDefault(-2) })
	require.Equal(t, "LineSizeOverrides{T1:[8 1], default:[4]}", o.String())
}

func TestLineSizeOverrides_Remap(t *testing.T) {
	o := NewOverrides().Set(10, 2).Set(11, 4, 2).SetDefault(1)
	ctx := ir.MapContext{10: 100, 11: 101, 12: 102}
	remapped := o.Remap(ctx)

	lineSizes, found := remapped.Lookup(100)
	require.True(t, found)
	require.Equal(t, []int{2}, lineSizes)
	lineSizes, _ = remapped.Lookup(101)
	require.Equal(t, []int{4, 2}, lineSizes)

	// Local ids are gone, so they get the default.
	lineSizes, _ = remapped.Lookup(10)
	require.Equal(t, []int{1}, lineSizes)

	// The original is untouched.
	lineSizes, _ = o.Lookup(10)
	require.Equal(t, []int{2}, lineSizes)

	// Only defaults: nothing to translate.
	defaultsOnly := NewOverrides().SetDefault(4).Remap(ir.MapContext{})
	lineSizes, found = defaultsOnly.Lookup(7)
	require.True(t, found)
	require.Equal(t, []int{4}, lineSizes)

	// Unknown tensor in the context must fail loudly.
	require.Panics(t, func() { o.Remap(ir.MapContext{10: 100}) })
	require.Nil(t, (*LineSizeOverrides)(nil).Remap(ctx))
}

func TestLineSizeOverrides_JSON(t *testing.T) {
	o := NewOverrides().Set(3, 4, 2).SetDefault(2, 1)
	blob, err := json.Marshal(o)
	require.NoError(t, err)
	require.JSONEq(t, `{"tensors": {"3": [4, 2]}, "default": [2, 1]}`, string(blob))

	decoded, err := ParseOverrides(strings.NewReader(string(blob)))
	require.NoError(t, err)
	require.Equal(t, o.String(), decoded.String())

	_, err = ParseOverrides(strings.NewReader(`{"tensors": {"3": [4, 0]}}`))
	require.ErrorContains(t, err, "T3")
	_, err = ParseOverrides(strings.NewReader(`{"default": [-1]}`))
	require.Error(t, err)
	_, err = ParseOverrides(strings.NewReader(`{"tensors": [1]}`))
	require.Error(t, err)

	// Empty default is kept: it disables packing for tensors without an entry.
	decoded, err = ParseOverrides(strings.NewReader(`{"default": []}`))
	require.NoError(t, err)
	lineSizes, found := decoded.Lookup(1)
	require.True(t, found)
	require.Empty(t, lineSizes)

	path := filepath.Join(t.TempDir(), "overrides.json")
	require.NoError(t, os.WriteFile(path, blob, 0o644))
	loaded, err := LoadOverrides(path)
	require.NoError(t, err)
	require.Equal(t, o.String(), loaded.String())
	_, err = LoadOverrides(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}
