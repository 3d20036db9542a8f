// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExpandHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	for path, want := range map[string]string{
		"~":              home,
		"~/plans/a.json": filepath.Join(home, "plans", "a.json"),
		"/tmp/a.json":    "/tmp/a.json",
		"plans/~a.json":  "plans/~a.json",
		"":               "",
	} {
		got, err := ExpandHome(path)
		require.NoError(t, err, path)
		require.Equal(t, want, got, path)
	}
	_, err := ExpandHome("~no_such_user_for_fsutil_tests/a.json")
	require.Error(t, err)
}

func TestOpenFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	require.NoError(t, os.WriteFile(filepath.Join(home, "plan.json"), []byte("{}"), 0o644))

	exists, err := FileExists(filepath.Join(home, "plan.json"))
	require.NoError(t, err)
	require.True(t, exists)
	exists, err = FileExists(filepath.Join(home, "missing.json"))
	require.NoError(t, err)
	require.False(t, exists)

	f, err := OpenFile("~/plan.json")
	require.NoError(t, err)
	require.NoError(t, f.Close())
	_, err = OpenFile("~/missing.json")
	require.Error(t, err)
}
