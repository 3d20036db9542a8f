// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package fsutil contains utilities for locating fusion plan and override files.
package fsutil

import (
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// FileExists returns whether the file exists, or an error if something went wrong in the filesystem.
func FileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, errors.Wrapf(err, "failed to stat %q", path)
}

// ExpandHome replaces a leading "~" or "~user" in path by the corresponding home directory.
// Other paths are returned unchanged.
func ExpandHome(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}
	userName, rest, _ := strings.Cut(path[1:], "/")
	var homeDir string
	if userName == "" {
		var err error
		homeDir, err = os.UserHomeDir()
		if err != nil {
			return "", errors.Wrapf(err, "failed to find home directory for path %q", path)
		}
	} else {
		usr, err := user.Lookup(userName)
		if err != nil {
			return "", errors.Wrapf(err, "failed to lookup home directory of user %q for path %q", userName, path)
		}
		homeDir = usr.HomeDir
	}
	return filepath.Join(homeDir, rest), nil
}

// OpenFile opens the file for reading after expanding "~" in path. See ExpandHome.
func OpenFile(path string) (*os.File, error) {
	expanded, err := ExpandHome(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(expanded)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %q", expanded)
	}
	return f, nil
}
