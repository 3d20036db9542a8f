// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package backends defines the Runtime interface: what the line-size resolver needs to know about
// the device a fused kernel will run on.
//
// The only fact needed is, for each element type, the list of line sizes (number of elements loaded
// or stored as one packed access) natively supported by the device, ordered from the largest to the
// smallest.
//
// Runtimes are registered by name and selected with a configuration string, see NewWithConfig.
package backends

import (
	"os"
	"slices"
	"strings"

	"github.com/gomlx/fusion/pkg/core/dtypes"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Runtime is the API a target device needs to implement to be used by the line-size resolver.
type Runtime interface {
	// Name returns the short name of the runtime. E.g.: "cuda".
	Name() string

	// Description is a longer description of the Runtime that can be used to pretty-print.
	Description() string

	// LineSizes returns the natively supported line sizes for the given element type, from the largest
	// to the smallest. It always ends with 1.
	LineSizes(dtype dtypes.DType) []int
}

// Constructor takes a config string (optionally empty) and returns a Runtime.
type Constructor func(config string) (Runtime, error)

var (
	registeredConstructors = make(map[string]Constructor)
	firstRegistered        string
)

// Register runtime with the given name, and a constructor that takes as input a configuration string that is
// passed along to the runtime constructor.
//
// To be safe, call Register during initialization of a package.
func Register(name string, constructor Constructor) {
	if len(registeredConstructors) == 0 {
		firstRegistered = name
	}
	registeredConstructors[name] = constructor
}

// List the names of the registered runtimes, sorted.
func List() []string {
	names := make([]string, 0, len(registeredConstructors))
	for name := range registeredConstructors {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// DefaultConfig is the name of the default runtime configuration to use if specified.
//
// See NewWithConfig for the format of the configuration string.
var DefaultConfig string

// GOMLX_FUSION_RUNTIME is the environment variable with the default runtime configuration to use.
//
// The format of config is "<runtime_name>:<runtime_configuration>".
const GOMLX_FUSION_RUNTIME = "GOMLX_FUSION_RUNTIME"

// New returns a new default Runtime.
//
// The default is:
//
// 1. The environment GOMLX_FUSION_RUNTIME is used as a configuration if defined.
// 2. Next the variable DefaultConfig is used as a configuration if defined.
// 3. The first registered runtime is used with an empty configuration.
func New() (Runtime, error) {
	config, found := os.LookupEnv(GOMLX_FUSION_RUNTIME)
	if found {
		klog.V(1).Infof("using runtime configuration %q from $%s", config, GOMLX_FUSION_RUNTIME)
		return NewWithConfig(config)
	}
	if DefaultConfig != "" {
		return NewWithConfig(DefaultConfig)
	}
	return NewWithConfig("")
}

// MustNew returns a new default Runtime or panics if it fails.
func MustNew() Runtime {
	runtime, err := New()
	if err != nil {
		panic(err)
	}
	return runtime
}

// NewWithConfig takes a configuration string formatted as "<runtime_name>:<runtime_configuration>".
//
// The "<runtime_name>" is the name of a registered runtime (e.g.: "cuda") and
// "<runtime_configuration>" is runtime specific (e.g.: "max_bytes=32").
// A configuration without ":" is taken as the runtime name if one is registered with that name,
// otherwise as the configuration of the first registered runtime.
func NewWithConfig(config string) (Runtime, error) {
	if len(registeredConstructors) == 0 {
		return nil, errors.Errorf("no registered runtimes for line-size resolution")
	}
	runtimeName := firstRegistered
	runtimeConfig := config
	if idx := strings.Index(config, ":"); idx != -1 {
		runtimeName = config[:idx]
		runtimeConfig = config[idx+1:]
	} else if _, found := registeredConstructors[config]; found {
		runtimeName = config
		runtimeConfig = ""
	}
	constructor, found := registeredConstructors[runtimeName]
	if !found {
		return nil, errors.Errorf("can't find runtime %q for configuration %q given, registered runtimes: %v",
			runtimeName, config, List())
	}
	runtime, err := constructor(runtimeConfig)
	if err != nil {
		return nil, errors.WithMessagef(err, "while creating runtime %q", runtimeName)
	}
	return runtime, nil
}
