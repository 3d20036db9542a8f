// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// fusion_linesizes reads fusion plans (JSON files) and prints the line size resolved for each tensor.
//
// Usage:
//
//	fusion_linesizes [flags] plan.json [plan2.json ...]
//
// The runtime is selected with -runtime, or the GOMLX_FUSION_RUNTIME environment variable.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/gomlx/fusion/backends"
	"github.com/gomlx/fusion/internal/workerspool"
	"github.com/gomlx/fusion/pkg/core/dtypes"
	"github.com/gomlx/fusion/pkg/fusion/ir"
	"github.com/gomlx/fusion/pkg/fusion/vectorization"
	"github.com/gomlx/fusion/pkg/support/fsutil"
	"github.com/gomlx/fusion/pkg/support/xslices"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

var (
	flagRuntime = flag.String("runtime", "",
		fmt.Sprintf("Runtime configuration, formatted as \"name:key=value,...\". If empty, it uses $%s, "+
			"or the first registered runtime.", backends.GOMLX_FUSION_RUNTIME))
	flagListRuntimes = flag.Bool("list_runtimes", false, "List the registered runtimes and exit.")
	flagDType        = flag.String("dtype", "float32", "Smallest element type vectorized in the fusion groups.")
	flagMax          = flag.Int("max", 0, "Maximum line size for outputs and aliased tensors. 0 for no limit.")
	flagAxis         = flag.Int("axis", vectorization.LastAxis,
		"Vectorization axis, negative values count from the end.")
	flagOverrides = flag.String("overrides", "",
		"JSON file with line-size overrides, formatted as {\"tensors\": {\"<id>\": [4, 2]}, \"default\": [2, 1]}.")
	flagDefaultLineSizes = xslices.Flag("default_line_sizes", nil,
		"Comma-separated line sizes to try for tensors without overrides, instead of the runtime ones.",
		xslices.ParseInt[int])
	flagJSON        = flag.Bool("json", false, "Output the resolved line sizes as JSON, one object per plan.")
	flagParallelism = flag.Int("parallelism", 0,
		"Number of plans resolved in parallel. 0 uses the number of CPUs, -1 is unlimited.")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	if *flagListRuntimes {
		listRuntimes()
		return
	}
	args := flag.Args()
	if len(args) == 0 {
		klog.Errorf("Missing fusion plan file(s) to resolve. See 'fusion_linesizes -help'")
		os.Exit(1)
	}

	resolver, err := buildResolver()
	if err != nil {
		klog.Fatalf("Failed to configure resolver: %+v", err)
	}
	plans := make([]*ir.Plan, len(args))
	for ii, path := range args {
		if !must.M1(fsutil.FileExists(must.M1(fsutil.ExpandHome(path)))) {
			klog.Errorf("Fusion plan file %q not found.", path)
			os.Exit(1)
		}
		plans[ii] = must.M1(ir.LoadPlan(path))
	}

	pool := workerspool.New()
	if *flagParallelism != 0 {
		pool = workerspool.NewWithParallelism(*flagParallelism)
	}
	mappings, err := resolver.ResolveAll(pool, plans)
	if err != nil {
		klog.Fatalf("Failed to resolve line sizes: %+v", err)
	}

	if *flagJSON {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		for _, mapping := range mappings {
			must.M(encoder.Encode(mapping))
		}
		return
	}
	fmt.Println(titleStyle.Render(resolver.Runtime().Description()))
	for ii, mapping := range mappings {
		report(args[ii], resolver, plans[ii], mapping)
	}
}

// buildResolver creates the runtime and the resolver from the flags.
func buildResolver() (*vectorization.Resolver, error) {
	var runtime backends.Runtime
	var err error
	if *flagRuntime != "" {
		runtime, err = backends.NewWithConfig(*flagRuntime)
	} else {
		runtime, err = backends.New()
	}
	if err != nil {
		return nil, err
	}
	dtype, err := dtypes.FromName(strings.TrimSpace(*flagDType))
	if err != nil {
		return nil, err
	}

	overrides := vectorization.NewOverrides()
	if *flagOverrides != "" {
		overrides, err = vectorization.LoadOverrides(*flagOverrides)
		if err != nil {
			return nil, err
		}
	}
	if len(*flagDefaultLineSizes) > 0 {
		for _, lineSize := range *flagDefaultLineSizes {
			if lineSize < 1 {
				return nil, errors.Errorf("-default_line_sizes must be >= 1, got %v", *flagDefaultLineSizes)
			}
		}
		overrides.SetDefault(*flagDefaultLineSizes...)
	}

	config := vectorization.Build(runtime).DType(dtype).Axis(*flagAxis).Overrides(overrides)
	if *flagMax > 0 {
		config = config.MaxLineSize(*flagMax)
	}
	return config.Done()
}

func listRuntimes() {
	table := newPlainTable(true)
	table.Row("Name", "Description", "Float32 line sizes")
	for _, name := range backends.List() {
		runtime, err := backends.NewWithConfig(name + ":")
		if err != nil {
			klog.Errorf("Failed to create runtime %q: %+v", name, err)
			continue
		}
		table.Row(name, runtime.Description(), fmt.Sprintf("%v", runtime.LineSizes(dtypes.Float32)))
	}
	fmt.Println(table.Render())
}
