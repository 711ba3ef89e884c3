// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// reshapecheck validates tensor reshape requests and prints the verdicts.
//
// Usage:
//
//	reshapecheck [flags] <input_shape> <target_shape>
//	reshapecheck [flags] -pairs=<file>
//
// Shapes are written as "4,2,3" or "[batch 8 -1]": literal dimensions, one -1 wildcard in the target,
// or names of symbolic axes. Each line of the -pairs file holds an input and a target shape separated
// by "->" or by a tab; empty lines and lines starting with "#" are skipped.
//
// It exits with status 1 if any reshape is invalid.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime"

	"github.com/gomlx/reshapecheck/pkg/core/reshape"
	"github.com/gomlx/reshapecheck/pkg/core/shapes"
	"github.com/gomlx/reshapecheck/pkg/core/solver"
	_ "github.com/gomlx/reshapecheck/pkg/core/solver/default"
	"github.com/janpfeifer/must"
	"k8s.io/klog/v2"
)

var (
	flagBackend = flag.String("backend", "",
		fmt.Sprintf("Solver backend configuration, formatted as \"<backend_name>:<options>\". "+
			"If empty, it uses $%s, or %q if that is not set.", solver.ConfigEnvVar, solver.DefaultConfig))
	flagTimeout = flag.Duration("timeout", reshape.DefaultTimeout, "Deadline for the solver on each reshape.")
	flagBind    = flag.String("bind", "", "Values of symbolic axes, e.g.: \"batch=32,seq=128\".")
	flagPairs   = flag.String("pairs", "", "File with one reshape request per line: \"<input> -> <target>\".")
	flagWorkers = flag.Int("workers", runtime.NumCPU(), "Number of reshapes validated in parallel with -pairs. "+
		"0 runs them sequentially and -1 means no limit.")
	flagList = flag.Bool("list", false, "List the registered solver backends and exit.")
)

func main() {
	klog.InitFlags(nil)
	flag.Usage = func() {
		_, _ = fmt.Fprintf(flag.CommandLine.Output(),
			"Usage:\n\treshapecheck [flags] <input_shape> <target_shape>\n\treshapecheck [flags] -pairs=<file>\n\nFlags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *flagList {
		for _, name := range solver.List() {
			fmt.Println(name)
		}
		return
	}

	var requests []reshape.Request
	args := flag.Args()
	if *flagPairs != "" {
		if len(args) > 0 {
			klog.Errorf("No positional arguments accepted with -pairs. See 'reshapecheck -help'.")
			os.Exit(2)
		}
		requests = must.M1(readPairs(*flagPairs))
	} else {
		if len(args) != 2 {
			klog.Errorf("Expected an input and a target shape, got %d arguments. See 'reshapecheck -help'.", len(args))
			os.Exit(2)
		}
		requests = []reshape.Request{{
			Input:  must.M1(shapes.Parse(args[0])),
			Target: must.M1(shapes.Parse(args[1])),
		}}
	}

	validator := reshape.New().
		WithBackend(*flagBackend).
		WithTimeout(*flagTimeout).
		WithParallelism(*flagWorkers)
	if *flagBind != "" {
		validator.WithBindings(must.M1(shapes.ParseAxisBindings(*flagBind)))
	}

	verdicts := validate(context.Background(), validator, requests)
	fmt.Println(renderVerdicts(requests, verdicts))
	for _, verdict := range verdicts {
		if !verdict.Valid {
			os.Exit(1)
		}
	}
}
