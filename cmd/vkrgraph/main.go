// Command vkrgraph validates and compiles render-graph description files
// against a given frame info, without a live GPU backend. One main
// dispatches the validate and compile subcommands, each a small
// flag-parsed operation in the spirit of sbl8-sublation's cmd/sublc,
// cmd/sublrun, cmd/sublperf split; the -profile flag is the teacher's own
// profile/entities and profile/query main.go convention, re-homed here
// from ECS-iteration profiling to graph-compile profiling.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/forgeengine/vkr/backend"
	"github.com/forgeengine/vkr/rendergraph"
	"github.com/forgeengine/vkr/rendergraph/descriptor"
	"github.com/pkg/profile"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "validate":
		runValidate(args)
	case "compile":
		runCompile(args)
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: vkrgraph <validate|compile> [options] <graph.json>")
}

func runValidate(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	fs.Parse(args)
	if fs.NArg() < 1 {
		usage()
		os.Exit(1)
	}

	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		fatalf("read %s: %v", fs.Arg(0), err)
	}
	if _, err := descriptor.Parse(data); err != nil {
		fatalf("invalid graph description: %v", err)
	}
	fmt.Printf("%s: valid\n", fs.Arg(0))
}

func runCompile(args []string) {
	fs := flag.NewFlagSet("compile", flag.ExitOnError)
	frameFile := fs.String("frame", "", "path to a FrameInfo JSON file (defaults used if omitted)")
	enableProfile := fs.Bool("profile", false, "write a CPU profile of the compile pass")
	fs.Parse(args)
	if fs.NArg() < 1 {
		usage()
		os.Exit(1)
	}

	if *enableProfile {
		p := profile.Start(profile.CPUProfile, profile.ProfilePath("."))
		defer p.Stop()
	}

	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		fatalf("read %s: %v", fs.Arg(0), err)
	}
	doc, err := descriptor.Parse(data)
	if err != nil {
		fatalf("invalid graph description: %v", err)
	}

	frame := defaultFrame()
	if *frameFile != "" {
		fdata, err := os.ReadFile(*frameFile)
		if err != nil {
			fatalf("read %s: %v", *frameFile, err)
		}
		if err := decodeFrame(fdata, &frame); err != nil {
			fatalf("invalid frame info: %v", err)
		}
	}

	expanded, err := descriptor.Expand(doc, frame)
	if err != nil {
		fatalf("expand: %v", err)
	}

	be := backend.NewNull()
	g := rendergraph.New(rendergraph.Options{Backend: be})
	g.BeginFrame(frame)

	reg := descriptor.NewRegistry()
	registerStubExecutors(expanded, reg)

	if err := descriptor.Build(expanded, g, frame, reg); err != nil {
		fatalf("build: %v", err)
	}
	if err := g.Compile(); err != nil {
		fatalf("compile: %v", err)
	}

	order := g.ExecutionOrder()
	fmt.Printf("%s: compiled %d pass(es)\n", fs.Arg(0), len(order))
	for i, name := range order {
		fmt.Printf("  %2d  %s\n", i, name)
	}

	if err := g.Execute(context.Background(), be, nil); err != nil {
		fatalf("execute: %v", err)
	}
}

// registerStubExecutors binds every referenced execute token to a no-op,
// letting `compile` validate structure/DAG shape without the embedder's
// real rendering code.
func registerStubExecutors(expanded *descriptor.Expanded, reg *descriptor.Registry) {
	seen := make(map[string]bool)
	for _, p := range expanded.Passes {
		if p.Execute == "" || seen[p.Execute] {
			continue
		}
		seen[p.Execute] = true
		reg.Register(p.Execute, func(backend.CommandRecorder, any, any) error { return nil }, nil)
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "vkrgraph: "+format+"\n", args...)
	os.Exit(1)
}
