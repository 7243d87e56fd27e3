// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Command hlsplay probes and plays HLS sources headlessly through the
// playback plugin.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/ManuGH/hlsplay/internal/version"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		printUsage(stderr)
		return 2
	}
	switch args[0] {
	case "-version", "--version", "version":
		fmt.Fprintln(stdout, version.String())
		return 0
	case "-h", "--help", "help":
		printUsage(stdout)
		return 0
	case "probe":
		return runProbe(args[1:], stdout, stderr)
	case "play":
		return runPlay(args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n\n", args[0])
		printUsage(stderr)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  hlsplay probe [-config file.yaml] [-timeout 15s] [-report out.json] [-backend auto|native|engine] <url>")
	fmt.Fprintln(w, "  hlsplay play  [-config file.yaml] [-duration 0] [-quality auto|720p|<index>] <url>")
	fmt.Fprintln(w, "  hlsplay version")
}
