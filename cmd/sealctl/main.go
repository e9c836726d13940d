package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

func main() {
	os.Exit(run(os.Args, os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		usage(args, stderr)
		return 1
	}

	switch args[1] {
	case "fingerprint":
		return runFingerprint(args[2:], stdout, stderr)
	case "verify":
		return runVerify(args[2:], stdout, stderr)
	case "hash":
		return runHash(args[2:], stdout, stderr)
	}

	usage(args, stderr)
	return 1
}

func usage(args []string, stderr io.Writer) {
	name := "sealctl"
	if len(args) > 0 && args[0] != "" {
		name = filepath.Base(args[0])
	}
	fmt.Fprintf(stderr, "usage:\n")
	fmt.Fprintf(stderr, "  %s fingerprint --in <file> [--out <file>] [--out-canonical <file>]\n", name)
	fmt.Fprintf(stderr, "  %s verify [--json] <proof.json>\n", name)
	fmt.Fprintf(stderr, "  %s hash <proof.json>\n", name)
}
