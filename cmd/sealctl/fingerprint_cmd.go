package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"sealtrail/pkg/capture"
)

func runFingerprint(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("fingerprint", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var inPath string
	var outPath string
	var outCanonical string
	fs.StringVar(&inPath, "in", "", "input artifact path")
	fs.StringVar(&outPath, "out", "", "output JSON path (default stdout)")
	fs.StringVar(&outCanonical, "out-canonical", "", "output canonical payload path")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if inPath == "" {
		fmt.Fprintln(stderr, "fingerprint requires --in")
		return 1
	}

	result, err := capture.FingerprintFile(inPath)
	if err != nil {
		fmt.Fprintf(stderr, "fingerprint artifact: %v\n", err)
		return 1
	}

	if outCanonical != "" {
		if err := os.WriteFile(outCanonical, []byte(result.CanonicalPayload), 0o644); err != nil {
			fmt.Fprintf(stderr, "write canonical payload: %v\n", err)
			return 1
		}
	}

	payload, err := capture.MarshalCapture(result)
	if err != nil {
		fmt.Fprintf(stderr, "marshal fingerprint: %v\n", err)
		return 1
	}
	if err := writeOutput(stdout, outPath, payload); err != nil {
		fmt.Fprintf(stderr, "write output: %v\n", err)
		return 1
	}
	return 0
}
