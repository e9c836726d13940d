package main

import (
	"fmt"
	"io"

	"sealtrail/pkg/capture"
)

// runHash prints the final event hash recomputed from a proof document
// next to the one it records.
func runHash(args []string, stdout, stderr io.Writer) int {
	if len(args) != 1 {
		fmt.Fprintln(stderr, "hash requires <proof.json>")
		return 1
	}
	result, err := capture.VerifyProofFile(args[0])
	if err != nil {
		fmt.Fprintf(stderr, "hash proof: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "final_event_hash=%s\n", result.ComputedHash)
	if result.ComputedHash != result.FinalEventHash {
		fmt.Fprintf(stdout, "recorded=%s match=false\n", result.FinalEventHash)
		return 1
	}
	fmt.Fprintln(stdout, "match=true")
	return 0
}
