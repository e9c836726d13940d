package main

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"sealtrail/pkg/capture"
)

func runVerify(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var asJSON bool
	fs.BoolVar(&asJSON, "json", false, "print the verification result as JSON")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "verify requires <proof.json>")
		return 1
	}

	result, err := capture.VerifyProofFile(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(stderr, "verify proof: %v\n", err)
		return 1
	}

	if asJSON {
		payload, err := capture.MarshalVerification(result)
		if err != nil {
			fmt.Fprintf(stderr, "marshal result: %v\n", err)
			return 1
		}
		if err := writeOutput(stdout, "", payload); err != nil {
			fmt.Fprintf(stderr, "write output: %v\n", err)
			return 1
		}
	} else {
		printOutcome(stdout, result)
	}
	if result.Passed {
		return 0
	}
	return 1
}

func printOutcome(w io.Writer, result capture.VerifyResult) {
	status := "pass"
	if !result.Passed {
		status = "fail"
	}
	fmt.Fprintf(w, "status=%s\n", status)
	if len(result.Failures) > 0 {
		fmt.Fprintf(w, "failures=%s\n", strings.Join(result.Failures, ","))
	}
	fmt.Fprintf(w, "report_id=%s trace_token=%s snapshots=%d\n", result.ReportID, result.TraceToken, result.SnapshotCount)
}
