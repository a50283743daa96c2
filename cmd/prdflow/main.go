package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/nir-meir/prd-to-json/pkg/prdflow"
)

// Version information (injected via ldflags at build time)
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		// Validation failures are reported by the command itself, with
		// the document already written; everything else gets one line.
		var verr *prdflow.ValidationError
		if !errors.As(err, &verr) {
			fmt.Fprintf(os.Stderr, "prdflow: %v\n", err)
		}
		os.Exit(1)
	}
}
