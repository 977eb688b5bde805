// cmd/patchmatrix/main.go
//
// Entry point for the patchmatrix CLI. Every subcommand works against a
// project directory (the current one by default) holding .patchmatrix/ and
// against a catalog file describing the patch and its build variants.

package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
