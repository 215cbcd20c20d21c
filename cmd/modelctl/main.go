// Command modelctl is the operator CLI for stadium model artifacts: it
// validates and describes artifacts, runs one-off predictions against
// MODEL_DIR and prints the stadium catalog.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "modelctl: %v\n", err)
		os.Exit(1)
	}
}
