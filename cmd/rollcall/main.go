// Command rollcall is the operational entry point for the attendance sync
// core: it commits queues, drains pushes, pulls remote rows, reconciles the
// master lists and inspects the audit trail.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
