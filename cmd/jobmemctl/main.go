// Command jobmemctl is a diagnostic and demo CLI for jobmem: it can
// inspect the profile store, check what the admission gate would decide
// for a given source path, dump the shared region's live reservations, and
// watch a running build's status bar values on the terminal.
package main

import (
	"fmt"
	"os"

	"github.com/arctir/jobmem/cmd/jobmemctl/cmd"
)

func main() {
	root := cmd.SetupCLI()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
