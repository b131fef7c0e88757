// Command irsim-serve runs the incident-response episode HTTP server.
package main

import (
	"os"

	"github.com/opensec-sim/irsim/src/cmd"
)

func main() {
	if err := cmd.NewServeCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
