// Command irsim-validate-seed checks seed files for referential
// integrity before they're used to compile an episode.
package main

import (
	"fmt"
	"os"

	"github.com/opensec-sim/irsim/src/cmd"
)

func main() {
	if err := cmd.NewValidateSeedCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
