package main

import (
	"os"

	"github.com/conductor-telemetry/conductor/cmd/conductorctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
