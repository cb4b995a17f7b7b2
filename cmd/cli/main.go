// Command faas is the operator CLI: validate and scan function code, run
// functions locally in the sandbox, and inspect the effective config.
package main

import (
	"os"

	"github.com/r3e-network/faas-trigger-engine/cmd/cli/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
