// The main package for the edgarbot executable.
package main

import (
	"github.com/finbots-io/edgarbot/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
