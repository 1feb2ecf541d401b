// The main package for the showcase executable.
package main

import (
	"os"

	"github.com/JakeFAU/showcase-refresher/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	os.Exit(cmd.Execute())
}
