// The main package for the vbwscraper executable.
package main

import (
	"github.com/JakeFAU/vbw-stats-scraper/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
