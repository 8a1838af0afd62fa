package main

import (
	"github.com/JakeFAU/vbw-stats-scraper/cmd"
)

func main() {
	cmd.Execute()
}
