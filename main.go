// The main package for the pyqcrawler executable.
package main

import (
	"os"

	"github.com/JakeFAU/pyq-crawler/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
