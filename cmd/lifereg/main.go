// Command lifereg publishes and browses Game of Life patterns in a shared
// registry.
package main

import (
	"os"
)

func main() {
	if err := execute(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		os.Exit(1)
	}
}
