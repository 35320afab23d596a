// Command gridmaker generates databases of synthetic eclipsing-binary light
// curves over a grid of system parameters.
package main

import (
	"context"
	"os"

	"github.com/mirofedurco/EB-gridmaker/internal/cli"
)

func main() {
	os.Exit(cli.Execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}
