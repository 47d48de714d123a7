// pitchctl inspects and maintains a Pitch Tank database.
package main

import (
	"os"

	"github.com/ashureev/pitch-tank/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
