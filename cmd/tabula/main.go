// Command tabula browses, lists and serves table views over JSONL record
// collections.
package main

import (
	"os"

	"github.com/mesh-intelligence/tabula/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
