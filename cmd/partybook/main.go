// Command partybook manages prospects and customers from the command line.
package main

import (
	"os"

	"github.com/mesh-intelligence/partybook/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
