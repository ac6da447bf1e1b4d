// Command nfs4d serves one exported directory tree over NFSv4.0.
package main

import (
	"fmt"
	"os"

	"github.com/leruetkins/bold-nfs/cmd/nfs4d/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
