// Command osqueryctl is the operator CLI for a running osqueryd
// supervisor: it talks only to the localhost admin endpoint, never to
// the worker or extensions directly.
package main

import (
	"fmt"
	"os"

	"github.com/pathcl/osquery/cmd/osqueryctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
