// Command cajero runs the El Patio cashier client.
package main

import (
	"fmt"
	"os"

	"github.com/iamp15/elpatio-appCajeros/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
