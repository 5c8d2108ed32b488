// Command mwsync delivers storefront purchases to a Minecraft server.
package main

import (
	"fmt"
	"os"

	"github.com/minewebstore/mwsync/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
