package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/vaultsync/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		// Commands report their own failures; anything else is a usage error
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) {
			fmt.Fprintf(os.Stderr, "vaultsync: %v\n", err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
