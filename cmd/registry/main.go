package main

import (
	"fmt"
	"os"

	"github.com/amanthanvi/registry/internal/cli"
	"github.com/amanthanvi/registry/internal/version"
)

func main() {
	cmd := cli.NewRootCommand(os.Stdout, cli.BuildInfo{
		Version:   version.Version,
		Commit:    version.Commit,
		BuildTime: version.BuildTime,
	})
	if err := cmd.Execute(); err != nil {
		if message := cli.ErrorMessage(err); message != "" {
			fmt.Fprintf(os.Stderr, "registry: %s\n", message)
		}
		os.Exit(cli.ExitCode(err))
	}
}
