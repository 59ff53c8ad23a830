package main

import (
	"os"

	"plaza.social/cmd/plazactl/commands"
)

func main() {
	if err := commands.NewRootCmd(commands.OpenFromConfig).Execute(); err != nil {
		os.Exit(1)
	}
}
