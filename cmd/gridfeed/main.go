package main

import (
	"os"

	"gridfeed/cmd/gridfeed/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
