package main

import (
	"os"

	"github.com/helewild/gridhud/internal/cli"
)

func main() {
	os.Exit(cli.Run(os.Args[1:]))
}
