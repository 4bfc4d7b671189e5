package main

import (
	"os"

	"github.com/harun/nodeshell/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
