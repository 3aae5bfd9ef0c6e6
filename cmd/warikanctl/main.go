package main

import (
	"os"

	"github.com/susu3304/warikan/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
