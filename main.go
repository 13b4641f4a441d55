package main

import (
	"os"

	"github.com/obelisk/gh-ec-audit/pkg/controller/cmd"
)

func main() {
	if err := cmd.Run(os.Args); err != nil {
		os.Exit(1)
	}
}
