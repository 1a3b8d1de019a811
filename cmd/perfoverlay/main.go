package main

import (
	"os"

	"github.com/Klaven/perfoverlay/pkg/perfoverlay/cmd"
)

func main() {
	if err := cmd.RootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
