package main

import (
	"os"

	"github.com/quarterly-dev/quarterly/internal/commands"
)

func main() {
	if err := commands.Root().Execute(); err != nil {
		os.Exit(1)
	}
}
