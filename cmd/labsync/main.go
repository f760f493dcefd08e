package main

import (
	"os"

	"github.com/dittorahmat/labsync/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
