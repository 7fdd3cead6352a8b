package main

import (
	"os"

	"github.com/solatis/x12keeper/cmd/x12keeper/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
