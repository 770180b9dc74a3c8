package main

import (
	"os"

	memexcmder "github.com/nickyai/memex/cmd/memex"
)

func main() {
	cmd := memexcmder.NewMemexCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
