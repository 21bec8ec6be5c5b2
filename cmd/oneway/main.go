package main

import (
	"os"

	"github.com/wonny/oneway/cmd/oneway/commands"
)

// main is the entry point for the oneway CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/oneway [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
