package main

import (
	"os"

	"github.com/wonny/fxlab/cmd/fx/commands"
)

// main is the entry point for the fxlab CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/fx [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
