// Package main provides the entry point for lobbysync.
//
// lobbysync inspects and follows lobbies of a multiplayer lobby service:
//
//   - One-shot lobby queries and mutations (list, get, create, join, ...)
//   - watch: a live replica of the player's lobby printing every change
//
// Usage:
//
//	lobbysync --server https://lobby.example.com/v1 lobby list
//	lobbysync -p alice -o json lobby create --name "Friday night"
//	lobbysync -c lobbysync.yaml -p alice watch --join lob-1
//	lobbysync -p alice watch -i
package main

import (
	"os"

	"github.com/yndnr/lobbysync-go/internal/cli/command"
)

func main() {
	app := command.App()

	if err := app.Run(os.Args); err != nil {
		command.PrintError(os.Stderr, "%v", err)
		os.Exit(1)
	}
}
