// Package main is the entry point for the voicebridge server CLI.
//
// Usage:
//
//	voicebridge [flags] <command>
//
// Commands:
//
//	serve      - Run the webhook and media-stream server
//	orders     - Inspect stored orders
//	version    - Show version information
package main

import (
	"fmt"
	"os"

	"github.com/tommyd2377/voice-ai-system/cmd/voicebridge/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
