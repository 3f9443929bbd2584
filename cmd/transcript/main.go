// Command transcript converts speech in WAV files to timestamped text.
//
// Usage:
//
//	transcript [flags] <command> [args]
//
// Commands:
//
//	transcribe - Transcribe WAV files
//	langs      - List supported languages
//	info       - Show system and model information
//	mkmodel    - Write a randomly initialised model for testing
package main

import (
	"fmt"
	"os"

	"github.com/ieee0824/whisper-go/cmd/transcript/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
