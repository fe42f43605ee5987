package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/eduyeet/authgate/internal/cli"
	"github.com/eduyeet/authgate/internal/cli/keys"
	"github.com/eduyeet/authgate/internal/cli/sessions"
)

func main() {
	_ = godotenv.Load()

	registry := cli.NewRegistry()

	// Register commands
	registry.Register(&keys.Command{})
	registry.Register(&sessions.Command{})

	// Run
	if err := registry.Run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
