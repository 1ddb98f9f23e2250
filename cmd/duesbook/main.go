package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/duesbook/duesbook/internal/commands"
)

func main() {
	// A missing .env file is fine, the environment may be set directly.
	_ = godotenv.Load()

	if err := commands.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
