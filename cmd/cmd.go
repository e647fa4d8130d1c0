// Package cmd provides the blogsearch CLI commands.
//
// Commands:
//   - serve: HTTP API server streaming grounded answers
//   - sync: build the prebuilt embedding index file
//   - ask: query a running server from the terminal
//
// Signal handling and graceful shutdown are implemented for the
// long-running commands via context cancellation.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/hannadev/blogsearch/internal/log"
)

// Execute is the main entry point for the blogsearch CLI.
func Execute() error {
	// A local .env is a convenience for development; absence is normal.
	_ = godotenv.Load()

	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	slog.SetDefault(log.New(log.Config{Level: level}))

	if len(os.Args) < 2 {
		runHelp()
		return nil
	}

	switch os.Args[1] {
	case "serve":
		return runServe()
	case "sync":
		return runSync()
	case "ask":
		return runAsk(os.Args[2:])
	case "version", "--version", "-v":
		runVersion()
		return nil
	case "help", "--help", "-h":
		runHelp()
		return nil
	default:
		return fmt.Errorf("unknown command: %s", os.Args[1])
	}
}

// runHelp displays the help message.
func runHelp() {
	fmt.Println("blogsearch - ask questions about the blog's posts")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  blogsearch serve [addr]   Start the HTTP API server (default: 127.0.0.1:3500)")
	fmt.Println("  blogsearch sync           Build the prebuilt embedding index")
	fmt.Println("  blogsearch ask [question] Ask a running server a question")
	fmt.Println("  blogsearch --version      Show version information")
	fmt.Println("  blogsearch --help         Show this help")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  GEMINI_API_KEY            Required for serve (unless RAG_MOCK_MODE) and sync")
	fmt.Println("  RAG_ENABLED               Enable the semantic retrieval path")
	fmt.Println("  RAG_MOCK_MODE             Serve a canned answer, no API calls")
	fmt.Println("  DATABASE_URL              Optional: PostgreSQL prompt logging")
	fmt.Println("  DEBUG                     Optional: enable debug logging")
}
