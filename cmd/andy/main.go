// Package main provides the CLI entry point for the andy agent engine.
//
// Andy runs config-defined agents against streaming LLM backends (OpenAI,
// Ollama) with tool execution and a per-agent document index.
//
// # Basic Usage
//
// Start the engine with its ingestion worker:
//
//	andy serve --config andy.yaml
//
// Run a single agent turn from the command line:
//
//	andy chat --config andy.yaml --agent helper "summarize the release notes"
//
// # Environment Variables
//
// Configuration files may reference environment variables with $NAME or
// ${NAME}; common ones:
//
//   - OPENAI_API_KEY: OpenAI API key for chat and embedding models
//   - OLLAMA_HOST: Base URL of a local Ollama server
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Build information, populated by ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := buildRootCmd().Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "andy",
		Short: "Andy - streaming agent turn engine",
		Long: `Andy orchestrates tool-calling turns between config-defined agents and
streaming LLM backends, and maintains a searchable per-agent document index.

Supported LLM providers: OpenAI (chat completions), Ollama
Built-in tools: document_search`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		buildServeCmd(),
		buildChatCmd(),
		buildVersionCmd(),
	)
	return rootCmd
}

func buildVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "andy %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}
