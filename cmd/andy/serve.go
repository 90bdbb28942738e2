package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func buildServeCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
		docsDir    string
		docsAgent  string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the agent engine and its ingestion worker",
		Long: `Starts the engine: loads the configuration, connects the LLM providers
and the vector store, and runs the document ingestion worker until the
process receives SIGINT or SIGTERM.

With --docs, the files in the given directory are registered as documents
for --agent and ingested at startup.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), configPath, debug, docsDir, docsAgent)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "andy.yaml", "Path to configuration file")
	cmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging")
	cmd.Flags().StringVar(&docsDir, "docs", "", "Directory of documents to ingest at startup")
	cmd.Flags().StringVar(&docsAgent, "agent", "", "Agent that owns the documents from --docs")
	return cmd
}

func runServe(ctx context.Context, configPath string, debug bool, docsDir, docsAgent string) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rt, err := newRuntime(ctx, configPath, debug)
	if err != nil {
		return err
	}
	defer rt.close(context.Background())

	rt.queue.Start()
	defer rt.queue.Stop()

	rt.logger.Info("engine started",
		"version", version,
		"config", configPath,
		"agents", len(rt.agents),
		"store", rt.cfg.Store.Backend,
	)

	if docsDir != "" {
		count, err := rt.loadDocumentsDir(docsDir, docsAgent)
		if err != nil {
			return err
		}
		rt.logger.Info("documents enqueued", "count", count, "agent", docsAgent)
	}

	<-ctx.Done()
	rt.logger.Info("shutdown signal received, draining ingestion queue")
	return nil
}
