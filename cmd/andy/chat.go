package main

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/rivoli-ai/andy-agentic-sub001/internal/agent"
	"github.com/rivoli-ai/andy-agentic-sub001/pkg/models"
)

func buildChatCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
		agentID    string
		docsDir    string
	)
	cmd := &cobra.Command{
		Use:   "chat [message...]",
		Short: "Run a single agent turn and stream the response",
		Long: `Runs one turn of the given agent with the message and streams the
response to stdout. Tool calls made during the turn are logged.

With --docs, the files in the given directory are ingested for the agent
before the turn starts, making them available to document_search.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd.Context(), configPath, debug, agentID, docsDir, strings.Join(args, " "))
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "andy.yaml", "Path to configuration file")
	cmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging")
	cmd.Flags().StringVar(&agentID, "agent", "", "Agent to run the turn as (required)")
	cmd.Flags().StringVar(&docsDir, "docs", "", "Directory of documents to ingest before the turn")
	_ = cmd.MarkFlagRequired("agent")
	return cmd
}

func runChat(ctx context.Context, configPath string, debug bool, agentID, docsDir, message string) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rt, err := newRuntime(ctx, configPath, debug)
	if err != nil {
		return err
	}
	defer rt.close(context.Background())

	target, ok := rt.agents[agentID]
	if !ok {
		return fmt.Errorf("agent %s not found in %s", agentID, configPath)
	}

	rt.queue.Start()
	defer rt.queue.Stop()

	if docsDir != "" {
		count, err := rt.loadDocumentsDir(docsDir, agentID)
		if err != nil {
			return err
		}
		// Failures are logged by the queue itself; the turn proceeds with
		// whatever was indexed.
		if err := rt.queue.AwaitIdle(ctx); err != nil {
			return err
		}
		rt.logger.Info("documents ingested", "count", count, "agent", agentID)
	}

	sessionID := uuid.NewString()
	chunks, recorder, err := rt.orchestrator.StreamTurn(ctx, &agent.TurnRequest{
		Agent:     target,
		SessionID: sessionID,
		Messages: agent.FromHistory([]models.Message{{
			ID:        uuid.NewString(),
			SessionID: sessionID,
			Role:      models.RoleUser,
			Content:   message,
			CreatedAt: time.Now().UTC(),
		}}),
	})
	if err != nil {
		return err
	}

	for chunk := range chunks {
		switch {
		case chunk.Text != "":
			fmt.Print(chunk.Text)
		case chunk.ToolCall != nil:
			rt.logger.Info("executing tool", "tool", chunk.ToolCall.Name, "turn", chunk.Turn)
		case chunk.ToolResult != nil && chunk.ToolResult.IsError:
			rt.logger.Warn("tool failed", "result", chunk.ToolResult.Content)
		}
	}
	fmt.Println()

	if debug {
		for _, record := range recorder.Records() {
			rt.logger.Debug("tool execution",
				"tool", record.ToolName,
				"success", record.Success,
				"duration", record.EndedAt.Sub(record.StartedAt),
			)
		}
	}
	return nil
}
