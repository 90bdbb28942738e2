package agent

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/rivoli-ai/andy-agentic-sub001/internal/observability"
	"github.com/rivoli-ai/andy-agentic-sub001/pkg/models"
)

// ToolInterceptor wraps tool execution so every invocation, successful or
// not, leaves exactly one record on the recorder. The tool's result and
// error are returned unchanged.
type ToolInterceptor struct {
	recorder  *TurnRecorder
	sessionID string
	agentID   string
	metrics   *observability.Metrics
}

// NewToolInterceptor creates an interceptor recording onto rec. Metrics may
// be nil.
func NewToolInterceptor(rec *TurnRecorder, sessionID, agentID string, metrics *observability.Metrics) *ToolInterceptor {
	return &ToolInterceptor{
		recorder:  rec,
		sessionID: sessionID,
		agentID:   agentID,
		metrics:   metrics,
	}
}

// Execute runs the tool for the given call and records the outcome. The
// record is appended exactly once, on every path out of this function.
func (i *ToolInterceptor) Execute(ctx context.Context, tool Tool, call *models.ToolCall) (result *models.ToolResult, err error) {
	rec := &models.ToolExecutionRecord{
		ID:         uuid.NewString(),
		ToolName:   call.Name,
		ToolCallID: call.ID,
		SessionID:  i.sessionID,
		AgentID:    i.agentID,
		Parameters: recordParameters(call.Input),
		StartedAt:  time.Now().UTC(),
	}

	defer func() {
		rec.EndedAt = time.Now().UTC()
		rec.Success = err == nil && (result == nil || !result.IsError)
		if err != nil {
			rec.Error = err.Error()
		} else if result != nil {
			if result.IsError {
				rec.Error = result.Content
			} else {
				rec.Result = result.Content
			}
		}
		i.recorder.Record(rec)

		if i.metrics != nil {
			status := "success"
			if !rec.Success {
				status = "error"
			}
			i.metrics.ToolExecutionCounter.WithLabelValues(call.Name, status).Inc()
			i.metrics.ToolExecutionDuration.WithLabelValues(call.Name).
				Observe(rec.EndedAt.Sub(rec.StartedAt).Seconds())
		}
	}()

	result, err = tool.Execute(ctx, call.Input)
	return result, err
}

// RecordFailure records a call that never reached a tool, such as a call
// naming a tool the agent does not have, and returns the error result that
// stands in for its output.
func (i *ToolInterceptor) RecordFailure(call *models.ToolCall, msg string) *models.ToolResult {
	now := time.Now().UTC()
	i.recorder.Record(&models.ToolExecutionRecord{
		ID:         uuid.NewString(),
		ToolName:   call.Name,
		ToolCallID: call.ID,
		SessionID:  i.sessionID,
		AgentID:    i.agentID,
		Parameters: recordParameters(call.Input),
		Error:      msg,
		Success:    false,
		StartedAt:  now,
		EndedAt:    now,
	})
	if i.metrics != nil {
		i.metrics.ToolExecutionCounter.WithLabelValues(call.Name, "error").Inc()
	}
	return &models.ToolResult{ToolCallID: call.ID, Content: msg, IsError: true}
}

// recordParameters captures the call arguments for the record. Arguments
// that are not valid JSON are preserved inside a placeholder object so the
// record itself stays well-formed.
func recordParameters(input json.RawMessage) string {
	if len(input) == 0 {
		return "{}"
	}
	if json.Valid(input) {
		return string(input)
	}
	wrapped, err := json.Marshal(map[string]string{"_raw": string(input)})
	if err != nil {
		return "{}"
	}
	return string(wrapped)
}
