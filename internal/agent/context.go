package agent

import "context"

type ctxKey int

const (
	agentIDKey ctxKey = iota
	sessionIDKey
)

// WithTurnScope attaches the turn's agent and session ids to the context so
// tools can resolve which collection or scope they operate on.
func WithTurnScope(ctx context.Context, agentID, sessionID string) context.Context {
	ctx = context.WithValue(ctx, agentIDKey, agentID)
	return context.WithValue(ctx, sessionIDKey, sessionID)
}

// AgentIDFromContext returns the agent id set by WithTurnScope.
func AgentIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(agentIDKey).(string)
	return id, ok && id != ""
}

// SessionIDFromContext returns the session id set by WithTurnScope.
func SessionIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(sessionIDKey).(string)
	return id, ok && id != ""
}
