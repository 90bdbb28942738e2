package providers

import (
	"encoding/json"

	openai "github.com/sashabaranov/go-openai"
)

// chatCompletionsParser decodes the OpenAI chat-completions streaming dialect:
// each payload carries choices[0].delta with either content or tool_calls.
type chatCompletionsParser struct{}

func (chatCompletionsParser) ParsePayload(payload []byte) []StreamEvent {
	var resp openai.ChatCompletionStreamResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil
	}
	if len(resp.Choices) == 0 {
		return nil
	}

	delta := resp.Choices[0].Delta

	// Tool calls take priority over any simultaneous content field; a chunk
	// never yields both.
	if len(delta.ToolCalls) > 0 {
		events := make([]StreamEvent, 0, len(delta.ToolCalls))
		for _, tc := range delta.ToolCalls {
			index := 0
			if tc.Index != nil {
				index = *tc.Index
			}
			events = append(events, StreamEvent{
				Type: EventToolCall,
				ToolCall: ToolCallFragment{
					Index:     index,
					ID:        tc.ID,
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				},
			})
		}
		return events
	}

	if delta.Content != "" {
		return []StreamEvent{{Type: EventContent, Text: delta.Content}}
	}
	return nil
}

// localChatPayload is the local-inference dialect: newline-delimited JSON with
// either message.content or a top-level response field. It has no tool-call
// support in its current form.
type localChatPayload struct {
	Message *struct {
		Content string `json:"content"`
	} `json:"message"`
	Response        string `json:"response"`
	Error           string `json:"error"`
	Done            bool   `json:"done"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
}

type localChatParser struct{}

func (localChatParser) ParsePayload(payload []byte) []StreamEvent {
	var resp localChatPayload
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil
	}

	if resp.Error != "" {
		return []StreamEvent{
			{Type: EventContent, Text: "Error: " + resp.Error},
			{Type: EventDone},
		}
	}

	var events []StreamEvent
	switch {
	case resp.Message != nil && resp.Message.Content != "":
		events = append(events, StreamEvent{Type: EventContent, Text: resp.Message.Content})
	case resp.Response != "":
		events = append(events, StreamEvent{Type: EventContent, Text: resp.Response})
	}
	if resp.Done {
		events = append(events, StreamEvent{
			Type:         EventDone,
			InputTokens:  resp.PromptEvalCount,
			OutputTokens: resp.EvalCount,
		})
	}
	return events
}
