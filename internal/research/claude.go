package research

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/sells-group/agent-research-cli/internal/cost"
	"github.com/sells-group/agent-research-cli/pkg/anthropic"
)

const defaultMaxTokens = 8192

// ClaudeBackend asks Claude for structured output by forcing a call to a
// tool whose input schema is the requested schema.
type ClaudeBackend struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewClaudeBackend creates a backend using client. maxTokens <= 0 uses a
// default.
func NewClaudeBackend(client anthropic.Client, model string, maxTokens int64) *ClaudeBackend {
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &ClaudeBackend{client: client, model: model, maxTokens: maxTokens}
}

// Name implements Backend.
func (b *ClaudeBackend) Name() string { return "anthropic" }

// Research implements Backend.
func (b *ClaudeBackend) Research(ctx context.Context, req Request) (*Response, error) {
	tool := "submit_" + string(req.Task)

	resp, err := b.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     b.model,
		MaxTokens: b.maxTokens,
		System:    anthropic.BuildCachedSystemBlocks("", req.System),
		Messages:  []anthropic.Message{{Role: "user", Content: req.Prompt}},
		Tools: []anthropic.Tool{{
			Name:        tool,
			Description: fmt.Sprintf("Submit the %s results. Call this exactly once with the complete result.", req.Task),
			InputSchema: req.Schema,
		}},
		ForceTool: tool,
	})
	if err != nil {
		return nil, eris.Wrapf(err, "research: %s call", req.Task)
	}

	payload, ok := resp.ToolInput(tool)
	if !ok {
		return nil, eris.Wrapf(ErrNoStructuredOutput, "stop_reason=%s", resp.StopReason)
	}

	model := resp.Model
	if model == "" {
		model = b.model
	}
	u := resp.Usage
	return &Response{
		Payload: payload,
		Usage: cost.Usage{
			InputTokens:  u.InputTokens + u.CacheCreationInputTokens + u.CacheReadInputTokens,
			OutputTokens: u.OutputTokens,
		},
		Model:    model,
		Provider: b.Name(),
	}, nil
}
