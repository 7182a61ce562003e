package research

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"

	"github.com/sells-group/agent-research-cli/internal/cost"
	"github.com/sells-group/agent-research-cli/internal/resilience"
	"github.com/sells-group/agent-research-cli/pkg/perplexity"
)

// PerplexityBackend uses Perplexity chat completions with a json_schema
// response format. It searches the web natively, which suits discovery.
type PerplexityBackend struct {
	client perplexity.Client
	model  string
}

// NewPerplexityBackend creates a backend using client. An empty model uses
// the client's default.
func NewPerplexityBackend(client perplexity.Client, model string) *PerplexityBackend {
	return &PerplexityBackend{client: client, model: model}
}

// Name implements Backend.
func (b *PerplexityBackend) Name() string { return "perplexity" }

// Research implements Backend.
func (b *PerplexityBackend) Research(ctx context.Context, req Request) (*Response, error) {
	msgs := make([]perplexity.Message, 0, 2)
	if req.System != "" {
		msgs = append(msgs, perplexity.Message{Role: "system", Content: req.System})
	}
	msgs = append(msgs, perplexity.Message{Role: "user", Content: req.Prompt})

	resp, err := b.client.ChatCompletion(ctx, perplexity.ChatCompletionRequest{
		Model:          b.model,
		Messages:       msgs,
		ResponseFormat: perplexity.SchemaFormat(req.Schema),
	})
	if err != nil {
		var apiErr *perplexity.APIError
		if errors.As(err, &apiErr) && resilience.IsTransientHTTPStatus(apiErr.StatusCode) {
			err = resilience.NewTransientError(err, apiErr.StatusCode)
		}
		return nil, eris.Wrapf(err, "research: %s call", req.Task)
	}

	payload, err := extractJSON(resp.Content())
	if err != nil {
		return nil, err
	}

	model := resp.Model
	if model == "" {
		model = b.model
	}
	return &Response{
		Payload: payload,
		Usage: cost.Usage{
			InputTokens:  int64(resp.Usage.PromptTokens),
			OutputTokens: int64(resp.Usage.CompletionTokens),
		},
		Model:    model,
		Provider: b.Name(),
	}, nil
}
