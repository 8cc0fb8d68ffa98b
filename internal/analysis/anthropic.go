package analysis

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/classifieds-cli/internal/model"
	"github.com/sells-group/classifieds-cli/pkg/anthropic"
)

// AnthropicBackend generates turns with the Anthropic Messages API.
type AnthropicBackend struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewAnthropicBackend creates an AnthropicBackend.
func NewAnthropicBackend(client anthropic.Client, modelID string, maxTokens int64) *AnthropicBackend {
	return &AnthropicBackend{client: client, model: modelID, maxTokens: maxTokens}
}

func (b *AnthropicBackend) Model() string {
	return b.model
}

func (b *AnthropicBackend) Generate(ctx context.Context, req Request) (*Response, error) {
	msgReq := anthropic.MessageRequest{
		Model:     b.model,
		MaxTokens: b.maxTokens,
		Messages:  toMessages(req.Messages, req.Images),
	}
	if req.Preamble != "" {
		msgReq.System = []anthropic.SystemBlock{{Text: req.Preamble}}
	}

	resp, err := b.client.CreateMessage(ctx, msgReq)
	if err != nil {
		return nil, eris.Wrap(err, "analysis: generate")
	}
	resp.Usage.LogCost(b.model, req.Phase)

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return nil, eris.Errorf("analysis: empty response (stop reason %s)", resp.StopReason)
	}
	return &Response{Text: text}, nil
}

// toMessages maps history onto API roles, folding consecutive turns of the
// same role into one message. Images go on the first user message.
func toMessages(history []model.ChatMessage, images []ImagePayload) []anthropic.Message {
	out := make([]anthropic.Message, 0, len(history))
	for _, m := range history {
		role := "user"
		if m.IsModel() {
			role = "assistant"
		}
		if n := len(out); n > 0 && out[n-1].Role == role {
			out[n-1].Content += "\n\n" + m.Content
			continue
		}
		out = append(out, anthropic.Message{Role: role, Content: m.Content})
	}

	if len(images) > 0 {
		for i := range out {
			if out[i].Role != "user" {
				continue
			}
			for _, img := range images {
				out[i].Images = append(out[i].Images, anthropic.ImageBlock{MediaType: img.MediaType, Data: img.Data})
			}
			break
		}
	}
	return out
}
