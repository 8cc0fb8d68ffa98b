// Package analysis runs the AI conversation over a scraped listing: the
// one-shot analysis and the follow-up questions that extend it.
package analysis

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/classifieds-cli/internal/config"
	"github.com/sells-group/classifieds-cli/internal/model"
	"github.com/sells-group/classifieds-cli/pkg/anthropic"
)

// Backend produces the model turn for a conversation.
type Backend interface {
	Generate(ctx context.Context, req Request) (*Response, error)
	Model() string
}

// Request is one backend call. Preamble is sent out of band from the
// message list; Images ride along with the first user message.
type Request struct {
	Phase    string
	Preamble string
	Messages []model.ChatMessage
	Images   []ImagePayload
}

// ImagePayload is raw image bytes with their MIME type.
type ImagePayload struct {
	Filename  string
	MediaType string
	Data      []byte
}

// Response carries the generated text.
type Response struct {
	Text string
}

// Backend names accepted in analysis.backend.
const (
	BackendAnthropic = "anthropic"
	BackendMock      = "mock"
)

// Phases used for cost attribution.
const (
	PhaseAnalysis = "analysis"
	PhaseFollowup = "followup"
)

// NewBackend builds the backend named by cfg.Analysis.Backend.
func NewBackend(cfg *config.Config) (Backend, error) {
	switch cfg.Analysis.Backend {
	case BackendAnthropic:
		if cfg.Anthropic.Key == "" {
			return nil, eris.New("analysis: anthropic.key is required for the anthropic backend")
		}
		var opts []anthropic.ClientOption
		if cfg.Anthropic.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(cfg.Anthropic.BaseURL))
		}
		client := anthropic.NewClient(cfg.Anthropic.Key, opts...)
		return NewAnthropicBackend(client, cfg.Anthropic.Model, cfg.Anthropic.MaxTokens), nil
	case BackendMock:
		return NewMockBackend(), nil
	default:
		return nil, eris.Errorf("analysis: unknown backend %q", cfg.Analysis.Backend)
	}
}
