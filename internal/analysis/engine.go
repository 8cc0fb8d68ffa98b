package analysis

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/classifieds-cli/internal/model"
)

// DefaultMaxImages bounds the images sent with an analysis request.
const DefaultMaxImages = 3

// errorTurnPrefix starts the synthesized model turn that records a failed
// backend call in the history.
const errorTurnPrefix = "Fehler: "

// Engine turns records and history into backend calls. It holds no
// conversation state; history is passed in and returned.
type Engine struct {
	backend   Backend
	maxImages int
	now       func() time.Time
}

// NewEngine creates an Engine. A maxImages of zero or less means the default.
func NewEngine(backend Backend, maxImages int) *Engine {
	if maxImages <= 0 {
		maxImages = DefaultMaxImages
	}
	return &Engine{backend: backend, maxImages: maxImages, now: time.Now}
}

// WithClock overrides the timestamp source.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// MaxImages reports the image cap.
func (e *Engine) MaxImages() int {
	return e.maxImages
}

// Model reports the backend's model name.
func (e *Engine) Model() string {
	return e.backend.Model()
}

// Analyze runs the one-shot analysis. Backend failures do not return an
// error; they produce a record with Success false and the prompt plus an
// error turn as history.
func (e *Engine) Analyze(ctx context.Context, ad *model.AdRecord, images []ImagePayload) *model.AnalysisRecord {
	if len(images) > e.maxImages {
		images = images[:e.maxImages]
	}
	prompt := BuildAnalysisPrompt(ad)

	resp, err := e.backend.Generate(ctx, Request{
		Phase:    PhaseAnalysis,
		Messages: []model.ChatMessage{model.UserMessage(prompt)},
		Images:   images,
	})
	rec := &model.AnalysisRecord{
		Model:      e.backend.Model(),
		AnalyzedAt: e.now().UTC(),
	}
	if err != nil {
		zap.L().Warn("analysis: backend failed",
			zap.String("ad_id", ad.ID),
			zap.Error(err),
		)
		rec.Error = err.Error()
		rec.ChatHistory = SeedHistory(prompt, errorTurnPrefix+err.Error())
		return rec
	}

	rec.Success = true
	rec.Analysis = resp.Text
	rec.ChatHistory = SeedHistory(prompt, resp.Text)
	zap.L().Info("analysis: complete",
		zap.String("ad_id", ad.ID),
		zap.Int("images", len(images)),
		zap.Int("chars", len(resp.Text)),
	)
	return rec
}

// AskFollowup appends question to prior and asks the backend. ad may be
// nil. On failure the question stays in the history, followed by an error
// turn, and Success is false. prior is not modified.
func (e *Engine) AskFollowup(ctx context.Context, question, adID string, ad *model.AdRecord, prior []model.ChatMessage) *model.FollowupResult {
	history := AppendQuestion(prior, question)

	resp, err := e.backend.Generate(ctx, Request{
		Phase:    PhaseFollowup,
		Preamble: FollowupPreamble(adID, ad),
		Messages: history,
	})
	res := &model.FollowupResult{
		Question: question,
		Model:    e.backend.Model(),
		AskedAt:  e.now().UTC(),
	}
	if err != nil {
		zap.L().Warn("analysis: follow-up failed",
			zap.String("ad_id", adID),
			zap.Error(err),
		)
		res.Error = err.Error()
		res.ChatHistory = AppendTurn(prior, question, errorTurnPrefix+err.Error())
		return res
	}

	res.Success = true
	res.Answer = resp.Text
	res.ChatHistory = AppendTurn(prior, question, resp.Text)
	return res
}
