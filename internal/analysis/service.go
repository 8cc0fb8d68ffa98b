package analysis

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/classifieds-cli/internal/model"
	"github.com/sells-group/classifieds-cli/internal/store"
)

// ErrEmptyQuestion is returned for a blank follow-up question.
var ErrEmptyQuestion = eris.New("analysis: question is empty")

// Service loads and persists around the Engine. It is cheap to build per
// request; the KeyLock is what is shared.
type Service struct {
	store  store.Store
	engine *Engine
	locks  *store.KeyLock
}

// NewService creates a Service. locks must be shared by every Service that
// writes to the same store.
func NewService(st store.Store, engine *Engine, locks *store.KeyLock) *Service {
	return &Service{store: st, engine: engine, locks: locks}
}

// Analyze analyzes a stored ad. An existing successful analysis is
// returned without calling the backend; a failed one is retried. The
// result is persisted whether or not the backend succeeded.
func (s *Service) Analyze(ctx context.Context, adID string) (*model.AnalysisRecord, error) {
	unlock, err := s.locks.Lock(ctx, adID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	ad, err := s.store.GetAd(ctx, adID)
	if err != nil {
		return nil, eris.Wrapf(err, "analysis: load ad %s", adID)
	}

	existing, err := s.store.GetAnalysis(ctx, adID)
	switch {
	case err == nil && existing.Success:
		zap.L().Debug("analysis: reusing stored analysis", zap.String("ad_id", adID))
		return existing, nil
	case err != nil && !eris.Is(err, store.ErrNotFound):
		return nil, eris.Wrapf(err, "analysis: load analysis %s", adID)
	}

	rec := s.engine.Analyze(ctx, ad, s.loadImages(ctx, ad))
	if err := s.store.SaveAnalysis(ctx, adID, rec); err != nil {
		return nil, eris.Wrapf(err, "analysis: save analysis %s", adID)
	}
	return rec, nil
}

// AskFollowup answers question about adID and persists the turn, failed or
// not. The ad-id lock is held from loading history to saving it.
func (s *Service) AskFollowup(ctx context.Context, adID, question string) (*model.FollowupResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	unlock, err := s.locks.Lock(ctx, adID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	ad, err := optional(s.store.GetAd(ctx, adID))
	if err != nil {
		return nil, eris.Wrapf(err, "analysis: load ad %s", adID)
	}
	chat, err := optional(s.store.GetChat(ctx, adID))
	if err != nil {
		return nil, eris.Wrapf(err, "analysis: load chat %s", adID)
	}
	prior, err := optional(s.store.GetAnalysis(ctx, adID))
	if err != nil {
		return nil, eris.Wrapf(err, "analysis: load analysis %s", adID)
	}
	if chat == nil && prior == nil {
		zap.L().Info("analysis: no prior conversation, starting fresh", zap.String("ad_id", adID))
	}

	res := s.engine.AskFollowup(ctx, question, adID, ad, ResolveHistory(chat, prior))
	if _, err := s.store.SaveChat(ctx, adID, *res); err != nil {
		return nil, eris.Wrapf(err, "analysis: save chat %s", adID)
	}
	return res, nil
}

// loadImages reads up to the engine's cap of stored images in gallery
// order. Unreadable files are skipped.
func (s *Service) loadImages(ctx context.Context, ad *model.AdRecord) []ImagePayload {
	var out []ImagePayload
	for _, name := range ad.ImageFilenames() {
		if len(out) == s.engine.MaxImages() {
			break
		}
		data, err := s.store.ReadImage(ctx, name)
		if err != nil {
			zap.L().Warn("analysis: skipping image",
				zap.String("ad_id", ad.ID),
				zap.String("filename", name),
				zap.Error(err),
			)
			continue
		}
		out = append(out, ImagePayload{Filename: name, MediaType: MediaType(name), Data: data})
	}
	return out
}

// MediaType maps an image filename extension to its MIME type.
func MediaType(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}

// optional turns store.ErrNotFound into a nil result.
func optional[T any](v *T, err error) (*T, error) {
	if err != nil {
		if eris.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return v, nil
}
