package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/sells-group/classifieds-cli/internal/model"
)

// FileStore keeps one pretty-printed JSON document per record kind and ad
// id in a flat output directory, with images in a subdirectory.
type FileStore struct {
	imageDir
	dir   string
	locks *KeyLock
}

// NewFile creates a FileStore rooted at dir. Call Migrate to create the
// directories.
func NewFile(dir string) *FileStore {
	return &FileStore{
		imageDir: imageDir{root: filepath.Join(dir, imagesDir)},
		dir:      dir,
		locks:    NewKeyLock(),
	}
}

func (s *FileStore) Migrate(_ context.Context) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return eris.Wrap(err, "store: create output dir")
	}
	return s.imageDir.migrate()
}

func (s *FileStore) Close() error {
	return nil
}

func (s *FileStore) adPath(adID string) string {
	return filepath.Join(s.dir, adID+".json")
}

func (s *FileStore) analysisPath(adID string) string {
	return filepath.Join(s.dir, adID+"_analysis.json")
}

func (s *FileStore) chatPath(adID string) string {
	return filepath.Join(s.dir, adID+"_chat.json")
}

// SaveAd overwrites any earlier record for the same id.
func (s *FileStore) SaveAd(_ context.Context, ad *model.AdRecord) error {
	if !validFilename(ad.ID) {
		return eris.Errorf("store: invalid ad id %q", ad.ID)
	}
	return writeJSON(s.adPath(ad.ID), ad)
}

func (s *FileStore) GetAd(_ context.Context, adID string) (*model.AdRecord, error) {
	var ad model.AdRecord
	if err := s.readRecord(s.adPath(adID), adID, &ad); err != nil {
		return nil, err
	}
	return &ad, nil
}

func (s *FileStore) SaveAnalysis(_ context.Context, adID string, rec *model.AnalysisRecord) error {
	if !validFilename(adID) {
		return eris.Errorf("store: invalid ad id %q", adID)
	}
	return writeJSON(s.analysisPath(adID), rec)
}

func (s *FileStore) GetAnalysis(_ context.Context, adID string) (*model.AnalysisRecord, error) {
	var rec model.AnalysisRecord
	if err := s.readRecord(s.analysisPath(adID), adID, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *FileStore) SaveChat(ctx context.Context, adID string, result model.FollowupResult) (*model.ChatRecord, error) {
	if !validFilename(adID) {
		return nil, eris.Errorf("store: invalid ad id %q", adID)
	}

	unlock, err := s.locks.Lock(ctx, adID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	prior, err := s.GetChat(ctx, adID)
	if err != nil && !eris.Is(err, ErrNotFound) {
		return nil, err
	}

	merged := model.MergeChat(prior, adID, result)
	if err := writeJSON(s.chatPath(adID), &merged); err != nil {
		return nil, err
	}
	return &merged, nil
}

func (s *FileStore) GetChat(_ context.Context, adID string) (*model.ChatRecord, error) {
	var rec model.ChatRecord
	if err := s.readRecord(s.chatPath(adID), adID, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *FileStore) readRecord(path, adID string, v any) error {
	if !validFilename(adID) {
		return eris.Wrapf(ErrNotFound, "ad id %q", adID)
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return eris.Wrapf(ErrNotFound, "%s", filepath.Base(path))
	}
	if err != nil {
		return eris.Wrapf(err, "store: read %s", filepath.Base(path))
	}
	if err := json.Unmarshal(data, v); err != nil {
		return eris.Wrapf(err, "store: decode %s", filepath.Base(path))
	}
	return nil
}

// writeJSON encodes v with two-space indentation and literal non-ASCII and
// HTML characters, then writes it atomically.
func writeJSON(path string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return eris.Wrapf(err, "store: encode %s", filepath.Base(path))
	}
	return writeFileAtomic(path, buf.Bytes())
}
