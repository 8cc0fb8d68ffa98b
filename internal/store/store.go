package store

import (
	"context"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/sells-group/classifieds-cli/internal/config"
	"github.com/sells-group/classifieds-cli/internal/model"
)

// ErrNotFound is returned when the requested record does not exist.
var ErrNotFound = eris.New("store: not found")

// Store defines the persistence interface for listings, analyses, and chats.
type Store interface {
	// Ads
	SaveAd(ctx context.Context, ad *model.AdRecord) error
	GetAd(ctx context.Context, adID string) (*model.AdRecord, error)

	// Analyses
	SaveAnalysis(ctx context.Context, adID string, rec *model.AnalysisRecord) error
	GetAnalysis(ctx context.Context, adID string) (*model.AnalysisRecord, error)

	// Chats. SaveChat merges the turn into the prior record, keeping its
	// created_at, and returns what was written.
	SaveChat(ctx context.Context, adID string, result model.FollowupResult) (*model.ChatRecord, error)
	GetChat(ctx context.Context, adID string) (*model.ChatRecord, error)

	// Images
	SaveImage(ctx context.Context, filename string, data []byte) error
	ReadImage(ctx context.Context, filename string) ([]byte, error)
	ImagePath(filename string) (string, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Driver names accepted by NewFromConfig.
const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"
)

// NewFromConfig opens the store selected by cfg.Driver and migrates it.
func NewFromConfig(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	var (
		st  Store
		err error
	)
	switch cfg.Driver {
	case "", DriverFile:
		st = NewFile(cfg.OutputDir)
	case DriverSQLite:
		dsn := cfg.DatabaseURL
		if dsn == "" {
			dsn = filepath.Join(cfg.OutputDir, "classifieds.db")
		}
		st, err = NewSQLite(dsn, filepath.Join(cfg.OutputDir, imagesDir))
		if err != nil {
			return nil, err
		}
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}

	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}
