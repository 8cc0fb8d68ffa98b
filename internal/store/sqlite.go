package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/classifieds-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. Image bytes stay
// on disk.
type SQLiteStore struct {
	imageDir
	db    *sql.DB
	locks *KeyLock
}

// NewSQLite opens a SQLite database at the given path and configures WAL
// mode. Images are kept under imageRoot.
func NewSQLite(dsn, imageRoot string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// Pragmas below are per connection; a single pooled connection keeps
	// them in force for every statement.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{
		imageDir: imageDir{root: imageRoot},
		db:       db,
		locks:    NewKeyLock(),
	}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS ads (
	id         TEXT PRIMARY KEY,
	url        TEXT NOT NULL,
	record     TEXT NOT NULL,
	scraped_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS analyses (
	ad_id       TEXT PRIMARY KEY,
	success     INTEGER NOT NULL,
	record      TEXT NOT NULL,
	analyzed_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS chats (
	ad_id        TEXT PRIMARY KEY,
	model        TEXT NOT NULL DEFAULT '',
	created_at   DATETIME NOT NULL,
	last_updated DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS chat_messages (
	id       TEXT PRIMARY KEY,
	ad_id    TEXT NOT NULL REFERENCES chats(ad_id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	role     TEXT NOT NULL,
	content  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_chat_messages_ad_id ON chat_messages(ad_id, position);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if err := s.imageDir.migrate(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveAd overwrites any earlier record for the same id.
func (s *SQLiteStore) SaveAd(ctx context.Context, ad *model.AdRecord) error {
	adJSON, err := json.Marshal(ad)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal ad")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO ads (id, url, record, scraped_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET url = excluded.url, record = excluded.record, scraped_at = excluded.scraped_at`,
		ad.ID, ad.URL, string(adJSON), ad.ScrapedAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: save ad %s", ad.ID)
}

func (s *SQLiteStore) GetAd(ctx context.Context, adID string) (*model.AdRecord, error) {
	var adJSON string
	err := s.db.QueryRowContext(ctx, `SELECT record FROM ads WHERE id = ?`, adID).Scan(&adJSON)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "ad %s", adID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get ad %s", adID)
	}
	var ad model.AdRecord
	if err := json.Unmarshal([]byte(adJSON), &ad); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal ad")
	}
	return &ad, nil
}

func (s *SQLiteStore) SaveAnalysis(ctx context.Context, adID string, rec *model.AnalysisRecord) error {
	recJSON, err := json.Marshal(rec)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal analysis")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO analyses (ad_id, success, record, analyzed_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(ad_id) DO UPDATE SET success = excluded.success, record = excluded.record, analyzed_at = excluded.analyzed_at`,
		adID, rec.Success, string(recJSON), rec.AnalyzedAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: save analysis %s", adID)
}

func (s *SQLiteStore) GetAnalysis(ctx context.Context, adID string) (*model.AnalysisRecord, error) {
	var recJSON string
	err := s.db.QueryRowContext(ctx, `SELECT record FROM analyses WHERE ad_id = ?`, adID).Scan(&recJSON)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "analysis %s", adID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get analysis %s", adID)
	}
	var rec model.AnalysisRecord
	if err := json.Unmarshal([]byte(recJSON), &rec); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal analysis")
	}
	return &rec, nil
}

// SaveChat merges the turn into the stored conversation in one transaction.
// The chats row keeps its created_at; messages are rewritten in order.
func (s *SQLiteStore) SaveChat(ctx context.Context, adID string, result model.FollowupResult) (*model.ChatRecord, error) {
	unlock, err := s.locks.Lock(ctx, adID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin chat tx")
	}
	defer tx.Rollback() //nolint:errcheck

	prior, err := getChat(ctx, tx, adID)
	if err != nil && !eris.Is(err, ErrNotFound) {
		return nil, err
	}
	merged := model.MergeChat(prior, adID, result)

	_, err = tx.ExecContext(ctx,
		`INSERT INTO chats (ad_id, model, created_at, last_updated) VALUES (?, ?, ?, ?)
		 ON CONFLICT(ad_id) DO UPDATE SET model = excluded.model, last_updated = excluded.last_updated`,
		adID, merged.Model, merged.CreatedAt.UTC(), merged.LastUpdated.UTC(),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: upsert chat %s", adID)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM chat_messages WHERE ad_id = ?`, adID); err != nil {
		return nil, eris.Wrapf(err, "sqlite: clear chat messages %s", adID)
	}
	for i, msg := range merged.ChatHistory {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO chat_messages (id, ad_id, position, role, content) VALUES (?, ?, ?, ?, ?)`,
			uuid.New().String(), adID, i, msg.Role, msg.Content,
		)
		if err != nil {
			return nil, eris.Wrapf(err, "sqlite: insert chat message %s/%d", adID, i)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit chat")
	}
	return &merged, nil
}

func (s *SQLiteStore) GetChat(ctx context.Context, adID string) (*model.ChatRecord, error) {
	return getChat(ctx, s.db, adID)
}

// helpers

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func getChat(ctx context.Context, q querier, adID string) (*model.ChatRecord, error) {
	rec := model.ChatRecord{AdID: adID}
	var createdAt, lastUpdated time.Time

	err := q.QueryRowContext(ctx,
		`SELECT model, created_at, last_updated FROM chats WHERE ad_id = ?`, adID,
	).Scan(&rec.Model, &createdAt, &lastUpdated)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "chat %s", adID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get chat %s", adID)
	}
	rec.CreatedAt = createdAt.UTC()
	rec.LastUpdated = lastUpdated.UTC()

	rows, err := q.QueryContext(ctx,
		`SELECT role, content FROM chat_messages WHERE ad_id = ? ORDER BY position`, adID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list chat messages %s", adID)
	}
	defer rows.Close()

	rec.ChatHistory = []model.ChatMessage{}
	for rows.Next() {
		var msg model.ChatMessage
		if err := rows.Scan(&msg.Role, &msg.Content); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan chat message")
		}
		rec.ChatHistory = append(rec.ChatHistory, msg)
	}
	return &rec, eris.Wrap(rows.Err(), "sqlite: chat messages iterate")
}
