package database

import (
	"database/sql"
	"fmt"
)

var _ KeywordRepository = (*KeywordRepo)(nil)

// KeywordRepo handles database operations for keywords
type KeywordRepo struct {
	db *DB
}

func NewKeywordRepository(db *DB) *KeywordRepo {
	return &KeywordRepo{db: db}
}

const keywordColumns = `id, project_id, text, category, priority, intent, geo_target, language,
	search_volume, difficulty, competition_index, low_bid_micros, high_bid_micros,
	created_at, updated_at`

func scanKeyword(row interface{ Scan(...any) error }) (*Keyword, error) {
	var kw Keyword
	err := row.Scan(
		&kw.ID, &kw.ProjectID, &kw.Text, &kw.Category, &kw.Priority, &kw.Intent,
		&kw.GeoTarget, &kw.Language, &kw.SearchVolume, &kw.Difficulty,
		&kw.CompetitionIndex, &kw.LowBidMicros, &kw.HighBidMicros,
		&kw.CreatedAt, &kw.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &kw, nil
}

func (r *KeywordRepo) GetKeyword(projectID int64, text string) (*Keyword, error) {
	kw, err := scanKeyword(r.db.QueryRow(`
		SELECT `+keywordColumns+`
		FROM keywords
		WHERE project_id = ? AND text = ?
	`, projectID, text))

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get keyword: %w", err)
	}

	return kw, nil
}

func (r *KeywordRepo) GetOrCreateKeyword(projectID int64, text string) (*Keyword, error) {
	existing, err := r.GetKeyword(projectID, text)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	_, err = r.db.Exec(`
		INSERT INTO keywords (project_id, text)
		VALUES (?, ?)
		ON CONFLICT (project_id, text) DO NOTHING
	`, projectID, text)
	if err != nil {
		return nil, fmt.Errorf("failed to create keyword: %w", err)
	}

	return r.GetKeyword(projectID, text)
}

func (r *KeywordRepo) GetProjectKeywords(projectID int64) ([]Keyword, error) {
	rows, err := r.db.Query(`
		SELECT `+keywordColumns+`
		FROM keywords
		WHERE project_id = ?
		ORDER BY text
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to get keywords: %w", err)
	}
	defer rows.Close()

	var keywords []Keyword
	for rows.Next() {
		kw, err := scanKeyword(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan keyword row: %w", err)
		}
		keywords = append(keywords, *kw)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating keyword rows: %w", err)
	}

	return keywords, nil
}

func (r *KeywordRepo) GetKeywordCount(projectID int64) (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM keywords WHERE project_id = ?", projectID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get keyword count: %w", err)
	}
	return count, nil
}

// UpsertKeyword registers a configured keyword, updating the descriptive
// attributes without touching metric columns owned by the metrics job.
func (r *KeywordRepo) UpsertKeyword(projectID int64, kw Keyword) error {
	_, err := r.db.Exec(`
		INSERT INTO keywords (project_id, text, category, priority, intent, geo_target, language)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (project_id, text) DO UPDATE SET
			category = excluded.category,
			priority = excluded.priority,
			intent = excluded.intent,
			geo_target = excluded.geo_target,
			language = excluded.language,
			updated_at = CURRENT_TIMESTAMP
	`, projectID, kw.Text, kw.Category, kw.Priority, kw.Intent, kw.GeoTarget, kw.Language)

	if err != nil {
		return fmt.Errorf("failed to upsert keyword: %w", err)
	}

	return nil
}

// UpdateKeywordMetrics applies metric values from the keyword-metrics job.
// Nil fields keep the previously stored value.
func (r *KeywordRepo) UpdateKeywordMetrics(keywordID int64, metrics KeywordMetrics) error {
	_, err := r.db.Exec(`
		UPDATE keywords
		SET search_volume = COALESCE(?, search_volume),
			competition_index = COALESCE(?, competition_index),
			low_bid_micros = COALESCE(?, low_bid_micros),
			high_bid_micros = COALESCE(?, high_bid_micros),
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, metrics.SearchVolume, metrics.CompetitionIndex, metrics.LowBidMicros, metrics.HighBidMicros, keywordID)

	if err != nil {
		return fmt.Errorf("failed to update keyword metrics: %w", err)
	}

	return nil
}
