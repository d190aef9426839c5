package database

import (
	"database/sql"
	"fmt"
)

var _ SearchConsoleRepository = (*SearchConsoleRepo)(nil)

// SearchConsoleRepo handles the denormalized per-query performance snapshots
type SearchConsoleRepo struct {
	db *DB
}

func NewSearchConsoleRepository(db *DB) *SearchConsoleRepo {
	return &SearchConsoleRepo{db: db}
}

func (r *SearchConsoleRepo) GetLatestSnapshot(projectID int64, query, page, device, country string) (*SearchConsoleRanking, error) {
	var row SearchConsoleRanking
	err := r.db.QueryRow(`
		SELECT id, project_id, query, page, device, country, clicks, impressions,
		       ctr, position, position_change, date_from, date_to, fetched_at
		FROM search_console_rankings
		WHERE project_id = ? AND query = ? AND page = ? AND device = ? AND country = ?
		ORDER BY fetched_at DESC
		LIMIT 1
	`, projectID, query, page, device, country).Scan(
		&row.ID, &row.ProjectID, &row.Query, &row.Page, &row.Device, &row.Country,
		&row.Clicks, &row.Impressions, &row.CTR, &row.Position, &row.PositionChange,
		&row.DateFrom, &row.DateTo, &row.FetchedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get search console snapshot: %w", err)
	}

	return &row, nil
}

// UpsertSnapshot stores one fetch result. Re-fetching a fixed past window
// overwrites the metrics in place, so repeated runs stay one-row-per-window.
func (r *SearchConsoleRepo) UpsertSnapshot(row SearchConsoleRanking) error {
	_, err := r.db.Exec(`
		INSERT INTO search_console_rankings (
			project_id, query, page, device, country, clicks, impressions,
			ctr, position, position_change, date_from, date_to, fetched_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (project_id, query, page, device, country, date_from, date_to) DO UPDATE SET
			clicks = excluded.clicks,
			impressions = excluded.impressions,
			ctr = excluded.ctr,
			position = excluded.position,
			position_change = excluded.position_change,
			fetched_at = CURRENT_TIMESTAMP
	`, row.ProjectID, row.Query, row.Page, row.Device, row.Country,
		row.Clicks, row.Impressions, row.CTR, row.Position, row.PositionChange,
		row.DateFrom.UTC().Format("2006-01-02"), row.DateTo.UTC().Format("2006-01-02"))

	if err != nil {
		return fmt.Errorf("failed to upsert search console snapshot: %w", err)
	}

	return nil
}
