package database

import (
	"database/sql"
	"fmt"
)

var _ PageSpeedRepository = (*PageSpeedRepo)(nil)

// PageSpeedRepo stores dated page-performance snapshots
type PageSpeedRepo struct {
	db *DB
}

func NewPageSpeedRepository(db *DB) *PageSpeedRepo {
	return &PageSpeedRepo{db: db}
}

func (r *PageSpeedRepo) InsertPageSpeedResult(result PageSpeedResult) error {
	_, err := r.db.Exec(`
		INSERT INTO page_speed_results (
			project_id, url, strategy, performance_score, accessibility_score,
			best_practices_score, seo_score, lcp_ms, fcp_ms, cls, speed_index_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, result.ProjectID, result.URL, result.Strategy,
		result.PerformanceScore, result.AccessibilityScore, result.BestPracticesScore, result.SEOScore,
		result.LCPMs, result.FCPMs, result.CLS, result.SpeedIndexMs)

	if err != nil {
		return fmt.Errorf("failed to insert page speed result: %w", err)
	}

	return nil
}

func (r *PageSpeedRepo) GetLatestPageSpeedResult(projectID int64, strategy string) (*PageSpeedResult, error) {
	var result PageSpeedResult
	err := r.db.QueryRow(`
		SELECT id, project_id, url, strategy, performance_score, accessibility_score,
		       best_practices_score, seo_score, lcp_ms, fcp_ms, cls, speed_index_ms, checked_at
		FROM page_speed_results
		WHERE project_id = ? AND strategy = ?
		ORDER BY checked_at DESC
		LIMIT 1
	`, projectID, strategy).Scan(
		&result.ID, &result.ProjectID, &result.URL, &result.Strategy,
		&result.PerformanceScore, &result.AccessibilityScore, &result.BestPracticesScore, &result.SEOScore,
		&result.LCPMs, &result.FCPMs, &result.CLS, &result.SpeedIndexMs, &result.CheckedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get page speed result: %w", err)
	}

	return &result, nil
}
