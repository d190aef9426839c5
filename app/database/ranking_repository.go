package database

import (
	"database/sql"
	"fmt"
	"time"
)

var _ RankingRepository = (*RankingRepo)(nil)

// RankingRepo handles database operations for ranking history
type RankingRepo struct {
	db *DB
}

func NewRankingRepository(db *DB) *RankingRepo {
	return &RankingRepo{db: db}
}

func (r *RankingRepo) GetLatestRankingBefore(keywordID int64, before time.Time) (*Ranking, error) {
	var rk Ranking
	err := r.db.QueryRow(`
		SELECT id, keyword_id, position, previous_position, url, featured_snippet,
		       serp_features, checked_at, created_at
		FROM rankings
		WHERE keyword_id = ? AND checked_at < ?
		ORDER BY checked_at DESC
		LIMIT 1
	`, keywordID, before.UTC()).Scan(
		&rk.ID, &rk.KeywordID, &rk.Position, &rk.PreviousPosition, &rk.URL,
		&rk.FeaturedSnippet, &rk.SerpFeatures, &rk.CheckedAt, &rk.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest ranking: %w", err)
	}

	return &rk, nil
}

// InsertRanking appends a ranking row. The (keyword_id, checked_at) unique
// key makes re-imports of the same window no-ops; the returned bool reports
// whether a row was actually inserted.
func (r *RankingRepo) InsertRanking(rk Ranking) (bool, error) {
	serpFeatures := rk.SerpFeatures
	if serpFeatures == "" {
		serpFeatures = "{}"
	}

	res, err := r.db.Exec(`
		INSERT INTO rankings (keyword_id, position, previous_position, url, featured_snippet, serp_features, checked_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (keyword_id, checked_at) DO NOTHING
	`, rk.KeywordID, rk.Position, rk.PreviousPosition, rk.URL, rk.FeaturedSnippet, serpFeatures, rk.CheckedAt.UTC())

	if err != nil {
		return false, fmt.Errorf("failed to insert ranking: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read insert result: %w", err)
	}

	return affected > 0, nil
}

// GetLatestPerKeyword selects the single most recent ranking per keyword
// inside [from, to), joined with the keyword text.
func (r *RankingRepo) GetLatestPerKeyword(projectID int64, from, to time.Time) ([]KeywordRanking, error) {
	rows, err := r.db.Query(`
		SELECT k.id, k.text, rk.position, rk.previous_position, rk.url, rk.checked_at
		FROM rankings rk
		JOIN keywords k ON k.id = rk.keyword_id
		WHERE k.project_id = ?
		  AND rk.checked_at >= ? AND rk.checked_at < ?
		  AND rk.checked_at = (
			SELECT MAX(r2.checked_at) FROM rankings r2
			WHERE r2.keyword_id = rk.keyword_id
			  AND r2.checked_at >= ? AND r2.checked_at < ?
		  )
		ORDER BY k.text
	`, projectID, from.UTC(), to.UTC(), from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to get latest rankings per keyword: %w", err)
	}
	defer rows.Close()

	return scanKeywordRankings(rows)
}

func (r *RankingRepo) GetRankingHistory(projectID int64, since time.Time) ([]KeywordRanking, error) {
	rows, err := r.db.Query(`
		SELECT k.id, k.text, rk.position, rk.previous_position, rk.url, rk.checked_at
		FROM rankings rk
		JOIN keywords k ON k.id = rk.keyword_id
		WHERE k.project_id = ? AND rk.checked_at >= ?
		ORDER BY rk.checked_at DESC, k.text
	`, projectID, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to get ranking history: %w", err)
	}
	defer rows.Close()

	return scanKeywordRankings(rows)
}

func (r *RankingRepo) GetRankingCount(projectID int64) (int, error) {
	var count int
	err := r.db.QueryRow(`
		SELECT COUNT(*)
		FROM rankings rk
		JOIN keywords k ON k.id = rk.keyword_id
		WHERE k.project_id = ?
	`, projectID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get ranking count: %w", err)
	}
	return count, nil
}

func scanKeywordRankings(rows *sql.Rows) ([]KeywordRanking, error) {
	var rankings []KeywordRanking
	for rows.Next() {
		var kr KeywordRanking
		err := rows.Scan(&kr.KeywordID, &kr.Keyword, &kr.Position, &kr.PreviousPosition, &kr.URL, &kr.CheckedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ranking row: %w", err)
		}
		rankings = append(rankings, kr)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ranking rows: %w", err)
	}

	return rankings, nil
}
