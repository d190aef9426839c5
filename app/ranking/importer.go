package ranking

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/serpwatch/serp-watch/app/database"
)

// Importer reconciles search-analytics rows into the ranking history. For
// every returned query it resolves the keyword, snapshots the previous
// position from the chronologically latest prior ranking, and appends an
// integer-position ranking row; the fractional source row is kept separately
// in the search console table.
type Importer struct {
	source      SearchAnalyticsSource
	keywordRepo database.KeywordRepository
	rankingRepo database.RankingRepository
	scRepo      database.SearchConsoleRepository
	credRepo    database.CredentialRepository
	notifier    Notifier
	threshold   int
}

func NewImporter(source SearchAnalyticsSource, keywordRepo database.KeywordRepository,
	rankingRepo database.RankingRepository, scRepo database.SearchConsoleRepository,
	credRepo database.CredentialRepository, notifier Notifier, threshold int) *Importer {
	return &Importer{
		source:      source,
		keywordRepo: keywordRepo,
		rankingRepo: rankingRepo,
		scRepo:      scRepo,
		credRepo:    credRepo,
		notifier:    notifier,
		threshold:   threshold,
	}
}

// Run imports one project for the [from, to] date window, stamping ranking
// rows with checkedAt. Callers must derive checkedAt from the execution
// clock so successive runs stamp monotonically; re-runs with the same
// stamp are idempotent under the (keyword, checked_at) unique key. A
// missing credential is a clean skip, not an error.
func (im *Importer) Run(ctx context.Context, project database.Project, from, to, checkedAt time.Time) (ImportResult, error) {
	var result ImportResult

	cred, err := im.credRepo.GetActiveCredential(project.ID, database.ServiceSearchConsole)
	if err != nil {
		return result, fmt.Errorf("failed to load credential: %w", err)
	}
	if cred == nil {
		result.Skipped = true
		result.SkipReason = "no active search console credential"
		slog.Warn("Project skipped", "project", project.Name, "reason", result.SkipReason)
		return result, nil
	}

	rows, err := im.source.FetchRankings(ctx, cred.Values, project.URL, from, to)
	if err != nil {
		return result, fmt.Errorf("failed to fetch rankings: %w", err)
	}

	for _, row := range rows {
		query := strings.TrimSpace(row.Query)
		if query == "" || row.Position <= 0 {
			slog.Warn("Unusable analytics row skipped", "project", project.Name, "query", row.Query, "position", row.Position)
			result.RowErrors++
			continue
		}

		imported, notified, err := im.importRow(ctx, project, query, row, from, to, checkedAt)
		if err != nil {
			slog.Error("Row import failed", "project", project.Name, "query", query, "error", err)
			result.RowErrors++
			continue
		}

		if imported {
			result.Imported++
		} else {
			result.Duplicates++
		}
		if notified {
			result.Notified++
		}
	}

	if err := im.credRepo.TouchCredential(cred.ID); err != nil {
		slog.Warn("Failed to update credential usage", "project", project.Name, "error", err)
	}

	return result, nil
}

func (im *Importer) importRow(ctx context.Context, project database.Project, query string, row Row, from, to, checkedAt time.Time) (bool, bool, error) {
	kw, err := im.keywordRepo.GetOrCreateKeyword(project.ID, query)
	if err != nil {
		return false, false, fmt.Errorf("failed to resolve keyword: %w", err)
	}

	// previous_position comes from the chronologically latest prior row, not
	// from insertion order, so out-of-order windows stay consistent.
	prior, err := im.rankingRepo.GetLatestRankingBefore(kw.ID, checkedAt)
	if err != nil {
		return false, false, fmt.Errorf("failed to load prior ranking: %w", err)
	}

	position := roundPosition(row.Position)

	var previous *int
	if prior != nil {
		p := prior.Position
		previous = &p
	}

	inserted, err := im.rankingRepo.InsertRanking(database.Ranking{
		KeywordID:        kw.ID,
		Position:         position,
		PreviousPosition: previous,
		URL:              row.Page,
		CheckedAt:        checkedAt,
	})
	if err != nil {
		return false, false, fmt.Errorf("failed to insert ranking: %w", err)
	}

	if err := im.storeSnapshot(project.ID, query, row, from, to); err != nil {
		// Snapshot trouble should not undo an imported ranking
		slog.Warn("Search console snapshot failed", "project", project.Name, "query", query, "error", err)
	}

	if !inserted {
		return false, false, nil
	}

	notified := false
	if previous != nil && *previous != position {
		category := Classify(position, previous, im.threshold)
		if category != CategoryNone {
			event := ChangeEvent{
				ProjectID:        project.ID,
				ProjectName:      project.Name,
				Keyword:          query,
				Position:         position,
				PreviousPosition: previous,
				URL:              row.Page,
				Category:         category,
			}
			if err := im.notifier.NotifyChange(ctx, event); err != nil {
				slog.Error("Change notification failed", "project", project.Name, "keyword", query, "error", err)
			} else {
				notified = true
			}
		}
	}

	return true, notified, nil
}

// storeSnapshot keeps the fractional source row, with position_change
// computed against the last fetch for the same query/page key.
func (im *Importer) storeSnapshot(projectID int64, query string, row Row, from, to time.Time) error {
	snapshot := database.SearchConsoleRanking{
		ProjectID:   projectID,
		Query:       query,
		Page:        row.Page,
		Device:      "all",
		Country:     "all",
		Clicks:      row.Clicks,
		Impressions: row.Impressions,
		CTR:         row.CTR,
		Position:    row.Position,
		DateFrom:    from,
		DateTo:      to,
	}

	prior, err := im.scRepo.GetLatestSnapshot(projectID, query, row.Page, "all", "all")
	if err != nil {
		return err
	}
	if prior != nil {
		change := prior.Position - row.Position
		snapshot.PositionChange = &change
	}

	return im.scRepo.UpsertSnapshot(snapshot)
}

// roundPosition converts the fractional average to the integer ranking
// position, clamped to the 1-200 range the schema accepts.
func roundPosition(position float64) int {
	p := int(math.Round(position))
	if p < 1 {
		p = 1
	}
	if p > 200 {
		p = 200
	}
	return p
}
