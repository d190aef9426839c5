package ranking

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/serpwatch/serp-watch/app/database"
)

const (
	opportunityBandLow  = 11
	opportunityBandHigh = 15
)

// Aggregator builds the weekly per-project summary and hands it to the
// notifier. Projects with no keywords or no users are skipped without a
// notification.
type Aggregator struct {
	keywordRepo database.KeywordRepository
	rankingRepo database.RankingRepository
	userRepo    database.UserRepository
	notifier    Notifier
}

func NewAggregator(keywordRepo database.KeywordRepository, rankingRepo database.RankingRepository,
	userRepo database.UserRepository, notifier Notifier) *Aggregator {
	return &Aggregator{
		keywordRepo: keywordRepo,
		rankingRepo: rankingRepo,
		userRepo:    userRepo,
		notifier:    notifier,
	}
}

// Run computes the summary over [weekStart, weekEnd) and notifies the
// project's users. Returns (nil, nil) when the project was skipped.
func (a *Aggregator) Run(ctx context.Context, project database.Project, weekStart, weekEnd time.Time) (*Summary, error) {
	totalKeywords, err := a.keywordRepo.GetKeywordCount(project.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to count keywords: %w", err)
	}
	if totalKeywords == 0 {
		slog.Debug("Weekly summary skipped", "project", project.Name, "reason", "no keywords")
		return nil, nil
	}

	users, err := a.userRepo.GetProjectUsers(project.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load project users: %w", err)
	}
	if len(users) == 0 {
		slog.Debug("Weekly summary skipped", "project", project.Name, "reason", "no users")
		return nil, nil
	}

	latest, err := a.rankingRepo.GetLatestPerKeyword(project.ID, weekStart, weekEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to load weekly rankings: %w", err)
	}

	summary := BuildSummary(project, totalKeywords, latest, weekStart, weekEnd)

	if err := a.notifier.NotifySummary(ctx, summary); err != nil {
		return nil, fmt.Errorf("failed to send weekly summary: %w", err)
	}

	return &summary, nil
}

// BuildSummary derives the summary statistics from the latest-per-keyword
// ranking set. Pure function.
func BuildSummary(project database.Project, totalKeywords int, latest []database.KeywordRanking, weekStart, weekEnd time.Time) Summary {
	summary := Summary{
		ProjectID:     project.ID,
		ProjectName:   project.Name,
		WeekStart:     weekStart,
		WeekEnd:       weekEnd,
		TotalKeywords: totalKeywords,
		TrackedCount:  len(latest),
	}

	if len(latest) == 0 {
		return summary
	}

	positionSum := 0
	for _, kr := range latest {
		positionSum += kr.Position

		if kr.Position <= 10 {
			summary.Top10Count++
		}
		if kr.Position <= 3 {
			summary.Top3Count++
		}

		if kr.PreviousPosition != nil && kr.Position != *kr.PreviousPosition {
			change := *kr.PreviousPosition - kr.Position
			mover := Mover{
				Keyword:          kr.Keyword,
				Position:         kr.Position,
				PreviousPosition: *kr.PreviousPosition,
				Change:           change,
			}
			if change > 0 {
				summary.Improvements = append(summary.Improvements, mover)
			} else {
				summary.Declines = append(summary.Declines, mover)
			}
		}

		// Evaluated independently of the movers lists: a keyword can be
		// both a mover and an opportunity.
		if kr.Position >= opportunityBandLow && kr.Position <= opportunityBandHigh {
			summary.Opportunities = append(summary.Opportunities, Opportunity{
				Keyword:  kr.Keyword,
				Position: kr.Position,
			})
		}
	}

	summary.AvgPosition = float64(positionSum) / float64(len(latest))

	// Largest improvement first
	sort.SliceStable(summary.Improvements, func(i, j int) bool {
		return summary.Improvements[i].Change > summary.Improvements[j].Change
	})

	// Largest decline first
	sort.SliceStable(summary.Declines, func(i, j int) bool {
		return summary.Declines[i].Change < summary.Declines[j].Change
	})

	// Closest to page one first
	sort.SliceStable(summary.Opportunities, func(i, j int) bool {
		return summary.Opportunities[i].Position < summary.Opportunities[j].Position
	})

	return summary
}
