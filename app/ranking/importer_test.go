package ranking

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/serpwatch/serp-watch/app/database"
)

// In-memory fakes shared by the tests in this package.

type fakeSource struct {
	rows  []Row
	err   error
	calls int
}

func (f *fakeSource) FetchRankings(ctx context.Context, creds map[string]string, siteURL string, from, to time.Time) ([]Row, error) {
	f.calls++
	return f.rows, f.err
}

type fakeKeywordRepo struct {
	nextID   int64
	keywords map[string]*database.Keyword
	count    int
	countErr error
}

func newFakeKeywordRepo() *fakeKeywordRepo {
	return &fakeKeywordRepo{keywords: make(map[string]*database.Keyword)}
}

func (f *fakeKeywordRepo) GetKeyword(projectID int64, text string) (*database.Keyword, error) {
	return f.keywords[text], nil
}

func (f *fakeKeywordRepo) GetOrCreateKeyword(projectID int64, text string) (*database.Keyword, error) {
	if kw, ok := f.keywords[text]; ok {
		return kw, nil
	}
	f.nextID++
	kw := &database.Keyword{ID: f.nextID, ProjectID: projectID, Text: text}
	f.keywords[text] = kw
	return kw, nil
}

func (f *fakeKeywordRepo) GetProjectKeywords(projectID int64) ([]database.Keyword, error) {
	result := make([]database.Keyword, 0, len(f.keywords))
	for _, kw := range f.keywords {
		result = append(result, *kw)
	}
	return result, nil
}

func (f *fakeKeywordRepo) GetKeywordCount(projectID int64) (int, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	if f.count > 0 {
		return f.count, nil
	}
	return len(f.keywords), nil
}

func (f *fakeKeywordRepo) UpsertKeyword(projectID int64, kw database.Keyword) error {
	return nil
}

func (f *fakeKeywordRepo) UpdateKeywordMetrics(keywordID int64, metrics database.KeywordMetrics) error {
	return nil
}

type fakeRankingRepo struct {
	rankings []database.Ranking
	latest   []database.KeywordRanking
}

func (f *fakeRankingRepo) GetLatestRankingBefore(keywordID int64, before time.Time) (*database.Ranking, error) {
	var found *database.Ranking
	for i := range f.rankings {
		r := f.rankings[i]
		if r.KeywordID != keywordID || !r.CheckedAt.Before(before) {
			continue
		}
		if found == nil || r.CheckedAt.After(found.CheckedAt) {
			found = &f.rankings[i]
		}
	}
	return found, nil
}

func (f *fakeRankingRepo) InsertRanking(r database.Ranking) (bool, error) {
	for _, existing := range f.rankings {
		if existing.KeywordID == r.KeywordID && existing.CheckedAt.Equal(r.CheckedAt) {
			return false, nil
		}
	}
	f.rankings = append(f.rankings, r)
	return true, nil
}

func (f *fakeRankingRepo) GetLatestPerKeyword(projectID int64, from, to time.Time) ([]database.KeywordRanking, error) {
	return f.latest, nil
}

func (f *fakeRankingRepo) GetRankingHistory(projectID int64, since time.Time) ([]database.KeywordRanking, error) {
	return nil, nil
}

func (f *fakeRankingRepo) GetRankingCount(projectID int64) (int, error) {
	return len(f.rankings), nil
}

type fakeSearchConsoleRepo struct {
	snapshots []database.SearchConsoleRanking
}

func (f *fakeSearchConsoleRepo) GetLatestSnapshot(projectID int64, query, page, device, country string) (*database.SearchConsoleRanking, error) {
	var found *database.SearchConsoleRanking
	for i := range f.snapshots {
		s := f.snapshots[i]
		if s.Query == query && s.Page == page && s.Device == device && s.Country == country {
			found = &f.snapshots[i]
		}
	}
	return found, nil
}

func (f *fakeSearchConsoleRepo) UpsertSnapshot(row database.SearchConsoleRanking) error {
	f.snapshots = append(f.snapshots, row)
	return nil
}

type fakeCredentialRepo struct {
	cred    *database.APICredential
	touched int
}

func (f *fakeCredentialRepo) GetActiveCredential(projectID int64, service string) (*database.APICredential, error) {
	return f.cred, nil
}

func (f *fakeCredentialRepo) UpsertCredential(projectID int64, service string, values map[string]string) error {
	return nil
}

func (f *fakeCredentialRepo) TouchCredential(id int64) error {
	f.touched++
	return nil
}

type fakeUserRepo struct {
	users []database.User
}

func (f *fakeUserRepo) EnsureUser(email, name string) (int64, error) {
	return 1, nil
}

func (f *fakeUserRepo) SetProjectUsers(projectID int64, userIDs []int64) error {
	return nil
}

func (f *fakeUserRepo) GetProjectUsers(projectID int64) ([]database.User, error) {
	return f.users, nil
}

type fakeNotifier struct {
	changes   []ChangeEvent
	summaries []Summary
	err       error
}

func (f *fakeNotifier) NotifyChange(ctx context.Context, event ChangeEvent) error {
	if f.err != nil {
		return f.err
	}
	f.changes = append(f.changes, event)
	return nil
}

func (f *fakeNotifier) NotifySummary(ctx context.Context, summary Summary) error {
	if f.err != nil {
		return f.err
	}
	f.summaries = append(f.summaries, summary)
	return nil
}

func testProject() database.Project {
	return database.Project{ID: 1, Name: "example", URL: "https://example.com"}
}

func testCredential() *database.APICredential {
	return &database.APICredential{ID: 7, Values: map[string]string{"access_token": "token"}}
}

func newTestImporter(source *fakeSource, credRepo *fakeCredentialRepo) (*Importer, *fakeKeywordRepo, *fakeRankingRepo, *fakeNotifier) {
	keywordRepo := newFakeKeywordRepo()
	rankingRepo := &fakeRankingRepo{}
	notifier := &fakeNotifier{}
	importer := NewImporter(source, keywordRepo, rankingRepo, &fakeSearchConsoleRepo{}, credRepo, notifier, 5)
	return importer, keywordRepo, rankingRepo, notifier
}

func TestImporter_Run_FirstImportHasNoPreviousPosition(t *testing.T) {
	source := &fakeSource{rows: []Row{
		{Query: "coffee beans", Page: "https://example.com/beans", Position: 12.4},
	}}
	importer, _, rankingRepo, notifier := newTestImporter(source, &fakeCredentialRepo{cred: testCredential()})

	checkedAt := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	result, err := importer.Run(context.Background(), testProject(), checkedAt.AddDate(0, 0, -1), checkedAt, checkedAt)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.Imported != 1 {
		t.Errorf("Expected 1 imported row, got %d", result.Imported)
	}
	if len(rankingRepo.rankings) != 1 {
		t.Fatalf("Expected 1 stored ranking, got %d", len(rankingRepo.rankings))
	}

	stored := rankingRepo.rankings[0]
	if stored.Position != 12 {
		t.Errorf("Expected rounded position 12, got %d", stored.Position)
	}
	if stored.PreviousPosition != nil {
		t.Errorf("First ranking should have no previous position, got %d", *stored.PreviousPosition)
	}
	if len(notifier.changes) != 0 {
		t.Errorf("First ranking should not notify, got %d events", len(notifier.changes))
	}
}

func TestImporter_Run_PreviousPositionFromLatestPriorRanking(t *testing.T) {
	source := &fakeSource{rows: []Row{
		{Query: "coffee beans", Page: "https://example.com/beans", Position: 8.0},
	}}
	importer, keywordRepo, rankingRepo, notifier := newTestImporter(source, &fakeCredentialRepo{cred: testCredential()})

	kw, _ := keywordRepo.GetOrCreateKeyword(1, "coffee beans")
	day := func(d int) time.Time { return time.Date(2026, 3, d, 0, 0, 0, 0, time.UTC) }

	// Two prior rankings, deliberately appended out of chronological order.
	rankingRepo.rankings = append(rankingRepo.rankings,
		database.Ranking{KeywordID: kw.ID, Position: 12, CheckedAt: day(2)},
		database.Ranking{KeywordID: kw.ID, Position: 15, CheckedAt: day(1)},
	)

	checkedAt := day(3)
	result, err := importer.Run(context.Background(), testProject(), day(2), day(3), checkedAt)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.Imported != 1 {
		t.Fatalf("Expected 1 imported row, got %d", result.Imported)
	}

	stored := rankingRepo.rankings[len(rankingRepo.rankings)-1]
	if stored.PreviousPosition == nil || *stored.PreviousPosition != 12 {
		t.Errorf("Previous position should come from the latest prior ranking (12), got %v", stored.PreviousPosition)
	}

	// 12 -> 8 crosses into the first page
	if len(notifier.changes) != 1 {
		t.Fatalf("Expected 1 change event, got %d", len(notifier.changes))
	}
	if notifier.changes[0].Category != CategoryFirstPage {
		t.Errorf("Expected first_page category, got %q", notifier.changes[0].Category)
	}
}

func TestImporter_Run_RerunOfSameWindowIsIdempotent(t *testing.T) {
	source := &fakeSource{rows: []Row{
		{Query: "coffee beans", Page: "https://example.com/beans", Position: 3.0},
	}}
	importer, _, rankingRepo, notifier := newTestImporter(source, &fakeCredentialRepo{cred: testCredential()})

	checkedAt := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	project := testProject()

	first, err := importer.Run(context.Background(), project, checkedAt.AddDate(0, 0, -1), checkedAt, checkedAt)
	if err != nil {
		t.Fatalf("First run failed: %v", err)
	}
	second, err := importer.Run(context.Background(), project, checkedAt.AddDate(0, 0, -1), checkedAt, checkedAt)
	if err != nil {
		t.Fatalf("Second run failed: %v", err)
	}

	if first.Imported != 1 || first.Duplicates != 0 {
		t.Errorf("First run expected 1 imported / 0 duplicates, got %d / %d", first.Imported, first.Duplicates)
	}
	if second.Imported != 0 || second.Duplicates != 1 {
		t.Errorf("Second run expected 0 imported / 1 duplicate, got %d / %d", second.Imported, second.Duplicates)
	}
	if len(rankingRepo.rankings) != 1 {
		t.Errorf("Re-run should not add ranking rows, got %d", len(rankingRepo.rankings))
	}
	if len(notifier.changes) != 0 {
		t.Errorf("Duplicate rows should not notify, got %d events", len(notifier.changes))
	}
}

func TestImporter_Run_MissingCredentialSkipsProject(t *testing.T) {
	source := &fakeSource{rows: []Row{{Query: "coffee beans", Position: 4.0}}}
	importer, _, rankingRepo, _ := newTestImporter(source, &fakeCredentialRepo{cred: nil})

	checkedAt := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	result, err := importer.Run(context.Background(), testProject(), checkedAt.AddDate(0, 0, -1), checkedAt, checkedAt)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if !result.Skipped {
		t.Error("Project without credential should be skipped")
	}
	if source.calls != 0 {
		t.Errorf("Source should not be called for a skipped project, got %d calls", source.calls)
	}
	if len(rankingRepo.rankings) != 0 {
		t.Errorf("Skipped project should store nothing, got %d rankings", len(rankingRepo.rankings))
	}
}

func TestImporter_Run_BadRowsDoNotAbortTheBatch(t *testing.T) {
	source := &fakeSource{rows: []Row{
		{Query: "coffee beans", Page: "https://example.com/beans", Position: 4.0},
		{Query: "   ", Position: 7.0},
		{Query: "espresso machine", Position: 0},
		{Query: "cold brew", Page: "https://example.com/cold-brew", Position: 18.0},
	}}
	importer, _, rankingRepo, _ := newTestImporter(source, &fakeCredentialRepo{cred: testCredential()})

	checkedAt := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	result, err := importer.Run(context.Background(), testProject(), checkedAt.AddDate(0, 0, -1), checkedAt, checkedAt)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.Imported != 2 {
		t.Errorf("Expected 2 imported rows, got %d", result.Imported)
	}
	if result.RowErrors != 2 {
		t.Errorf("Expected 2 row errors, got %d", result.RowErrors)
	}
	if len(rankingRepo.rankings) != 2 {
		t.Errorf("Expected 2 stored rankings, got %d", len(rankingRepo.rankings))
	}
}

func TestImporter_Run_SourceErrorPropagates(t *testing.T) {
	source := &fakeSource{err: errors.New("upstream unavailable")}
	importer, _, _, _ := newTestImporter(source, &fakeCredentialRepo{cred: testCredential()})

	checkedAt := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	_, err := importer.Run(context.Background(), testProject(), checkedAt.AddDate(0, 0, -1), checkedAt, checkedAt)
	if err == nil {
		t.Fatal("Expected error when the source fails")
	}
}

func TestImporter_Run_TouchesCredentialAfterImport(t *testing.T) {
	source := &fakeSource{rows: []Row{{Query: "coffee beans", Position: 4.0}}}
	credRepo := &fakeCredentialRepo{cred: testCredential()}
	importer, _, _, _ := newTestImporter(source, credRepo)

	checkedAt := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	if _, err := importer.Run(context.Background(), testProject(), checkedAt.AddDate(0, 0, -1), checkedAt, checkedAt); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if credRepo.touched != 1 {
		t.Errorf("Expected credential to be touched once, got %d", credRepo.touched)
	}
}

func TestRoundPosition_ClampsToSchemaRange(t *testing.T) {
	cases := []struct {
		in   float64
		want int
	}{
		{0.4, 1},
		{1.0, 1},
		{12.5, 13},
		{12.4, 12},
		{250.0, 200},
	}

	for _, c := range cases {
		if got := roundPosition(c.in); got != c.want {
			t.Errorf("roundPosition(%v) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestImporter_Run_PreviousPositionChainsAcrossRuns(t *testing.T) {
	source := &fakeSource{}
	importer, _, rankingRepo, _ := newTestImporter(source, &fakeCredentialRepo{cred: testCredential()})

	day1 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	windowStart := day1.AddDate(0, 0, -3)

	// A daily sync, an evening refresh, and the next morning's sync, each
	// observing a new position.
	runs := []struct {
		position  float64
		checkedAt time.Time
	}{
		{20, day1.Add(6 * time.Hour)},
		{12, day1.Add(21 * time.Hour)},
		{8, day1.Add(30 * time.Hour)},
	}

	for _, run := range runs {
		source.rows = []Row{{Query: "coffee beans", Page: "https://example.com/beans", Position: run.position}}
		if _, err := importer.Run(context.Background(), testProject(), windowStart, day1, run.checkedAt); err != nil {
			t.Fatalf("Run at %v failed: %v", run.checkedAt, err)
		}
	}

	rows := append([]database.Ranking(nil), rankingRepo.rankings...)
	if len(rows) != 3 {
		t.Fatalf("Expected 3 rankings, got %d", len(rows))
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].CheckedAt.Before(rows[j].CheckedAt) })

	if rows[0].PreviousPosition != nil {
		t.Errorf("First observation should have no previous position, got %d", *rows[0].PreviousPosition)
	}
	for i := 1; i < len(rows); i++ {
		if rows[i].PreviousPosition == nil {
			t.Fatalf("Ranking at %v has no previous position", rows[i].CheckedAt)
		}
		if *rows[i].PreviousPosition != rows[i-1].Position {
			t.Errorf("Ranking at %v has previous position %d, want the chronological predecessor's %d",
				rows[i].CheckedAt, *rows[i].PreviousPosition, rows[i-1].Position)
		}
	}
}
