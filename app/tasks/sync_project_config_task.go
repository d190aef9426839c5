package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/serpwatch/serp-watch/app/config"
	"github.com/serpwatch/serp-watch/app/database"
)

// SyncProjectConfigTask registers one project configuration in the
// database: the project row, its keywords, its users and memberships, and
// its credentials (installed as the active one per service).
type SyncProjectConfigTask struct {
	Task
	ProjectConfig *config.Config
	projectRepo   database.ProjectRepository
	keywordRepo   database.KeywordRepository
	userRepo      database.UserRepository
	credRepo      database.CredentialRepository
}

func NewSyncProjectConfigTask(projectName string, projectConfig *config.Config,
	projectRepo database.ProjectRepository, keywordRepo database.KeywordRepository,
	userRepo database.UserRepository, credRepo database.CredentialRepository) *SyncProjectConfigTask {
	return &SyncProjectConfigTask{
		Task:          NewTask(TaskTypeSyncProjectConfig, projectName),
		ProjectConfig: projectConfig,
		projectRepo:   projectRepo,
		keywordRepo:   keywordRepo,
		userRepo:      userRepo,
		credRepo:      credRepo,
	}
}

func (t *SyncProjectConfigTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	cfg := t.ProjectConfig

	projectID, err := t.projectRepo.UpsertProject(cfg.Name, cfg.DisplayName, cfg.URL, cfg.Description)
	if err != nil {
		return fmt.Errorf("failed to sync project: %w", err)
	}

	for _, kw := range cfg.Keywords {
		priority := kw.Priority
		if priority == "" {
			priority = "medium"
		}
		err := t.keywordRepo.UpsertKeyword(projectID, database.Keyword{
			Text:      kw.Text,
			Category:  kw.Category,
			Priority:  priority,
			Intent:    kw.Intent,
			GeoTarget: kw.GeoTarget,
			Language:  kw.Language,
		})
		if err != nil {
			return fmt.Errorf("failed to sync keyword %q: %w", kw.Text, err)
		}
	}

	userIDs := make([]int64, 0, len(cfg.Users))
	for _, user := range cfg.Users {
		id, err := t.userRepo.EnsureUser(user.Email, user.Name)
		if err != nil {
			return fmt.Errorf("failed to sync user %q: %w", user.Email, err)
		}
		userIDs = append(userIDs, id)
	}
	if err := t.userRepo.SetProjectUsers(projectID, userIDs); err != nil {
		return fmt.Errorf("failed to sync project users: %w", err)
	}

	for _, cred := range cfg.Credentials {
		existing, err := t.credRepo.GetActiveCredential(projectID, cred.Service)
		if err != nil {
			return fmt.Errorf("failed to check credential for %s: %w", cred.Service, err)
		}
		// Re-installing an identical credential would churn last_used_at
		// history, so only write on change
		if existing != nil && equalValues(existing.Values, cred.Values) {
			continue
		}
		if err := t.credRepo.UpsertCredential(projectID, cred.Service, cred.Values); err != nil {
			return fmt.Errorf("failed to sync credential for %s: %w", cred.Service, err)
		}
	}

	slog.Info("Task completed",
		"type", "SyncProjectConfig",
		"project", t.ProjectName,
		"duration", t.GetDuration(),
		"keywords", len(cfg.Keywords),
		"users", len(cfg.Users))

	return nil
}

func equalValues(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}
