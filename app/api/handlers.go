package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/serpwatch/serp-watch/app/config"
	"github.com/serpwatch/serp-watch/app/database"
	"github.com/serpwatch/serp-watch/app/ranking"
	"github.com/serpwatch/serp-watch/app/tasks"
)

func NewHandler(configCache *config.Cache, projectRepo database.ProjectRepository,
	keywordRepo database.KeywordRepository, rankingRepo database.RankingRepository,
	userRepo database.UserRepository, credRepo database.CredentialRepository,
	notificationRepo database.NotificationRepository,
	insightSource InsightSourceInterface, scheduler tasks.TaskSchedulerInterface,
	jobBuilder JobTaskBuilderInterface) *Handler {
	return &Handler{
		configCache:      configCache,
		projectRepo:      projectRepo,
		keywordRepo:      keywordRepo,
		rankingRepo:      rankingRepo,
		userRepo:         userRepo,
		credRepo:         credRepo,
		notificationRepo: notificationRepo,
		insightSource:    insightSource,
		scheduler:        scheduler,
		jobBuilder:       jobBuilder,
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	if projectCount, err := h.projectRepo.GetProjectCount(); err == nil {
		health["projects"] = projectCount
	}

	health["loaded_configurations"] = h.configCache.GetConfigCount()

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	stats := map[string]interface{}{
		"loaded_configurations": h.configCache.GetConfigCount(),
	}

	projects, err := h.projectRepo.GetAllProjects()
	if err != nil {
		slog.Error("Database error", "operation", "get_all_projects", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	perProject := make([]map[string]interface{}, 0, len(projects))
	for _, project := range projects {
		projectStats := map[string]interface{}{
			"name": project.Name,
			"url":  project.URL,
		}
		if keywordCount, err := h.keywordRepo.GetKeywordCount(project.ID); err == nil {
			projectStats["keywords"] = keywordCount
		}
		if rankingCount, err := h.rankingRepo.GetRankingCount(project.ID); err == nil {
			projectStats["rankings"] = rankingCount
		}
		perProject = append(perProject, projectStats)
	}

	stats["projects"] = perProject
	stats["total"] = len(perProject)

	c.JSON(http.StatusOK, stats)
}

func (h *Handler) APIListProjects(c *gin.Context) {
	configs := h.configCache.GetConfigs()

	projects := make([]map[string]interface{}, 0, len(configs))

	for _, projectConfig := range configs {
		projectInfo := map[string]interface{}{
			"name":         projectConfig.Name,
			"url":          projectConfig.URL,
			"display_name": projectConfig.DisplayName,
			"enabled":      projectConfig.Settings.Enabled,
			"keywords":     len(projectConfig.Keywords),
			"users":        len(projectConfig.Users),
		}

		if project, err := h.projectRepo.GetProject(projectConfig.Name); err == nil && project != nil {
			projectInfo["created_at"] = project.CreatedAt
			projectInfo["updated_at"] = project.UpdatedAt

			if rankingCount, err := h.rankingRepo.GetRankingCount(project.ID); err == nil {
				projectInfo["ranking_count"] = rankingCount
			}
		}

		projects = append(projects, projectInfo)
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"projects": projects,
		"total":    len(projects),
	})
}

func (h *Handler) APIGetProjectDetails(c *gin.Context) {
	projectConfig, project, ok := h.resolveProject(c)
	if !ok {
		return
	}

	details := map[string]interface{}{
		"name":         project.Name,
		"url":          projectConfig.URL,
		"display_name": projectConfig.DisplayName,
		"description":  projectConfig.Description,
		"enabled":      projectConfig.Settings.Enabled,
		"timeout":      (time.Duration(projectConfig.Settings.Timeout) * time.Second).String(),
		"users":        len(projectConfig.Users),
		"credentials":  len(projectConfig.Credentials),
	}

	details["database"] = map[string]interface{}{
		"id":         project.ID,
		"name":       project.Name,
		"created_at": project.CreatedAt,
		"updated_at": project.UpdatedAt,
	}

	if keywordCount, err := h.keywordRepo.GetKeywordCount(project.ID); err == nil {
		details["keyword_count"] = keywordCount
	}
	if rankingCount, err := h.rankingRepo.GetRankingCount(project.ID); err == nil {
		details["ranking_count"] = rankingCount
	}

	c.JSON(http.StatusOK, details)
}

func (h *Handler) APIGetProjectRankings(c *gin.Context) {
	_, project, ok := h.resolveProject(c)
	if !ok {
		return
	}

	days := 7
	if raw := c.Query("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 365 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid days parameter, expected 1-365"})
			return
		}
		days = parsed
	}

	since := time.Now().UTC().AddDate(0, 0, -days)
	history, err := h.rankingRepo.GetRankingHistory(project.ID, since)
	if err != nil {
		slog.Error("Database error", "operation", "get_ranking_history", "project", project.Name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	rankings := make([]map[string]interface{}, 0, len(history))
	for _, row := range history {
		entry := map[string]interface{}{
			"keyword":    row.Keyword,
			"position":   row.Position,
			"url":        row.URL,
			"checked_at": row.CheckedAt,
		}
		if row.PreviousPosition != nil {
			entry["previous_position"] = *row.PreviousPosition
		}
		rankings = append(rankings, entry)
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"project":  project.Name,
		"days":     days,
		"rankings": rankings,
		"total":    len(rankings),
	})
}

func (h *Handler) APIGetProjectSummary(c *gin.Context) {
	_, project, ok := h.resolveProject(c)
	if !ok {
		return
	}

	weekEnd := time.Now().UTC()
	weekStart := weekEnd.AddDate(0, 0, -7)

	// Read-only view. The weekly job owns sending the summary to users.
	totalKeywords, err := h.keywordRepo.GetKeywordCount(project.ID)
	if err != nil {
		slog.Error("Database error", "operation", "get_keyword_count", "project", project.Name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if totalKeywords == 0 {
		c.Status(http.StatusNoContent)
		return
	}

	latest, err := h.rankingRepo.GetLatestPerKeyword(project.ID, weekStart, weekEnd)
	if err != nil {
		slog.Error("Database error", "operation", "get_latest_per_keyword", "project", project.Name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	summary := ranking.BuildSummary(*project, totalKeywords, latest, weekStart, weekEnd)

	c.JSON(http.StatusOK, gin.H{
		"project":        summary.ProjectName,
		"week_start":     summary.WeekStart,
		"week_end":       summary.WeekEnd,
		"total_keywords": summary.TotalKeywords,
		"tracked":        summary.TrackedCount,
		"avg_position":   summary.AvgPosition,
		"top10":          summary.Top10Count,
		"top3":           summary.Top3Count,
		"improvements":   summary.Improvements,
		"declines":       summary.Declines,
		"opportunities":  summary.Opportunities,
	})
}

func (h *Handler) APIGetProjectNotifications(c *gin.Context) {
	_, project, ok := h.resolveProject(c)
	if !ok {
		return
	}

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 500 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit parameter, expected 1-500"})
			return
		}
		limit = parsed
	}

	notifications, err := h.notificationRepo.GetProjectNotifications(project.ID, limit)
	if err != nil {
		slog.Error("Database error", "operation", "get_notifications", "project", project.Name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	entries := make([]map[string]interface{}, 0, len(notifications))
	for _, n := range notifications {
		entry := map[string]interface{}{
			"id":         n.ID,
			"category":   n.Category,
			"subject":    n.Subject,
			"status":     n.Status,
			"created_at": n.CreatedAt,
		}
		if n.SentAt != nil {
			entry["sent_at"] = *n.SentAt
		}
		if n.Error != "" {
			entry["error"] = n.Error
		}
		entries = append(entries, entry)
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"project":       project.Name,
		"notifications": entries,
		"total":         len(entries),
	})
}

func (h *Handler) APIGetKeywordInsight(c *gin.Context) {
	_, project, ok := h.resolveProject(c)
	if !ok {
		return
	}

	keywordText := c.Param("keyword")
	keyword, err := h.keywordRepo.GetKeyword(project.ID, keywordText)
	if err != nil {
		slog.Error("Database error", "operation", "get_keyword", "project", project.Name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if keyword == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Keyword not tracked for this project"})
		return
	}

	credential, err := h.credRepo.GetActiveCredential(project.ID, database.ServiceGemini)
	if err != nil {
		slog.Error("Database error", "operation", "get_credential", "project", project.Name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if credential == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No active gemini credential for this project"})
		return
	}

	insight, err := h.insightSource.AnalyzeKeyword(c.Request.Context(), credential.Values, keyword.Text, project.URL)
	if err != nil {
		slog.Error("Keyword analysis failed", "project", project.Name, "keyword", keyword.Text, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Keyword analysis failed"})
		return
	}

	if insight == nil {
		c.Status(http.StatusNoContent)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"keyword": keyword.Text,
		"insight": insight,
	})
}

func (h *Handler) APISyncProject(c *gin.Context) {
	name := c.Param("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing project name parameter"})
		return
	}

	projectConfig, err := h.configCache.LoadConfig(name)
	if err != nil {
		slog.Error("Error reloading configuration", "project", name, "error", err)
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "Failed to reload configuration",
			"details": err.Error(),
		})
		return
	}

	syncTask := tasks.NewSyncProjectConfigTask(name, projectConfig,
		h.projectRepo, h.keywordRepo, h.userRepo, h.credRepo)
	if err := h.scheduler.EnqueueTask(syncTask); err != nil {
		slog.Error("Error enqueueing sync task", "project", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to enqueue sync task",
			"details": err.Error(),
		})
		return
	}

	rankingTask, err := h.jobBuilder.NewJobTask(string(tasks.TaskTypeRankingSync), name)
	if err != nil {
		slog.Error("Failed to build ranking sync task", "project", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build ranking sync task"})
		return
	}
	if err := h.scheduler.EnqueueTask(rankingTask); err != nil {
		slog.Error("Error enqueueing ranking sync task", "project", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to enqueue ranking sync task",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Configuration reloaded, sync and ranking import enqueued",
		"project": gin.H{
			"name": name,
			"url":  projectConfig.URL,
		},
		"tasks": []gin.H{
			{"id": syncTask.ID, "type": syncTask.Type},
			{"id": rankingTask.GetID(), "type": rankingTask.GetType()},
		},
	})
}

func (h *Handler) APIRunPageSpeed(c *gin.Context) {
	projectConfig, _, ok := h.resolveProject(c)
	if !ok {
		return
	}

	task, err := h.jobBuilder.NewJobTask("pagespeed_full", projectConfig.Name)
	if err != nil {
		slog.Error("Failed to build pagespeed task", "project", projectConfig.Name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build pagespeed task"})
		return
	}

	if err := h.scheduler.EnqueueTask(task); err != nil {
		slog.Error("Error enqueueing pagespeed task", "project", projectConfig.Name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to enqueue pagespeed task",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "PageSpeed analysis enqueued",
		"task": gin.H{
			"id":   task.GetID(),
			"type": task.GetType(),
		},
	})
}

// resolveProject looks up the path's project in the configuration cache and
// the database, writing the error response itself when either is missing.
func (h *Handler) resolveProject(c *gin.Context) (*config.Config, *database.Project, bool) {
	name := c.Param("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing project name parameter"})
		return nil, nil, false
	}

	projectConfig, err := h.configCache.GetConfig(name)
	if err != nil {
		slog.Error("Project configuration not found", "project", name, "error", err)
		c.JSON(http.StatusNotFound, gin.H{"error": "Project configuration not found"})
		return nil, nil, false
	}

	project, err := h.projectRepo.GetProject(name)
	if err != nil {
		slog.Error("Database error", "operation", "get_project", "project", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return nil, nil, false
	}
	if project == nil {
		slog.Error("Project not found in database", "project", name)
		c.JSON(http.StatusNotFound, gin.H{"error": "Project not found in database"})
		return nil, nil, false
	}

	return projectConfig, project, true
}
