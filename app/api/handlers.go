package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/cazzmachine/app/cadence"
	"github.com/lysyi3m/cazzmachine/app/cfg"
	"github.com/lysyi3m/cazzmachine/app/database"
	"github.com/lysyi3m/cazzmachine/app/health"
	"github.com/lysyi3m/cazzmachine/app/notify"
	"github.com/lysyi3m/cazzmachine/app/provider"
	"github.com/lysyi3m/cazzmachine/app/tasks"
)

const (
	defaultDiagnosticsLimit = 100
	maxDiagnosticsLimit     = 1000
	summaryHighlights       = 5
)

func NewHandler(itemRepo database.ItemRepository, diagRepo database.DiagnosticRepository,
	stateRepo database.StateRepository, configCache *provider.ConfigCache,
	scheduler tasks.CrawlSchedulerInterface, lifecycle LifecycleInterface, knobs *cfg.Knobs,
	generator GeneratorInterface, hub http.Handler, version string) *Handler {
	return &Handler{
		itemRepo:    itemRepo,
		diagRepo:    diagRepo,
		stateRepo:   stateRepo,
		generator:   generator,
		configCache: configCache,
		deriver:     health.NewDeriver(diagRepo, itemRepo),
		scheduler:   scheduler,
		lifecycle:   lifecycle,
		knobs:       knobs,
		hub:         hub,
		version:     version,
		now:         time.Now,
	}
}

func (h *Handler) today() string {
	return database.SessionDate(h.now())
}

func (h *Handler) GetFeed(c *gin.Context) {
	day := h.today()

	items, err := h.itemRepo.ListConsumed(day)
	if err != nil {
		slog.Error("Database error", "operation", "list_consumed", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	rss, err := h.generator.Run(day, items)
	if err != nil {
		slog.Error("RSS generation error", "day", day, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Header("Content-Type", "application/xml; charset=utf-8")
	c.Header("X-Feed-Items", strconv.Itoa(len(items)))
	c.Header("X-Session-Date", day)

	c.String(http.StatusOK, rss)
}

func (h *Handler) GetHealth(c *gin.Context) {
	status := map[string]interface{}{
		"timestamp":      h.now().In(time.Local).Format(time.RFC3339),
		"providers":      len(h.configCache.GetEnabledConfigs()),
		"throttle_level": h.knobs.ThrottleLevel(),
		"thread_count":   h.knobs.ThreadCount(),
	}

	if h.scheduler != nil {
		status["crawler"] = h.scheduler.State().String()
	}

	if pending, err := h.itemRepo.PendingCount(h.today()); err == nil {
		status["pending"] = pending
	}

	c.JSON(http.StatusOK, status)
}

func (h *Handler) APITodayItems(c *gin.Context) {
	items, err := h.itemRepo.ListConsumed(h.today())
	if err != nil {
		slog.Error("Database error", "operation", "list_consumed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"items": items,
		"total": len(items),
	})
}

func (h *Handler) APIItemsByCategory(c *gin.Context) {
	category := c.Query("category")
	if category == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing category parameter"})
		return
	}

	items, err := h.itemRepo.ListConsumedByCategory(h.today(), category)
	if err != nil {
		slog.Error("Database error", "operation", "list_consumed_by_category", "category", category, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"category": category,
		"items":    items,
		"total":    len(items),
	})
}

func (h *Handler) APIMarkSeen(c *gin.Context) {
	id := c.Param("id")

	if err := h.itemRepo.MarkSeen(id); err != nil {
		h.itemError(c, "mark_seen", id, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": id, "is_seen": true})
}

func (h *Handler) APIToggleSaved(c *gin.Context) {
	id := c.Param("id")

	saved, err := h.itemRepo.ToggleSaved(id)
	if err != nil {
		h.itemError(c, "toggle_saved", id, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": id, "is_saved": saved})
}

func (h *Handler) itemError(c *gin.Context, operation, id string, err error) {
	if errors.Is(err, database.ErrItemNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Item not found", "id": id})
		return
	}

	slog.Error("Database error", "operation", operation, "id", id, "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
}

func (h *Handler) APITodayStats(c *gin.Context) {
	stats, err := h.itemRepo.TodayStats(h.today())
	if err != nil {
		slog.Error("Database error", "operation", "today_stats", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, stats)
}

func (h *Handler) APISummary(c *gin.Context) {
	day := h.today()

	stats, err := h.itemRepo.TodayStats(day)
	if err != nil {
		slog.Error("Database error", "operation", "today_stats", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	items, err := h.itemRepo.ListConsumed(day)
	if err != nil {
		slog.Error("Database error", "operation", "list_consumed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, summaryResponse{
		Stats:       stats,
		SummaryText: notify.SummaryText(stats),
		Highlights:  items[:min(len(items), summaryHighlights)],
	})
}

func (h *Handler) APIConsume(c *gin.Context) {
	var req consumeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	result, err := h.itemRepo.ConsumePending(h.today(), *req.BudgetMinutes)
	if err != nil {
		slog.Error("Database error", "operation", "consume_pending", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) APIPending(c *gin.Context) {
	day := h.today()

	pending, err := h.itemRepo.PendingCount(day)
	if err != nil {
		slog.Error("Database error", "operation", "pending_count", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"session_date": day, "pending": pending})
}

func (h *Handler) APIPrune(c *gin.Context) {
	task := tasks.NewPruneItemsTask(h.today(), h.itemRepo, h.diagRepo)
	task.Start()
	if err := task.Execute(c.Request.Context()); err != nil {
		slog.Error("Database error", "operation", "prune", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"deleted":  task.Deleted,
		"redacted": task.Redacted,
	})
}

func (h *Handler) APIRecentDiagnostics(c *gin.Context) {
	limit := defaultDiagnosticsLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxDiagnosticsLimit {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "limit must be an integer between 1 and " + strconv.Itoa(maxDiagnosticsLimit),
			})
			return
		}
		limit = parsed
	}

	events, err := h.diagRepo.Recent(limit)
	if err != nil {
		slog.Error("Database error", "operation", "recent_diagnostics", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"events": events,
		"total":  len(events),
	})
}

func (h *Handler) APILogEvent(c *gin.Context) {
	var req logEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	severity := database.SeverityInfo
	if req.Severity != "" {
		parsed, err := database.ParseSeverity(req.Severity)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		severity = parsed
	}

	event := database.DiagnosticEvent{
		EventType:     req.EventType,
		Severity:      severity,
		Message:       req.Message,
		RelatedItemID: req.RelatedItemID,
	}
	if len(req.Metadata) > 0 {
		event.Metadata = database.FormatMetadata(req.Metadata)
	}

	if err := h.diagRepo.LogEvent(event); err != nil {
		slog.Error("Database error", "operation", "log_event", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true})
}

func (h *Handler) APIClearDiagnostics(c *gin.Context) {
	olderThanDays := 0
	if raw := c.Query("older_than_days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "older_than_days must be an integer"})
			return
		}
		olderThanDays = parsed
	}

	deleted, err := h.diagRepo.Clear(olderThanDays, h.now())
	if err != nil {
		slog.Error("Database error", "operation", "clear_diagnostics", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

func (h *Handler) APIDiagnosticSummary(c *gin.Context) {
	summary, err := h.itemRepo.DiagnosticSummary(h.today())
	if err != nil {
		slog.Error("Database error", "operation", "diagnostic_summary", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, summary)
}

func (h *Handler) APIProviderHealth(c *gin.Context) {
	configs := h.configCache.GetEnabledConfigs()
	known := make([]health.KnownProvider, 0, len(configs))
	for _, config := range configs {
		known = append(known, health.KnownProvider{Name: config.Name, Category: config.Category})
	}

	statuses, err := h.deriver.Derive(known)
	if err != nil {
		slog.Error("Database error", "operation", "provider_health", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"providers": statuses,
		"total":     len(statuses),
	})
}

func (h *Handler) APITriggerCrawl(c *gin.Context) {
	if err := h.scheduler.TriggerCrawl(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "Failed to trigger crawl",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"message": "Crawl cycle triggered",
		"state":   h.scheduler.State().String(),
	})
}

func (h *Handler) knobsResponse() gin.H {
	level := h.knobs.ThrottleLevel()
	threads := h.knobs.ThreadCount()

	// Buffer sizing is reported for one hour offline.
	bufferBase, bufferOffline := cadence.BufferRequirements(level, threads, 1)

	return gin.H{
		"throttle_level":      level,
		"thread_count":        threads,
		"crawl_interval":      cadence.CrawlInterval(level).String(),
		"cycle_interval":      cadence.CycleInterval(level).String(),
		"providers_per_cycle": cadence.ProvidersPerCycle(level, threads, len(h.configCache.GetEnabledConfigs())),
		"items_per_hour":      cadence.ConsumptionItems(60, level, threads),
		"buffer_base":         bufferBase,
		"buffer_offline_hour": bufferOffline,
	}
}

func (h *Handler) APIGetKnobs(c *gin.Context) {
	c.JSON(http.StatusOK, h.knobsResponse())
}

// APISetKnobs clamps out-of-range values instead of rejecting them.
func (h *Handler) APISetKnobs(c *gin.Context) {
	var req knobsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	if req.ThrottleLevel != nil {
		stored := h.knobs.SetThrottleLevel(*req.ThrottleLevel)
		slog.Info("Throttle level changed", "requested", *req.ThrottleLevel, "stored", stored)
	}
	if req.ThreadCount != nil {
		stored := h.knobs.SetThreadCount(*req.ThreadCount)
		slog.Info("Thread count changed", "requested", *req.ThreadCount, "stored", stored)
	}

	c.JSON(http.StatusOK, h.knobsResponse())
}

func (h *Handler) APISetLifecycle(c *gin.Context) {
	var req lifecycleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	if *req.Background {
		if err := h.lifecycle.Background(); err != nil {
			slog.Error("Database error", "operation", "background", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"background": true})
		return
	}

	result, err := h.lifecycle.Foreground()
	if err != nil {
		slog.Error("Database error", "operation", "foreground", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"background": false, "resume": result})
}

func (h *Handler) APIGetLastActive(c *gin.Context) {
	lastActive, ok, err := h.stateRepo.LastActive()
	if err != nil {
		slog.Error("Database error", "operation", "last_active", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	if !ok {
		c.JSON(http.StatusOK, gin.H{"timestamp": nil})
		return
	}

	c.JSON(http.StatusOK, gin.H{"timestamp": lastActive.Format(time.RFC3339)})
}

func (h *Handler) APISetLastActive(c *gin.Context) {
	var req lastActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	if err := h.stateRepo.SetLastActive(*req.Timestamp); err != nil {
		slog.Error("Database error", "operation", "set_last_active", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"timestamp": req.Timestamp.Format(time.RFC3339)})
}
