// Package notify pushes periodic teasers about the consumed feed to
// websocket clients and tracks the consumer's foreground state.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lysyi3m/cazzmachine/app/cadence"
	"github.com/lysyi3m/cazzmachine/app/cfg"
	"github.com/lysyi3m/cazzmachine/app/database"
)

type Broadcaster interface {
	Broadcast(msg Message) (int, error)
}

// Engine announces the newest unseen consumed item once per doomscroll
// cycle. The cycle length follows the throttle level and is recomputed
// before every wait.
type Engine struct {
	itemRepo   database.ItemRepository
	diagRepo   database.DiagnosticRepository
	hub        Broadcaster
	lifecycle  *Lifecycle
	knobs      *cfg.Knobs
	firstDelay time.Duration

	interval func(level int) time.Duration
	now      func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewEngine(itemRepo database.ItemRepository, diagRepo database.DiagnosticRepository, hub Broadcaster,
	lifecycle *Lifecycle, knobs *cfg.Knobs, firstDelay time.Duration) *Engine {
	ctx, cancel := context.WithCancel(context.Background())

	return &Engine{
		itemRepo:   itemRepo,
		diagRepo:   diagRepo,
		hub:        hub,
		lifecycle:  lifecycle,
		knobs:      knobs,
		firstDelay: firstDelay,
		interval:   cadence.CycleInterval,
		now:        time.Now,
		ctx:        ctx,
		cancel:     cancel,
	}
}

func (e *Engine) Start() {
	slog.Info("Notification engine started", "first_delay", e.firstDelay.String(), "interval", e.interval(e.knobs.ThrottleLevel()).String())

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()

		wait := e.firstDelay
		for {
			timer := time.NewTimer(wait)
			select {
			case <-e.ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}

			if _, err := e.Notify(); err != nil {
				slog.Warn("Notification failed", "error", err)
			}

			wait = e.interval(e.knobs.ThrottleLevel())
			slog.Debug("Next notification scheduled", "in", wait.String())
		}
	}()
}

func (e *Engine) Stop() {
	e.cancel()
	e.wg.Wait()
	slog.Info("Notification engine stopped")
}

// Notify sends one teaser. It does nothing while the consumer is in the
// background. The announced item, if any, is marked seen.
func (e *Engine) Notify() (*Message, error) {
	if e.lifecycle != nil && e.lifecycle.IsBackground() {
		slog.Debug("Skipping notification: consumer is in background")
		return nil, nil
	}

	now := e.now()
	today := database.SessionDate(now)

	stats, err := e.itemRepo.TodayStats(today)
	if err != nil {
		return nil, fmt.Errorf("failed to get stats for notification: %w", err)
	}

	latest, err := e.itemRepo.LatestUnseenConsumed(today)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest unseen item: %w", err)
	}

	msg := Message{
		Type:      "cazz-notification",
		Text:      Teaser(stats, latest),
		Stats:     statsMap(stats),
		Timestamp: now,
	}
	if latest != nil {
		msg.Item = &MessageItem{
			ID:       latest.ID,
			Category: latest.Category,
			Title:    latest.Title,
			URL:      latest.URL,
		}
	}

	delivered, err := e.hub.Broadcast(msg)
	if err != nil {
		return nil, err
	}

	event := database.DiagnosticEvent{
		EventType: database.EventNotificationSent,
		Message:   msg.Text,
		Metadata:  database.FormatMetadata(map[string]any{"clients": delivered}),
	}

	if latest != nil {
		if err := e.itemRepo.MarkSeen(latest.ID); err != nil {
			slog.Warn("Failed to mark notified item seen", "id", latest.ID, "error", err)
		}
		event.RelatedItemID = latest.ID
	}

	if err := e.diagRepo.LogEvent(event); err != nil {
		slog.Warn("Failed to log diagnostic event", "type", event.EventType, "error", err)
	}

	slog.Debug("Notification sent", "clients", delivered, "item", event.RelatedItemID)
	return &msg, nil
}
