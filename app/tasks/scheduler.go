package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lysyi3m/cazzmachine/app/cadence"
	"github.com/lysyi3m/cazzmachine/app/cfg"
	"github.com/lysyi3m/cazzmachine/app/database"
	"github.com/lysyi3m/cazzmachine/app/provider"
)

var _ CrawlSchedulerInterface = (*Scheduler)(nil)

type State int32

const (
	StateIdle State = iota
	StateCrawling
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCrawling:
		return "crawling"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// CycleResult describes one pass of the crawl loop.
type CycleResult struct {
	Skipped   bool
	Pending   int
	Visited   []string
	Inserted  int
	Completed int
	Failed    int
}

// Scheduler keeps the pending buffer topped up. Each cycle it checks the
// buffer against the low-water mark and, when short, visits a run of
// providers starting from a random position in the list.
type Scheduler struct {
	providers    []provider.Provider
	itemRepo     database.ItemRepository
	diagRepo     database.DiagnosticRepository
	knobs        *cfg.Knobs
	httpClient   *http.Client
	lowWaterMark int

	interval func(level int) time.Duration
	startAt  func(n int) int
	now      func() time.Time

	state    atomic.Int32
	trigger  chan struct{}
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

func NewScheduler(providers []provider.Provider, itemRepo database.ItemRepository, diagRepo database.DiagnosticRepository,
	knobs *cfg.Knobs, httpClient *http.Client, lowWaterMark int) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		providers:    providers,
		itemRepo:     itemRepo,
		diagRepo:     diagRepo,
		knobs:        knobs,
		httpClient:   httpClient,
		lowWaterMark: lowWaterMark,
		interval:     cadence.CrawlInterval,
		startAt:      rand.IntN,
		now:          time.Now,
		trigger:      make(chan struct{}, 1),
		ctx:          ctx,
		cancel:       cancel,
	}
}

func (s *Scheduler) Start() {
	slog.Info("Crawl scheduler started", "providers", len(s.providers), "low_water_mark", s.lowWaterMark)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		s.RunCycle(false)

		for {
			level := s.knobs.ThrottleLevel()
			interval := s.interval(level)
			slog.Debug("Next crawl scheduled", "in", interval.String(), "providers", cadence.ProvidersPerCycle(level, s.knobs.ThreadCount(), len(s.providers)))

			timer := time.NewTimer(interval)
			select {
			case <-s.ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
				s.RunCycle(false)
			case <-s.trigger:
				timer.Stop()
				s.RunCycle(true)
			}
		}
	}()
}

// Stop signals the loop and waits for the running cycle to finish its
// in-flight fetches and inserts.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.cancel()
		s.wg.Wait()
		s.state.Store(int32(StateTerminated))
		slog.Info("Crawl scheduler stopped")
	})
}

// TriggerCrawl asks the loop to run a cycle now, bypassing the buffer check.
// Requests made while one is already queued collapse into it.
func (s *Scheduler) TriggerCrawl() error {
	select {
	case <-s.ctx.Done():
		return fmt.Errorf("crawl scheduler is stopped")
	default:
	}

	select {
	case s.trigger <- struct{}{}:
	default:
	}
	return nil
}

func (s *Scheduler) State() State {
	return State(s.state.Load())
}

// RunCycle performs one crawl cycle. Unless forced, it is skipped while the
// buffer holds at least lowWaterMark pending items.
func (s *Scheduler) RunCycle(force bool) CycleResult {
	var result CycleResult

	if len(s.providers) == 0 {
		slog.Debug("No providers configured, skipping crawl")
		result.Skipped = true
		return result
	}

	today := database.SessionDate(s.now())
	pending, err := s.itemRepo.PendingCount(today)
	if err != nil {
		slog.Warn("Failed to check pending count", "error", err)
		result.Skipped = true
		return result
	}
	result.Pending = pending

	if !force && pending >= s.lowWaterMark {
		slog.Info("Buffer is sufficient, skipping crawl", "pending", pending, "low_water_mark", s.lowWaterMark)
		s.logEvent(database.DiagnosticEvent{
			EventType: database.EventCrawlSkipped,
			Message:   fmt.Sprintf("Buffer has %d pending items, skipping crawl", pending),
			Metadata:  database.FormatMetadata(map[string]any{"pending": pending, "low_water_mark": s.lowWaterMark}),
		})
		result.Skipped = true
		return result
	}

	if !s.state.CompareAndSwap(int32(StateIdle), int32(StateCrawling)) {
		result.Skipped = true
		return result
	}
	defer s.state.CompareAndSwap(int32(StateCrawling), int32(StateIdle))

	level := s.knobs.ThrottleLevel()
	threads := s.knobs.ThreadCount()
	selected := s.selectProviders(cadence.ProvidersPerCycle(level, threads, len(s.providers)))

	tasks := make([]*CrawlProviderTask, 0, len(selected))
	for _, p := range selected {
		tasks = append(tasks, NewCrawlProviderTask(p, s.httpClient, s.itemRepo, s.diagRepo))
		result.Visited = append(result.Visited, p.Name())
	}

	s.runTasks(tasks, threads)

	for _, task := range tasks {
		result.Inserted += task.Result.Inserted
		result.Failed += task.Result.Failed
		if task.StartedAt != nil {
			result.Completed++
		}
	}

	slog.Info("Crawl cycle complete", "providers", len(tasks), "completed", result.Completed, "new", result.Inserted, "forced", force)
	s.logEvent(database.DiagnosticEvent{
		EventType: database.EventCrawlCycle,
		Message:   fmt.Sprintf("Crawl cycle complete: %d new items from %d providers", result.Inserted, result.Completed),
		Metadata: database.FormatMetadata(map[string]any{
			"providers":      result.Visited,
			"new_items":      result.Inserted,
			"pending_before": pending,
			"throttle_level": level,
			"thread_count":   threads,
			"forced":         force,
		}),
	})

	return result
}

// selectProviders walks forward from a random index, wrapping around.
func (s *Scheduler) selectProviders(count int) []provider.Provider {
	n := len(s.providers)
	if count <= 0 || n == 0 {
		return nil
	}

	start := s.startAt(n)
	selected := make([]provider.Provider, 0, count)
	for i := 0; i < count; i++ {
		selected = append(selected, s.providers[(start+i)%n])
	}
	return selected
}

// runTasks executes tasks on up to workerCount workers and returns when all
// have finished. After shutdown no new task is started; running ones
// complete.
func (s *Scheduler) runTasks(tasks []*CrawlProviderTask, workerCount int) {
	taskQueue := make(chan TaskInterface, len(tasks))
	for _, task := range tasks {
		taskQueue <- task
	}
	close(taskQueue)

	var wg sync.WaitGroup
	for i := 0; i < min(workerCount, len(tasks)); i++ {
		wg.Add(1)
		go s.worker(i, taskQueue, &wg)
	}
	wg.Wait()
}

func (s *Scheduler) worker(id int, taskQueue <-chan TaskInterface, wg *sync.WaitGroup) {
	defer wg.Done()

	for task := range taskQueue {
		select {
		case <-s.ctx.Done():
			slog.Debug("Scheduler stopping, skipping task", "type", string(task.GetType()), "provider", task.GetTarget())
			continue
		default:
		}
		s.executeTask(id, task)
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(context.WithoutCancel(s.ctx), 5*time.Minute)
	defer cancel()

	if err := task.Execute(taskCtx); err != nil {
		slog.Warn("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "id", task.GetID(), "provider", task.GetTarget(), "error", err)
	}
}

func (s *Scheduler) logEvent(event database.DiagnosticEvent) {
	if err := s.diagRepo.LogEvent(event); err != nil {
		slog.Warn("Failed to log diagnostic event", "type", event.EventType, "error", err)
	}
}
