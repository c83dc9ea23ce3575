package tasks

// CrawlSchedulerInterface is what the HTTP layer and main need from the
// crawl loop.
//
//	scheduler := NewScheduler(providers, itemRepo, diagRepo, knobs, httpClient, lowWaterMark)
//	scheduler.Start()
//	defer scheduler.Stop()
//	scheduler.TriggerCrawl()
type CrawlSchedulerInterface interface {
	Start()
	Stop()
	TriggerCrawl() error
	State() State
}
