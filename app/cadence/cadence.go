// Package cadence derives every timing value of the throttle from the current
// throttle level and thread count. All functions are pure; callers read the
// knobs once per cycle and pass them in.
package cadence

import (
	"math"
	"time"
)

const (
	minLevel = 1
	maxLevel = 9

	// BaseBufferPerThread is the number of pending items each thread should
	// have available before the download allowance is added on top.
	BaseBufferPerThread = 20

	maxCrawlInterval = 15 * time.Minute
)

func clampLevel(level int) int {
	return min(max(level, minLevel), maxLevel)
}

func position(level int) float64 {
	return float64(clampLevel(level)-1) / 8.0
}

// ScrollMinutes is how long one simulated scroll session lasts:
// 1 minute at level 1 up to 5 minutes at level 9.
func ScrollMinutes(level int) float64 {
	return 1.0 + 4.0*position(level)
}

// ActiveFraction is the share of a cycle spent scrolling:
// 2% at level 1 up to 91% at level 9.
func ActiveFraction(level int) float64 {
	return 0.02 + 0.89*position(level)
}

func StandbyMinutes(level int) float64 {
	return ScrollMinutes(level) * (1.0/ActiveFraction(level) - 1.0)
}

func TotalCycleMinutes(level int) float64 {
	return ScrollMinutes(level) + StandbyMinutes(level)
}

func ItemsPerHour(level int) float64 {
	return 60.0 * ScrollMinutes(level) / TotalCycleMinutes(level)
}

func ItemsPerMinute(level int) float64 {
	return ItemsPerHour(level) / 60.0
}

// CycleInterval is TotalCycleMinutes as a duration, used by the
// notification engine between teasers.
func CycleInterval(level int) time.Duration {
	return time.Duration(TotalCycleMinutes(level) * float64(time.Minute))
}

// CrawlInterval shrinks by one minute per level: 15 minutes at level 1,
// 7 minutes at level 9.
func CrawlInterval(level int) time.Duration {
	return maxCrawlInterval - time.Duration(clampLevel(level)-1)*time.Minute
}

// ProvidersPerCycle is the number of providers visited in one crawl cycle.
// The base grows from 2 to 6 with the level and is multiplied by one extra
// batch per four threads, never exceeding the number of providers.
func ProvidersPerCycle(level, threads, available int) int {
	if available <= 0 {
		return 0
	}
	base := 2 + (clampLevel(level)-1)/2
	batches := int(math.Ceil(float64(max(threads, 1)) / 4.0))
	return min(base*batches, available)
}

// ConsumptionItems estimates how many items were doom-scrolled during
// elapsedMinutes across all threads.
func ConsumptionItems(elapsedMinutes float64, level, threads int) float64 {
	if elapsedMinutes <= 0 {
		return 0
	}
	return elapsedMinutes * ItemsPerMinute(level) * float64(max(threads, 1))
}

// BufferRequirements returns the base buffer and the extra allowance needed
// to survive downloadHours of offline consumption.
func BufferRequirements(level, threads int, downloadHours float64) (base, download int) {
	threads = max(threads, 1)
	base = BaseBufferPerThread * threads
	if downloadHours > 0 {
		download = int(math.Ceil(ItemsPerHour(level) * downloadHours * float64(threads)))
	}
	return base, download
}

// ResumeBudget is the consumption budget in minutes accrued while the
// consumer was away. Absences shorter than a minute accrue nothing.
func ResumeBudget(elapsed time.Duration, threads int) float64 {
	if elapsed < time.Minute {
		return 0
	}
	return elapsed.Minutes() * float64(max(threads, 1))
}
