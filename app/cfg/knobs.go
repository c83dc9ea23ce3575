package cfg

import "sync/atomic"

const (
	MinThrottleLevel     = 1
	MaxThrottleLevel     = 9
	DefaultThrottleLevel = 5

	MinThreadCount     = 1
	MaxThreadCount     = 8
	DefaultThreadCount = 1
)

// Knobs is the runtime-adjustable throttle state shared by the crawl
// scheduler, the notification engine and the API. Reads never block.
type Knobs struct {
	throttleLevel atomic.Int32
	threadCount   atomic.Int32
}

func NewKnobs(throttleLevel, threadCount int) *Knobs {
	k := &Knobs{}
	k.SetThrottleLevel(throttleLevel)
	k.SetThreadCount(threadCount)
	return k
}

func (k *Knobs) ThrottleLevel() int {
	return int(k.throttleLevel.Load())
}

// SetThrottleLevel stores the clamped level and returns the stored value.
func (k *Knobs) SetThrottleLevel(level int) int {
	level = ClampThrottleLevel(level)
	k.throttleLevel.Store(int32(level))
	return level
}

func (k *Knobs) ThreadCount() int {
	return int(k.threadCount.Load())
}

// SetThreadCount stores the clamped count and returns the stored value.
func (k *Knobs) SetThreadCount(count int) int {
	count = ClampThreadCount(count)
	k.threadCount.Store(int32(count))
	return count
}

func ClampThrottleLevel(level int) int {
	return min(max(level, MinThrottleLevel), MaxThrottleLevel)
}

func ClampThreadCount(count int) int {
	return min(max(count, MinThreadCount), MaxThreadCount)
}
