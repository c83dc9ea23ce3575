package budget

import "math"

// Categories with a dedicated cost. Anything else costs DefaultCost.
const (
	CategoryMeme   = "meme"
	CategoryJoke   = "joke"
	CategoryNews   = "news"
	CategoryVideo  = "video"
	CategoryGossip = "gossip"
)

const DefaultCost = 1.0

var costs = map[string]float64{
	CategoryMeme:   0.5,
	CategoryJoke:   0.3,
	CategoryNews:   2.0,
	CategoryVideo:  3.0,
	CategoryGossip: 1.5,
}

// Cost returns the estimated minutes needed to consume one item of category.
func Cost(category string) float64 {
	if c, ok := costs[category]; ok {
		return c
	}
	return DefaultCost
}

// MinCost is the cost of the cheapest known category.
func MinCost() float64 {
	lowest := DefaultCost
	for _, c := range costs {
		lowest = min(lowest, c)
	}
	return lowest
}

// Reason explains why an allocation consumed nothing.
type Reason string

const (
	ReasonNone                 Reason = ""
	ReasonEmptyBuffer          Reason = "empty_buffer"
	ReasonBudgetTooSmall       Reason = "budget_too_small"
	ReasonAllItemsTooExpensive Reason = "all_items_too_expensive"
)

type Candidate struct {
	ID       string
	Category string
}

type Allocation struct {
	Accepted      []string
	TimeConsumed  float64
	PerCategory   map[string]int
	Discarded     int
	Reason        Reason
	PendingCount  int
	TotalCost     float64
	MinItemCost   float64
	MaxItemCost   float64
	EstimatedMax  int
	BudgetMinutes float64
}

// Allocate walks pending (oldest first) and accepts every item whose cost
// still fits in the remaining budget. Rejected items are left untouched.
func Allocate(pending []Candidate, budgetMinutes float64) Allocation {
	if math.IsNaN(budgetMinutes) || budgetMinutes < 0 {
		budgetMinutes = 0
	}

	a := Allocation{
		PerCategory:   make(map[string]int),
		PendingCount:  len(pending),
		BudgetMinutes: budgetMinutes,
	}

	if len(pending) == 0 {
		a.Reason = ReasonEmptyBuffer
		return a
	}

	a.MinItemCost = math.Inf(1)
	for _, c := range pending {
		cost := Cost(c.Category)
		a.TotalCost += cost
		a.MinItemCost = min(a.MinItemCost, cost)
		a.MaxItemCost = max(a.MaxItemCost, cost)
	}
	a.EstimatedMax = int(math.Floor(budgetMinutes / a.MinItemCost))

	// Every cost is a whole number of tenths, so the walk runs on integers.
	remaining := tenths(budgetMinutes)
	consumed := 0
	for _, c := range pending {
		cost := tenths(Cost(c.Category))
		if remaining >= cost {
			remaining -= cost
			consumed += cost
			a.Accepted = append(a.Accepted, c.ID)
			a.PerCategory[c.Category]++
		}
	}
	a.TimeConsumed = float64(consumed) / 10
	a.Discarded = len(pending) - len(a.Accepted)

	if len(a.Accepted) == 0 {
		if budgetMinutes < MinCost() {
			a.Reason = ReasonBudgetTooSmall
		} else {
			a.Reason = ReasonAllItemsTooExpensive
		}
	}

	return a
}

// tenths converts minutes to whole tenths of a minute, rounding down but
// absorbing float noise such as 1.2 arriving as 1.1999999999999999.
func tenths(minutes float64) int {
	return int(math.Floor(minutes*10 + 1e-6))
}

// BufferHealth classifies the pending backlog by its total consumption cost.
func BufferHealth(pendingCount int, totalCost float64) string {
	switch {
	case pendingCount == 0:
		return "empty"
	case totalCost < 5.0:
		return "low"
	case totalCost < 15.0:
		return "moderate"
	default:
		return "healthy"
	}
}
