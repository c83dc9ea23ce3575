package notify

import (
	"fmt"
	"strings"

	"github.com/lysyi3m/cazzmachine/app/budget"
	"github.com/lysyi3m/cazzmachine/app/database"
)

var categoryTeasers = map[string]string{
	budget.CategoryMeme:   "Found a meme that made me snort. You can see it later.",
	budget.CategoryJoke:   "Read %d jokes so far. None were funny. You're not missing anything.",
	budget.CategoryNews:   "Checked the news %d times. Nothing happened. Keep working.",
	budget.CategoryVideo:  "Just watched a cat video. It was adorable. You can't see it yet.",
	budget.CategoryGossip: "Someone famous did something dumb. Nothing new. Keep working.",
}

// Teaser renders the notification text for the day's stats and the item
// being announced, if any.
func Teaser(stats *database.DayStats, latest *database.Item) string {
	if stats == nil || stats.TotalItems == 0 {
		return "Still warming up the doomscroll engines... You keep working."
	}
	if latest == nil {
		return fmt.Sprintf("Doomscrolled for you: %d items and counting. Estimated %d minutes saved.",
			stats.TotalItems, int(stats.EstimatedTimeSavedMinutes))
	}

	switch latest.Category {
	case budget.CategoryJoke:
		return fmt.Sprintf(categoryTeasers[budget.CategoryJoke], stats.JokesFound)
	case budget.CategoryNews:
		return fmt.Sprintf(categoryTeasers[budget.CategoryNews], stats.NewsChecked)
	}
	if text, ok := categoryTeasers[latest.Category]; ok {
		return text
	}
	return fmt.Sprintf("Found %d interesting things while you've been working. Stay focused!", stats.TotalItems)
}

func statsMap(stats *database.DayStats) map[string]int {
	if stats == nil {
		return nil
	}
	return map[string]int{
		"total":  stats.TotalItems,
		"memes":  stats.MemesFound,
		"jokes":  stats.JokesFound,
		"news":   stats.NewsChecked,
		"videos": stats.VideosFound,
		"gossip": stats.GossipFound,
	}
}

// SummaryText describes the day's consumption in one or two sentences.
func SummaryText(stats *database.DayStats) string {
	if stats == nil || stats.TotalItems == 0 {
		return "I haven't started doomscrolling yet. Give me a minute."
	}

	var parts []string
	if stats.MemesFound > 0 {
		parts = append(parts, fmt.Sprintf("doomscrolled %d memes", stats.MemesFound))
	}
	if stats.JokesFound > 0 {
		parts = append(parts, fmt.Sprintf("read %d jokes (most were terrible)", stats.JokesFound))
	}
	if stats.NewsChecked > 0 {
		parts = append(parts, fmt.Sprintf("checked the news %d times (nothing happened)", stats.NewsChecked))
	}
	if stats.VideosFound > 0 {
		parts = append(parts, fmt.Sprintf("found %d videos worth watching later", stats.VideosFound))
	}
	if stats.GossipFound > 0 {
		parts = append(parts, fmt.Sprintf("kept up with %d celebrity stories", stats.GossipFound))
	}

	activities := "scrolled the internet aimlessly"
	if len(parts) > 0 {
		activities = strings.Join(parts, ", ")
	}

	return fmt.Sprintf("Today while you worked, I %s. That's %s of your life I saved. You're welcome.",
		activities, formatMinutes(stats.EstimatedTimeSavedMinutes))
}

func formatMinutes(total float64) string {
	hours := int(total / 60)
	minutes := int(total) % 60
	if hours > 0 {
		return fmt.Sprintf("%d hours and %d minutes", hours, minutes)
	}
	return fmt.Sprintf("%d minutes", minutes)
}
