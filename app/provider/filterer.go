package provider

import (
	"fmt"
	"log/slog"
	"strings"
)

type Filterer struct{}

func NewFilterer() *Filterer {
	return &Filterer{}
}

// Run returns the items that pass every configured filter, in order.
func (f *Filterer) Run(items []FetchedItem, config *Config) []FetchedItem {
	if len(config.Filters) == 0 {
		return items
	}

	kept := make([]FetchedItem, 0, len(items))
	for _, item := range items {
		if excluded, reason := f.applyFilters(item, config.Filters); excluded {
			slog.Debug("Item filtered", "provider", config.Name, "title", item.Title, "reason", reason)
			continue
		}
		kept = append(kept, item)
	}

	return kept
}

func (f *Filterer) applyFilters(item FetchedItem, filters []ConfigFilter) (bool, string) {
	for _, filter := range filters {
		value := f.getFieldValue(item, filter.Field)

		for _, exclude := range filter.Excludes {
			if f.matchesFilter(value, exclude) {
				return true, fmt.Sprintf("Excluded by %s filter: contains '%s'", filter.Field, exclude)
			}
		}

		if len(filter.Includes) > 0 {
			matched := false
			for _, include := range filter.Includes {
				if f.matchesFilter(value, include) {
					matched = true
					break
				}
			}
			if !matched {
				return true, fmt.Sprintf("Excluded by %s filter: does not contain any of %v", filter.Field, filter.Includes)
			}
		}
	}

	return false, ""
}

func (f *Filterer) matchesFilter(value, pattern string) bool {
	return strings.Contains(strings.ToLower(value), strings.ToLower(pattern))
}

func (f *Filterer) getFieldValue(item FetchedItem, field string) string {
	switch field {
	case "title":
		return item.Title
	case "description":
		return item.Description
	case "url":
		return item.URL
	default:
		return ""
	}
}
