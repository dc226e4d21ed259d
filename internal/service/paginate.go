package service

import (
	"sort"

	"github.com/rndsolutions/HawkCD/internal/domain"
)

// sortByStartAscending orders pipelines oldest first. Equal start times keep
// storage order.
func sortByStartAscending(pipelines []domain.Pipeline) {
	sort.SliceStable(pipelines, func(i, j int) bool {
		return pipelines[i].StartTime.Before(pipelines[j].StartTime)
	})
}

func sortByStartDescending(pipelines []domain.Pipeline) {
	sort.SliceStable(pipelines, func(i, j int) bool {
		return pipelines[i].StartTime.After(pipelines[j].StartTime)
	})
}

// page returns up to limit pipelines following the one with id cursor. An
// empty or unknown cursor starts at the beginning.
func page(sorted []domain.Pipeline, limit int, cursor string) ([]domain.Pipeline, error) {
	if limit < 0 {
		return nil, domain.InvalidState("page size must not be negative, got %d", limit)
	}
	start := 0
	if cursor != "" {
		for i, p := range sorted {
			if p.ID == cursor {
				start = i + 1
				break
			}
		}
	}
	if start > len(sorted) {
		start = len(sorted)
	}
	end := min(start+limit, len(sorted))
	return sorted[start:end], nil
}
