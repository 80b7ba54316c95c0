package memory

import (
	"context"
	"time"
)

// Stats describes the state of the memory store.
type Stats struct {
	TotalRecords int
	Sources      map[string]int
	Latest       time.Time
}

// Stats returns record counts per source and the most recent insert time.
func (uc *UseCase) Stats(ctx context.Context) (*Stats, error) {
	counts, err := uc.repo.CountBySource(ctx)
	if err != nil {
		return nil, err
	}

	stats := &Stats{Sources: counts}
	for _, n := range counts {
		stats.TotalRecords += n
	}

	latest, err := uc.repo.ListRecent(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(latest) > 0 {
		stats.Latest = latest[0].CreatedAt
	}

	return stats, nil
}
