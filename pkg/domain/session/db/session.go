package db

import (
	"context"

	"github.com/opencatalog/fem/pkg/domain"
)

type Interface interface {
	// Increment bumps one counter of a session by delta.
	// The session row springs into being on first touch.
	Increment(ctx context.Context, info domain.SessionInfo, property domain.SessionProperty, delta int64) error

	// Get retrieves all counters of a session. A session never
	// incremented yields an empty map.
	Get(ctx context.Context, info domain.SessionInfo) (map[domain.SessionProperty]int64, error)
}
