package service

import (
	"context"

	"github.com/Fi44er/tradecycle/internal/models"
)

const (
	defaultHistoryLimit = 100
	maxHistoryLimit     = 500
)

type HistoryQuery struct {
	Search string
	Limit  int
	Offset int
}

// ListHistory returns a user's audit trail oldest first.
func (s *Service) ListHistory(ctx context.Context, userID string, q HistoryQuery) ([]models.HistoryEvent, error) {
	limit := q.Limit
	switch {
	case limit <= 0:
		limit = defaultHistoryLimit
	case limit > maxHistoryLimit:
		limit = maxHistoryLimit
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	events, err := s.repo.ListEvents(ctx, userID, q.Search, limit, offset)
	if err != nil {
		return nil, s.internal("list history", err)
	}
	return events, nil
}
