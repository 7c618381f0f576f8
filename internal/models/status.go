package models

import (
	"fmt"
	"strings"
)

// ReviewStatus is shared by manual payments and withdrawals.
type ReviewStatus string

const (
	StatusPending  ReviewStatus = "PENDING"
	StatusApproved ReviewStatus = "APPROVED"
	StatusRejected ReviewStatus = "REJECTED"
)

var reviewTransitions = map[ReviewStatus][]ReviewStatus{
	StatusPending: {StatusApproved, StatusRejected},
}

func (s ReviewStatus) CanTransition(to ReviewStatus) bool {
	for _, next := range reviewTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

func (s ReviewStatus) IsTerminal() bool {
	return s.Valid() && len(reviewTransitions[s]) == 0
}

func (s ReviewStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// ParseReviewStatus accepts any letter case. An empty string is not a status.
func ParseReviewStatus(raw string) (ReviewStatus, error) {
	s := ReviewStatus(strings.ToUpper(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("unknown status %q", raw)
	}
	return s, nil
}
