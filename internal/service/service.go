package service

import (
	"time"

	"github.com/factoriot/hub/internal/errors"
	"github.com/factoriot/hub/internal/repository"
)

// Service contains all repositories and service-wide dependencies
type Service struct {
	events repository.EventRepository
	stats  repository.StatisticsRepository
	now    func() time.Time
}

// New creates a new service instance
func New(events repository.EventRepository, stats repository.StatisticsRepository) *Service {
	return &Service{
		events: events,
		stats:  stats,
		now:    time.Now,
	}
}

// WithClock overrides the service clock, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Validate checks if all required repositories are initialized
func (s *Service) Validate() error {
	if s.events == nil {
		return ErrMissingRepository("events")
	}
	if s.stats == nil {
		return ErrMissingRepository("statistics")
	}
	return nil
}

func ErrMissingRepository(name string) error {
	return errors.NewInternalError("missing repository: "+name, nil)
}
