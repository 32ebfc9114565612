package analyzer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Create(ctx context.Context, a *Analyzer) error {
	if a.Name == "" {
		return fmt.Errorf("name is required")
	}
	if a.Plugin == "" {
		return fmt.Errorf("plugin is required")
	}
	if a.Status == "" {
		a.Status = StatusInactive
	}
	if a.Status != StatusActive && a.Status != StatusInactive {
		return fmt.Errorf("invalid status %q", a.Status)
	}
	if a.Status == StatusActive {
		if err := s.ensureNoActivePlugin(ctx, a.Plugin); err != nil {
			return err
		}
		now := time.Now()
		a.LastActivatedAt = &now
	}
	return s.repo.Create(ctx, a)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Analyzer, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Analyzer, int, error) {
	return s.repo.List(ctx, limit, offset)
}

// ResolveActive returns the active analyzer configured for a plugin. The
// pipeline uses this to stamp analyzer ids on audit and error rows.
func (s *Service) ResolveActive(ctx context.Context, plugin string) (*Analyzer, error) {
	return s.repo.GetActiveByPlugin(ctx, plugin)
}

// Activate marks the analyzer active. Only one analyzer per plugin may be
// active at a time; activating a second one is rejected.
func (s *Service) Activate(ctx context.Context, id uuid.UUID) (*Analyzer, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Active() {
		return a, nil
	}
	if err := s.ensureNoActivePlugin(ctx, a.Plugin); err != nil {
		return nil, err
	}
	now := time.Now()
	a.Status = StatusActive
	a.LastActivatedAt = &now
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Deactivate marks the analyzer inactive. In-flight messages finish with the
// configuration they started with; new messages from this source fail
// identification.
func (s *Service) Deactivate(ctx context.Context, id uuid.UUID) (*Analyzer, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	a.Status = StatusInactive
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) ensureNoActivePlugin(ctx context.Context, plugin string) error {
	existing, err := s.repo.GetActiveByPlugin(ctx, plugin)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("plugin %q already has an active analyzer (%s)", plugin, existing.Name)
}
