package pet

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Service struct {
	repo Repository
	loc  *time.Location
	now  func() time.Time
}

func NewService(repo Repository, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{repo: repo, loc: loc, now: time.Now}
}

func (s *Service) Location() *time.Location { return s.loc }

func (s *Service) validate(p *Pet) error {
	var missing []string
	if strings.TrimSpace(p.Name) == "" {
		missing = append(missing, "name")
	}
	if p.Type == "" {
		missing = append(missing, "type")
	}
	if p.BirthDate.IsZero() {
		missing = append(missing, "birth_date")
	}
	if p.Type == KindReptile && (p.Species == nil || strings.TrimSpace(*p.Species) == "") {
		missing = append(missing, "species")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s required", ErrValidation, strings.Join(missing, ", "))
	}
	if p.Weight != nil && *p.Weight < 0 {
		return fmt.Errorf("%w: weight must not be negative", ErrValidation)
	}
	if p.BirthDate.After(s.now()) {
		return fmt.Errorf("%w: birth_date is in the future", ErrValidation)
	}
	return nil
}

func (s *Service) withAge(p *Pet) *Pet {
	p.Age = CalculateAge(p.BirthDate, s.now().In(s.loc))
	return p
}

func (s *Service) normalize(p *Pet) {
	y, m, d := p.BirthDate.In(s.loc).Date()
	p.BirthDate = time.Date(y, m, d, 0, 0, 0, 0, s.loc)
	if p.Gender == "" {
		p.Gender = GenderUnknown
	}
}

func (s *Service) Create(ctx context.Context, p *Pet) error {
	if err := s.validate(p); err != nil {
		return err
	}
	s.normalize(p)
	now := s.now()
	p.ID = uuid.New().String()
	p.CreatedAt = now
	p.UpdatedAt = now
	if err := s.repo.Create(ctx, p); err != nil {
		return fmt.Errorf("create pet: %w", err)
	}
	s.withAge(p)
	return nil
}

func (s *Service) Get(ctx context.Context, ownerID, id string) (*Pet, error) {
	p, err := s.repo.GetByID(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	return s.withAge(p), nil
}

// List returns the owner's pets with ages filled in. An empty ownerID lists
// every pet.
func (s *Service) List(ctx context.Context, ownerID string) ([]*Pet, error) {
	items, err := s.repo.List(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	for _, p := range items {
		s.withAge(p)
	}
	return items, nil
}

func (s *Service) Update(ctx context.Context, p *Pet) error {
	existing, err := s.repo.GetByID(ctx, p.OwnerID, p.ID)
	if err != nil {
		return err
	}
	if err := s.validate(p); err != nil {
		return err
	}
	s.normalize(p)
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = s.now()
	p.Age = ""
	if err := s.repo.Update(ctx, p); err != nil {
		return fmt.Errorf("update pet: %w", err)
	}
	s.withAge(p)
	return nil
}

func (s *Service) Delete(ctx context.Context, ownerID, id string) error {
	return s.repo.Delete(ctx, ownerID, id)
}
