package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Identity is what the access token says about the caller.
type Identity struct {
	Subject string
	Email   string
	Name    string
	Role    Role
}

// Sync returns the caller's profile, creating it from the identity on first
// sign-in. An existing profile is returned as stored.
func (s *Service) Sync(ctx context.Context, id Identity) (*Profile, bool, error) {
	if strings.TrimSpace(id.Subject) == "" {
		return nil, false, fmt.Errorf("%w: subject required", ErrValidation)
	}
	existing, err := s.repo.GetByID(ctx, id.Subject)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}
	role := id.Role
	if role == "" {
		role = RoleCustomer
	}
	now := s.now()
	p := &Profile{
		ID:        id.Subject,
		Name:      id.Name,
		Email:     id.Email,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if p.Name == "" {
		p.Name, _, _ = strings.Cut(id.Email, "@")
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, false, fmt.Errorf("create profile: %w", err)
	}
	return p, true, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Profile, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]*Profile, error) {
	return s.repo.List(ctx)
}

// Changes holds the editable contact fields; nil leaves a field as is.
type Changes struct {
	Name    *string
	Email   *string
	Phone   *string
	Address *string
}

// Update applies u to the stored profile. Role and creation time are kept.
func (s *Service) Update(ctx context.Context, id string, u Changes) (*Profile, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.Name != nil {
		if strings.TrimSpace(*u.Name) == "" {
			return nil, fmt.Errorf("%w: name must not be empty", ErrValidation)
		}
		p.Name = *u.Name
	}
	if u.Email != nil {
		if !strings.Contains(*u.Email, "@") {
			return nil, fmt.Errorf("%w: invalid email", ErrValidation)
		}
		p.Email = *u.Email
	}
	if u.Phone != nil {
		p.Phone = u.Phone
	}
	if u.Address != nil {
		p.Address = u.Address
	}
	p.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return p, nil
}
