package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/garthpuckerin/dreamcatcher-sub000/internal/core/domain"
	"github.com/garthpuckerin/dreamcatcher-sub000/pkg/logging"
)

type UserService struct {
	log  *slog.Logger
	repo domain.UserRepository
}

func NewUserService(log *slog.Logger, repo domain.UserRepository) *UserService {
	return &UserService{log: log, repo: repo}
}

// EnsureUser creates or refreshes the profile row behind an identity.
func (s *UserService) EnsureUser(ctx context.Context, id, name, avatar string) (*domain.User, error) {
	user, err := s.repo.EnsureUser(ctx, &domain.User{ID: id, Name: name, Avatar: avatar})
	if err != nil {
		s.log.ErrorContext(ctx, "users - ensure user failed", logging.User(id), logging.Err(err))
		return nil, err
	}
	return user, nil
}

// Profile resolves the display identity attached to presence announcements.
// A missing row degrades to a bare id rather than blocking the join.
func (s *UserService) Profile(ctx context.Context, id string) *domain.User {
	user, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		if !errors.Is(err, domain.ErrUserNotFound) {
			s.log.WarnContext(ctx, "users - profile lookup failed", logging.User(id), logging.Err(err))
		}
		return &domain.User{ID: id}
	}
	return user
}
