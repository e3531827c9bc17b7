package service

import (
	"context"
	"fmt"

	"tohomc/internal/common"
	"tohomc/internal/domain/model"
	"tohomc/internal/domain/repository"
	"tohomc/internal/platform/logger"
)

type UserService struct {
	userRepo   repository.UserRepository
	ratingRepo repository.RatingRepository
}

func NewUserService(userRepo repository.UserRepository, ratingRepo repository.RatingRepository) *UserService {
	return &UserService{userRepo: userRepo, ratingRepo: ratingRepo}
}

func (s *UserService) Profile(ctx context.Context, username string) (*model.UserProfile, error) {
	user, err := resolveUser(ctx, s.userRepo, username)
	if err != nil {
		return nil, err
	}
	user.HashedPassword = ""
	history, err := s.ratingRepo.ListHistory(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to load contest history: %w", err)
	}
	return &model.UserProfile{User: user, History: history}, nil
}

func (s *UserService) requireAdmin(ctx context.Context, actorName string) (*model.User, error) {
	actor, err := resolveUser(ctx, s.userRepo, actorName)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() {
		return nil, fmt.Errorf("admin access required: %w", common.ErrForbidden)
	}
	return actor, nil
}

func (s *UserService) List(ctx context.Context, actorName string) ([]model.User, error) {
	if _, err := s.requireAdmin(ctx, actorName); err != nil {
		return nil, err
	}
	users, err := s.userRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	for i := range users {
		users[i].HashedPassword = ""
	}
	return users, nil
}

func (s *UserService) Delete(ctx context.Context, actorName, target string) error {
	actor, err := s.requireAdmin(ctx, actorName)
	if err != nil {
		return err
	}
	if actor.Username == target {
		return fmt.Errorf("cannot delete your own account: %w", common.ErrForbidden)
	}
	if err := s.userRepo.Delete(ctx, target); err != nil {
		return fmt.Errorf("failed to delete user %s: %w", target, err)
	}
	logger.Info.Printf("User %s deleted by %s", target, actor.Username)
	return nil
}

// ToggleAdmin flips target between user and admin and returns the new role.
func (s *UserService) ToggleAdmin(ctx context.Context, actorName, target string) (string, error) {
	actor, err := s.requireAdmin(ctx, actorName)
	if err != nil {
		return "", err
	}
	if actor.Username == target {
		return "", fmt.Errorf("cannot change your own role: %w", common.ErrForbidden)
	}
	user, err := s.userRepo.FindByUsername(ctx, target)
	if err != nil {
		return "", fmt.Errorf("failed to load user %s: %w", target, err)
	}
	role := model.RoleAdmin
	if user.IsAdmin() {
		role = model.RoleUser
	}
	if err := s.userRepo.UpdateRole(ctx, target, role); err != nil {
		return "", fmt.Errorf("failed to update role: %w", err)
	}
	logger.Info.Printf("User %s is now %s (changed by %s)", target, role, actor.Username)
	return role, nil
}

func (s *UserService) SetRating(ctx context.Context, actorName, target string, rating int) error {
	if _, err := s.requireAdmin(ctx, actorName); err != nil {
		return err
	}
	if rating < 0 {
		return fmt.Errorf("rating must not be negative: %w", common.ErrValidation)
	}
	if err := s.userRepo.UpdateRating(ctx, nil, target, rating); err != nil {
		return fmt.Errorf("failed to set rating for %s: %w", target, err)
	}
	return nil
}
