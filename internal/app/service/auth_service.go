package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"tohomc/internal/common"
	"tohomc/internal/common/security"
	"tohomc/internal/domain/model"
	"tohomc/internal/domain/repository"
	"tohomc/internal/platform/logger"

	"github.com/google/uuid"
)

const maxUsernameLength = 32

type AuthService struct {
	userRepo repository.UserRepository
}

func NewAuthService(userRepo repository.UserRepository) *AuthService {
	return &AuthService{userRepo: userRepo}
}

type SignupRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type AuthResponse struct {
	User  *model.User `json:"user"`
	Token string      `json:"token"`
}

func validateUsername(username string) error {
	if username == "" || len(username) > maxUsernameLength {
		return fmt.Errorf("username must be 1-%d characters: %w", maxUsernameLength, common.ErrValidation)
	}
	for _, r := range username {
		if unicode.IsSpace(r) || r == ',' || r == '/' {
			return fmt.Errorf("username contains an invalid character: %w", common.ErrValidation)
		}
	}
	return nil
}

func (s *AuthService) Signup(ctx context.Context, req SignupRequest) (*AuthResponse, error) {
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		return nil, common.ErrBadRequest
	}
	if err := validateUsername(req.Username); err != nil {
		return nil, err
	}

	user, err := s.createUser(ctx, req.Username, req.Password, model.RoleUser)
	if err != nil {
		return nil, err
	}

	token, err := security.GenerateToken(user.ID, user.Username, user.Role)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	return &AuthResponse{User: user, Token: token}, nil
}

func (s *AuthService) createUser(ctx context.Context, username, password, role string) (*model.User, error) {
	hashedPassword, err := security.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		ID:             uuid.NewString(),
		Username:       username,
		HashedPassword: hashedPassword,
		Role:           role,
		Rating:         model.DefaultRating,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		// Repo might return common.ErrConflict
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	user.HashedPassword = "" // Clear password before returning
	return user, nil
}

func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		return nil, common.ErrBadRequest
	}

	user, err := s.userRepo.FindByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrUnauthorized // Generic message for security
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if !security.CheckPasswordHash(req.Password, user.HashedPassword) {
		return nil, common.ErrUnauthorized
	}

	token, err := security.GenerateToken(user.ID, user.Username, user.Role)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	user.HashedPassword = ""
	return &AuthResponse{User: user, Token: token}, nil
}

// EnsureAdmin creates the bootstrap administrator when it does not exist yet.
// An existing account with that name is promoted but keeps its password.
func (s *AuthService) EnsureAdmin(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return nil
	}
	existing, err := s.userRepo.FindByUsername(ctx, username)
	switch {
	case err == nil:
		if existing.IsAdmin() {
			return nil
		}
		logger.Info.Printf("Promoting existing user %s to admin", username)
		return s.userRepo.UpdateRole(ctx, username, model.RoleAdmin)
	case errors.Is(err, common.ErrNotFound):
		if _, err := s.createUser(ctx, username, password, model.RoleAdmin); err != nil {
			return err
		}
		logger.Info.Printf("Bootstrap admin %s created", username)
		return nil
	default:
		return fmt.Errorf("failed to look up bootstrap admin: %w", err)
	}
}
