// Package users holds accounts, password login with JWT sessions and the
// admin user management operations.
package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"wisebox-backend/internal/auth"
	"wisebox-backend/internal/cache"
	"wisebox-backend/internal/middleware"
	"wisebox-backend/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

var (
	ErrNotFound           = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials or account suspended")
	ErrInvalidToken       = errors.New("invalid refresh token")
	ErrEmailTaken         = errors.New("email already exists")
	ErrInvalidRole        = errors.New("invalid role")
	ErrInvalidStatus      = errors.New("invalid status")
	ErrSelfChange         = errors.New("admins cannot change their own role, status or account")
)

type Service struct {
	repo     Repository
	tokens   *auth.Manager
	location *time.Location
	flows    AccountFlows
	now      func() time.Time
}

func NewService(repo Repository, tokens *auth.Manager, location *time.Location) *Service {
	if location == nil {
		location = time.UTC
	}
	return &Service{
		repo:     repo,
		tokens:   tokens,
		location: location,
		flows:    AccountFlows{Store: cache.NewMemory(), CodeTTL: defaultCodeTTL, ResetTTL: defaultResetTTL},
		now:      time.Now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Login checks the password of an active account and issues a token pair.
// Unknown emails, wrong passwords and inactive accounts fail alike.
func (s *Service) Login(ctx context.Context, email, password string) (models.User, Tokens, error) {
	user, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.User{}, Tokens{}, ErrInvalidCredentials
		}
		return models.User{}, Tokens{}, err
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return models.User{}, Tokens{}, ErrInvalidCredentials
	}
	if user.Status != models.UserStatusActive {
		return models.User{}, Tokens{}, ErrInvalidCredentials
	}

	tokens, err := s.issue(user)
	if err != nil {
		return models.User{}, Tokens{}, err
	}

	now := s.now().In(s.location)
	if touched, err := s.repo.Update(ctx, user.ID, bson.M{"lastActiveAt": now}); err == nil {
		user = touched
	}
	return user, tokens, nil
}

// Refresh exchanges a refresh token for a new pair. The account must still
// be active.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (models.User, Tokens, error) {
	claims, err := s.tokens.ParseKind(refreshToken, auth.TokenRefresh)
	if err != nil {
		return models.User{}, Tokens{}, ErrInvalidToken
	}
	user, err := s.repo.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.User{}, Tokens{}, ErrInvalidToken
		}
		return models.User{}, Tokens{}, err
	}
	if user.Status != models.UserStatusActive {
		return models.User{}, Tokens{}, ErrInvalidCredentials
	}
	tokens, err := s.issue(user)
	if err != nil {
		return models.User{}, Tokens{}, err
	}
	return user, tokens, nil
}

func (s *Service) issue(user models.User) (Tokens, error) {
	access, err := s.tokens.NewAccessToken(user.ID, user.Role)
	if err != nil {
		return Tokens{}, fmt.Errorf("access token: %w", err)
	}
	refresh, err := s.tokens.NewRefreshToken(user.ID, user.Role)
	if err != nil {
		return Tokens{}, fmt.Errorf("refresh token: %w", err)
	}
	return Tokens{Access: access, Refresh: refresh}, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (models.User, error) {
	user, err := s.repo.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, err
	}
	return user, nil
}

// AccountState feeds middleware.RequireActiveRole.
func (s *Service) AccountState(ctx context.Context, id string) (string, string, error) {
	user, err := s.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", "", middleware.ErrAccountGone
		}
		return "", "", err
	}
	return user.Role, user.Status, nil
}

func (s *Service) List(ctx context.Context, filter ListFilter, limit, offset int64) ([]models.User, int64, error) {
	filter.Search = strings.TrimSpace(filter.Search)
	filter.Role = strings.ToLower(strings.TrimSpace(filter.Role))
	filter.Status = strings.ToLower(strings.TrimSpace(filter.Status))
	if filter.Role != "" && !models.Contains(models.UserRoles, filter.Role) {
		return nil, 0, ErrInvalidRole
	}
	if filter.Status != "" && !models.Contains(models.UserStatuses, filter.Status) {
		return nil, 0, ErrInvalidStatus
	}

	items, err := s.repo.List(ctx, filter, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.repo.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (models.User, error) {
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}
	status := req.Status
	if status == "" {
		status = models.UserStatusActive
	}

	now := s.now().In(s.location)
	user := models.User{
		ID:           primitive.NewObjectID().Hex(),
		Name:         strings.TrimSpace(req.Name),
		Email:        normalizeEmail(req.Email),
		PasswordHash: hash,
		Role:         req.Role,
		Status:       status,
		Location:     strings.TrimSpace(req.Location),
		Phone:        strings.TrimSpace(req.Phone),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return models.User{}, ErrEmailTaken
		}
		return models.User{}, err
	}
	return user, nil
}

func (s *Service) UpdateRole(ctx context.Context, actorID, id, role string) (models.User, error) {
	role = strings.ToLower(strings.TrimSpace(role))
	if !models.Contains(models.UserRoles, role) {
		return models.User{}, ErrInvalidRole
	}
	return s.update(ctx, actorID, id, bson.M{"role": role})
}

func (s *Service) UpdateStatus(ctx context.Context, actorID, id, status string) (models.User, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	if !models.Contains(models.UserStatuses, status) {
		return models.User{}, ErrInvalidStatus
	}
	return s.update(ctx, actorID, id, bson.M{"status": status})
}

func (s *Service) update(ctx context.Context, actorID, id string, fields bson.M) (models.User, error) {
	id = strings.TrimSpace(id)
	if id == actorID {
		return models.User{}, ErrSelfChange
	}
	updated, err := s.repo.Update(ctx, id, fields)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, err
	}
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, actorID, id string) error {
	id = strings.TrimSpace(id)
	if id == actorID {
		return ErrSelfChange
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrNotFound
		}
		return err
	}
	return nil
}
