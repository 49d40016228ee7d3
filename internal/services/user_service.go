package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"

	"github.com/SAP-F-2025/clinic-service/internal/events"
	"github.com/SAP-F-2025/clinic-service/internal/models"
	"github.com/SAP-F-2025/clinic-service/internal/repositories"
	"github.com/SAP-F-2025/clinic-service/internal/validator"
)

type userService struct {
	repo      repositories.Repository
	identity  repositories.IdentityStore
	publisher events.EventPublisher
	logger    *slog.Logger
	validator *validator.Validator
}

func NewUserService(repo repositories.Repository, identity repositories.IdentityStore, publisher events.EventPublisher, logger *slog.Logger, validator *validator.Validator) UserService {
	return &userService{
		repo:      repo,
		identity:  identity,
		publisher: publisher,
		logger:    logger,
		validator: validator,
	}
}

// NormalizeSecurityAnswer is applied before hashing and before comparing
func NormalizeSecurityAnswer(answer string) string {
	return strings.ToLower(strings.TrimSpace(answer))
}

func (s *userService) RegisterSupervisor(ctx context.Context, req *RegisterSupervisorRequest) (*models.UserProfile, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	attrs := datatypes.JSONMap{}
	if q := strings.TrimSpace(req.SecurityQuestion); q != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(NormalizeSecurityAnswer(req.SecurityAnswer)), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash security answer: %w", err)
		}
		attrs[models.AttrSecurityQuestion] = q
		attrs[models.AttrSecurityAnswerHash] = string(hash)
	}

	return s.register(ctx, repositories.NewIdentity{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.Name,
	}, &models.UserProfile{
		Name:       req.Name,
		Email:      req.Email,
		StaffID:    req.StaffID,
		Role:       models.RoleSupervisor,
		Attributes: attrs,
	})
}

func (s *userService) RegisterClinicStaff(ctx context.Context, req *RegisterClinicStaffRequest) (*models.UserProfile, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	return s.register(ctx, repositories.NewIdentity{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.Name,
	}, &models.UserProfile{
		Name:    req.Name,
		Email:   req.Email,
		StaffID: req.StaffID,
		Role:    models.RoleClinic,
		Attributes: datatypes.JSONMap{
			models.AttrJobRole: req.JobRole,
		},
	})
}

// register creates the identity, then the profile; a failed profile write removes the identity again
func (s *userService) register(ctx context.Context, in repositories.NewIdentity, profile *models.UserProfile) (*models.UserProfile, error) {
	s.logger.Info("Registering staff", "email", in.Email, "role", profile.Role)

	uid, err := s.identity.CreateIdentity(ctx, in)
	if err != nil {
		if errors.Is(err, repositories.ErrIdentityExists) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create identity: %w", err)
	}

	profile.UID = uid
	profile.Blocked = false
	if err := s.repo.User().Create(ctx, profile); err != nil {
		if delErr := s.identity.DeleteIdentity(context.WithoutCancel(ctx), uid); delErr != nil {
			s.logger.Error("Failed to roll back identity", "uid", uid, "error", delErr)
		}
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, fmt.Errorf("profile %s: %w", uid, ErrConflict)
		}
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}

	publishEvent(ctx, s.publisher, s.logger, events.EventUserRegistered, map[string]interface{}{
		"uid":  uid,
		"role": string(profile.Role),
	})
	return profile.PublicProfile(), nil
}

func (s *userService) List(ctx context.Context, filters repositories.UserFilters) (*UserListResponse, error) {
	profiles, total, err := s.repo.User().List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	users := make([]*models.UserProfile, 0, len(profiles))
	for _, p := range profiles {
		users = append(users, p.PublicProfile())
	}
	return &UserListResponse{Users: users, Total: total}, nil
}

// ToggleBlocked flips the blocked flag; blocking also ends every live session of the user
func (s *userService) ToggleBlocked(ctx context.Context, actorUID, uid string) (*models.UserProfile, error) {
	if actorUID == uid {
		return nil, fmt.Errorf("%w: cannot block your own account", ErrForbidden)
	}

	profile, err := s.repo.User().GetByID(ctx, uid)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	blocked := !profile.Blocked
	if err := s.repo.User().SetBlocked(ctx, uid, blocked); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	profile.Blocked = blocked

	eventType := events.EventUserUnblocked
	if blocked {
		eventType = events.EventUserBlocked
		if err := s.identity.RevokeAll(ctx, uid); err != nil {
			return nil, fmt.Errorf("user blocked but sessions not revoked: %w", err)
		}
	}

	s.logger.Info("User block toggled", "uid", uid, "blocked", blocked, "actor", actorUID)
	publishEvent(ctx, s.publisher, s.logger, eventType, map[string]interface{}{
		"uid":   uid,
		"actor": actorUID,
	})
	return profile.PublicProfile(), nil
}

// Delete removes the profile and revokes sessions. The identity stays, so the user can no longer pass the profile check.
func (s *userService) Delete(ctx context.Context, actorUID, uid string) error {
	if actorUID == uid {
		return fmt.Errorf("%w: cannot delete your own account", ErrForbidden)
	}

	if err := s.repo.User().Delete(ctx, uid); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if err := s.identity.RevokeAll(ctx, uid); err != nil {
		return fmt.Errorf("user deleted but sessions not revoked: %w", err)
	}

	s.logger.Info("User deleted", "uid", uid, "actor", actorUID)
	publishEvent(ctx, s.publisher, s.logger, events.EventUserDeleted, map[string]interface{}{
		"uid":   uid,
		"actor": actorUID,
	})
	return nil
}
