package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/yourusername/pilotvoice-api/internal/domain/entity"
	"github.com/yourusername/pilotvoice-api/internal/domain/repository"
	"github.com/yourusername/pilotvoice-api/internal/pkg/nullable"
)

const maxRegistrationReasonLength = 500

// UpdateProfileCommand - частичное обновление профиля
type UpdateProfileCommand struct {
	CivlID             nullable.Field[int]    `json:"civl_id"`
	RegistrationReason nullable.Field[string] `json:"registration_reason"`
}

// ProfileService работает с профилями пилотов
type ProfileService struct {
	profiles repository.ProfileRepository
}

// NewProfileService создает сервис профилей
func NewProfileService(profiles repository.ProfileRepository) *ProfileService {
	return &ProfileService{profiles: profiles}
}

// GetProfile возвращает профиль пользователя
func (s *ProfileService) GetProfile(ctx context.Context, userID uuid.UUID) (*entity.Profile, error) {
	profile, err := s.profiles.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("profile: %w", err)
	}
	return profile, nil
}

// IsAdmin проверяет роль пользователя
func (s *ProfileService) IsAdmin(ctx context.Context, userID uuid.UUID) (bool, error) {
	profile, err := s.profiles.GetByUserID(ctx, userID)
	if err != nil {
		return false, err
	}
	return profile.IsAdmin(), nil
}

// UpdateProfile обновляет CIVL ID и причину регистрации
func (s *ProfileService) UpdateProfile(ctx context.Context, userID uuid.UUID, cmd UpdateProfileCommand) (*entity.Profile, error) {
	verr := NewValidationError()
	fields := make(map[string]interface{})

	if cmd.CivlID.Set {
		if cmd.CivlID.Value != nil && *cmd.CivlID.Value <= 0 {
			verr.Add("civl_id", "must be a positive integer")
		}
		fields["civl_id"] = cmd.CivlID.Value
	}
	if cmd.RegistrationReason.Set {
		if cmd.RegistrationReason.Value != nil {
			reason := strings.TrimSpace(*cmd.RegistrationReason.Value)
			if len([]rune(reason)) > maxRegistrationReasonLength {
				verr.Add("registration_reason", fmt.Sprintf("must be at most %d characters", maxRegistrationReasonLength))
			}
			fields["registration_reason"] = reason
		} else {
			fields["registration_reason"] = nil
		}
	}
	if !verr.Empty() {
		return nil, verr
	}

	profile, err := s.profiles.Update(ctx, userID, fields)
	if err != nil {
		return nil, fmt.Errorf("profile: %w", err)
	}
	return profile, nil
}
