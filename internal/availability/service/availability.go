package service

import (
	availabilityerrors "agenda/internal/availability/errors"
	"agenda/internal/availability/repository"
	"agenda/internal/availability/validator"
	"agenda/internal/cache"
	"agenda/pkg/config"
	apperrors "agenda/pkg/errors"
	"agenda/pkg/model"
	"agenda/pkg/sanitizer"
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

type AvailabilityService interface {
	CreateRule(ctx context.Context, rule *model.AvailabilityRule) error
	ListRules(ctx context.Context, resourceID string) ([]model.AvailabilityRule, error)
	UpdateRule(ctx context.Context, id string, update *model.AvailabilityRuleUpdate) (*model.AvailabilityRule, error)
	DeleteRule(ctx context.Context, id string) error
	GetConfig(ctx context.Context, resourceID string) (model.ValidationConfig, error)
	PutConfig(ctx context.Context, vc *model.ValidationConfig) error
}

type availabilityService struct {
	repo      repository.AvailabilityRepository
	validator *validator.AvailabilityValidator
	cache     *cache.Cache
	cfg       *config.Config
}

func NewAvailabilityService(
	repo repository.AvailabilityRepository,
	validator *validator.AvailabilityValidator,
	cache *cache.Cache,
	cfg *config.Config,
) AvailabilityService {
	return &availabilityService{
		repo:      repo,
		validator: validator,
		cache:     cache,
		cfg:       cfg,
	}
}

func (s *availabilityService) CreateRule(ctx context.Context, rule *model.AvailabilityRule) error {
	s.sanitizeRule(rule)
	rule.ID = uuid.NewString()

	if err := s.validator.ValidateRule(rule); err != nil {
		s.cfg.Log.Warn("Availability rule validation failed", "resource_id", rule.ResourceID, "error", err)
		return apperrors.Validation("Availability rule validation failed", map[string]any{"error": err.Error()})
	}

	if err := s.repo.CreateRule(ctx, rule); err != nil {
		s.cfg.Log.Error("Failed to create availability rule", "resource_id", rule.ResourceID, "error", err)
		return apperrors.Internal("Failed to create availability rule", err)
	}
	s.cache.InvalidateRules(ctx, rule.ResourceID)

	s.cfg.Log.Info("Availability rule created",
		"id", rule.ID,
		"resource_id", rule.ResourceID,
		"day_of_week", rule.DayOfWeek,
		"start", model.MinuteLabel(rule.StartTime),
		"end", model.MinuteLabel(rule.EndTime),
	)
	return nil
}

// ListRules returns every rule of the resource, active or not, read through the cache.
func (s *availabilityService) ListRules(ctx context.Context, resourceID string) ([]model.AvailabilityRule, error) {
	resourceID = sanitizer.SanitizeIdentifier(resourceID)
	if resourceID == "" {
		return nil, apperrors.InvalidInput("Resource ID cannot be empty")
	}

	rules, err := s.cache.Rules(ctx, resourceID, func(ctx context.Context) ([]model.AvailabilityRule, error) {
		return s.repo.FindRulesByResource(ctx, resourceID)
	})
	if err != nil {
		s.cfg.Log.Error("Failed to list availability rules", "resource_id", resourceID, "error", err)
		return nil, apperrors.Wrap(err, apperrors.CodeUnavailable, "Availability store is temporarily unavailable", http.StatusServiceUnavailable)
	}
	return rules, nil
}

func (s *availabilityService) UpdateRule(ctx context.Context, id string, update *model.AvailabilityRuleUpdate) (*model.AvailabilityRule, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Rule ID cannot be empty")
	}
	if err := s.validator.ValidateRuleUpdate(update); err != nil {
		return nil, apperrors.Validation("Invalid update input", map[string]any{"error": err.Error()})
	}

	existing, err := s.repo.FindRuleByID(ctx, id)
	if err != nil {
		if errors.Is(err, availabilityerrors.ErrRuleNotFound) {
			return nil, apperrors.NotFoundWithID("Availability rule", id)
		}
		return nil, apperrors.Internal("Failed to load availability rule", err)
	}

	merged := mergeRuleUpdate(existing, update)
	s.sanitizeRule(merged)
	if err := s.validator.ValidateRule(merged); err != nil {
		return nil, apperrors.Validation("Availability rule validation failed", map[string]any{"error": err.Error()})
	}

	if err := s.repo.ReplaceRule(ctx, merged); err != nil {
		if errors.Is(err, availabilityerrors.ErrRuleNotFound) {
			return nil, apperrors.NotFoundWithID("Availability rule", id)
		}
		return nil, apperrors.Internal("Failed to update availability rule", err)
	}
	s.cache.InvalidateRules(ctx, merged.ResourceID)

	s.cfg.Log.Info("Availability rule updated", "id", id, "resource_id", merged.ResourceID)
	return merged, nil
}

func (s *availabilityService) DeleteRule(ctx context.Context, id string) error {
	if id == "" {
		return apperrors.InvalidInput("Rule ID cannot be empty")
	}

	deleted, err := s.repo.DeleteRule(ctx, id)
	if err != nil {
		if errors.Is(err, availabilityerrors.ErrRuleNotFound) {
			return apperrors.NotFoundWithID("Availability rule", id)
		}
		return apperrors.Internal("Failed to delete availability rule", err)
	}
	s.cache.InvalidateRules(ctx, deleted.ResourceID)

	s.cfg.Log.Info("Availability rule deleted", "id", id, "resource_id", deleted.ResourceID)
	return nil
}

// GetConfig falls back to the service defaults when the resource has no stored config.
func (s *availabilityService) GetConfig(ctx context.Context, resourceID string) (model.ValidationConfig, error) {
	resourceID = sanitizer.SanitizeIdentifier(resourceID)
	if resourceID == "" {
		return model.ValidationConfig{}, apperrors.InvalidInput("Resource ID cannot be empty")
	}

	vc, err := s.cache.Config(ctx, resourceID, func(ctx context.Context) (model.ValidationConfig, error) {
		stored, err := s.repo.FindConfig(ctx, resourceID)
		if errors.Is(err, availabilityerrors.ErrConfigNotFound) {
			return s.cfg.DefaultValidationConfig(resourceID), nil
		}
		if err != nil {
			return model.ValidationConfig{}, err
		}
		return *stored, nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to load validation config", "resource_id", resourceID, "error", err)
		return model.ValidationConfig{}, apperrors.Wrap(err, apperrors.CodeUnavailable, "Availability store is temporarily unavailable", http.StatusServiceUnavailable)
	}
	return vc, nil
}

func (s *availabilityService) PutConfig(ctx context.Context, vc *model.ValidationConfig) error {
	vc.ResourceID = sanitizer.SanitizeIdentifier(vc.ResourceID)
	vc.Timezone = strings.TrimSpace(vc.Timezone)

	if err := s.validator.ValidateConfig(vc); err != nil {
		return apperrors.Validation("Validation config is invalid", map[string]any{"error": err.Error()})
	}

	if err := s.repo.UpsertConfig(ctx, vc); err != nil {
		s.cfg.Log.Error("Failed to save validation config", "resource_id", vc.ResourceID, "error", err)
		return apperrors.Internal("Failed to save validation config", err)
	}
	s.cache.InvalidateConfig(ctx, vc.ResourceID)

	s.cfg.Log.Info("Validation config saved",
		"resource_id", vc.ResourceID,
		"allow_overlapping", vc.AllowOverlapping,
		"max_bookings_per_day", vc.MaxBookingsPerDay,
		"max_bookings_per_slot", vc.MaxBookingsPerSlot,
	)
	return nil
}

// --- Helpers ---

func (s *availabilityService) sanitizeRule(rule *model.AvailabilityRule) {
	rule.ResourceID = sanitizer.SanitizeIdentifier(rule.ResourceID)
	rule.Exceptions = sanitizer.SanitizeSlice(rule.Exceptions, strings.TrimSpace)
}

func mergeRuleUpdate(existing *model.AvailabilityRule, update *model.AvailabilityRuleUpdate) *model.AvailabilityRule {
	merged := *existing

	if update.DayOfWeek != nil {
		merged.DayOfWeek = *update.DayOfWeek
	}
	if update.StartTime != nil {
		merged.StartTime = *update.StartTime
	}
	if update.EndTime != nil {
		merged.EndTime = *update.EndTime
	}
	if update.SlotDuration != nil {
		merged.SlotDuration = *update.SlotDuration
	}
	if update.BufferTime != nil {
		merged.BufferTime = *update.BufferTime
	}
	if update.MaxConcurrent != nil {
		merged.MaxConcurrent = *update.MaxConcurrent
	}
	if update.IsActive != nil {
		merged.IsActive = *update.IsActive
	}
	if update.Exceptions != nil {
		merged.Exceptions = *update.Exceptions
	}

	return &merged
}
