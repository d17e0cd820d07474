package validator

import (
	"agenda/pkg/logger"
	"agenda/pkg/model"
	"agenda/pkg/validate"
	"fmt"

	"github.com/go-playground/validator/v10"
)

type AvailabilityValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewAvailabilityValidator(log *logger.Logger) *AvailabilityValidator {
	v, err := validate.New()
	if err != nil {
		log.Fatal("Failed to build availability validator", "error", err)
	}

	return &AvailabilityValidator{
		validate: v,
		logger:   log,
	}
}

func (v *AvailabilityValidator) ValidateRule(rule *model.AvailabilityRule) error {
	if err := validate.Struct(v.validate, rule); err != nil {
		return err
	}

	if rule.StartTime+rule.SlotDuration > rule.EndTime {
		return validate.ValidationErrors{{
			Field:   "SlotDuration",
			Message: fmt.Sprintf("slot_duration %d does not fit in the %d minute window", rule.SlotDuration, rule.EndTime-rule.StartTime),
		}}
	}
	return nil
}

func (v *AvailabilityValidator) ValidateRuleUpdate(update *model.AvailabilityRuleUpdate) error {
	return validate.Struct(v.validate, update)
}

func (v *AvailabilityValidator) ValidateConfig(cfg *model.ValidationConfig) error {
	return validate.Struct(v.validate, cfg)
}
