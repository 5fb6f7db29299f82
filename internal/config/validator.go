package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// RegisterCustomValidators registers breakdesk-specific validation
// rules. Must be called before validating Config.
func RegisterCustomValidators(v *validator.Validate) error {
	// duration: validates Go duration strings like "15m" or "24h".
	if err := v.RegisterValidation("duration", validateDuration); err != nil {
		return fmt.Errorf("failed to register duration validator: %w", err)
	}
	return nil
}

// validateDuration accepts positive time.ParseDuration strings.
func validateDuration(fl validator.FieldLevel) bool {
	d, err := time.ParseDuration(fl.Field().String())
	return err == nil && d > 0
}

// Validate validates the Config using struct tags and cross-field
// rules. Returns an error with actionable messages on failure.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())

	if err := RegisterCustomValidators(v); err != nil {
		return err
	}

	if err := v.Struct(c); err != nil {
		return formatValidationErrors(err)
	}

	if err := c.validateStorage(); err != nil {
		return err
	}

	return c.validateCategories()
}

// validateCategories rejects duplicate category names; the registry
// would refuse them at startup anyway, but the config error reads
// better.
func (c *Config) validateCategories() error {
	seen := make(map[string]bool, len(c.Categories))
	for _, cat := range c.Categories {
		if seen[cat.Name] {
			return fmt.Errorf("duplicate category %q in config", cat.Name)
		}
		seen[cat.Name] = true
	}
	return nil
}

// formatValidationErrors converts validator errors into readable
// config errors.
func formatValidationErrors(err error) error {
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}

	msgs := make([]string, 0, len(validationErrors))
	for _, fe := range validationErrors {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", fieldPath(fe)))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of: %s", fieldPath(fe), fe.Param()))
		case "duration":
			msgs = append(msgs, fmt.Sprintf("%s must be a positive duration like \"15m\"", fieldPath(fe)))
		case "min":
			msgs = append(msgs, fmt.Sprintf("%s must be at least %s", fieldPath(fe), fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s validation", fieldPath(fe), fe.Tag()))
		}
	}
	return fmt.Errorf("config validation failed: %s", strings.Join(msgs, "; "))
}

// fieldPath renders the struct namespace without the leading type name.
func fieldPath(fe validator.FieldError) string {
	path := fe.Namespace()
	if i := strings.Index(path, "."); i >= 0 {
		path = path[i+1:]
	}
	return strings.ToLower(path)
}
