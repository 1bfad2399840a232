package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationError represents a configuration validation error with context
type ValidationError struct {
	FilePath string
	Field    string
	Message  string
}

func (e *ValidationError) Error() string {
	switch {
	case e.FilePath != "" && e.Field != "":
		return fmt.Sprintf("%s: field '%s': %s", e.FilePath, e.Field, e.Message)
	case e.Field != "":
		return fmt.Sprintf("field '%s': %s", e.Field, e.Message)
	case e.FilePath != "":
		return fmt.Sprintf("%s: %s", e.FilePath, e.Message)
	default:
		return e.Message
	}
}

// validate is shared; validator caches struct metadata
var validate = validator.New()

// Validate checks struct constraints and the cross-field rules the tags
// cannot express. Returns nil or a *ValidationError.
func (c *Configuration) Validate() error {
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return &ValidationError{
				FilePath: c.Source,
				Field:    fieldPath(fe.Namespace()),
				Message:  describe(fe),
			}
		}
		return &ValidationError{FilePath: c.Source, Message: err.Error()}
	}

	seen := make(map[string]bool, len(c.Channels))
	for _, ch := range c.Channels {
		if seen[ch.Name] {
			return &ValidationError{
				FilePath: c.Source,
				Field:    "plugins." + ch.Name,
				Message:  "duplicate channel name",
			}
		}
		seen[ch.Name] = true
	}

	if qh := c.Global.QuietHours; qh != nil {
		if qh.Start < 0 || qh.Start >= MinutesPerDay || qh.End < 0 || qh.End >= MinutesPerDay {
			return &ValidationError{
				FilePath: c.Source,
				Field:    "quiet_hours",
				Message:  "start and end must be times of day",
			}
		}
	}

	return nil
}

// fieldPath turns "Configuration.Invoker.Timeout" into "invoker.timeout"
func fieldPath(namespace string) string {
	parts := strings.Split(namespace, ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	return strings.ToLower(strings.Join(parts, "."))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", strings.ReplaceAll(fe.Param(), " ", ", "))
	case "min", "gt":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	default:
		return fmt.Sprintf("failed %q validation", fe.Tag())
	}
}
