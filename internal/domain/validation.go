package domain

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

// ChannelRegex validates build channel labels such as release or debug
var ChannelRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.-]*$`)

// NewValidator creates a configured validator instance
func NewValidator() *validator.Validate {
	v := validator.New()

	// Register custom channel validation
	_ = v.RegisterValidation("channel", func(fl validator.FieldLevel) bool {
		return ChannelRegex.MatchString(fl.Field().String())
	})

	return v
}

// ValidateRecord validates a BuildRecord struct
func ValidateRecord(v *validator.Validate, record *BuildRecord) error {
	return v.Struct(record)
}
