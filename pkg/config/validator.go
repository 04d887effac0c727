package config

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

var envVarNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// RegisterCustomValidators registers custom validation functions
func RegisterCustomValidators(v *validator.Validate) error {
	return v.RegisterValidation("env_var_name", validateEnvVarName)
}

// validateEnvVarName accepts POSIX-style environment variable names
func validateEnvVarName(fl validator.FieldLevel) bool {
	return envVarNamePattern.MatchString(fl.Field().String())
}
