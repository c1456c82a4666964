package validator

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
)

// IsValidCron reports whether expr is a standard five-field cron expression
// (descriptors such as @daily are accepted too).
func IsValidCron(expr string) bool {
	if strings.TrimSpace(expr) == "" {
		return false
	}
	_, err := cron.ParseStandard(expr)
	return err == nil
}

// RegisterCustom adds the project tags to gin's validator engine.
func RegisterCustom() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("unexpected validator engine %T", binding.Validator.Engine())
	}
	return Register(v)
}

func Register(v *validator.Validate) error {
	return v.RegisterValidation("cron", func(fl validator.FieldLevel) bool {
		return IsValidCron(fl.Field().String())
	})
}

func FormatValidationError(err error) string {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		var messages []string
		for _, fieldError := range validationErrors {
			message := getFieldErrorMessage(fieldError)
			messages = append(messages, message)
		}
		return strings.Join(messages, "; ")
	}
	return err.Error()
}

func getFieldErrorMessage(fe validator.FieldError) string {
	field := getFieldName(fe.Field())

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "cron":
		return fmt.Sprintf("%s must be a valid cron expression", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "min":
		if fe.Type().String() == "string" {
			return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		if fe.Type().String() == "string" {
			return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

func getFieldName(field string) string {
	fieldNames := map[string]string{
		"PointsPerSubmission": "points per submission",
		"PointsPerVote":       "points per vote",
		"VoteEmoji":           "vote emoji",
		"CronSchedule":        "cron schedule",
		"PointsRequired":      "points required",
		"RoleID":              "role id",
		"UserID":              "user id",
		"WinnerID":            "winner id",
		"BonusPoints":         "bonus points",
	}

	if name, ok := fieldNames[field]; ok {
		return name
	}
	return strings.ToLower(field)
}
