package validator

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsValidCron(t *testing.T) {
	tests := []struct {
		expr string
		want bool
	}{
		{"0 10 * * 1", true},
		{"*/15 * * * *", true},
		{"@daily", true},
		{"", false},
		{"   ", false},
		{"not a cron", false},
		{"61 * * * *", false},
		{"0 10 * *", false},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidCron(tt.expr))
		})
	}
}

func TestCronTag(t *testing.T) {
	v := validator.New()
	require.NoError(t, Register(v))

	type template struct {
		CronSchedule string `validate:"required,cron"`
	}

	assert.NoError(t, v.Struct(template{CronSchedule: "0 10 * * 1"}))

	err := v.Struct(template{CronSchedule: "every monday"})
	require.Error(t, err)
	assert.Equal(t, "cron schedule must be a valid cron expression", FormatValidationError(err))
}
