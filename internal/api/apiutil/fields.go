package apiutil

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/maitredhq/maitred/internal/models"
	"github.com/maitredhq/maitred/internal/schedule"
)

func ParsePositiveIntField(raw string, field string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("%s is required", field)
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer", field)
	}
	return value, nil
}

func ParseOptionalInt64Field(raw string, field string) (*int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || value <= 0 {
		return nil, fmt.Errorf("%s must be a positive integer", field)
	}
	return &value, nil
}

// ParseDateField validates a YYYY-MM-DD value and returns it with its
// resolved day of week.
func ParseDateField(raw string, field string) (string, time.Weekday, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", 0, fmt.Errorf("%s is required", field)
	}
	parsed, err := time.Parse(models.DateLayout, raw)
	if err != nil {
		return "", 0, fmt.Errorf("%s must be a YYYY-MM-DD date", field)
	}
	return parsed.Format(models.DateLayout), parsed.Weekday(), nil
}

// ParseClockField validates an HH:MM value and normalizes it.
func ParseClockField(raw string, field string) (string, error) {
	minute, err := schedule.ParseClock(raw)
	if err != nil {
		return "", fmt.Errorf("%s must be an HH:MM time", field)
	}
	return minute.Clock(), nil
}
