package utils

import (
	"strconv"

	"event-booking/pkg/apperror"

	"github.com/google/uuid"
)

// ParseInt returns value as a positive int, or defaultValue when it is
// missing or not a positive number.
func ParseInt(value string, defaultValue int) int {
	result, err := strconv.Atoi(value)
	if err != nil || result < 1 {
		return defaultValue
	}
	return result
}

// ParseUUID parses a path or body identifier and reports a failure as a
// validation error on field.
func ParseUUID(field, value string) (uuid.UUID, error) {
	id, err := uuid.Parse(value)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, apperror.Validation(field, "Must be a valid UUID")
	}
	return id, nil
}
