package controllers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatTimePtr(t *testing.T) {
	assert.Nil(t, formatTimePtr(nil))

	now := time.Date(2024, 5, 1, 12, 34, 56, 0, time.Local)
	formatted := formatTimePtr(&now)
	assert.IsType(t, "", formatted)

	expected := now.UTC().Format(time.RFC3339)
	assert.Equal(t, expected, formatted)
}

func TestFormatDatePtr(t *testing.T) {
	assert.Nil(t, formatDatePtr(nil))

	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.Local)
	assert.Equal(t, "2024-05-01", formatDatePtr(&day))
}
