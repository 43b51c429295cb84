package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTruncateToDate(t *testing.T) {
	at := time.Date(2024, 6, 3, 14, 31, 12, 500, LocationCST())
	got := TruncateToDate(at)

	assert.Equal(t, time.Date(2024, 6, 3, 0, 0, 0, 0, LocationCST()), got)
	assert.Equal(t, LocationCST().String(), got.Location().String())
}

func TestSameDate(t *testing.T) {
	a := time.Date(2024, 6, 3, 9, 30, 0, 0, LocationCST())
	b := time.Date(2024, 6, 3, 15, 0, 0, 0, LocationCST())
	c := time.Date(2024, 6, 4, 0, 0, 0, 0, LocationCST())

	assert.True(t, SameDate(a, b))
	assert.False(t, SameDate(a, c))
}

func TestClockAt(t *testing.T) {
	day := time.Date(2024, 6, 3, 9, 30, 0, 0, LocationCST())
	got := ClockAt(day, 14, 30)

	assert.Equal(t, 14, got.Hour())
	assert.Equal(t, 30, got.Minute())
	assert.True(t, SameDate(day, got))
}
