package utils

import (
	"log"
	"time"
)

// TimeNowCST returns the current time in the China Standard Time zone used by
// both exchanges.
func TimeNowCST() time.Time {
	return time.Now().In(LocationCST())
}

// LocationCST returns the Asia/Shanghai location.
func LocationCST() *time.Location {
	loc, err := time.LoadLocation("Asia/Shanghai")
	if err != nil {
		log.Fatal("Failed to load location", err)
	}
	return loc
}

// TruncateToDate strips the clock portion of t, keeping its location.
func TruncateToDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// SameDate reports whether a and b fall on the same calendar day.
func SameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// ClockAt returns day with the clock set to hour:min in day's location.
func ClockAt(day time.Time, hour, min int) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, hour, min, 0, 0, day.Location())
}
