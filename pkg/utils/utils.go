package utils

import "log"

// GoSafe runs fn in a goroutine and recovers from panics so one bad task
// cannot take the process down.
func GoSafe(fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("recovered from panic: %v", r)
			}
		}()
		fn()
	}()
}

// ToPointer returns a pointer to the given value.
func ToPointer[T any](v T) *T {
	return &v
}
