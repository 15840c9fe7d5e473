package safe

import (
	"runtime/debug"

	"CareChat/logger"
)

// Go starts a goroutine that recovers from panics, so one misbehaving
// connection cannot take the whole gateway down.
func Go(f func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Errorf("goroutine panic recovered: %v\n%s", r, debug.Stack())
			}
		}()
		f()
	}()
}
