package lifecycle

import (
	"sync"
	"time"
)

// Clock supplies time and periodic callbacks to the Controller.
type Clock interface {
	Now() time.Time
	// Every calls fn every d until stop is called. A call already in flight
	// may complete after stop.
	Every(d time.Duration, fn func()) (stop func())
}

// SystemClock is the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

func (SystemClock) Every(d time.Duration, fn func()) func() {
	ticker := time.NewTicker(d)
	quit := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				fn()
			case <-quit:
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			ticker.Stop()
			close(quit)
		})
	}
}
