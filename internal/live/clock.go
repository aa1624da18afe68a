package live

import "time"

// Clock источник времени и единственная точка ожидания цикла
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

// SystemClock реальные часы
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

func (SystemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }
