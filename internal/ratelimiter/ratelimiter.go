package ratelimiter

import "time"

// Limiter is keyed by client id for authenticated routes and by remote
// address otherwise.
type Limiter interface {
	Allow(key string) (bool, time.Duration)
}

type Config struct {
	RequestsPerTimeFrame int
	TimeFrame            time.Duration
	Enabled              bool
}
