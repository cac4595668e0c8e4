package config

import (
	"os"
	"time"
)

type LoginConfig interface {
	GetLoginTTL() time.Duration
	GetLoginSweepInterval() time.Duration
}

type Login struct{}

var _ LoginConfig = Login{}

// GetLoginTTL returns how long a begun login waits for its one-time code
// before the pending entry is evicted and its connection closed.
func (Login) GetLoginTTL() time.Duration {
	return getDuration(loginTTLVar, 5*time.Minute)
}

func (Login) GetLoginSweepInterval() time.Duration {
	return getDuration(loginSweepVar, 30*time.Second)
}

func getDuration(envVar string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(envVar))
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}
