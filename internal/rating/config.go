package rating

import (
	"os"
	"strconv"
)

// Config carries the tunable constants of the model. The algorithm does not
// depend on the exact values, only on KProvisional > KEstablished.
type Config struct {
	InitialRating        int
	KProvisional         int
	KEstablished         int
	ProvisionalThreshold int
	RatingFloor          int
}

func DefaultConfig() Config {
	return Config{
		InitialRating:        1000,
		KProvisional:         32,
		KEstablished:         16,
		ProvisionalThreshold: 10,
		RatingFloor:          0,
	}
}

// ConfigFromEnv reads overrides from the environment, falling back to the
// defaults for anything unset or unparsable.
func ConfigFromEnv() Config {
	c := DefaultConfig()
	c.InitialRating = envInt("INITIAL_RATING", c.InitialRating)
	c.KProvisional = envInt("K_PROVISIONAL", c.KProvisional)
	c.KEstablished = envInt("K_ESTABLISHED", c.KEstablished)
	c.ProvisionalThreshold = envInt("PROVISIONAL_THRESHOLD", c.ProvisionalThreshold)
	c.RatingFloor = envInt("RATING_FLOOR", c.RatingFloor)
	return c
}

func (c Config) KFor(provisional bool) int {
	if provisional {
		return c.KProvisional
	}
	return c.KEstablished
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
