package sender

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/napryag/clinic_booking_bot/pkg/utils/errs"
)

// ProcessorConfig values should be loaded from .env file.
type ProcessorConfig struct {
	ChannelID string
	// Attempts is how many times a notice is sent before giving up.
	Attempts int
	// Backoff is the first retry delay; it doubles after every attempt.
	Backoff time.Duration
}

func (c *ProcessorConfig) LoadFromEnv() error {
	// .env is optional, the variables may come from the environment itself
	_ = godotenv.Load()

	channelID := os.Getenv("TG_CHANNEL_ID")
	if channelID == "" {
		return errs.New("empty channel id")
	}
	c.ChannelID = channelID
	c.setDefaults()

	return nil
}

func (c *ProcessorConfig) setDefaults() {
	if c.Attempts <= 0 {
		c.Attempts = 3
	}
	if c.Backoff <= 0 {
		c.Backoff = time.Second
	}
}
