package webhook

import (
	"time"

	"github.com/google/uuid"
)

type Config struct {
	URL    string
	Secret string
	// Events limits delivery to these event types. Empty delivers all.
	Events      []string
	MaxAttempts int
	Timeout     time.Duration
	// RetryBase is the first retry delay; each later attempt doubles it.
	RetryBase time.Duration
	QueueSize int
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.RetryBase <= 0 {
		c.RetryBase = time.Second
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	return c
}

// EventPayload is the JSON body POSTed to the receiver.
type EventPayload struct {
	ID        uuid.UUID `json:"id"`
	Type      string    `json:"type"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

type job struct {
	id        uuid.UUID
	eventType string
	payload   []byte
	attempts  int
}
