package ws

import (
	"strings"
	"time"
)

type EventType string

const (
	EventIdentityEnrolled EventType = "identity.enrolled"
	EventIdentityVerified EventType = "identity.verified"
	EventAttendanceMarked EventType = "attendance.marked"
)

type Event struct {
	Type      EventType `json:"type"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// ParseFilter turns a comma separated list of event types into a filter.
// An empty list subscribes to everything and yields nil.
func ParseFilter(raw string) map[EventType]bool {
	var filter map[EventType]bool
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if filter == nil {
			filter = make(map[EventType]bool)
		}
		filter[EventType(part)] = true
	}
	return filter
}
