package events

import (
	"net/http"
	"time"
)

// HTTPStart is emitted when the GraphQL endpoint receives a request.
type HTTPStart struct {
	Request   *http.Request
	RequestID string
}

// HTTPFinish is emitted after the response was written. Operations is the
// number of GraphQL operations the request carried, 0 when it was rejected
// before parsing.
type HTTPFinish struct {
	Request    *http.Request
	RequestID  string
	Status     int
	Operations int
	Duration   time.Duration
}
