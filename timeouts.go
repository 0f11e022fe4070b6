package deepstream

import (
	"time"
)

// TimeoutPhases holds the two windows of an in-flight RPC call: how long the
// remote provider has to accept the request, and how long it then has to
// deliver a response once accepted.
type TimeoutPhases struct {
	Accept   time.Duration
	Response time.Duration
}

// Timeouts configures every timer the RPC layer arms.
type Timeouts struct {
	//	acknowledgement window for PROVIDE/UNPROVIDE
	Ack time.Duration
	RPC TimeoutPhases
}

func DefaultTimeouts() Timeouts {
	return Timeouts{
		Ack: 2 * time.Second,
		RPC: TimeoutPhases{
			Accept:   6 * time.Second,
			Response: 10 * time.Second,
		},
	}
}
