package rpc

import (
	"sync"
	"time"

	"github.com/op/go-logging"

	deepstream "github.com/aduycuong/deepstream-client-go"
)

func NewTestHandler(conn deepstream.Connection) *Handler {
	return NewHandler(conn, nil, deepstream.SetupLogging("test", logging.INFO))
}

func NewTestHandlerShortTimeouts(conn deepstream.Connection) *Handler {
	shortTimeouts := deepstream.Timeouts{
		Ack: 40 * time.Millisecond,
		RPC: deepstream.TimeoutPhases{
			Accept:   60 * time.Millisecond,
			Response: 80 * time.Millisecond,
		},
	}
	return NewHandler(conn, &shortTimeouts, deepstream.SetupLogging("test", logging.INFO))
}

// completionRecorder counts completions so exactly-once delivery can be
// asserted after injecting duplicate messages.
type completionRecorder struct {
	sync.Mutex
	errs    []error
	results []interface{}
}

func (rec *completionRecorder) callback() ResponseCallback {
	return func(err error, result interface{}) {
		rec.Lock()
		defer rec.Unlock()
		rec.errs = append(rec.errs, err)
		rec.results = append(rec.results, result)
	}
}

func (rec *completionRecorder) count() int {
	rec.Lock()
	defer rec.Unlock()
	return len(rec.errs)
}

func (rec *completionRecorder) last() (err error, result interface{}) {
	rec.Lock()
	defer rec.Unlock()
	if len(rec.errs) == 0 {
		return nil, nil
	}
	return rec.errs[len(rec.errs)-1], rec.results[len(rec.results)-1]
}
