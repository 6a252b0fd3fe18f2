package transport

import (
	"context"
	"time"

	"github.com/skitter-project/skitter/pkg/health"
)

// DispatchChecker implements health.Checker by dialing addr and sending a
// "beacon.ping" Envelope, the probe cmd/skitter's watchMaster uses to decide
// whether a worker's master is still reachable.
type DispatchChecker struct {
	addr    string
	timeout time.Duration
}

// NewDispatchChecker builds a checker against addr with the given per-probe
// timeout.
func NewDispatchChecker(addr string, timeout time.Duration) *DispatchChecker {
	return &DispatchChecker{addr: addr, timeout: timeout}
}

// Type reports this checker's kind.
func (c *DispatchChecker) Type() health.CheckType {
	return health.CheckTypeDispatch
}

// Check dials addr and round-trips a ping, reporting the outcome and
// elapsed time as a health.Result.
func (c *DispatchChecker) Check(ctx context.Context) health.Result {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	d, err := Dial(c.addr)
	if err != nil {
		return health.Result{Healthy: false, Message: err.Error(), CheckedAt: start, Duration: time.Since(start)}
	}
	defer d.Close()

	_, err = d.Dispatch(ctx, &Envelope{Tag: "beacon.ping"})
	if err != nil {
		return health.Result{Healthy: false, Message: err.Error(), CheckedAt: start, Duration: time.Since(start)}
	}
	return health.Result{Healthy: true, CheckedAt: start, Duration: time.Since(start)}
}
