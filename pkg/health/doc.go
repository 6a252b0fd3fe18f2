// Package health provides the generic Checker/Status abstraction used for
// any liveness probe that reports a bool plus a message: consecutive
// failures/successes are tracked against a configurable retry threshold and
// a startup grace period before a verdict is trusted. pkg/membership's
// LivenessMonitor implements the same consecutive-failure idea directly
// against heartbeats rather than through this generic Checker interface,
// since heartbeats are push-based and don't need a Check(ctx) poll loop;
// this package remains the building block for anything that does need to
// poll (cmd/skitter's worker mode uses it to watch its master's
// reachability; the HTTP /healthz endpoint is served by pkg/metrics).
package health
