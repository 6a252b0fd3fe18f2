package skerr

import (
	"errors"
	"fmt"
)

// Sentinel error kinds. Use errors.Is against these, never string matching.
var (
	ErrDefinition        = errors.New("definition error")
	ErrUnknownName       = errors.New("unknown name")
	ErrNoSuchCallback    = errors.New("no such callback")
	ErrStrategyIncomplete = errors.New("strategy incomplete")
	ErrNotDistributed    = errors.New("not distributed")
	ErrNotConnected      = errors.New("not connected")
	ErrAlreadyConnected  = errors.New("already connected")
	ErrNoSkitterWorker   = errors.New("no skitter worker on node")
	ErrWrongCookie       = errors.New("wrong cookie")
	ErrTimeout           = errors.New("timeout")
	ErrWorkerCrash       = errors.New("worker crash")
	ErrDeploymentPartial = errors.New("deployment partial")
)

// NodeErr wraps one of the node-scoped sentinels (ErrNotConnected,
// ErrAlreadyConnected, ErrNoSkitterWorker, ErrWrongCookie, ErrTimeout) with
// the offending node name.
func NodeErr(kind error, node string) error {
	return fmt.Errorf("%s: %w", node, kind)
}

// WorkerCrash wraps ErrWorkerCrash with the crashing worker's ref and reason.
func WorkerCrash(workerRef string, reason error) error {
	return fmt.Errorf("worker %s crashed: %w: %w", workerRef, reason, ErrWorkerCrash)
}

// PartialDeployment reports a deployment that succeeded on some components
// and failed on others.
type PartialDeployment struct {
	Successes []string
	Failures  map[string]error
}

func (p *PartialDeployment) Error() string {
	return fmt.Sprintf("deployment partial: %d succeeded, %d failed", len(p.Successes), len(p.Failures))
}

func (p *PartialDeployment) Unwrap() error { return ErrDeploymentPartial }
