// Package runs records one report per crawl, dedup or cleanup run and fans it
// out to the configured ledger and notification sinks.
package runs

import (
	"context"
	"time"
)

// Kind names the job that produced a report.
type Kind string

// Job kinds.
const (
	KindCrawl   Kind = "crawl"
	KindDedup   Kind = "dedup"
	KindCleanup Kind = "cleanup"
)

// Status is the terminal state of a run.
type Status string

// Run statuses.
const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Report summarises one job run.
type Report struct {
	ID         string    `json:"id"`
	Kind       Kind      `json:"kind"`
	Status     Status    `json:"status"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	Params     any       `json:"params,omitempty"`
	Stats      any       `json:"stats,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// Duration is the wall time between start and finish.
func (r Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Store persists reports.
type Store interface {
	SaveReport(ctx context.Context, report Report) error
}

// Publisher announces reports to subscribers.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run ids.
type IDGenerator interface {
	NewID() (string, error)
}

// Attributes exposes the kind and status for subscription filters.
func (r Report) Attributes() map[string]string {
	return map[string]string{"kind": string(r.Kind), "status": string(r.Status), "runId": r.ID}
}
