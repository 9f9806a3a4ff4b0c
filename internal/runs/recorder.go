package runs

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/pyq-crawler/internal/logging"
	"github.com/JakeFAU/pyq-crawler/internal/metrics"
)

const sinkTimeout = 10 * time.Second

// Options wires the optional sinks. A nil Store or Publisher is skipped.
type Options struct {
	Store     Store
	Publisher Publisher
	Topic     string
	Clock     Clock
	IDs       IDGenerator
}

// Recorder builds reports and delivers them. Sink failures are logged and
// never change a job's outcome.
type Recorder struct {
	opts   Options
	logger *zap.Logger
}

// NewRecorder constructs a Recorder.
func NewRecorder(opts Options, logger *zap.Logger) *Recorder {
	return &Recorder{opts: opts, logger: logging.OrNop(logger).Named("runs")}
}

// Run is an in-flight report.
type Run struct {
	report Report
}

// ID returns the run id, empty when id generation failed.
func (r *Run) ID() string {
	return r.report.ID
}

// Begin stamps the start of a run.
func (r *Recorder) Begin(kind Kind, params any) *Run {
	report := Report{Kind: kind, StartedAt: r.now(), Params: params}
	if r.opts.IDs != nil {
		id, err := r.opts.IDs.NewID()
		if err != nil {
			r.logger.Warn("run id generation failed", zap.Error(err))
		}
		report.ID = id
	}
	return &Run{report: report}
}

// Finish completes the report and sends it to every configured sink.
func (r *Recorder) Finish(ctx context.Context, run *Run, stats any, runErr error) Report {
	report := run.report
	report.FinishedAt = r.now()
	report.Stats = stats
	report.Status = StatusSucceeded
	if runErr != nil {
		report.Status = StatusFailed
		report.Error = runErr.Error()
	}
	metrics.ObserveJobRun(string(report.Kind), string(report.Status))

	sinkCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sinkTimeout)
	defer cancel()

	logger := r.logger.With(zap.String("run_id", report.ID), zap.String("kind", string(report.Kind)))
	if r.opts.Store != nil {
		if err := r.opts.Store.SaveReport(sinkCtx, report); err != nil {
			logger.Error("save run report failed", zap.Error(err))
		}
	}
	if r.opts.Publisher != nil && r.opts.Topic != "" {
		if _, err := r.opts.Publisher.Publish(sinkCtx, r.opts.Topic, report); err != nil {
			logger.Error("publish run report failed", zap.Error(err))
		}
	}
	logger.Info("run finished",
		zap.String("status", string(report.Status)),
		zap.Duration("duration", report.Duration()))
	return report
}

func (r *Recorder) now() time.Time {
	if r.opts.Clock != nil {
		return r.opts.Clock.Now()
	}
	return time.Now().UTC()
}
