package cleanup

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/pyq-crawler/internal/logging"
	"github.com/JakeFAU/pyq-crawler/internal/question"
)

// Defaults for a run.
const (
	DefaultBatchSize       = question.DefaultBatchSize
	DefaultDuplicatePrefix = 300
)

// Store is the subset of question.Store the job needs.
type Store interface {
	question.Scanner
	Update(ctx context.Context, id string, patch question.Patch) error
	Delete(ctx context.Context, id string) error
	DuplicateGroups(ctx context.Context, prefixLen int) ([]question.DuplicateGroup, error)
}

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// Options controls a single run. The zero value is not the default; use
// DefaultOptions.
type Options struct {
	DryRun          bool `json:"dryRun"`
	Aggressive      bool `json:"aggressive"`
	BatchSize       int  `json:"batchSize"`
	DuplicatePrefix int  `json:"duplicatePrefix,omitempty"`
}

// DefaultOptions is a safe dry run over batches of 100.
func DefaultOptions() Options {
	return Options{DryRun: true, BatchSize: DefaultBatchSize, DuplicatePrefix: DefaultDuplicatePrefix}
}

// Stats reports what a run found and did. In dry runs the counters describe
// what would have been written.
type Stats struct {
	Processed  int            `json:"processed"`
	Updated    int            `json:"updated"`
	Deleted    int            `json:"deleted"`
	Invalid    int            `json:"invalid"`
	Duplicates int            `json:"duplicates"`
	Errors     int            `json:"errors"`
	Fixes      map[string]int `json:"fixes"`
	DryRun     bool           `json:"dryRun"`
	Aggressive bool           `json:"aggressive"`
}

// Summary renders a one-line human readable report.
func (s Stats) Summary() string {
	mode := "safe"
	if s.Aggressive {
		mode = "aggressive"
	}
	if s.DryRun {
		mode += ", dry run"
	}
	var fixes []string
	for _, name := range slices.Sorted(maps.Keys(s.Fixes)) {
		fixes = append(fixes, fmt.Sprintf("%s=%d", name, s.Fixes[name]))
	}
	msg := fmt.Sprintf("cleanup (%s): processed %d, updated %d, deleted %d, invalid %d, duplicates %d, errors %d",
		mode, s.Processed, s.Updated, s.Deleted, s.Invalid, s.Duplicates, s.Errors)
	if len(fixes) > 0 {
		msg += "; fixes " + strings.Join(fixes, " ")
	}
	return msg
}

// Job walks the corpus with a keyset cursor and applies Normalizer outcomes.
type Job struct {
	store      Store
	normalizer *Normalizer
	clock      Clock
	logger     *zap.Logger
}

// NewJob constructs a Job. A nil clock reads the wall clock.
func NewJob(store Store, normalizer *Normalizer, clock Clock, logger *zap.Logger) (*Job, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if normalizer == nil {
		normalizer = NewNormalizer(nil, nil, 0)
	}
	return &Job{
		store:      store,
		normalizer: normalizer,
		clock:      clock,
		logger:     logging.OrNop(logger).Named("cleanup"),
	}, nil
}

// Run executes one pass. Per-record write failures are counted in Errors;
// the error return is reserved for scan failures and cancellation.
func (j *Job) Run(ctx context.Context, opts Options) (Stats, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.DuplicatePrefix <= 0 {
		opts.DuplicatePrefix = DefaultDuplicatePrefix
	}
	stats := Stats{Fixes: map[string]int{}, DryRun: opts.DryRun, Aggressive: opts.Aggressive}
	now := j.now()

	cursor := question.NewCursor(j.store, opts.BatchSize)
	for {
		batch, err := cursor.Next(ctx)
		if err != nil {
			return stats, err
		}
		if len(batch) == 0 {
			break
		}
		for _, rec := range batch {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
			j.process(ctx, rec, now, opts, &stats)
		}
	}

	if err := j.removeExactDuplicates(ctx, opts.DuplicatePrefix, opts.DryRun, &stats); err != nil {
		return stats, err
	}

	j.logger.Info("cleanup finished",
		zap.Int("processed", stats.Processed),
		zap.Int("updated", stats.Updated),
		zap.Int("deleted", stats.Deleted),
		zap.Int("invalid", stats.Invalid),
		zap.Int("duplicates", stats.Duplicates),
		zap.Bool("dry_run", stats.DryRun),
		zap.Bool("aggressive", stats.Aggressive))
	return stats, nil
}

func (j *Job) process(ctx context.Context, rec question.Record, now time.Time, opts Options, stats *Stats) {
	stats.Processed++
	out := j.normalizer.Normalize(rec, now)
	for _, f := range out.Fixes {
		stats.Fixes[f]++
	}
	logger := j.logger.With(zap.String("id", rec.ID))

	if out.Invalid() {
		stats.Invalid++
		if opts.Aggressive {
			if !opts.DryRun {
				if err := j.store.Delete(ctx, rec.ID); err != nil {
					stats.Errors++
					logger.Error("delete invalid record failed", zap.Error(err))
					return
				}
			}
			stats.Deleted++
			logger.Debug("invalid record deleted", zap.Strings("reasons", out.Reasons()))
			return
		}
		logger.Debug("invalid record flagged", zap.Strings("reasons", out.Reasons()))
	}

	if out.Patch.IsEmpty() {
		return
	}
	if !opts.DryRun {
		if err := j.store.Update(ctx, rec.ID, out.Patch); err != nil {
			stats.Errors++
			logger.Error("update record failed", zap.Error(err))
			return
		}
	}
	stats.Updated++
}

// removeExactDuplicates keeps the earliest member of every group sharing
// exam, year, lang and a long question prefix. A dry run only counts the
// members that would go.
func (j *Job) removeExactDuplicates(ctx context.Context, prefixLen int, dryRun bool, stats *Stats) error {
	groups, err := j.store.DuplicateGroups(ctx, prefixLen)
	if err != nil {
		return fmt.Errorf("load exact duplicates: %w", err)
	}
	for _, group := range groups {
		if len(group.Members) < 2 {
			continue
		}
		if dryRun {
			stats.Duplicates += len(group.Members) - 1
			continue
		}
		for _, member := range group.Members[1:] {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := j.store.Delete(ctx, member.ID); err != nil {
				if errors.Is(err, question.ErrNotFound) {
					continue
				}
				stats.Errors++
				j.logger.Error("delete exact duplicate failed", zap.String("id", member.ID), zap.Error(err))
				continue
			}
			stats.Duplicates++
		}
	}
	return nil
}

func (j *Job) now() time.Time {
	if j.clock != nil {
		return j.clock.Now()
	}
	return time.Now().UTC()
}
