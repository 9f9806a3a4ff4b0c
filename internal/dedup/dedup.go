// Package dedup removes near-duplicate questions from the corpus, keeping one
// representative per group.
package dedup

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/pyq-crawler/internal/enrich"
	"github.com/JakeFAU/pyq-crawler/internal/logging"
	"github.com/JakeFAU/pyq-crawler/internal/question"
)

// DefaultPrefixLen is how many leading question characters define a group.
const DefaultPrefixLen = 200

// Store is the subset of question.Store the job needs.
type Store interface {
	DuplicateGroups(ctx context.Context, prefixLen int) ([]question.DuplicateGroup, error)
	Delete(ctx context.Context, id string) error
}

// Options controls a single run.
type Options struct {
	DryRun    bool `json:"dryRun"`
	PrefixLen int  `json:"prefixLen,omitempty"`
}

// Stats reports what a run found and did.
type Stats struct {
	Groups     int  `json:"groups"`
	Duplicates int  `json:"duplicates"`
	Deleted    int  `json:"deleted"`
	Errors     int  `json:"errors"`
	DryRun     bool `json:"dryRun"`
}

// Summary renders a one-line human readable report.
func (s Stats) Summary() string {
	if s.DryRun {
		return fmt.Sprintf("dry run: %d duplicate groups, %d records would be removed", s.Groups, s.Duplicates)
	}
	return fmt.Sprintf("%d duplicate groups, %d of %d duplicates removed, %d errors",
		s.Groups, s.Deleted, s.Duplicates, s.Errors)
}

// Job groups records and deletes every non-representative member. Runs are
// idempotent and take no locks; records inserted mid-run are caught next time.
type Job struct {
	store     Store
	allowlist *enrich.Allowlist
	logger    *zap.Logger
}

// NewJob constructs a Job. A nil allowlist uses the default authorities.
func NewJob(store Store, allowlist *enrich.Allowlist, logger *zap.Logger) (*Job, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if allowlist == nil {
		allowlist = enrich.NewAllowlist(enrich.DefaultAuthorities)
	}
	return &Job{store: store, allowlist: allowlist, logger: logging.OrNop(logger).Named("dedup")}, nil
}

// Run executes one pass. Delete failures are counted, not returned; the error
// return is reserved for a failed grouping query or cancellation.
func (j *Job) Run(ctx context.Context, opts Options) (Stats, error) {
	prefixLen := opts.PrefixLen
	if prefixLen <= 0 {
		prefixLen = DefaultPrefixLen
	}
	stats := Stats{DryRun: opts.DryRun}

	groups, err := j.store.DuplicateGroups(ctx, prefixLen)
	if err != nil {
		return stats, fmt.Errorf("load duplicate groups: %w", err)
	}

	for _, group := range groups {
		if len(group.Members) < 2 {
			continue
		}
		stats.Groups++
		keep := SelectRepresentative(group, j.allowlist)
		for _, member := range group.Members {
			if member.ID == keep.ID {
				continue
			}
			stats.Duplicates++
			if opts.DryRun {
				continue
			}
			if err := ctx.Err(); err != nil {
				return stats, err
			}
			if err := j.store.Delete(ctx, member.ID); err != nil {
				if errors.Is(err, question.ErrNotFound) {
					continue
				}
				stats.Errors++
				j.logger.Error("delete duplicate failed", zap.String("id", member.ID), zap.Error(err))
				continue
			}
			stats.Deleted++
		}
		j.logger.Debug("duplicate group resolved",
			zap.String("exam", group.Key.Exam),
			zap.String("keep", keep.ID),
			zap.Int("members", len(group.Members)))
	}

	j.logger.Info("dedup finished",
		zap.Int("groups", stats.Groups),
		zap.Int("duplicates", stats.Duplicates),
		zap.Int("deleted", stats.Deleted),
		zap.Bool("dry_run", stats.DryRun))
	return stats, nil
}

// SelectRepresentative picks the member that survives: the first verified
// record, else the first whose source link is an official domain, else the
// earliest indexed. Members are expected in index order.
func SelectRepresentative(group question.DuplicateGroup, allowlist *enrich.Allowlist) question.GroupMember {
	for _, m := range group.Members {
		if m.Verified {
			return m
		}
	}
	if allowlist != nil {
		for _, m := range group.Members {
			if allowlist.Matches(m.SourceLink) {
				return m
			}
		}
	}
	if len(group.Members) == 0 {
		return question.GroupMember{}
	}
	return group.Members[0]
}
