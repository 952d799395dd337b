// Package runner orchestrates scheduled scoring runs across users.
package runner

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/tripnotes/spotrank/internal/db"
	"github.com/tripnotes/spotrank/internal/engine"
	"github.com/tripnotes/spotrank/internal/schedule"
	"github.com/tripnotes/spotrank/pkg/models"
)

// maxErrorMessageLen caps the error summary stored in the job log.
const maxErrorMessageLen = 2000

// Options control one run invocation.
type Options struct {
	// Force runs the scope even when its interval has not elapsed and even
	// when the scope is disabled.
	Force bool
	// DryRun computes scores but writes nothing: no score rows, no schedule
	// advancement, no job log entry.
	DryRun bool
	// UserID restricts the run to one user's scope. Zero means the global scope.
	UserID int64
}

// Runner executes scoring runs under the per-scope scheduling discipline.
type Runner struct {
	settings     db.SettingStore
	logs         db.JobLogStore
	scores       db.ScoreStore
	interactions db.InteractionReader
	engine       *engine.Engine
	logger       zerolog.Logger

	workers           int
	intervalHours     uint
	userIntervalHours uint
	now               func() time.Time
}

// Config holds the runner's tuning.
type Config struct {
	Workers           int
	IntervalHours     uint
	UserIntervalHours uint
}

// New creates a Runner.
func New(
	settings db.SettingStore,
	logs db.JobLogStore,
	scores db.ScoreStore,
	interactions db.InteractionReader,
	eng *engine.Engine,
	cfg Config,
	logger zerolog.Logger,
) *Runner {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}
	intervalHours := cfg.IntervalHours
	if intervalHours == 0 {
		intervalHours = schedule.DefaultIntervalHours
	}
	userIntervalHours := cfg.UserIntervalHours
	if userIntervalHours == 0 {
		userIntervalHours = schedule.DefaultIntervalHours
	}

	return &Runner{
		settings:          settings,
		logs:              logs,
		scores:            scores,
		interactions:      interactions,
		engine:            eng,
		logger:            logger.With().Str("component", "runner").Logger(),
		workers:           workers,
		intervalHours:     intervalHours,
		userIntervalHours: userIntervalHours,
		now:               time.Now,
	}
}

// WithNow overrides the clock, for tests.
func (r *Runner) WithNow(now func() time.Time) *Runner {
	r.now = now
	return r
}

// Run executes one scoring attempt for the scope selected by opts and returns
// the log entry describing the outcome. Exactly one entry is recorded per
// attempt, including skips; dry runs record nothing.
//
// A non-nil error means the attempt could not even be orchestrated (storage
// failure); per-user scoring errors never surface here, they degrade the run.
func (r *Runner) Run(ctx context.Context, opts Options) (*models.JobLogEntry, error) {
	scope := models.GlobalScope
	interval := r.intervalHours
	if opts.UserID != 0 {
		scope = models.UserScope(opts.UserID)
		interval = r.userIntervalHours
	}

	start := r.now()
	runID := uuid.NewString()
	logger := r.logger.With().Str("run_id", runID).Str("scope", scope).Logger()

	setting, err := r.settings.GetOrCreateSetting(ctx, scope, interval)
	if err != nil {
		return nil, fmt.Errorf("load setting for scope %s: %w", scope, err)
	}

	if !opts.Force && !schedule.IsDue(setting, start) {
		reason := "interval has not elapsed"
		if !setting.Enabled {
			reason = "scope is disabled"
		}
		logger.Info().Str("reason", reason).Msg("run skipped")
		return r.finish(ctx, opts, &models.JobLogEntry{
			RunID:           runID,
			Scope:           scope,
			Status:          models.StatusSkipped,
			ErrorMessage:    reason,
			StartedAtEpoch:  start.UnixMilli(),
			FinishedAtEpoch: start.UnixMilli(),
		})
	}

	if !opts.DryRun {
		claimed, err := r.settings.ClaimRun(ctx, scope, setting.LastRunAtEpoch, start.UnixMilli())
		if err != nil {
			return nil, fmt.Errorf("claim run for scope %s: %w", scope, err)
		}
		if !claimed {
			logger.Info().Msg("run skipped, another invocation claimed the scope")
			return r.finish(ctx, opts, &models.JobLogEntry{
				RunID:           runID,
				Scope:           scope,
				Status:          models.StatusSkipped,
				ErrorMessage:    "another run claimed the scope",
				StartedAtEpoch:  start.UnixMilli(),
				FinishedAtEpoch: start.UnixMilli(),
			})
		}
	}

	userIDs, err := r.resolveUsers(ctx, opts)
	if err != nil {
		entry := &models.JobLogEntry{
			RunID:           runID,
			Scope:           scope,
			Status:          models.StatusFailure,
			ErrorMessage:    truncate(err.Error(), maxErrorMessageLen),
			StartedAtEpoch:  start.UnixMilli(),
			FinishedAtEpoch: r.now().UnixMilli(),
		}
		if _, logErr := r.finish(ctx, opts, entry); logErr != nil {
			logger.Error().Err(logErr).Msg("failed to record failed run")
		}
		return entry, err
	}

	var (
		mu             sync.Mutex
		scoredCount    uint
		usersProcessed uint
		usersFallback  uint
		userErrors     []string
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(r.workers)
	for _, userID := range userIDs {
		userID := userID
		group.Go(func() error {
			res, err := r.engine.ComputeScoresForUser(groupCtx, userID)
			if err != nil {
				mu.Lock()
				userErrors = append(userErrors, fmt.Sprintf("user %d: %v", userID, err))
				mu.Unlock()
				return nil
			}

			if len(res.Scores) > 0 && !opts.DryRun {
				if err := r.scores.UpsertScores(groupCtx, userID, res.Scores); err != nil {
					mu.Lock()
					userErrors = append(userErrors, fmt.Sprintf("user %d: persist scores: %v", userID, err))
					mu.Unlock()
					return nil
				}
			}

			mu.Lock()
			usersProcessed++
			scoredCount += uint(len(res.Scores))
			if res.Source == models.SourceFallback && len(res.Scores) > 0 {
				usersFallback++
			}
			if res.Err != nil {
				userErrors = append(userErrors, fmt.Sprintf("user %d: %v", userID, res.Err))
			}
			mu.Unlock()
			return nil
		})
	}
	// Workers never return errors; Wait only propagates context cancellation.
	if err := group.Wait(); err != nil {
		userErrors = append(userErrors, err.Error())
	}

	finished := r.now()
	entry := &models.JobLogEntry{
		RunID:           runID,
		Scope:           scope,
		Status:          classify(usersProcessed, usersFallback, uint(len(userErrors))),
		ScoredCount:     scoredCount,
		UsersProcessed:  usersProcessed,
		UsersFallback:   usersFallback,
		ErrorMessage:    joinErrors(userErrors),
		StartedAtEpoch:  start.UnixMilli(),
		FinishedAtEpoch: finished.UnixMilli(),
	}

	logger.Info().
		Str("status", string(entry.Status)).
		Uint("users_processed", usersProcessed).
		Uint("users_fallback", usersFallback).
		Uint("scored_count", scoredCount).
		Dur("elapsed", finished.Sub(start)).
		Bool("dry_run", opts.DryRun).
		Msg("run finished")

	return r.finish(ctx, opts, entry)
}

// resolveUsers picks the user set for the scope.
func (r *Runner) resolveUsers(ctx context.Context, opts Options) ([]int64, error) {
	if opts.UserID != 0 {
		return []int64{opts.UserID}, nil
	}
	ids, err := r.interactions.ListUserIDsWithInteractions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users with interactions: %w", err)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// finish records the entry unless this is a dry run.
func (r *Runner) finish(ctx context.Context, opts Options, entry *models.JobLogEntry) (*models.JobLogEntry, error) {
	if opts.DryRun {
		return entry, nil
	}
	if err := r.logs.AppendEntry(ctx, entry); err != nil {
		return entry, fmt.Errorf("append job log entry: %w", err)
	}
	return entry, nil
}

// classify maps run counters to a status.
func classify(processed, fallback, errored uint) models.RunStatus {
	switch {
	case processed == 0 && errored > 0:
		return models.StatusFailure
	case fallback > 0 || errored > 0:
		return models.StatusDegraded
	default:
		return models.StatusSuccess
	}
}

func joinErrors(errs []string) string {
	if len(errs) == 0 {
		return ""
	}
	return truncate(strings.Join(errs, "; "), maxErrorMessageLen)
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit-3] + "..."
}
