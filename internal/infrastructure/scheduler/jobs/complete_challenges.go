package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/craftquest/challenge-engine/internal/application/command"
	"github.com/craftquest/challenge-engine/internal/domain/challenge"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMPLETE CHALLENGES JOB
// ══════════════════════════════════════════════════════════════════════════════

// CompleteChallengesJob moves active challenges whose end date has passed to
// completed. It drives the same command handler as manual admin completion,
// so the fail-out of lingering joined/in_progress records happens on both
// paths.
type CompleteChallengesJob struct {
	challengeRepo challenge.Repository
	admin         *command.ChallengeAdminHandler
	logger        *slog.Logger

	config CompleteChallengesConfig

	lastRunStats atomic.Value // *SweepStats
}

// CompleteChallengesConfig contains configuration for the completion job.
type CompleteChallengesConfig struct {
	// Timeout is the maximum duration for one sweep.
	Timeout time.Duration
}

// DefaultCompleteChallengesConfig returns sensible defaults.
func DefaultCompleteChallengesConfig() CompleteChallengesConfig {
	return CompleteChallengesConfig{
		Timeout: 5 * time.Minute,
	}
}

// NewCompleteChallengesJob creates the job.
func NewCompleteChallengesJob(
	challengeRepo challenge.Repository,
	admin *command.ChallengeAdminHandler,
	logger *slog.Logger,
	config CompleteChallengesConfig,
) *CompleteChallengesJob {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultCompleteChallengesConfig().Timeout
	}
	return &CompleteChallengesJob{
		challengeRepo: challengeRepo,
		admin:         admin,
		logger:        logger,
		config:        config,
	}
}

// Name returns the unique job name.
func (j *CompleteChallengesJob) Name() string {
	return "complete_challenges"
}

// Description returns a human-readable description.
func (j *CompleteChallengesJob) Description() string {
	return "Completes active challenges whose end date has passed"
}

// Run executes one completion sweep.
func (j *CompleteChallengesJob) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	now := time.Now().UTC()
	stats := &SweepStats{StartedAt: now}
	defer func() {
		stats.CompletedAt = time.Now().UTC()
		stats.Duration = stats.CompletedAt.Sub(stats.StartedAt)
		j.lastRunStats.Store(stats)
	}()

	due, err := j.challengeRepo.FindDueForCompletion(ctx, now)
	if err != nil {
		return fmt.Errorf("find due for completion: %w", err)
	}
	stats.Candidates = len(due)

	if len(due) == 0 {
		j.logger.Debug("no challenges due for completion")
		return nil
	}

	for _, ch := range due {
		if err := ctx.Err(); err != nil {
			return err
		}

		_, err := j.admin.HandleComplete(ctx, command.CompleteChallengeCommand{
			ChallengeID: ch.ID,
			Trigger:     challenge.TriggerScheduler,
			DueOnly:     true,
			Now:         now,
		})
		if err != nil {
			stats.Errors++
			j.logger.Warn("completion rejected",
				"challenge_id", ch.ID,
				"error", err,
			)
			continue
		}

		stats.Transitions++
	}

	j.logger.Info("completion sweep finished",
		"candidates", stats.Candidates,
		"completed", stats.Transitions,
		"errors", stats.Errors,
	)
	return nil
}

// LastRunStats returns the stats of the most recent run, or nil.
func (j *CompleteChallengesJob) LastRunStats() *SweepStats {
	if v := j.lastRunStats.Load(); v != nil {
		return v.(*SweepStats)
	}
	return nil
}
