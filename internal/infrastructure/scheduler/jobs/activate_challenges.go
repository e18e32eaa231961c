// Package jobs contains implementations of scheduled jobs for the challenge
// engine. Every job is idempotent: it queries the store for due work, applies
// the lifecycle state machine, and treats an empty candidate set as a
// successful no-op.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/craftquest/challenge-engine/internal/domain/challenge"
	"github.com/craftquest/challenge-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACTIVATE CHALLENGES JOB
// ══════════════════════════════════════════════════════════════════════════════

// ActivateChallengesJob moves scheduled challenges whose start date has
// arrived to active. Each candidate transitions independently: one bad row
// never blocks the rest of the sweep.
type ActivateChallengesJob struct {
	challengeRepo  challenge.Repository
	eventPublisher shared.EventPublisher
	logger         *slog.Logger

	config ActivateChallengesConfig

	lastRunStats atomic.Value // *SweepStats
}

// ActivateChallengesConfig contains configuration for the activation job.
type ActivateChallengesConfig struct {
	// Timeout is the maximum duration for one sweep.
	Timeout time.Duration
}

// DefaultActivateChallengesConfig returns sensible defaults.
func DefaultActivateChallengesConfig() ActivateChallengesConfig {
	return ActivateChallengesConfig{
		Timeout: 2 * time.Minute,
	}
}

// SweepStats contains statistics from one lifecycle sweep.
type SweepStats struct {
	StartedAt   time.Time
	CompletedAt time.Time
	Duration    time.Duration
	Candidates  int
	Transitions int
	Errors      int
}

// NewActivateChallengesJob creates the job.
func NewActivateChallengesJob(
	challengeRepo challenge.Repository,
	eventPublisher shared.EventPublisher,
	logger *slog.Logger,
	config ActivateChallengesConfig,
) *ActivateChallengesJob {
	if logger == nil {
		logger = slog.Default()
	}
	if eventPublisher == nil {
		eventPublisher = shared.NoopPublisher{}
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultActivateChallengesConfig().Timeout
	}
	return &ActivateChallengesJob{
		challengeRepo:  challengeRepo,
		eventPublisher: eventPublisher,
		logger:         logger,
		config:         config,
	}
}

// Name returns the unique job name.
func (j *ActivateChallengesJob) Name() string {
	return "activate_challenges"
}

// Description returns a human-readable description.
func (j *ActivateChallengesJob) Description() string {
	return "Activates scheduled challenges whose start date has arrived"
}

// Run executes one activation sweep.
func (j *ActivateChallengesJob) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	now := time.Now().UTC()
	stats := &SweepStats{StartedAt: now}
	defer func() {
		stats.CompletedAt = time.Now().UTC()
		stats.Duration = stats.CompletedAt.Sub(stats.StartedAt)
		j.lastRunStats.Store(stats)
	}()

	due, err := j.challengeRepo.FindDueForActivation(ctx, now)
	if err != nil {
		return fmt.Errorf("find due for activation: %w", err)
	}
	stats.Candidates = len(due)

	if len(due) == 0 {
		j.logger.Debug("no challenges due for activation")
		return nil
	}

	for _, ch := range due {
		if err := ctx.Err(); err != nil {
			return err
		}

		from := ch.Status
		if err := ch.Activate(challenge.TriggerScheduler, now); err != nil {
			// Guard rejections mean the candidate set raced a concurrent
			// change; skip and let the next sweep re-evaluate.
			stats.Errors++
			j.logger.Warn("activation rejected",
				"challenge_id", ch.ID,
				"status", string(ch.Status),
				"error", err,
			)
			continue
		}

		if err := j.challengeRepo.Update(ctx, ch); err != nil {
			stats.Errors++
			j.logger.Error("failed to persist activation",
				"challenge_id", ch.ID,
				"error", err,
			)
			continue
		}

		stats.Transitions++
		_ = j.eventPublisher.Publish(shared.ChallengeEvent{
			BaseEvent:   shared.NewBaseEvent(shared.EventChallengeActivated, ch.ID),
			ChallengeID: ch.ID,
			FromStatus:  string(from),
			ToStatus:    string(ch.Status),
			Trigger:     string(challenge.TriggerScheduler),
		})
	}

	j.logger.Info("activation sweep finished",
		"candidates", stats.Candidates,
		"activated", stats.Transitions,
		"errors", stats.Errors,
	)
	return nil
}

// LastRunStats returns the stats of the most recent run, or nil.
func (j *ActivateChallengesJob) LastRunStats() *SweepStats {
	if v := j.lastRunStats.Load(); v != nil {
		return v.(*SweepStats)
	}
	return nil
}
