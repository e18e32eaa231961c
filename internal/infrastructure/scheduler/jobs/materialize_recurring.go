package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/craftquest/challenge-engine/internal/domain/challenge"
	"github.com/craftquest/challenge-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// MATERIALIZE RECURRING JOB
// ══════════════════════════════════════════════════════════════════════════════

// MaterializeRecurringJob creates the next scheduled instance for every
// enabled recurring template. A template that already has an unexpired
// instance is skipped, which is what makes repeated runs within one window
// idempotent.
type MaterializeRecurringJob struct {
	templateRepo   challenge.TemplateRepository
	challengeRepo  challenge.Repository
	eventPublisher shared.EventPublisher
	logger         *slog.Logger

	config MaterializeRecurringConfig

	lastRunStats atomic.Value // *SweepStats
}

// MaterializeRecurringConfig contains configuration for the materialization job.
type MaterializeRecurringConfig struct {
	// Timeout is the maximum duration for one sweep.
	Timeout time.Duration
}

// DefaultMaterializeRecurringConfig returns sensible defaults.
func DefaultMaterializeRecurringConfig() MaterializeRecurringConfig {
	return MaterializeRecurringConfig{
		Timeout: 2 * time.Minute,
	}
}

// NewMaterializeRecurringJob creates the job.
func NewMaterializeRecurringJob(
	templateRepo challenge.TemplateRepository,
	challengeRepo challenge.Repository,
	eventPublisher shared.EventPublisher,
	logger *slog.Logger,
	config MaterializeRecurringConfig,
) *MaterializeRecurringJob {
	if logger == nil {
		logger = slog.Default()
	}
	if eventPublisher == nil {
		eventPublisher = shared.NoopPublisher{}
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultMaterializeRecurringConfig().Timeout
	}
	return &MaterializeRecurringJob{
		templateRepo:   templateRepo,
		challengeRepo:  challengeRepo,
		eventPublisher: eventPublisher,
		logger:         logger,
		config:         config,
	}
}

// Name returns the unique job name.
func (j *MaterializeRecurringJob) Name() string {
	return "materialize_recurring"
}

// Description returns a human-readable description.
func (j *MaterializeRecurringJob) Description() string {
	return "Creates the next scheduled instance for enabled recurring templates"
}

// Run executes one materialization sweep.
func (j *MaterializeRecurringJob) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	now := time.Now().UTC()
	stats := &SweepStats{StartedAt: now}
	defer func() {
		stats.CompletedAt = time.Now().UTC()
		stats.Duration = stats.CompletedAt.Sub(stats.StartedAt)
		j.lastRunStats.Store(stats)
	}()

	templates, err := j.templateRepo.FindRecurring(ctx)
	if err != nil {
		return fmt.Errorf("find recurring templates: %w", err)
	}
	stats.Candidates = len(templates)

	for _, tmpl := range templates {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !tmpl.Enabled {
			continue
		}

		created, err := j.materialize(ctx, tmpl, now)
		if err != nil {
			stats.Errors++
			j.logger.Error("materialization failed",
				"template_id", tmpl.ID,
				"error", err,
			)
			continue
		}
		if created {
			stats.Transitions++
		}
	}

	j.logger.Info("materialization sweep finished",
		"templates", stats.Candidates,
		"materialized", stats.Transitions,
		"errors", stats.Errors,
	)
	return nil
}

// materialize creates and schedules one instance for the template unless an
// unexpired instance already covers the upcoming window.
func (j *MaterializeRecurringJob) materialize(ctx context.Context, tmpl *challenge.Template, now time.Time) (bool, error) {
	existing, err := j.challengeRepo.FindUnexpiredByTemplate(ctx, tmpl.ID, now)
	if err != nil {
		return false, fmt.Errorf("check unexpired instances: %w", err)
	}
	if len(existing) > 0 {
		return false, nil
	}

	instance, err := tmpl.Materialize(uuid.NewString(), now)
	if err != nil {
		return false, fmt.Errorf("materialize instance: %w", err)
	}

	// The window always starts in the future, so draft -> scheduled passes
	// the start-date guard.
	if err := instance.Schedule(challenge.TriggerScheduler, now); err != nil {
		return false, fmt.Errorf("schedule instance: %w", err)
	}

	if err := j.challengeRepo.Create(ctx, instance); err != nil {
		// A concurrent sweep created the same window first.
		if errors.Is(err, challenge.ErrChallengeAlreadyExists) {
			return false, nil
		}
		return false, fmt.Errorf("persist instance: %w", err)
	}

	_ = j.eventPublisher.Publish(shared.InstanceMaterializedEvent{
		BaseEvent:   shared.NewBaseEvent(shared.EventInstanceMaterialized, instance.ID),
		TemplateID:  tmpl.ID,
		ChallengeID: instance.ID,
		StartDate:   *instance.StartDate,
		EndDate:     *instance.EndDate,
	})

	j.logger.Info("instance materialized",
		"template_id", tmpl.ID,
		"challenge_id", instance.ID,
		"start", instance.StartDate.Format(time.RFC3339),
		"end", instance.EndDate.Format(time.RFC3339),
	)
	return true, nil
}

// LastRunStats returns the stats of the most recent run, or nil.
func (j *MaterializeRecurringJob) LastRunStats() *SweepStats {
	if v := j.lastRunStats.Load(); v != nil {
		return v.(*SweepStats)
	}
	return nil
}
