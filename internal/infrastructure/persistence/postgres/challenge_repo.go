package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/craftquest/challenge-engine/internal/domain/challenge"
)

// ══════════════════════════════════════════════════════════════════════════════
// CHALLENGE REPOSITORY
// PostgreSQL implementation of challenge.Repository.
// ══════════════════════════════════════════════════════════════════════════════

// ChallengeRepository persists challenge definitions.
type ChallengeRepository struct {
	conn *Connection
}

// NewChallengeRepository creates a new challenge repository.
func NewChallengeRepository(conn *Connection) *ChallengeRepository {
	return &ChallengeRepository{conn: conn}
}

// challengeColumns is the canonical column list used by every SELECT so the
// scan function stays in one place.
const challengeColumns = `
	id, template_id, title, description, category, difficulty, challenge_type,
	tier, start_date, end_date, status, reward_xp, reward_badges,
	bonus_criteria, series_id, series_order, participant_count,
	created_at, updated_at`

// sortableChallengeColumns is the allow-list for ListOptions.SortBy.
var sortableChallengeColumns = map[string]bool{
	"start_date":        true,
	"end_date":          true,
	"created_at":        true,
	"participant_count": true,
	"title":             true,
}

// Create persists a new challenge.
func (r *ChallengeRepository) Create(ctx context.Context, c *challenge.Challenge) error {
	query := `
		INSERT INTO challenges (` + challengeColumns + `)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
			$13, $14, NULLIF($15, ''), $16, $17, $18, $19)`

	badges, criteria, err := marshalRewards(c.Rewards)
	if err != nil {
		return err
	}

	_, err = r.conn.Exec(ctx, query,
		c.ID,
		c.TemplateID,
		c.Title,
		c.Description,
		string(c.Category),
		string(c.Difficulty),
		string(c.Type),
		string(c.Tier),
		c.StartDate,
		c.EndDate,
		string(c.Status),
		c.Rewards.XP,
		badges,
		criteria,
		c.SeriesID,
		c.SeriesOrder,
		c.ParticipantCount,
		c.CreatedAt,
		c.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return challenge.ErrChallengeAlreadyExists
		}
		return fmt.Errorf("failed to create challenge: %w", err)
	}

	return nil
}

// GetByID returns a challenge by ID.
func (r *ChallengeRepository) GetByID(ctx context.Context, id string) (*challenge.Challenge, error) {
	query := `SELECT ` + challengeColumns + ` FROM challenges WHERE id = $1`

	c, err := scanChallenge(r.conn.QueryRow(ctx, query, id))
	if err != nil {
		if IsNoRows(err) {
			return nil, challenge.ErrChallengeNotFound
		}
		return nil, fmt.Errorf("failed to get challenge: %w", err)
	}

	return c, nil
}

// Update persists challenge changes. Archived rows are immutable, so the
// write is conditional on the stored status.
func (r *ChallengeRepository) Update(ctx context.Context, c *challenge.Challenge) error {
	query := `
		UPDATE challenges SET
			title = $2,
			description = $3,
			category = $4,
			difficulty = $5,
			challenge_type = $6,
			tier = $7,
			start_date = $8,
			end_date = $9,
			status = $10,
			reward_xp = $11,
			reward_badges = $12,
			bonus_criteria = $13,
			series_id = NULLIF($14, ''),
			series_order = $15,
			participant_count = $16,
			updated_at = $17
		WHERE id = $1 AND status <> 'archived'`

	badges, criteria, err := marshalRewards(c.Rewards)
	if err != nil {
		return err
	}

	tag, err := r.conn.Exec(ctx, query,
		c.ID,
		c.Title,
		c.Description,
		string(c.Category),
		string(c.Difficulty),
		string(c.Type),
		string(c.Tier),
		c.StartDate,
		c.EndDate,
		string(c.Status),
		c.Rewards.XP,
		badges,
		criteria,
		c.SeriesID,
		c.SeriesOrder,
		c.ParticipantCount,
		c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update challenge: %w", err)
	}

	if tag.RowsAffected() == 0 {
		// Either the row is missing or it is archived. One extra read
		// disambiguates; updates are not on a hot path.
		var status string
		err := r.conn.QueryRow(ctx, `SELECT status FROM challenges WHERE id = $1`, c.ID).Scan(&status)
		if IsNoRows(err) {
			return challenge.ErrChallengeNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to check challenge status: %w", err)
		}
		return challenge.ErrArchivedImmutable
	}

	return nil
}

// FindByStatus returns challenges with the given status.
func (r *ChallengeRepository) FindByStatus(ctx context.Context, status challenge.Status, opts challenge.ListOptions) ([]*challenge.Challenge, error) {
	query := `SELECT ` + challengeColumns + `
		FROM challenges
		WHERE status = $1
		` + orderAndPage(opts, 2)

	return r.queryChallenges(ctx, query, append([]interface{}{string(status)}, pageArgs(opts)...)...)
}

// FindDueForActivation returns scheduled challenges whose start date has arrived.
func (r *ChallengeRepository) FindDueForActivation(ctx context.Context, now time.Time) ([]*challenge.Challenge, error) {
	query := `SELECT ` + challengeColumns + `
		FROM challenges
		WHERE status = 'scheduled' AND start_date <= $1
		ORDER BY start_date`

	return r.queryChallenges(ctx, query, now)
}

// FindDueForCompletion returns active challenges whose end date has passed.
func (r *ChallengeRepository) FindDueForCompletion(ctx context.Context, now time.Time) ([]*challenge.Challenge, error) {
	query := `SELECT ` + challengeColumns + `
		FROM challenges
		WHERE status = 'active' AND end_date <= $1
		ORDER BY end_date`

	return r.queryChallenges(ctx, query, now)
}

// FindActive returns the active challenge catalog.
func (r *ChallengeRepository) FindActive(ctx context.Context, opts challenge.ListOptions) ([]*challenge.Challenge, error) {
	return r.FindByStatus(ctx, challenge.StatusActive, opts)
}

// FindByCategory returns challenges of the given category and status.
func (r *ChallengeRepository) FindByCategory(ctx context.Context, category challenge.Category, status challenge.Status, opts challenge.ListOptions) ([]*challenge.Challenge, error) {
	query := `SELECT ` + challengeColumns + `
		FROM challenges
		WHERE category = $1 AND status = $2
		` + orderAndPage(opts, 3)

	args := append([]interface{}{string(category), string(status)}, pageArgs(opts)...)
	return r.queryChallenges(ctx, query, args...)
}

// FindBySeries returns the challenges of a series ordered by series position.
func (r *ChallengeRepository) FindBySeries(ctx context.Context, seriesID string) ([]*challenge.Challenge, error) {
	query := `SELECT ` + challengeColumns + `
		FROM challenges
		WHERE series_id = $1
		ORDER BY series_order`

	return r.queryChallenges(ctx, query, seriesID)
}

// FindUnexpiredByTemplate returns scheduled or active instances of a template
// whose window has not closed.
func (r *ChallengeRepository) FindUnexpiredByTemplate(ctx context.Context, templateID string, now time.Time) ([]*challenge.Challenge, error) {
	query := `SELECT ` + challengeColumns + `
		FROM challenges
		WHERE template_id = $1
			AND status IN ('scheduled', 'active')
			AND (end_date IS NULL OR end_date > $2)
		ORDER BY start_date`

	return r.queryChallenges(ctx, query, templateID, now)
}

// IncrementParticipantCount bumps the derived participant counter.
func (r *ChallengeRepository) IncrementParticipantCount(ctx context.Context, id string) error {
	query := `
		UPDATE challenges
		SET participant_count = participant_count + 1, updated_at = NOW()
		WHERE id = $1`

	tag, err := r.conn.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to increment participant count: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return challenge.ErrChallengeNotFound
	}

	return nil
}

// Count returns the number of challenges with the given status.
func (r *ChallengeRepository) Count(ctx context.Context, status challenge.Status) (int, error) {
	var count int
	err := r.conn.QueryRow(ctx,
		`SELECT COUNT(*) FROM challenges WHERE status = $1`,
		string(status),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count challenges: %w", err)
	}

	return count, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SCAN HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func (r *ChallengeRepository) queryChallenges(ctx context.Context, query string, args ...interface{}) ([]*challenge.Challenge, error) {
	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query challenges: %w", err)
	}
	defer rows.Close()

	var challenges []*challenge.Challenge
	for rows.Next() {
		c, err := scanChallenge(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan challenge: %w", err)
		}
		challenges = append(challenges, c)
	}

	return challenges, rows.Err()
}

// scanChallenge scans one challenge row. Works for both QueryRow and Rows.
func scanChallenge(row pgx.Row) (*challenge.Challenge, error) {
	var (
		c          challenge.Challenge
		templateID *string
		seriesID   *string
		category   string
		difficulty string
		chType     string
		tier       string
		status     string
		badges     []byte
		criteria   []byte
	)

	err := row.Scan(
		&c.ID,
		&templateID,
		&c.Title,
		&c.Description,
		&category,
		&difficulty,
		&chType,
		&tier,
		&c.StartDate,
		&c.EndDate,
		&status,
		&c.Rewards.XP,
		&badges,
		&criteria,
		&seriesID,
		&c.SeriesOrder,
		&c.ParticipantCount,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if templateID != nil {
		c.TemplateID = *templateID
	}
	if seriesID != nil {
		c.SeriesID = *seriesID
	}
	c.Category = challenge.Category(category)
	c.Difficulty = challenge.Difficulty(difficulty)
	c.Type = challenge.Type(chType)
	c.Tier = challenge.Tier(tier)
	c.Status = challenge.Status(status)

	if err := unmarshalRewardSlices(badges, criteria, &c.Rewards); err != nil {
		return nil, err
	}

	return &c, nil
}

// unmarshalRewardSlices decodes the stored badge and bonus-criteria arrays
// into the rewards value.
func unmarshalRewardSlices(badges, criteria []byte, rw *challenge.Rewards) error {
	if err := json.Unmarshal(badges, &rw.Badges); err != nil {
		return fmt.Errorf("failed to decode reward badges: %w", err)
	}
	if err := json.Unmarshal(criteria, &rw.BonusCriteria); err != nil {
		return fmt.Errorf("failed to decode bonus criteria: %w", err)
	}
	return nil
}

// marshalRewards encodes the reward slices as JSON. Nil slices are stored as
// empty arrays so scans never see SQL NULL.
func marshalRewards(rw challenge.Rewards) (badges, criteria []byte, err error) {
	if rw.Badges == nil {
		rw.Badges = []string{}
	}
	if rw.BonusCriteria == nil {
		rw.BonusCriteria = []string{}
	}

	badges, err = json.Marshal(rw.Badges)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode reward badges: %w", err)
	}
	criteria, err = json.Marshal(rw.BonusCriteria)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode bonus criteria: %w", err)
	}

	return badges, criteria, nil
}

// orderAndPage builds the ORDER BY / LIMIT / OFFSET tail for list queries.
// The sort column goes through an allow-list; limit and offset are bind
// parameters starting at the given index.
func orderAndPage(opts challenge.ListOptions, nextArg int) string {
	sortBy := opts.SortBy
	if !sortableChallengeColumns[sortBy] {
		sortBy = "start_date"
	}
	direction := "ASC"
	if opts.SortDesc {
		direction = "DESC"
	}

	return fmt.Sprintf("ORDER BY %s %s LIMIT $%d OFFSET $%d", sortBy, direction, nextArg, nextArg+1)
}

// pageArgs returns the limit/offset bind values matching orderAndPage.
func pageArgs(opts challenge.ListOptions) []interface{} {
	limit := opts.Limit
	if limit <= 0 {
		limit = challenge.DefaultListOptions().Limit
	}
	return []interface{}{limit, opts.Offset}
}
