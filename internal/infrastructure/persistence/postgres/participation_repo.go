package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/craftquest/challenge-engine/internal/domain/challenge"
	"github.com/craftquest/challenge-engine/internal/domain/participation"
)

// ══════════════════════════════════════════════════════════════════════════════
// PARTICIPATION REPOSITORY
// PostgreSQL implementation of participation.Repository. CompleteWithRewards
// is the conditional write behind the at-most-once reward guarantee.
// ══════════════════════════════════════════════════════════════════════════════

// ParticipationRepository persists user participation records and their
// submission history.
type ParticipationRepository struct {
	conn *Connection
}

// NewParticipationRepository creates a new participation repository.
func NewParticipationRepository(conn *Connection) *ParticipationRepository {
	return &ParticipationRepository{conn: conn}
}

const userChallengeColumns = `
	user_id, challenge_id, tier, category, status, progress, max_progress,
	joined_at, submitted_at, completed_at, xp_earned, badges_earned, updated_at`

// Create persists a new participation record.
func (r *ParticipationRepository) Create(ctx context.Context, uc *participation.UserChallenge) error {
	query := `
		INSERT INTO user_challenges (` + userChallengeColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	badges, err := marshalBadges(uc.BadgesEarned)
	if err != nil {
		return err
	}

	_, err = r.conn.Exec(ctx, query,
		uc.UserID,
		uc.ChallengeID,
		string(uc.Tier),
		string(uc.Category),
		string(uc.Status),
		uc.Progress,
		uc.MaxProgress,
		uc.JoinedAt,
		uc.SubmittedAt,
		uc.CompletedAt,
		uc.XPEarned,
		badges,
		uc.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return participation.ErrRecordAlreadyExists
		}
		return fmt.Errorf("failed to create participation record: %w", err)
	}

	return nil
}

// Get returns the record for (userID, challengeID) with its submission
// history loaded.
func (r *ParticipationRepository) Get(ctx context.Context, userID, challengeID string) (*participation.UserChallenge, error) {
	query := `SELECT ` + userChallengeColumns + `
		FROM user_challenges
		WHERE user_id = $1 AND challenge_id = $2`

	uc, err := scanUserChallenge(r.conn.QueryRow(ctx, query, userID, challengeID))
	if err != nil {
		if IsNoRows(err) {
			return nil, participation.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get participation record: %w", err)
	}

	subs, err := r.GetSubmissions(ctx, userID, challengeID)
	if err != nil {
		return nil, err
	}
	uc.Submissions = subs

	return uc, nil
}

// Update persists record changes. Submissions are written separately through
// AppendSubmission; the history is append-only.
func (r *ParticipationRepository) Update(ctx context.Context, uc *participation.UserChallenge) error {
	query := `
		UPDATE user_challenges SET
			status = $3,
			progress = $4,
			max_progress = $5,
			submitted_at = $6,
			completed_at = $7,
			xp_earned = $8,
			badges_earned = $9,
			updated_at = $10
		WHERE user_id = $1 AND challenge_id = $2`

	badges, err := marshalBadges(uc.BadgesEarned)
	if err != nil {
		return err
	}

	tag, err := r.conn.Exec(ctx, query,
		uc.UserID,
		uc.ChallengeID,
		string(uc.Status),
		uc.Progress,
		uc.MaxProgress,
		uc.SubmittedAt,
		uc.CompletedAt,
		uc.XPEarned,
		badges,
		uc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update participation record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return participation.ErrRecordNotFound
	}

	return nil
}

// CompleteWithRewards atomically moves the record to completed and populates
// the reward fields, but only if the stored status is not already completed.
// Losing the race is not an error: the caller gets false and must not credit
// rewards. submitted_at is backfilled so the auto-approve path needs no
// separate write for the submitted hop.
func (r *ParticipationRepository) CompleteWithRewards(ctx context.Context, userID, challengeID string, xp int, badges []string, completedAt time.Time) (bool, error) {
	query := `
		UPDATE user_challenges SET
			status = 'completed',
			completed_at = $3,
			submitted_at = COALESCE(submitted_at, $3),
			xp_earned = $4,
			badges_earned = $5,
			updated_at = $3
		WHERE user_id = $1 AND challenge_id = $2 AND status <> 'completed'`

	encoded, err := marshalBadges(badges)
	if err != nil {
		return false, err
	}

	tag, err := r.conn.Exec(ctx, query, userID, challengeID, completedAt, xp, encoded)
	if err != nil {
		return false, fmt.Errorf("failed to complete participation record: %w", err)
	}

	if tag.RowsAffected() == 0 {
		// Missing row and lost race look the same to the UPDATE.
		var status string
		err := r.conn.QueryRow(ctx,
			`SELECT status FROM user_challenges WHERE user_id = $1 AND challenge_id = $2`,
			userID, challengeID,
		).Scan(&status)
		if IsNoRows(err) {
			return false, participation.ErrRecordNotFound
		}
		if err != nil {
			return false, fmt.Errorf("failed to check participation status: %w", err)
		}
		return false, nil
	}

	return true, nil
}

// FindByUser returns all records for a user, newest first.
func (r *ParticipationRepository) FindByUser(ctx context.Context, userID string) ([]*participation.UserChallenge, error) {
	query := `SELECT ` + userChallengeColumns + `
		FROM user_challenges
		WHERE user_id = $1
		ORDER BY joined_at DESC`

	return r.queryRecords(ctx, query, userID)
}

// FindCompletedByUser returns the user's completed records.
func (r *ParticipationRepository) FindCompletedByUser(ctx context.Context, userID string) ([]*participation.UserChallenge, error) {
	query := `SELECT ` + userChallengeColumns + `
		FROM user_challenges
		WHERE user_id = $1 AND status = 'completed'
		ORDER BY completed_at DESC`

	return r.queryRecords(ctx, query, userID)
}

// FindEngagedChallengeIDs returns challenge IDs the user has joined in any
// non-terminal status plus completed.
func (r *ParticipationRepository) FindEngagedChallengeIDs(ctx context.Context, userID string) ([]string, error) {
	query := `
		SELECT challenge_id FROM user_challenges
		WHERE user_id = $1 AND status NOT IN ('abandoned', 'failed')`

	rows, err := r.conn.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query engaged challenges: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan challenge id: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// FindUnfinishedByChallenge returns joined/in_progress records for a challenge.
func (r *ParticipationRepository) FindUnfinishedByChallenge(ctx context.Context, challengeID string) ([]*participation.UserChallenge, error) {
	query := `SELECT ` + userChallengeColumns + `
		FROM user_challenges
		WHERE challenge_id = $1 AND status IN ('joined', 'in_progress')
		ORDER BY joined_at`

	return r.queryRecords(ctx, query, challengeID)
}

// CountCompletedByTier returns completed-challenge counts per tier.
func (r *ParticipationRepository) CountCompletedByTier(ctx context.Context, userID string) (map[challenge.Tier]int, error) {
	query := `
		SELECT tier, COUNT(*) FROM user_challenges
		WHERE user_id = $1 AND status = 'completed'
		GROUP BY tier`

	rows, err := r.conn.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count completed by tier: %w", err)
	}
	defer rows.Close()

	counts := make(map[challenge.Tier]int, len(challenge.AllTiers))
	for rows.Next() {
		var tier string
		var count int
		if err := rows.Scan(&tier, &count); err != nil {
			return nil, fmt.Errorf("failed to scan tier count: %w", err)
		}
		counts[challenge.Tier(tier)] = count
	}

	return counts, rows.Err()
}

// AppendSubmission persists a submission record. Submissions are immutable
// once written.
func (r *ParticipationRepository) AppendSubmission(ctx context.Context, sub *participation.Submission) error {
	query := `
		INSERT INTO submissions (id, user_id, challenge_id, content, evidence_links, submission_type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	links, err := marshalEvidenceLinks(sub.EvidenceLinks)
	if err != nil {
		return err
	}

	_, err = r.conn.Exec(ctx, query,
		sub.ID,
		sub.UserID,
		sub.ChallengeID,
		sub.Content,
		links,
		string(sub.Type),
		sub.CreatedAt,
	)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return participation.ErrRecordNotFound
		}
		return fmt.Errorf("failed to append submission: %w", err)
	}

	return nil
}

// GetSubmissions returns the submission history for (userID, challengeID),
// oldest first.
func (r *ParticipationRepository) GetSubmissions(ctx context.Context, userID, challengeID string) ([]participation.Submission, error) {
	query := `
		SELECT id, user_id, challenge_id, content, evidence_links, submission_type, created_at
		FROM submissions
		WHERE user_id = $1 AND challenge_id = $2
		ORDER BY created_at`

	rows, err := r.conn.Query(ctx, query, userID, challengeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query submissions: %w", err)
	}
	defer rows.Close()

	subs := make([]participation.Submission, 0)
	for rows.Next() {
		var (
			sub     participation.Submission
			subType string
			links   []byte
		)
		err := rows.Scan(&sub.ID, &sub.UserID, &sub.ChallengeID, &sub.Content, &links, &subType, &sub.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan submission: %w", err)
		}
		sub.Type = participation.SubmissionType(subType)
		sub.EvidenceLinks, err = unmarshalEvidenceLinks(links)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}

	return subs, rows.Err()
}

// ══════════════════════════════════════════════════════════════════════════════
// SCAN HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// queryRecords runs a list query. Submission histories are not loaded here:
// list callers (progression, recommendations, fail-out sweeps) only need the
// record fields, and per-row history loads would be an N+1.
func (r *ParticipationRepository) queryRecords(ctx context.Context, query string, args ...interface{}) ([]*participation.UserChallenge, error) {
	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query participation records: %w", err)
	}
	defer rows.Close()

	var records []*participation.UserChallenge
	for rows.Next() {
		uc, err := scanUserChallenge(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan participation record: %w", err)
		}
		records = append(records, uc)
	}

	return records, rows.Err()
}

func scanUserChallenge(row pgx.Row) (*participation.UserChallenge, error) {
	var (
		uc       participation.UserChallenge
		tier     string
		category string
		status   string
		badges   []byte
	)

	err := row.Scan(
		&uc.UserID,
		&uc.ChallengeID,
		&tier,
		&category,
		&status,
		&uc.Progress,
		&uc.MaxProgress,
		&uc.JoinedAt,
		&uc.SubmittedAt,
		&uc.CompletedAt,
		&uc.XPEarned,
		&badges,
		&uc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	uc.Tier = challenge.Tier(tier)
	uc.Category = challenge.Category(category)
	uc.Status = participation.Status(status)

	if err := json.Unmarshal(badges, &uc.BadgesEarned); err != nil {
		return nil, fmt.Errorf("failed to decode earned badges: %w", err)
	}

	return &uc, nil
}

func marshalBadges(badges []string) ([]byte, error) {
	if badges == nil {
		badges = []string{}
	}
	encoded, err := json.Marshal(badges)
	if err != nil {
		return nil, fmt.Errorf("failed to encode badges: %w", err)
	}
	return encoded, nil
}

// evidenceLinkRow is the stored JSON shape of an evidence link.
type evidenceLinkRow struct {
	URL            string `json:"url"`
	Platform       string `json:"platform,omitempty"`
	Title          string `json:"title,omitempty"`
	Thumbnail      string `json:"thumbnail,omitempty"`
	DurationOrSize string `json:"duration_or_size,omitempty"`
}

func marshalEvidenceLinks(links []participation.EvidenceLink) ([]byte, error) {
	rows := make([]evidenceLinkRow, len(links))
	for i, l := range links {
		rows[i] = evidenceLinkRow(l)
	}
	encoded, err := json.Marshal(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to encode evidence links: %w", err)
	}
	return encoded, nil
}

func unmarshalEvidenceLinks(data []byte) ([]participation.EvidenceLink, error) {
	var rows []evidenceLinkRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode evidence links: %w", err)
	}
	links := make([]participation.EvidenceLink, len(rows))
	for i, r := range rows {
		links[i] = participation.EvidenceLink(r)
	}
	return links, nil
}
