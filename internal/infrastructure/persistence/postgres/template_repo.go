package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/craftquest/challenge-engine/internal/domain/challenge"
)

// ══════════════════════════════════════════════════════════════════════════════
// TEMPLATE REPOSITORY
// PostgreSQL implementation of challenge.TemplateRepository.
// ══════════════════════════════════════════════════════════════════════════════

// TemplateRepository persists recurring challenge templates.
type TemplateRepository struct {
	conn *Connection
}

// NewTemplateRepository creates a new template repository.
func NewTemplateRepository(conn *Connection) *TemplateRepository {
	return &TemplateRepository{conn: conn}
}

const templateColumns = `
	id, title, description, category, difficulty, challenge_type, tier,
	reward_xp, reward_badges, bonus_criteria, recurrence, enabled,
	created_at, updated_at`

// Create persists a new template.
func (r *TemplateRepository) Create(ctx context.Context, t *challenge.Template) error {
	query := `
		INSERT INTO challenge_templates (` + templateColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	badges, criteria, err := marshalRewards(t.Rewards)
	if err != nil {
		return err
	}

	_, err = r.conn.Exec(ctx, query,
		t.ID,
		t.Title,
		t.Description,
		string(t.Category),
		string(t.Difficulty),
		string(t.Type),
		string(t.Tier),
		t.Rewards.XP,
		badges,
		criteria,
		string(t.Recurrence),
		t.Enabled,
		t.CreatedAt,
		t.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return challenge.ErrChallengeAlreadyExists
		}
		return fmt.Errorf("failed to create template: %w", err)
	}

	return nil
}

// GetByID returns a template by ID.
func (r *TemplateRepository) GetByID(ctx context.Context, id string) (*challenge.Template, error) {
	query := `SELECT ` + templateColumns + ` FROM challenge_templates WHERE id = $1`

	t, err := scanTemplate(r.conn.QueryRow(ctx, query, id))
	if err != nil {
		if IsNoRows(err) {
			return nil, challenge.ErrTemplateNotFound
		}
		return nil, fmt.Errorf("failed to get template: %w", err)
	}

	return t, nil
}

// Update persists template changes.
func (r *TemplateRepository) Update(ctx context.Context, t *challenge.Template) error {
	query := `
		UPDATE challenge_templates SET
			title = $2,
			description = $3,
			category = $4,
			difficulty = $5,
			challenge_type = $6,
			tier = $7,
			reward_xp = $8,
			reward_badges = $9,
			bonus_criteria = $10,
			recurrence = $11,
			enabled = $12,
			updated_at = $13
		WHERE id = $1`

	badges, criteria, err := marshalRewards(t.Rewards)
	if err != nil {
		return err
	}

	tag, err := r.conn.Exec(ctx, query,
		t.ID,
		t.Title,
		t.Description,
		string(t.Category),
		string(t.Difficulty),
		string(t.Type),
		string(t.Tier),
		t.Rewards.XP,
		badges,
		criteria,
		string(t.Recurrence),
		t.Enabled,
		t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update template: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return challenge.ErrTemplateNotFound
	}

	return nil
}

// FindRecurring returns all enabled templates with a recurrence rule.
func (r *TemplateRepository) FindRecurring(ctx context.Context) ([]*challenge.Template, error) {
	query := `SELECT ` + templateColumns + `
		FROM challenge_templates
		WHERE enabled AND recurrence <> 'none'
		ORDER BY created_at`

	rows, err := r.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query recurring templates: %w", err)
	}
	defer rows.Close()

	var templates []*challenge.Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan template: %w", err)
		}
		templates = append(templates, t)
	}

	return templates, rows.Err()
}

func scanTemplate(row pgx.Row) (*challenge.Template, error) {
	var (
		t          challenge.Template
		category   string
		difficulty string
		chType     string
		tier       string
		recurrence string
		badges     []byte
		criteria   []byte
	)

	err := row.Scan(
		&t.ID,
		&t.Title,
		&t.Description,
		&category,
		&difficulty,
		&chType,
		&tier,
		&t.Rewards.XP,
		&badges,
		&criteria,
		&recurrence,
		&t.Enabled,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.Category = challenge.Category(category)
	t.Difficulty = challenge.Difficulty(difficulty)
	t.Type = challenge.Type(chType)
	t.Tier = challenge.Tier(tier)
	t.Recurrence = challenge.Recurrence(recurrence)

	if err := unmarshalRewardSlices(badges, criteria, &t.Rewards); err != nil {
		return nil, err
	}

	return &t, nil
}
