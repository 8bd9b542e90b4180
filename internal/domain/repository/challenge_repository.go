package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"code_clash/internal/common"
	"code_clash/internal/domain/model"

	"github.com/jackc/pgx/v5/pgconn"
)

type ChallengeRepository interface {
	CreateChallenge(ctx context.Context, tx *sql.Tx, ch *model.Challenge) error
	UpdateChallenge(ctx context.Context, tx *sql.Tx, ch *model.Challenge) error
	DeleteChallenge(ctx context.Context, id string) error
	FindChallengeByID(ctx context.Context, id string) (*model.Challenge, error)
	FindChallengeBySlug(ctx context.Context, slug string) (*model.Challenge, error)
	ListChallenges(ctx context.Context, limit, offset int, difficulty model.ChallengeDifficulty) ([]model.Challenge, int, error)

	AddHints(ctx context.Context, tx *sql.Tx, challengeID string, hints []model.Hint) error
	GetHintsByChallengeID(ctx context.Context, challengeID string) ([]model.Hint, error)
	RecordHintUsage(ctx context.Context, userID, challengeID, hintID string) error
	CountHintUsage(ctx context.Context, userID, challengeID string) (int, error)
}

type pgChallengeRepository struct {
	db *sql.DB
}

func NewPgChallengeRepository(db *sql.DB) ChallengeRepository {
	return &pgChallengeRepository{db: db}
}

func (r *pgChallengeRepository) CreateChallenge(ctx context.Context, tx *sql.Tx, ch *model.Challenge) error {
	query := `INSERT INTO challenges (id, title, slug, description, difficulty, target_code, target_image_url, target_chars, created_by)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	var err error
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, ch.ID, ch.Title, ch.Slug, ch.Description, ch.Difficulty, ch.TargetCode, ch.TargetImageURL, ch.TargetChars, ch.CreatedByID)
	} else {
		_, err = r.db.ExecContext(ctx, query, ch.ID, ch.Title, ch.Slug, ch.Description, ch.Difficulty, ch.TargetCode, ch.TargetImageURL, ch.TargetChars, ch.CreatedByID)
	}
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // Unique constraint for slug
			return fmt.Errorf("challenge with this slug already exists: %w", common.ErrConflict)
		}
		return fmt.Errorf("pgChallengeRepository.CreateChallenge: %w", err)
	}
	return nil
}

func (r *pgChallengeRepository) UpdateChallenge(ctx context.Context, tx *sql.Tx, ch *model.Challenge) error {
	query := `UPDATE challenges SET
	            title = $1, slug = $2, description = $3, difficulty = $4,
	            target_code = $5, target_image_url = $6, target_chars = $7,
	            updated_at = CURRENT_TIMESTAMP
	          WHERE id = $8`

	var err error
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, ch.Title, ch.Slug, ch.Description, ch.Difficulty, ch.TargetCode, ch.TargetImageURL, ch.TargetChars, ch.ID)
	} else {
		_, err = r.db.ExecContext(ctx, query, ch.Title, ch.Slug, ch.Description, ch.Difficulty, ch.TargetCode, ch.TargetImageURL, ch.TargetChars, ch.ID)
	}
	if err != nil {
		return fmt.Errorf("pgChallengeRepository.UpdateChallenge: %w", err)
	}
	return nil
}

// DeleteChallenge removes the challenge; submissions, unlocks, hints and
// contest associations cascade via foreign keys.
func (r *pgChallengeRepository) DeleteChallenge(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM challenges WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("pgChallengeRepository.DeleteChallenge: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *pgChallengeRepository) FindChallengeByID(ctx context.Context, id string) (*model.Challenge, error) {
	return r.findOne(ctx, `id = $1`, id)
}

func (r *pgChallengeRepository) FindChallengeBySlug(ctx context.Context, slug string) (*model.Challenge, error) {
	return r.findOne(ctx, `slug = $1`, slug)
}

func (r *pgChallengeRepository) findOne(ctx context.Context, where string, arg interface{}) (*model.Challenge, error) {
	query := `SELECT id, title, slug, description, difficulty, target_code, target_image_url, target_chars, created_by, created_at, updated_at
	          FROM challenges WHERE ` + where

	ch := &model.Challenge{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&ch.ID, &ch.Title, &ch.Slug, &ch.Description, &ch.Difficulty,
		&ch.TargetCode, &ch.TargetImageURL, &ch.TargetChars,
		&ch.CreatedByID, &ch.CreatedAt, &ch.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgChallengeRepository.findOne: %w", err)
	}
	return ch, nil
}

func (r *pgChallengeRepository) ListChallenges(ctx context.Context, limit, offset int, difficulty model.ChallengeDifficulty) ([]model.Challenge, int, error) {
	var conditions []string
	var args []interface{}
	argID := 1

	if difficulty != "" {
		conditions = append(conditions, fmt.Sprintf("difficulty = $%d", argID))
		args = append(args, difficulty)
		argID++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM challenges`+whereClause, args...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("pgChallengeRepository.ListChallenges count: %w", err)
	}

	query := `SELECT id, title, slug, description, difficulty, target_image_url, target_chars, created_at, updated_at
	          FROM challenges` + whereClause +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argID, argID+1)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgChallengeRepository.ListChallenges query: %w", err)
	}
	defer rows.Close()

	challenges := []model.Challenge{}
	for rows.Next() {
		var ch model.Challenge
		if err := rows.Scan(&ch.ID, &ch.Title, &ch.Slug, &ch.Description, &ch.Difficulty,
			&ch.TargetImageURL, &ch.TargetChars, &ch.CreatedAt, &ch.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("pgChallengeRepository.ListChallenges scan: %w", err)
		}
		challenges = append(challenges, ch)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("pgChallengeRepository.ListChallenges rows.Err: %w", err)
	}

	return challenges, total, nil
}

func (r *pgChallengeRepository) AddHints(ctx context.Context, tx *sql.Tx, challengeID string, hints []model.Hint) error {
	if len(hints) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO hints (id, challenge_id, text, sort_order) VALUES ($1, $2, $3, $4)`)
	if err != nil {
		return fmt.Errorf("pgChallengeRepository.AddHints prepare: %w", err)
	}
	defer stmt.Close()

	for i, h := range hints {
		h.SortOrder = i + 1 // Auto-assign sort order
		if _, err := stmt.ExecContext(ctx, h.ID, challengeID, h.Text, h.SortOrder); err != nil {
			return fmt.Errorf("pgChallengeRepository.AddHints exec for hint %s: %w", h.ID, err)
		}
	}
	return nil
}

func (r *pgChallengeRepository) GetHintsByChallengeID(ctx context.Context, challengeID string) ([]model.Hint, error) {
	query := `SELECT id, challenge_id, text, sort_order, created_at
	          FROM hints WHERE challenge_id = $1 ORDER BY sort_order ASC`
	rows, err := r.db.QueryContext(ctx, query, challengeID)
	if err != nil {
		return nil, fmt.Errorf("pgChallengeRepository.GetHintsByChallengeID query: %w", err)
	}
	defer rows.Close()

	var hints []model.Hint
	for rows.Next() {
		var h model.Hint
		if err := rows.Scan(&h.ID, &h.ChallengeID, &h.Text, &h.SortOrder, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("pgChallengeRepository.GetHintsByChallengeID scan: %w", err)
		}
		hints = append(hints, h)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgChallengeRepository.GetHintsByChallengeID rows.Err: %w", err)
	}
	return hints, nil
}

// RecordHintUsage is idempotent; viewing the same hint twice costs one penalty.
func (r *pgChallengeRepository) RecordHintUsage(ctx context.Context, userID, challengeID, hintID string) error {
	query := `INSERT INTO hint_usages (user_id, challenge_id, hint_id)
	          VALUES ($1, $2, $3)
	          ON CONFLICT (user_id, hint_id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, userID, challengeID, hintID); err != nil {
		return fmt.Errorf("pgChallengeRepository.RecordHintUsage: %w", err)
	}
	return nil
}

func (r *pgChallengeRepository) CountHintUsage(ctx context.Context, userID, challengeID string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM hint_usages WHERE user_id = $1 AND challenge_id = $2`
	if err := r.db.QueryRowContext(ctx, query, userID, challengeID).Scan(&count); err != nil {
		return 0, fmt.Errorf("pgChallengeRepository.CountHintUsage: %w", err)
	}
	return count, nil
}
