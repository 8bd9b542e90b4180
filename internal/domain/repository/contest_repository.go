package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"code_clash/internal/common"
	"code_clash/internal/domain/model"

	"github.com/jackc/pgx/v5/pgconn"
)

type ContestRepository interface {
	CreateContest(ctx context.Context, tx *sql.Tx, c *model.Contest) error
	FindContestByID(ctx context.Context, id string) (*model.Contest, error)
	ListContests(ctx context.Context, limit, offset int) ([]model.Contest, int, error)

	JoinContest(ctx context.Context, contestID, userID string) error
	ListParticipants(ctx context.Context, contestID string) ([]model.ContestParticipant, error)

	// FindRunningContestForChallenge returns the active contest whose window
	// covers now and whose challenge set includes the challenge, or
	// common.ErrNotFound.
	FindRunningContestForChallenge(ctx context.Context, challengeID string, now time.Time) (*model.Contest, error)

	AppendSolutionHistory(ctx context.Context, tx *sql.Tx, h *model.ContestSolutionHistory) error

	// AggregateUserHistory computes the user's per-contest aggregate from the
	// solution history: per-challenge max score summed, positive maxes counted.
	AggregateUserHistory(ctx context.Context, tx *sql.Tx, contestID, userID string) (totalScore, challengesSolved int, err error)
}

type pgContestRepository struct {
	db *sql.DB
}

func NewPgContestRepository(db *sql.DB) ContestRepository {
	return &pgContestRepository{db: db}
}

func (r *pgContestRepository) CreateContest(ctx context.Context, tx *sql.Tx, c *model.Contest) error {
	query := `INSERT INTO contests (id, title, slug, start_time, end_time, is_active, created_by)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)`

	exec := r.db.ExecContext
	if tx != nil {
		exec = tx.ExecContext
	}
	if _, err := exec(ctx, query, c.ID, c.Title, c.Slug, c.StartTime, c.EndTime, c.IsActive, c.CreatedByID); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("contest with this slug already exists: %w", common.ErrConflict)
		}
		return fmt.Errorf("pgContestRepository.CreateContest: %w", err)
	}

	for i, challengeID := range c.ChallengeIDs {
		if _, err := exec(ctx,
			`INSERT INTO contest_challenges (contest_id, challenge_id, sort_order) VALUES ($1, $2, $3)`,
			c.ID, challengeID, i+1); err != nil {
			return fmt.Errorf("pgContestRepository.CreateContest challenge %s: %w", challengeID, err)
		}
	}
	return nil
}

func (r *pgContestRepository) FindContestByID(ctx context.Context, id string) (*model.Contest, error) {
	query := `SELECT id, title, slug, start_time, end_time, is_active, created_by, created_at
	          FROM contests WHERE id = $1`

	c := &model.Contest{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&c.ID, &c.Title, &c.Slug, &c.StartTime, &c.EndTime, &c.IsActive, &c.CreatedByID, &c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgContestRepository.FindContestByID: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT challenge_id FROM contest_challenges WHERE contest_id = $1 ORDER BY sort_order ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("pgContestRepository.FindContestByID challenges: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var challengeID string
		if err := rows.Scan(&challengeID); err != nil {
			return nil, fmt.Errorf("pgContestRepository.FindContestByID scan: %w", err)
		}
		c.ChallengeIDs = append(c.ChallengeIDs, challengeID)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgContestRepository.FindContestByID rows.Err: %w", err)
	}
	return c, nil
}

func (r *pgContestRepository) ListContests(ctx context.Context, limit, offset int) ([]model.Contest, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM contests`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgContestRepository.ListContests count: %w", err)
	}

	query := `SELECT id, title, slug, start_time, end_time, is_active, created_by, created_at
	          FROM contests ORDER BY start_time DESC LIMIT $1 OFFSET $2`
	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("pgContestRepository.ListContests query: %w", err)
	}
	defer rows.Close()

	contests := []model.Contest{}
	for rows.Next() {
		var c model.Contest
		if err := rows.Scan(&c.ID, &c.Title, &c.Slug, &c.StartTime, &c.EndTime, &c.IsActive, &c.CreatedByID, &c.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("pgContestRepository.ListContests scan: %w", err)
		}
		contests = append(contests, c)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("pgContestRepository.ListContests rows.Err: %w", err)
	}
	return contests, total, nil
}

// JoinContest is idempotent; joining twice keeps the original joined_at.
func (r *pgContestRepository) JoinContest(ctx context.Context, contestID, userID string) error {
	query := `INSERT INTO contest_participants (contest_id, user_id)
	          VALUES ($1, $2)
	          ON CONFLICT (contest_id, user_id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, contestID, userID); err != nil {
		return fmt.Errorf("pgContestRepository.JoinContest: %w", err)
	}
	return nil
}

func (r *pgContestRepository) ListParticipants(ctx context.Context, contestID string) ([]model.ContestParticipant, error) {
	query := `SELECT contest_id, user_id, joined_at FROM contest_participants WHERE contest_id = $1`
	rows, err := r.db.QueryContext(ctx, query, contestID)
	if err != nil {
		return nil, fmt.Errorf("pgContestRepository.ListParticipants query: %w", err)
	}
	defer rows.Close()

	participants := []model.ContestParticipant{}
	for rows.Next() {
		var p model.ContestParticipant
		if err := rows.Scan(&p.ContestID, &p.UserID, &p.JoinedAt); err != nil {
			return nil, fmt.Errorf("pgContestRepository.ListParticipants scan: %w", err)
		}
		participants = append(participants, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgContestRepository.ListParticipants rows.Err: %w", err)
	}
	return participants, nil
}

func (r *pgContestRepository) FindRunningContestForChallenge(ctx context.Context, challengeID string, now time.Time) (*model.Contest, error) {
	query := `SELECT c.id, c.title, c.slug, c.start_time, c.end_time, c.is_active, c.created_by, c.created_at
	          FROM contests c
	          JOIN contest_challenges cc ON cc.contest_id = c.id
	          WHERE cc.challenge_id = $1
	            AND c.is_active = TRUE
	            AND c.start_time <= $2
	            AND c.end_time > $2
	          ORDER BY c.start_time DESC
	          LIMIT 1`

	c := &model.Contest{}
	err := r.db.QueryRowContext(ctx, query, challengeID, now).Scan(
		&c.ID, &c.Title, &c.Slug, &c.StartTime, &c.EndTime, &c.IsActive, &c.CreatedByID, &c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgContestRepository.FindRunningContestForChallenge: %w", err)
	}
	return c, nil
}

func (r *pgContestRepository) AppendSolutionHistory(ctx context.Context, tx *sql.Tx, h *model.ContestSolutionHistory) error {
	query := `INSERT INTO contest_solution_history (id, contest_id, user_id, challenge_id, code, accuracy, score, duration_seconds)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	exec := r.db.ExecContext
	if tx != nil {
		exec = tx.ExecContext
	}
	if _, err := exec(ctx, query, h.ID, h.ContestID, h.UserID, h.ChallengeID, h.Code, h.Accuracy, h.Score, h.DurationSeconds); err != nil {
		return fmt.Errorf("pgContestRepository.AppendSolutionHistory: %w", err)
	}
	return nil
}

func (r *pgContestRepository) AggregateUserHistory(ctx context.Context, tx *sql.Tx, contestID, userID string) (int, int, error) {
	query := `SELECT COALESCE(SUM(max_score), 0),
	                 COUNT(*) FILTER (WHERE max_score > 0)
	          FROM (
	            SELECT MAX(score) AS max_score
	            FROM contest_solution_history
	            WHERE contest_id = $1 AND user_id = $2
	            GROUP BY challenge_id
	          ) per_challenge`

	queryRow := r.db.QueryRowContext
	if tx != nil {
		queryRow = tx.QueryRowContext
	}

	var total, solved int
	if err := queryRow(ctx, query, contestID, userID).Scan(&total, &solved); err != nil {
		return 0, 0, fmt.Errorf("pgContestRepository.AggregateUserHistory: %w", err)
	}
	return total, solved, nil
}
