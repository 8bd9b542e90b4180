package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"code_clash/internal/common"
	"code_clash/internal/domain/model"

	"github.com/google/uuid"
)

func newSubmissionID() string {
	return uuid.NewString()
}

type SubmissionRepository interface {
	// UpsertBest applies the monotonic-improvement rule as a single
	// conditional statement so the database enforces it atomically. It
	// reports whether the write was accepted; a rejected attempt leaves the
	// stored row completely untouched.
	UpsertBest(ctx context.Context, tx *sql.Tx, sub *model.Submission, unlocked bool) (bool, error)

	GetByUserAndChallenge(ctx context.Context, userID, challengeID string) (*model.Submission, error)
	ListForChallengesInWindow(ctx context.Context, challengeIDs []string, from, to time.Time) ([]model.Submission, error)
	ListBestByChallenge(ctx context.Context, challengeID string, limit int) ([]model.Submission, error)

	SumBestScores(ctx context.Context, tx *sql.Tx, userID string) (int, error)
	GlobalTotals(ctx context.Context, limit int) ([]model.GlobalLeaderboardEntry, error)

	CreateUnlock(ctx context.Context, tx *sql.Tx, userID, challengeID string) error
	IsUnlocked(ctx context.Context, userID, challengeID string) (bool, error)
	PinForfeited(ctx context.Context, tx *sql.Tx, userID, challengeID string) error
}

type pgSubmissionRepository struct {
	db *sql.DB
}

func NewPgSubmissionRepository(db *sql.DB) SubmissionRepository {
	return &pgSubmissionRepository{db: db}
}

func (r *pgSubmissionRepository) UpsertBest(ctx context.Context, tx *sql.Tx, sub *model.Submission, unlocked bool) (bool, error) {
	query := `INSERT INTO submissions (id, user_id, challenge_id, code, accuracy, score, duration_seconds, char_count)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	          ON CONFLICT (user_id, challenge_id) DO UPDATE SET
	            code = EXCLUDED.code,
	            accuracy = EXCLUDED.accuracy,
	            score = EXCLUDED.score,
	            duration_seconds = EXCLUDED.duration_seconds,
	            char_count = EXCLUDED.char_count,
	            created_at = CURRENT_TIMESTAMP
	          WHERE EXCLUDED.score >= submissions.score
	             OR ($9 AND EXCLUDED.accuracy > submissions.accuracy)
	          RETURNING id, created_at`

	var row *sql.Row
	if tx != nil {
		row = tx.QueryRowContext(ctx, query, sub.ID, sub.UserID, sub.ChallengeID, sub.Code, sub.Accuracy, sub.Score, sub.DurationSeconds, sub.CharCount, unlocked)
	} else {
		row = r.db.QueryRowContext(ctx, query, sub.ID, sub.UserID, sub.ChallengeID, sub.Code, sub.Accuracy, sub.Score, sub.DurationSeconds, sub.CharCount, unlocked)
	}

	err := row.Scan(&sub.ID, &sub.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Conflict hit and the update predicate failed: worse attempt.
			return false, nil
		}
		return false, fmt.Errorf("pgSubmissionRepository.UpsertBest: %w", err)
	}
	return true, nil
}

func (r *pgSubmissionRepository) GetByUserAndChallenge(ctx context.Context, userID, challengeID string) (*model.Submission, error) {
	query := `SELECT id, user_id, challenge_id, code, accuracy, score, duration_seconds, char_count, created_at
	          FROM submissions WHERE user_id = $1 AND challenge_id = $2`

	sub := &model.Submission{}
	err := r.db.QueryRowContext(ctx, query, userID, challengeID).Scan(
		&sub.ID, &sub.UserID, &sub.ChallengeID, &sub.Code, &sub.Accuracy, &sub.Score,
		&sub.DurationSeconds, &sub.CharCount, &sub.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgSubmissionRepository.GetByUserAndChallenge: %w", err)
	}
	return sub, nil
}

func (r *pgSubmissionRepository) ListForChallengesInWindow(ctx context.Context, challengeIDs []string, from, to time.Time) ([]model.Submission, error) {
	if len(challengeIDs) == 0 {
		return []model.Submission{}, nil
	}

	placeholders := make([]string, len(challengeIDs))
	args := make([]interface{}, 0, len(challengeIDs)+2)
	for i, id := range challengeIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args = append(args, id)
	}
	args = append(args, from, to)

	query := fmt.Sprintf(`SELECT id, user_id, challenge_id, code, accuracy, score, duration_seconds, char_count, created_at
	          FROM submissions
	          WHERE challenge_id IN (%s) AND created_at >= $%d AND created_at <= $%d`,
		strings.Join(placeholders, ","), len(challengeIDs)+1, len(challengeIDs)+2)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("pgSubmissionRepository.ListForChallengesInWindow query: %w", err)
	}
	defer rows.Close()

	subs := []model.Submission{}
	for rows.Next() {
		var s model.Submission
		if err := rows.Scan(&s.ID, &s.UserID, &s.ChallengeID, &s.Code, &s.Accuracy, &s.Score,
			&s.DurationSeconds, &s.CharCount, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("pgSubmissionRepository.ListForChallengesInWindow scan: %w", err)
		}
		subs = append(subs, s)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgSubmissionRepository.ListForChallengesInWindow rows.Err: %w", err)
	}
	return subs, nil
}

func (r *pgSubmissionRepository) ListBestByChallenge(ctx context.Context, challengeID string, limit int) ([]model.Submission, error) {
	query := `SELECT id, user_id, challenge_id, code, accuracy, score, duration_seconds, char_count, created_at
	          FROM submissions
	          WHERE challenge_id = $1 AND score > 0
	          ORDER BY score DESC, created_at ASC
	          LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, challengeID, limit)
	if err != nil {
		return nil, fmt.Errorf("pgSubmissionRepository.ListBestByChallenge query: %w", err)
	}
	defer rows.Close()

	subs := []model.Submission{}
	for rows.Next() {
		var s model.Submission
		if err := rows.Scan(&s.ID, &s.UserID, &s.ChallengeID, &s.Code, &s.Accuracy, &s.Score,
			&s.DurationSeconds, &s.CharCount, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("pgSubmissionRepository.ListBestByChallenge scan: %w", err)
		}
		subs = append(subs, s)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgSubmissionRepository.ListBestByChallenge rows.Err: %w", err)
	}
	return subs, nil
}

func (r *pgSubmissionRepository) SumBestScores(ctx context.Context, tx *sql.Tx, userID string) (int, error) {
	query := `SELECT COALESCE(SUM(score), 0) FROM submissions WHERE user_id = $1`

	var total int
	var err error
	if tx != nil {
		err = tx.QueryRowContext(ctx, query, userID).Scan(&total)
	} else {
		err = r.db.QueryRowContext(ctx, query, userID).Scan(&total)
	}
	if err != nil {
		return 0, fmt.Errorf("pgSubmissionRepository.SumBestScores: %w", err)
	}
	return total, nil
}

func (r *pgSubmissionRepository) GlobalTotals(ctx context.Context, limit int) ([]model.GlobalLeaderboardEntry, error) {
	query := `SELECT u.id, u.username, u.rank_title,
	                 COALESCE(SUM(s.score), 0) AS total_score,
	                 COUNT(s.id) FILTER (WHERE s.score > 0) AS challenges_solved
	          FROM users u
	          LEFT JOIN submissions s ON s.user_id = u.id
	          GROUP BY u.id, u.username, u.rank_title
	          ORDER BY total_score DESC, u.username ASC
	          LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("pgSubmissionRepository.GlobalTotals query: %w", err)
	}
	defer rows.Close()

	entries := []model.GlobalLeaderboardEntry{}
	for rows.Next() {
		var e model.GlobalLeaderboardEntry
		if err := rows.Scan(&e.UserID, &e.Username, &e.RankTitle, &e.TotalScore, &e.ChallengesSolved); err != nil {
			return nil, fmt.Errorf("pgSubmissionRepository.GlobalTotals scan: %w", err)
		}
		entries = append(entries, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgSubmissionRepository.GlobalTotals rows.Err: %w", err)
	}
	return entries, nil
}

// CreateUnlock is idempotent; calling it twice leaves one permanent record.
func (r *pgSubmissionRepository) CreateUnlock(ctx context.Context, tx *sql.Tx, userID, challengeID string) error {
	query := `INSERT INTO unlock_records (user_id, challenge_id)
	          VALUES ($1, $2)
	          ON CONFLICT (user_id, challenge_id) DO NOTHING`

	var err error
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, userID, challengeID)
	} else {
		_, err = r.db.ExecContext(ctx, query, userID, challengeID)
	}
	if err != nil {
		return fmt.Errorf("pgSubmissionRepository.CreateUnlock: %w", err)
	}
	return nil
}

func (r *pgSubmissionRepository) IsUnlocked(ctx context.Context, userID, challengeID string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM unlock_records WHERE user_id = $1 AND challenge_id = $2)`
	if err := r.db.QueryRowContext(ctx, query, userID, challengeID).Scan(&exists); err != nil {
		return false, fmt.Errorf("pgSubmissionRepository.IsUnlocked: %w", err)
	}
	return exists, nil
}

// PinForfeited writes the forfeiture submission: accuracy 100 satisfies the
// solved check, score 0 caps every future contribution through the upsert
// predicate. The stored code snapshot is kept if one exists.
func (r *pgSubmissionRepository) PinForfeited(ctx context.Context, tx *sql.Tx, userID, challengeID string) error {
	query := `INSERT INTO submissions (id, user_id, challenge_id, code, accuracy, score, duration_seconds, char_count)
	          VALUES ($1, $2, $3, '', 100, 0, 0, 0)
	          ON CONFLICT (user_id, challenge_id) DO UPDATE SET
	            accuracy = 100,
	            score = 0`

	var err error
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, newSubmissionID(), userID, challengeID)
	} else {
		_, err = r.db.ExecContext(ctx, query, newSubmissionID(), userID, challengeID)
	}
	if err != nil {
		return fmt.Errorf("pgSubmissionRepository.PinForfeited: %w", err)
	}
	return nil
}
