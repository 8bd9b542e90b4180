package repository

import (
	"context"
	"database/sql"
	"fmt"

	"code_clash/internal/domain/model"
)

type LeaderboardRepository interface {
	// UpsertEntry is the incremental fast path: an atomic insert-or-update
	// keyed by (contest_id, user_id).
	UpsertEntry(ctx context.Context, tx *sql.Tx, e *model.LeaderboardEntry) error

	// ReplaceContest swaps out every leaderboard entry and best-solution row
	// for the contest in a single transaction, so readers never observe a
	// half-written board.
	ReplaceContest(ctx context.Context, contestID string, entries []model.LeaderboardEntry, bests []model.ContestBestSolution) error

	ListEntries(ctx context.Context, contestID string, limit int) ([]model.LeaderboardEntry, error)
}

type pgLeaderboardRepository struct {
	db *sql.DB
}

func NewPgLeaderboardRepository(db *sql.DB) LeaderboardRepository {
	return &pgLeaderboardRepository{db: db}
}

func (r *pgLeaderboardRepository) UpsertEntry(ctx context.Context, tx *sql.Tx, e *model.LeaderboardEntry) error {
	query := `INSERT INTO leaderboard_entries (contest_id, user_id, total_score, challenges_solved, last_submission_at)
	          VALUES ($1, $2, $3, $4, $5)
	          ON CONFLICT (contest_id, user_id) DO UPDATE SET
	            total_score = EXCLUDED.total_score,
	            challenges_solved = EXCLUDED.challenges_solved,
	            last_submission_at = EXCLUDED.last_submission_at`

	exec := r.db.ExecContext
	if tx != nil {
		exec = tx.ExecContext
	}
	if _, err := exec(ctx, query, e.ContestID, e.UserID, e.TotalScore, e.ChallengesSolved, e.LastSubmissionAt); err != nil {
		return fmt.Errorf("pgLeaderboardRepository.UpsertEntry: %w", err)
	}
	return nil
}

func (r *pgLeaderboardRepository) ReplaceContest(ctx context.Context, contestID string, entries []model.LeaderboardEntry, bests []model.ContestBestSolution) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("pgLeaderboardRepository.ReplaceContest begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM leaderboard_entries WHERE contest_id = $1`, contestID); err != nil {
		return fmt.Errorf("pgLeaderboardRepository.ReplaceContest delete entries: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM contest_best_solutions WHERE contest_id = $1`, contestID); err != nil {
		return fmt.Errorf("pgLeaderboardRepository.ReplaceContest delete bests: %w", err)
	}

	entryStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO leaderboard_entries (contest_id, user_id, total_score, challenges_solved, last_submission_at)
		 VALUES ($1, $2, $3, $4, $5)`)
	if err != nil {
		return fmt.Errorf("pgLeaderboardRepository.ReplaceContest prepare entries: %w", err)
	}
	defer entryStmt.Close()

	for _, e := range entries {
		if _, err := entryStmt.ExecContext(ctx, contestID, e.UserID, e.TotalScore, e.ChallengesSolved, e.LastSubmissionAt); err != nil {
			return fmt.Errorf("pgLeaderboardRepository.ReplaceContest insert entry for %s: %w", e.UserID, err)
		}
	}

	bestStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO contest_best_solutions (contest_id, user_id, challenge_id, score, created_at)
		 VALUES ($1, $2, $3, $4, $5)`)
	if err != nil {
		return fmt.Errorf("pgLeaderboardRepository.ReplaceContest prepare bests: %w", err)
	}
	defer bestStmt.Close()

	for _, b := range bests {
		if _, err := bestStmt.ExecContext(ctx, contestID, b.UserID, b.ChallengeID, b.Score, b.CreatedAt); err != nil {
			return fmt.Errorf("pgLeaderboardRepository.ReplaceContest insert best for %s/%s: %w", b.UserID, b.ChallengeID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("pgLeaderboardRepository.ReplaceContest commit: %w", err)
	}
	return nil
}

func (r *pgLeaderboardRepository) ListEntries(ctx context.Context, contestID string, limit int) ([]model.LeaderboardEntry, error) {
	query := `SELECT le.contest_id, le.user_id, u.username, le.total_score, le.challenges_solved, le.last_submission_at
	          FROM leaderboard_entries le
	          JOIN users u ON u.id = le.user_id
	          WHERE le.contest_id = $1
	          ORDER BY le.total_score DESC, le.last_submission_at ASC NULLS LAST, u.username ASC
	          LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, contestID, limit)
	if err != nil {
		return nil, fmt.Errorf("pgLeaderboardRepository.ListEntries query: %w", err)
	}
	defer rows.Close()

	entries := []model.LeaderboardEntry{}
	for rows.Next() {
		var e model.LeaderboardEntry
		if err := rows.Scan(&e.ContestID, &e.UserID, &e.Username, &e.TotalScore, &e.ChallengesSolved, &e.LastSubmissionAt); err != nil {
			return nil, fmt.Errorf("pgLeaderboardRepository.ListEntries scan: %w", err)
		}
		entries = append(entries, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgLeaderboardRepository.ListEntries rows.Err: %w", err)
	}
	return entries, nil
}
