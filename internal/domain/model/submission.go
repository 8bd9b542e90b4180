package model

import "time"

// Submission is the kept attempt for a (user, challenge) pair. There is at
// most one row per pair; worse attempts never touch it.
type Submission struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	ChallengeID     string    `json:"challenge_id"`
	Code            string    `json:"code"`
	Accuracy        float64   `json:"accuracy"` // 0..100, one decimal
	Score           int       `json:"score"`
	DurationSeconds int       `json:"duration_seconds"`
	CharCount       int       `json:"char_count"`
	CreatedAt       time.Time `json:"created_at"`
}

// SolvedAccuracy is the accuracy at which a challenge counts as solved.
const SolvedAccuracy = 70

func (s *Submission) IsSolved() bool {
	return s.Accuracy >= SolvedAccuracy
}

// UnlockRecord marks a permanent forfeiture of future points for a challenge
// in exchange for solution access.
type UnlockRecord struct {
	UserID      string    `json:"user_id"`
	ChallengeID string    `json:"challenge_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// UserChallengeStats is the per-user view of a single challenge.
type UserChallengeStats struct {
	Best       *Submission `json:"best,omitempty"`
	IsUnlocked bool        `json:"is_unlocked"`
	IsSolved   bool        `json:"is_solved"`
}
