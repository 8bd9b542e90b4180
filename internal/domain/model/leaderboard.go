package model

import "time"

// LeaderboardEntry is a derived row, always reproducible from the submission
// log. Never the source of truth.
type LeaderboardEntry struct {
	Rank             int        `json:"rank"`
	ContestID        string     `json:"contest_id"`
	UserID           string     `json:"user_id"`
	Username         string     `json:"username,omitempty"`
	TotalScore       int        `json:"total_score"`
	ChallengesSolved int        `json:"challenges_solved"`
	LastSubmissionAt *time.Time `json:"last_submission_at,omitempty"`
}

// ContestBestSolution is the per (contest, user, challenge) best snapshot kept
// alongside the leaderboard, replaced wholesale on every rebuild.
type ContestBestSolution struct {
	ContestID   string    `json:"contest_id"`
	UserID      string    `json:"user_id"`
	ChallengeID string    `json:"challenge_id"`
	Score       int       `json:"score"`
	CreatedAt   time.Time `json:"created_at"`
}

type GlobalLeaderboardEntry struct {
	Rank             int    `json:"rank"`
	UserID           string `json:"user_id"`
	Username         string `json:"username"`
	TotalScore       int    `json:"total_score"`
	ChallengesSolved int    `json:"challenges_solved"`
	RankTitle        string `json:"rank_title"`
}
