package model

import "time"

type Contest struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Slug         string    `json:"slug"`
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time"`
	IsActive     bool      `json:"is_active"`
	CreatedByID  *string   `json:"created_by_id,omitempty"` // Contest organizer
	CreatedAt    time.Time `json:"created_at"`
	ChallengeIDs []string  `json:"challenge_ids,omitempty"` // Ordered association
}

// Running reports whether the contest counts submissions at the given instant.
func (c *Contest) Running(now time.Time) bool {
	return c.IsActive && !now.Before(c.StartTime) && now.Before(c.EndTime)
}

// Ended reports whether the fair-play window is over and solutions may be shown.
func (c *Contest) Ended(now time.Time) bool {
	return !now.Before(c.EndTime)
}

type ContestParticipant struct {
	ContestID string    `json:"contest_id"`
	UserID    string    `json:"user_id"`
	JoinedAt  time.Time `json:"joined_at"`
}

// ContestSolutionHistory is the append-only event log of scored attempts made
// while the challenge's contest was running. Multiple rows per
// (contest, user, challenge) are expected.
type ContestSolutionHistory struct {
	ID              string    `json:"id"`
	ContestID       string    `json:"contest_id"`
	UserID          string    `json:"user_id"`
	ChallengeID     string    `json:"challenge_id"`
	Code            string    `json:"code"`
	Accuracy        float64   `json:"accuracy"`
	Score           int       `json:"score"`
	DurationSeconds int       `json:"duration_seconds"`
	CreatedAt       time.Time `json:"created_at"`
}
