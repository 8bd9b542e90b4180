package model

import (
	"time"
)

type ChallengeDifficulty string

const (
	DifficultyEasy   ChallengeDifficulty = "Easy"
	DifficultyMedium ChallengeDifficulty = "Medium"
	DifficultyHard   ChallengeDifficulty = "Hard"
)

type Challenge struct {
	ID             string              `json:"id"`
	Title          string              `json:"title"`
	Slug           string              `json:"slug"`
	Description    string              `json:"description"`
	Difficulty     ChallengeDifficulty `json:"difficulty"`
	TargetCode     *string             `json:"target_code,omitempty"` // Admin only view
	TargetImageURL *string             `json:"target_image_url,omitempty"`
	TargetChars    int                 `json:"target_chars"` // Length threshold for the char-count bonus
	CreatedByID    *string             `json:"created_by_id,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
	Hints          []Hint              `json:"hints,omitempty"`
}

type Hint struct {
	ID          string    `json:"id"`
	ChallengeID string    `json:"challenge_id"`
	Text        string    `json:"text"`
	SortOrder   int       `json:"sort_order"`
	CreatedAt   time.Time `json:"created_at"`
}
