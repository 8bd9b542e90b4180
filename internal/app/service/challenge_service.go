package service

import (
	"context"
	"database/sql"
	"fmt"

	"code_clash/internal/common"
	"code_clash/internal/domain/model"
	"code_clash/internal/domain/repository"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

type ChallengeService struct {
	challengeRepo repository.ChallengeRepository
	txm           repository.TxManager
}

func NewChallengeService(challengeRepo repository.ChallengeRepository, txm repository.TxManager) *ChallengeService {
	return &ChallengeService{challengeRepo: challengeRepo, txm: txm}
}

type CreateChallengeRequest struct {
	Title          string                    `json:"title" validate:"required,min=3,max=120"`
	Description    string                    `json:"description" validate:"required"`
	Difficulty     model.ChallengeDifficulty `json:"difficulty" validate:"required,oneof=Easy Medium Hard"`
	TargetCode     *string                   `json:"target_code,omitempty"`
	TargetImageURL *string                   `json:"target_image_url,omitempty"`
	TargetChars    int                       `json:"target_chars" validate:"required,gt=0"`
	Hints          []string                  `json:"hints,omitempty"`
}

func (s *ChallengeService) CreateChallenge(ctx context.Context, createdByID string, req CreateChallengeRequest) (*model.Challenge, error) {
	challenge := &model.Challenge{
		ID:             uuid.NewString(),
		Title:          req.Title,
		Slug:           slug.Make(req.Title),
		Description:    req.Description,
		Difficulty:     req.Difficulty,
		TargetCode:     req.TargetCode,
		TargetImageURL: req.TargetImageURL,
		TargetChars:    req.TargetChars,
		CreatedByID:    &createdByID,
	}

	hints := make([]model.Hint, 0, len(req.Hints))
	for i, text := range req.Hints {
		hints = append(hints, model.Hint{
			ID:          uuid.NewString(),
			ChallengeID: challenge.ID,
			Text:        text,
			SortOrder:   i + 1,
		})
	}

	err := s.txm.WithinTx(ctx, func(tx *sql.Tx) error {
		if err := s.challengeRepo.CreateChallenge(ctx, tx, challenge); err != nil {
			return common.Errorf("failed to create challenge: %w", err)
		}
		if err := s.challengeRepo.AddHints(ctx, tx, challenge.ID, hints); err != nil {
			return common.Errorf("failed to add hints: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	challenge.Hints = hints
	return challenge, nil
}

func (s *ChallengeService) GetChallengeBySlug(ctx context.Context, slug string, role string) (*model.Challenge, error) {
	challenge, err := s.challengeRepo.FindChallengeBySlug(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("challenge not found: %w", err)
	}
	if role != model.RoleAdmin {
		challenge.TargetCode = nil // Target code is the answer; admin only
	}
	return challenge, nil
}

type UpdateChallengeRequest struct {
	Title          string                    `json:"title" validate:"required,min=3,max=120"`
	Description    string                    `json:"description" validate:"required"`
	Difficulty     model.ChallengeDifficulty `json:"difficulty" validate:"required,oneof=Easy Medium Hard"`
	TargetCode     *string                   `json:"target_code,omitempty"`
	TargetImageURL *string                   `json:"target_image_url,omitempty"`
	TargetChars    int                       `json:"target_chars" validate:"required,gt=0"`
}

// UpdateChallenge keeps the slug stable; published links must not break when
// a title is touched up.
func (s *ChallengeService) UpdateChallenge(ctx context.Context, id string, req UpdateChallengeRequest) (*model.Challenge, error) {
	challenge, err := s.challengeRepo.FindChallengeByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("challenge not found: %w", err)
	}

	challenge.Title = req.Title
	challenge.Description = req.Description
	challenge.Difficulty = req.Difficulty
	challenge.TargetCode = req.TargetCode
	challenge.TargetImageURL = req.TargetImageURL
	challenge.TargetChars = req.TargetChars

	if err := s.challengeRepo.UpdateChallenge(ctx, nil, challenge); err != nil {
		return nil, common.Errorf("failed to update challenge: %w", err)
	}
	return challenge, nil
}

func (s *ChallengeService) ListChallenges(ctx context.Context, limit, offset int, difficulty model.ChallengeDifficulty) ([]model.Challenge, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.challengeRepo.ListChallenges(ctx, limit, offset, difficulty)
}

func (s *ChallengeService) DeleteChallenge(ctx context.Context, id string) error {
	if err := s.challengeRepo.DeleteChallenge(ctx, id); err != nil {
		return fmt.Errorf("failed to delete challenge: %w", err)
	}
	return nil
}

// RevealHint returns one hint and records the usage so the scoring penalty
// applies to every later attempt. Viewing the same hint again is free.
func (s *ChallengeService) RevealHint(ctx context.Context, userID, challengeID, hintID string) (*model.Hint, error) {
	hints, err := s.challengeRepo.GetHintsByChallengeID(ctx, challengeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load hints: %w", err)
	}

	for i := range hints {
		if hints[i].ID != hintID {
			continue
		}
		if err := s.challengeRepo.RecordHintUsage(ctx, userID, challengeID, hintID); err != nil {
			return nil, fmt.Errorf("failed to record hint usage: %w", err)
		}
		return &hints[i], nil
	}
	return nil, common.ErrNotFound
}
