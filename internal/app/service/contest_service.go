package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"code_clash/internal/common"
	"code_clash/internal/domain/model"
	"code_clash/internal/domain/repository"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

type ContestService struct {
	contestRepo   repository.ContestRepository
	challengeRepo repository.ChallengeRepository
	txm           repository.TxManager
	now           func() time.Time
}

func NewContestService(contestRepo repository.ContestRepository, challengeRepo repository.ChallengeRepository, txm repository.TxManager) *ContestService {
	return &ContestService{
		contestRepo:   contestRepo,
		challengeRepo: challengeRepo,
		txm:           txm,
		now:           time.Now,
	}
}

type CreateContestRequest struct {
	Title        string    `json:"title" validate:"required,min=3,max=120"`
	StartTime    time.Time `json:"start_time" validate:"required"`
	EndTime      time.Time `json:"end_time" validate:"required"`
	ChallengeIDs []string  `json:"challenge_ids" validate:"required,min=1,dive,required"`
}

func (s *ContestService) CreateContest(ctx context.Context, createdByID string, req CreateContestRequest) (*model.Contest, error) {
	if !req.EndTime.After(req.StartTime) {
		return nil, common.Errorf("contest must end after it starts: %w", common.ErrBadRequest)
	}

	for _, challengeID := range req.ChallengeIDs {
		if _, err := s.challengeRepo.FindChallengeByID(ctx, challengeID); err != nil {
			return nil, common.Errorf("challenge %s not found: %w", challengeID, err)
		}
	}

	contest := &model.Contest{
		ID:           uuid.NewString(),
		Title:        req.Title,
		Slug:         slug.Make(req.Title),
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
		IsActive:     true,
		CreatedByID:  &createdByID,
		ChallengeIDs: req.ChallengeIDs,
	}

	err := s.txm.WithinTx(ctx, func(tx *sql.Tx) error {
		if err := s.contestRepo.CreateContest(ctx, tx, contest); err != nil {
			return common.Errorf("failed to create contest: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return contest, nil
}

func (s *ContestService) GetContest(ctx context.Context, id string) (*model.Contest, error) {
	contest, err := s.contestRepo.FindContestByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("contest not found: %w", err)
	}
	return contest, nil
}

func (s *ContestService) ListContests(ctx context.Context, limit, offset int) ([]model.Contest, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.contestRepo.ListContests(ctx, limit, offset)
}

// JoinContest registers the user as a participant, guaranteeing a
// leaderboard row with score 0 even without submissions. Idempotent.
func (s *ContestService) JoinContest(ctx context.Context, contestID, userID string) error {
	contest, err := s.contestRepo.FindContestByID(ctx, contestID)
	if err != nil {
		return common.Errorf("contest not found: %w", err)
	}
	if contest.Ended(s.now()) {
		return common.Errorf("contest already ended: %w", common.ErrForbidden)
	}

	if err := s.contestRepo.JoinContest(ctx, contestID, userID); err != nil {
		return common.Errorf("failed to join contest: %w", err)
	}
	return nil
}
