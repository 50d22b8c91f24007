package application

import (
	"context"

	"github.com/cristianortiz/escrowEngine/internal/auction/domain"
	"github.com/google/uuid"
)

// GetResultUseCase is the read path for settlement outcomes.
type GetResultUseCase struct {
	resultRepo domain.ResultRepository
}

func NewGetResultUseCase(resultRepo domain.ResultRepository) *GetResultUseCase {
	return &GetResultUseCase{resultRepo: resultRepo}
}

func (uc *GetResultUseCase) Execute(ctx context.Context, auctionID uuid.UUID) (*domain.AuctionResult, error) {
	return uc.resultRepo.GetByAuctionID(ctx, auctionID)
}
