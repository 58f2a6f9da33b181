package service

import (
	"context"

	"ShadowTrade/internal/domain/models"
)

// ComputationNetwork is the client-facing submit/poll protocol of the MPC
// network. Implementations only move ciphertexts.
type ComputationNetwork interface {
	Submit(ctx context.Context, payload models.EncryptedPayload) (requestID string, err error)
	Poll(ctx context.Context, requestID string) (models.PollResult, error)
}

// Evaluator turns a price window and hidden params into a decision without
// revealing either. window holds params.WindowLen() closes, oldest first.
type Evaluator interface {
	Evaluate(ctx context.Context, sessionID string, window []float64, params models.StrategyParams) (models.ComputationResult, error)
}
