package services

import (
	"context"
	"fmt"

	"pairsense-backend/internal/repository"

	"github.com/rs/zerolog/log"
)

// PushPayload is one logical notification fanned out to every device token.
type PushPayload struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

// BatchResult aggregates per-token outcomes of one dispatch.
type BatchResult struct {
	SuccessCount  int
	FailureCount  int
	InvalidTokens []string
}

// Multicaster is the external push provider. A structured invalid-token
// outcome is reported per token in the result; only transport-level failure
// is an error.
type Multicaster interface {
	SendMulticast(ctx context.Context, tokens []string, payload PushPayload) (BatchResult, error)
}

// Dispatcher fans one notification out to a user's tokens, slicing to the
// provider batch limit and cleaning up invalid tokens afterwards.
type Dispatcher struct {
	provider  Multicaster
	userRepo  repository.UserStore
	batchSize int
}

// NewDispatcher creates a new notification dispatcher
func NewDispatcher(provider Multicaster, userRepo repository.UserStore, batchSize int) *Dispatcher {
	if batchSize <= 0 {
		batchSize = 500
	}
	return &Dispatcher{
		provider:  provider,
		userRepo:  userRepo,
		batchSize: batchSize,
	}
}

// Send delivers payload to every token. Individual invalid tokens never fail
// the call; they are removed from ownerUID's token set in one merge write
// after all batches. Only a transport-level provider failure is an error.
func (d *Dispatcher) Send(ctx context.Context, ownerUID string, tokens []string, payload PushPayload) (BatchResult, error) {
	var total BatchResult
	if len(tokens) == 0 {
		return total, nil
	}

	for start := 0; start < len(tokens); start += d.batchSize {
		end := start + d.batchSize
		if end > len(tokens) {
			end = len(tokens)
		}

		res, err := d.provider.SendMulticast(ctx, tokens[start:end], payload)
		total.SuccessCount += res.SuccessCount
		total.FailureCount += res.FailureCount
		total.InvalidTokens = append(total.InvalidTokens, res.InvalidTokens...)
		if err != nil {
			return total, fmt.Errorf("push transport failure: %w", err)
		}
	}

	if len(total.InvalidTokens) > 0 {
		if err := d.userRepo.RemoveTokens(ctx, ownerUID, total.InvalidTokens); err != nil {
			// Cleanup is best effort; the tokens will fail again next time.
			log.Error().
				Err(err).
				Str("user_id", ownerUID).
				Int("tokens", len(total.InvalidTokens)).
				Msg("Failed to remove invalid notification tokens")
		} else {
			log.Info().
				Str("user_id", ownerUID).
				Int("tokens", len(total.InvalidTokens)).
				Msg("Removed invalid notification tokens")
		}
	}

	return total, nil
}
