package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"pairsense-backend/internal/models"
	"pairsense-backend/internal/repository"
	"pairsense-backend/internal/watch"

	"github.com/rs/zerolog/log"
)

// TriggerPipeline reacts to user-record writes. Delivery is at-least-once
// and two events for the same user may race, so both effect paths are
// idempotent merges against derived-only fields: the weather write never
// touches location, and the open notification fires only on a strictly
// newer timestamp.
type TriggerPipeline struct {
	userRepo   repository.UserStore
	pairRepo   repository.PairStore
	weather    WeatherLookup
	dispatcher *Dispatcher
	feed       *watch.Feed
	// tolerance is the per-axis degree band below which a move is jitter.
	tolerance float64
	// debounce widens "strictly newer" for the open notification; zero
	// means any strictly newer open counts.
	debounce time.Duration
	now      func() time.Time
}

// NewTriggerPipeline creates a new change trigger pipeline
func NewTriggerPipeline(
	userRepo repository.UserStore,
	pairRepo repository.PairStore,
	weather WeatherLookup,
	dispatcher *Dispatcher,
	feed *watch.Feed,
	tolerance float64,
	debounce time.Duration,
) *TriggerPipeline {
	return &TriggerPipeline{
		userRepo:   userRepo,
		pairRepo:   pairRepo,
		weather:    weather,
		dispatcher: dispatcher,
		feed:       feed,
		tolerance:  tolerance,
		debounce:   debounce,
		now:        time.Now,
	}
}

// HandleUserChange is invoked once per user-record write with the before and
// after state. A single write may trigger zero, one or both effects; they
// are independent and order-insensitive, and every failure is logged and
// dropped rather than retried.
func (p *TriggerPipeline) HandleUserChange(ctx context.Context, before, after *models.User) {
	if after == nil {
		return
	}

	if p.shouldRefreshWeather(before, after) {
		if err := p.refreshWeather(ctx, after); err != nil {
			log.Error().Err(err).Str("user_id", after.ID).Msg("Weather refresh failed")
		}
	}

	if p.shouldNotifyOpen(before, after) {
		if err := p.notifyPartnerOpened(ctx, after); err != nil {
			log.Error().Err(err).Str("user_id", after.ID).Msg("Partner open notification failed")
		}
	}
}

// shouldRefreshWeather fires when a valid location appeared or moved beyond
// the jitter tolerance. The weather write itself never modifies location,
// which breaks the trigger cycle.
func (p *TriggerPipeline) shouldRefreshWeather(before, after *models.User) bool {
	loc := after.Location
	if loc == nil || math.IsNaN(loc.Lat) || math.IsNaN(loc.Lng) {
		return false
	}
	if before == nil || before.Location == nil {
		return true
	}
	return math.Abs(before.Location.Lat-loc.Lat) > p.tolerance ||
		math.Abs(before.Location.Lng-loc.Lng) > p.tolerance
}

// shouldNotifyOpen fires when lastOpenedAt advanced. Equal or older
// timestamps are duplicate deliveries and stay silent; a configured
// debounce window additionally folds rapid re-opens into one event.
func (p *TriggerPipeline) shouldNotifyOpen(before, after *models.User) bool {
	if after.LastOpenedAt == nil {
		return false
	}
	if before == nil || before.LastOpenedAt == nil {
		return true
	}
	advanced := after.LastOpenedAt.Sub(*before.LastOpenedAt)
	if advanced <= 0 {
		return false
	}
	return advanced > p.debounce
}

func (p *TriggerPipeline) refreshWeather(ctx context.Context, after *models.User) error {
	snapshot, err := p.weather.Lookup(ctx, after.Location.Lat, after.Location.Lng)
	if err != nil {
		return fmt.Errorf("weather lookup: %w", err)
	}

	snapshot.UpdatedAt = p.now()
	if err := p.userRepo.SetWeather(ctx, after.ID, *snapshot); err != nil {
		return fmt.Errorf("weather write: %w", err)
	}

	// Republish so live sessions watching this record see the enrichment.
	// Location and lastOpenedAt are unchanged between before and after, so
	// neither effect fires again on the republished event.
	enriched := after.Clone()
	enriched.Weather = snapshot
	p.feed.PublishUser(watch.UserChange{Before: after.Clone(), After: enriched})

	log.Info().
		Str("user_id", after.ID).
		Str("condition", string(snapshot.Condition)).
		Msg("Weather refreshed")
	return nil
}

func (p *TriggerPipeline) notifyPartnerOpened(ctx context.Context, after *models.User) error {
	if p.dispatcher == nil {
		log.Debug().Str("user_id", after.ID).Msg("Push disabled, skip open notification")
		return nil
	}
	if after.PairID == nil {
		log.Debug().Str("user_id", after.ID).Msg("No pair, skip open notification")
		return nil
	}

	pair, err := p.pairRepo.GetByCode(ctx, *after.PairID)
	if err != nil {
		return fmt.Errorf("pair lookup: %w", err)
	}

	partnerUID := ResolvePartner(after.ID, pair)
	if partnerUID == "" {
		log.Debug().Str("user_id", after.ID).Str("pair_id", pair.Code).Msg("Pair still waiting, skip open notification")
		return nil
	}

	partner, err := p.userRepo.GetByID(ctx, partnerUID)
	if err != nil {
		return fmt.Errorf("partner lookup: %w", err)
	}
	if len(partner.NotificationTokens) == 0 {
		log.Debug().Str("partner_id", partnerUID).Msg("Partner has no tokens, skip open notification")
		return nil
	}

	fromName := after.DisplayName
	if fromName == "" {
		fromName = "Your partner"
	}

	payload := PushPayload{
		Title: "pairsense",
		Body:  fmt.Sprintf("%s opened the app", fromName),
		Data: map[string]string{
			"type":    "partner_opened",
			"fromUid": after.ID,
			"pairId":  pair.Code,
		},
	}

	result, err := p.dispatcher.Send(ctx, partnerUID, partner.NotificationTokens, payload)
	if err != nil {
		return fmt.Errorf("dispatch: %w", err)
	}

	log.Info().
		Str("from_uid", after.ID).
		Str("to_uid", partnerUID).
		Int("success", result.SuccessCount).
		Int("failure", result.FailureCount).
		Msg("Sent open notification to partner")
	return nil
}
