package services

import (
	"context"
	"sync"
	"time"

	"pairsense-backend/internal/geomath"
	"pairsense-backend/internal/models"
	"pairsense-backend/internal/repository"
	"pairsense-backend/internal/watch"

	"github.com/rs/zerolog/log"
)

// PresenceSnapshot is what a session sees of the partner, plus the derived
// proximity state.
type PresenceSnapshot struct {
	PartnerUID          string                  `json:"partner_uid,omitempty"`
	PartnerName         string                  `json:"partner_name,omitempty"`
	PartnerMood         models.MoodCode         `json:"partner_mood,omitempty"`
	PartnerLastOpenedAt *time.Time              `json:"partner_last_opened_at,omitempty"`
	PartnerWeather      *models.WeatherSnapshot `json:"partner_weather,omitempty"`
	Proximity           models.ProximityState   `json:"proximity"`
}

// Tracker derives one session's view of the partner from a chain of three
// owned subscriptions: own user record -> pair record -> partner record.
// Each level carries its own generation counter, bumped on every
// (re)subscription and on teardown; callbacks tagged with a stale generation
// are discarded, so a later subscription always wins over an earlier one's
// in-flight callback. Rewiring a level tears its children down first.
type Tracker struct {
	uid      string
	feed     *watch.Feed
	userRepo repository.UserStore
	pairRepo repository.PairStore
	emit     func(PresenceSnapshot)

	mu         sync.Mutex
	genSelf    uint64
	genPair    uint64
	genPartner uint64

	unsubSelf    func()
	unsubPair    func()
	unsubPartner func()

	pairID     string
	partnerUID string
	self       *models.User
	partner    *models.User
}

// NewTracker creates a tracker for one user session. emit receives a fresh
// snapshot after every relevant change.
func NewTracker(uid string, feed *watch.Feed, userRepo repository.UserStore, pairRepo repository.PairStore, emit func(PresenceSnapshot)) *Tracker {
	return &Tracker{
		uid:      uid,
		feed:     feed,
		userRepo: userRepo,
		pairRepo: pairRepo,
		emit:     emit,
	}
}

// Start subscribes to the user's own record and seeds the chain with a
// current read.
func (t *Tracker) Start(ctx context.Context) {
	t.mu.Lock()
	t.genSelf++
	gen := t.genSelf
	t.unsubSelf = t.feed.SubscribeUser(t.uid, func(ch watch.UserChange) {
		t.onSelf(ctx, gen, ch.After)
	})
	t.mu.Unlock()

	// Seed after subscribing so no write can fall between read and
	// subscription; a duplicate delivery is harmless.
	if self, err := t.userRepo.GetByID(ctx, t.uid); err == nil {
		t.onSelf(ctx, gen, self)
	} else {
		log.Error().Err(err).Str("user_id", t.uid).Msg("Failed to seed presence tracker")
	}
}

// Stop tears the whole chain down and invalidates in-flight callbacks.
func (t *Tracker) Stop() {
	t.mu.Lock()
	t.genSelf++
	t.genPair++
	t.genPartner++
	self, pair, partner := t.unsubSelf, t.unsubPair, t.unsubPartner
	t.unsubSelf, t.unsubPair, t.unsubPartner = nil, nil, nil
	t.self, t.partner = nil, nil
	t.pairID, t.partnerUID = "", ""
	t.mu.Unlock()

	for _, unsub := range []func(){partner, pair, self} {
		if unsub != nil {
			unsub()
		}
	}
}

func (t *Tracker) onSelf(ctx context.Context, gen uint64, self *models.User) {
	t.mu.Lock()
	if gen != t.genSelf || self == nil {
		t.mu.Unlock()
		return
	}
	t.self = self

	pairID := ""
	if self.PairID != nil {
		pairID = *self.PairID
	}
	rewire := pairID != t.pairID
	t.mu.Unlock()

	if rewire {
		t.resubscribePair(ctx, pairID)
	}
	t.publish()
}

// resubscribePair cancels the pair subscription and its partner child before
// establishing the new one.
func (t *Tracker) resubscribePair(ctx context.Context, pairID string) {
	t.mu.Lock()
	t.genPair++
	t.genPartner++
	gen := t.genPair
	oldPair, oldPartner := t.unsubPair, t.unsubPartner
	t.unsubPair, t.unsubPartner = nil, nil
	t.pairID = pairID
	t.partnerUID = ""
	t.partner = nil

	if pairID != "" {
		t.unsubPair = t.feed.SubscribePair(pairID, func(ch watch.PairChange) {
			t.onPair(ctx, gen, ch.After)
		})
	}
	t.mu.Unlock()

	if oldPartner != nil {
		oldPartner()
	}
	if oldPair != nil {
		oldPair()
	}

	if pairID == "" {
		return
	}
	if pair, err := t.pairRepo.GetByCode(ctx, pairID); err == nil {
		t.onPair(ctx, gen, pair)
	} else {
		log.Debug().Err(err).Str("pair_id", pairID).Msg("Pair read failed while wiring tracker")
	}
}

func (t *Tracker) onPair(ctx context.Context, gen uint64, pair *models.Pair) {
	t.mu.Lock()
	if gen != t.genPair {
		t.mu.Unlock()
		return
	}
	partnerUID := ResolvePartner(t.uid, pair)
	rewire := partnerUID != t.partnerUID
	t.mu.Unlock()

	if rewire {
		t.resubscribePartner(ctx, partnerUID)
	}
	t.publish()
}

func (t *Tracker) resubscribePartner(ctx context.Context, partnerUID string) {
	t.mu.Lock()
	t.genPartner++
	gen := t.genPartner
	old := t.unsubPartner
	t.unsubPartner = nil
	t.partnerUID = partnerUID
	t.partner = nil

	if partnerUID != "" {
		t.unsubPartner = t.feed.SubscribeUser(partnerUID, func(ch watch.UserChange) {
			t.onPartner(gen, ch.After)
		})
	}
	t.mu.Unlock()

	if old != nil {
		old()
	}

	if partnerUID == "" {
		return
	}
	if partner, err := t.userRepo.GetByID(ctx, partnerUID); err == nil {
		t.onPartner(gen, partner)
	} else {
		log.Debug().Err(err).Str("partner_id", partnerUID).Msg("Partner read failed while wiring tracker")
	}
}

func (t *Tracker) onPartner(gen uint64, partner *models.User) {
	t.mu.Lock()
	if gen != t.genPartner {
		t.mu.Unlock()
		return
	}
	t.partner = partner
	t.mu.Unlock()

	t.publish()
}

// Snapshot returns the current presence view.
func (t *Tracker) Snapshot() PresenceSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (t *Tracker) snapshotLocked() PresenceSnapshot {
	snap := PresenceSnapshot{PartnerUID: t.partnerUID}
	if t.partner != nil {
		snap.PartnerName = t.partner.DisplayName
		snap.PartnerMood = t.partner.Mood
		snap.PartnerLastOpenedAt = t.partner.LastOpenedAt
		snap.PartnerWeather = t.partner.Weather
	}
	snap.Proximity = computeProximity(t.self, t.partner)
	return snap
}

func (t *Tracker) publish() {
	if t.emit == nil {
		return
	}
	t.mu.Lock()
	snap := t.snapshotLocked()
	t.mu.Unlock()
	t.emit(snap)
}

// computeProximity derives distance and bearing from self to partner, or the
// cleared state when either location (or the pairing itself) is missing.
func computeProximity(self, partner *models.User) models.ProximityState {
	if self == nil || partner == nil || self.Location == nil || partner.Location == nil {
		return models.ProximityState{}
	}

	a, b := self.Location, partner.Location
	dist := geomath.DistanceKm(a.Lat, a.Lng, b.Lat, b.Lng)
	bearing := geomath.BearingDeg(a.Lat, a.Lng, b.Lat, b.Lng)
	return models.ProximityState{
		DistanceKm:   &dist,
		BearingDeg:   &bearing,
		CompassLabel: geomath.CompassLabel(bearing),
	}
}
