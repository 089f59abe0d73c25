package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"pairsense-backend/internal/models"
	"pairsense-backend/internal/repository"
	"pairsense-backend/internal/watch"
)

// Errors surfaced to the caller as descriptive results; handlers map them to
// status codes, nothing here is fatal.
var (
	ErrAlreadyPaired = errors.New("user is already in a pair")
	ErrPairNotFound  = errors.New("invite code not found")
	ErrSelfJoin      = errors.New("cannot join your own invite code")
	ErrAlreadyTaken  = errors.New("invite code is already taken")
)

const inviteCodeAttempts = 10

// PairService is the pairing state machine: unpaired -> waiting -> active.
type PairService struct {
	pairRepo repository.PairStore
	userRepo repository.UserStore
	feed     *watch.Feed
}

// NewPairService creates a new pair service
func NewPairService(pairRepo repository.PairStore, userRepo repository.UserStore, feed *watch.Feed) *PairService {
	return &PairService{
		pairRepo: pairRepo,
		userRepo: userRepo,
		feed:     feed,
	}
}

// CreateInvite creates a waiting pair owned by the caller and returns it.
// The 6-digit code doubles as the pair id the owner hands to the partner.
func (s *PairService) CreateInvite(ctx context.Context, ownerUID string) (*models.Pair, error) {
	owner, err := s.userRepo.GetByID(ctx, ownerUID)
	if err != nil {
		return nil, fmt.Errorf("failed to get owner: %w", err)
	}
	if owner.PairID != nil {
		return nil, ErrAlreadyPaired
	}

	pair := &models.Pair{
		OwnerUID:  ownerUID,
		Status:    models.PairWaiting,
		CreatedAt: time.Now(),
	}

	// Upsert keyed by code makes a retry of the same code idempotent; only
	// a collision with someone else's code draws a new one.
	for attempt := 0; ; attempt++ {
		pair.Code = generateInviteCode()
		err := s.pairRepo.Upsert(ctx, pair)
		if err == nil {
			break
		}
		if !errors.Is(err, repository.ErrCodeTaken) {
			return nil, fmt.Errorf("failed to create pair: %w", err)
		}
		if attempt+1 >= inviteCodeAttempts {
			return nil, fmt.Errorf("failed to generate unique invite code after %d attempts", inviteCodeAttempts)
		}
	}

	if err := s.userRepo.SetPairID(ctx, ownerUID, pair.Code); err != nil {
		return nil, fmt.Errorf("failed to stamp owner pair id: %w", err)
	}

	after := owner.Clone()
	after.PairID = &pair.Code
	s.feed.PublishUser(watch.UserChange{Before: owner, After: after})
	s.feed.PublishPair(watch.PairChange{After: pair.Clone()})

	return pair, nil
}

// JoinPair joins the caller to a waiting pair by invite code. A concurrent
// second joiner observes ErrAlreadyTaken, never a silent overwrite.
func (s *PairService) JoinPair(ctx context.Context, joinerUID, code string) (*models.Pair, error) {
	joiner, err := s.userRepo.GetByID(ctx, joinerUID)
	if err != nil {
		return nil, fmt.Errorf("failed to get joiner: %w", err)
	}

	pair, err := s.pairRepo.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPairNotFound
		}
		return nil, fmt.Errorf("failed to get pair: %w", err)
	}
	// An owner entering their own code is a self-join, even though the
	// invite already stamped their pair id.
	if pair.OwnerUID == joinerUID {
		return nil, ErrSelfJoin
	}
	if joiner.PairID != nil {
		return nil, ErrAlreadyPaired
	}
	if pair.Status == models.PairActive {
		return nil, ErrAlreadyTaken
	}

	joined, err := s.pairRepo.Join(ctx, code, joinerUID)
	if err != nil {
		return nil, fmt.Errorf("failed to join pair: %w", err)
	}
	if !joined {
		// Lost the race to another joiner between the read and the CAS.
		return nil, ErrAlreadyTaken
	}

	before := pair.Clone()
	pair.PartnerUID = &joinerUID
	pair.Status = models.PairActive

	joinerAfter := joiner.Clone()
	joinerAfter.PairID = &code
	s.feed.PublishUser(watch.UserChange{Before: joiner, After: joinerAfter})
	s.feed.PublishPair(watch.PairChange{Before: before, After: pair.Clone()})

	return pair, nil
}

// GetPair returns the pair for an invite code.
func (s *PairService) GetPair(ctx context.Context, code string) (*models.Pair, error) {
	pair, err := s.pairRepo.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPairNotFound
		}
		return nil, err
	}
	return pair, nil
}

// ResolvePartner returns the other participant's uid, or "" while the pair
// is still waiting.
func ResolvePartner(selfUID string, pair *models.Pair) string {
	if pair == nil {
		return ""
	}
	if pair.OwnerUID == selfUID {
		if pair.PartnerUID == nil {
			return ""
		}
		return *pair.PartnerUID
	}
	return pair.OwnerUID
}

// generateInviteCode draws a random 6-digit numeric code.
func generateInviteCode() string {
	n, _ := rand.Int(rand.Reader, big.NewInt(900000))
	return fmt.Sprintf("%06d", n.Int64()+100000)
}
