package offers

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/NicholasJacob1990/litgo-match/internal/litmatch"
	"github.com/NicholasJacob1990/litgo-match/internal/storage"
)

// Store is the persistence boundary of the Offer Manager. Every mutating
// method accepts a storage.Querier so the caller can run it inside the
// same transaction as the paired audit write.
type Store interface {
	Create(ctx context.Context, q storage.Querier, offers []*Offer) error
	Get(ctx context.Context, q storage.Querier, offerID string) (*Offer, error)
	ListByCase(ctx context.Context, q storage.Querier, caseID string) ([]*Offer, error)
	ListByLawyer(ctx context.Context, q storage.Querier, lawyerID string, status *Status) ([]*Offer, error)
	// CompareAndSwapStatus transitions offerID from `from` to `to`,
	// stamping respondedAt and updatedAt. It returns
	// litmatch.OfferNotPending if the offer's current status isn't
	// `from`.
	CompareAndSwapStatus(ctx context.Context, q storage.Querier, offerID string, from, to Status, at time.Time) (*Offer, error)
	// CloseSiblings moves every offer on caseID in {pending, interested}
	// other than exceptOfferID to closed. Idempotent: a second call finds
	// nothing left to close and returns an empty slice and a nil error.
	CloseSiblings(ctx context.Context, q storage.Querier, caseID, exceptOfferID string, at time.Time) ([]*Offer, error)
	// ExpirePending moves every pending offer with expires_at <= at to
	// expired, returning the offers that were moved so the caller can
	// emit one feedback record per expiration.
	ExpirePending(ctx context.Context, q storage.Querier, at time.Time) ([]*Offer, error)
}

// MemoryStore is an in-process Store for tests and the single-process
// deployment profile.
type MemoryStore struct {
	mu     sync.Mutex
	byID   map[string]*Offer
	byPair map[[2]string]string // (case_id, lawyer_id) -> offer id
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: map[string]*Offer{}, byPair: map[[2]string]string{}}
}

func (s *MemoryStore) Create(_ context.Context, _ storage.Querier, batch []*Offer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range batch {
		key := [2]string{o.CaseID, o.LawyerID}
		if id, ok := s.byPair[key]; ok {
			o.ID = id
		} else if o.ID == "" {
			o.ID = uuid.NewString()
		}
		s.byPair[key] = o.ID
		s.byID[o.ID] = o
	}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, _ storage.Querier, offerID string) (*Offer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.byID[offerID]
	if !ok {
		return nil, litmatch.InvalidInput("offer %s not found", offerID)
	}
	cp := *o
	return &cp, nil
}

func (s *MemoryStore) ListByCase(_ context.Context, _ storage.Querier, caseID string) ([]*Offer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Offer
	for _, o := range s.byID {
		if o.CaseID == caseID {
			cp := *o
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Fair > out[j].Fair })
	return out, nil
}

func (s *MemoryStore) ListByLawyer(_ context.Context, _ storage.Querier, lawyerID string, status *Status) ([]*Offer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Offer
	for _, o := range s.byID {
		if o.LawyerID != lawyerID {
			continue
		}
		if status != nil && o.Status != *status {
			continue
		}
		cp := *o
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SentAt.After(out[j].SentAt) })
	return out, nil
}

func (s *MemoryStore) CompareAndSwapStatus(_ context.Context, _ storage.Querier, offerID string, from, to Status, at time.Time) (*Offer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.byID[offerID]
	if !ok {
		return nil, litmatch.InvalidInput("offer %s not found", offerID)
	}
	if o.Status != from {
		return nil, litmatch.OfferNotPending("offer %s is %s, not %s", offerID, o.Status, from)
	}
	o.Status = to
	o.RespondedAt = &at
	o.UpdatedAt = at
	cp := *o
	return &cp, nil
}

func (s *MemoryStore) CloseSiblings(_ context.Context, _ storage.Querier, caseID, exceptOfferID string, at time.Time) ([]*Offer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var closed []*Offer
	for _, o := range s.byID {
		if o.CaseID != caseID || o.ID == exceptOfferID {
			continue
		}
		if o.Status != StatusPending && o.Status != StatusInterested {
			continue
		}
		o.Status = StatusClosed
		o.UpdatedAt = at
		cp := *o
		closed = append(closed, &cp)
	}
	return closed, nil
}

func (s *MemoryStore) ExpirePending(_ context.Context, _ storage.Querier, at time.Time) ([]*Offer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var expired []*Offer
	for _, o := range s.byID {
		if o.Status != StatusPending || o.ExpiresAt.After(at) {
			continue
		}
		o.Status = StatusExpired
		o.UpdatedAt = at
		cp := *o
		expired = append(expired, &cp)
	}
	return expired, nil
}
