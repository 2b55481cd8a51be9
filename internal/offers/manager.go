package offers

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/NicholasJacob1990/litgo-match/internal/audit"
	"github.com/NicholasJacob1990/litgo-match/internal/litmatch"
	"github.com/NicholasJacob1990/litgo-match/internal/observability/metrics"
	"github.com/NicholasJacob1990/litgo-match/internal/storage"
)

// runner executes fn as one unit of work, committing Store and Sink
// writes atomically. The Postgres-backed Manager runs it inside a real
// pgx transaction; the in-memory Manager runs it under a mutex.
type runner func(ctx context.Context, fn func(ctx context.Context, q storage.Querier) error) error

// Manager is the Offer Manager of spec §4.5: it turns a Ranker result
// into persisted offers plus their "recommend" audit records in one
// atomic step, and drives every subsequent state transition through the
// same boundary as its "feedback" audit record.
type Manager struct {
	run     runner
	store   Store
	lawyers LawyerStore
	sink    audit.Sink
	logger  *zap.Logger
	clock   func() time.Time
}

// NewPostgres builds a Manager whose atomic boundary is a real pgx
// transaction on pool.
func NewPostgres(pool *pgxpool.Pool, store Store, lawyers LawyerStore, sink audit.Sink, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		run:     func(ctx context.Context, fn func(context.Context, storage.Querier) error) error { return storage.WithTx(ctx, pool, fn) },
		store:   store,
		lawyers: lawyers,
		sink:    sink,
		logger:  logger,
		clock:   time.Now,
	}
}

// NewInMemory builds a Manager for tests and the single-process
// deployment profile, serializing its unit of work with a mutex instead
// of a database transaction.
func NewInMemory(store Store, lawyers LawyerStore, sink audit.Sink, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	var mu sync.Mutex
	return &Manager{
		run: func(ctx context.Context, fn func(context.Context, storage.Querier) error) error {
			mu.Lock()
			defer mu.Unlock()
			return fn(ctx, nil)
		},
		store:   store,
		lawyers: lawyers,
		sink:    sink,
		logger:  logger,
		clock:   time.Now,
	}
}

// CreateFromRanking persists a pending offer for each ranked lawyer and
// emits one "recommend" audit record per lawyer in the same atomic step,
// per spec §5's "no offers are persisted and no audit records are
// emitted" cancellation rule: a ctx already cancelled when this is
// called aborts before either write.
func (m *Manager) CreateFromRanking(ctx context.Context, c *litmatch.Case, ranked []litmatch.RankedLawyer) ([]*Offer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(ranked) == 0 {
		return nil, nil
	}

	now := m.clock()
	batch := make([]*Offer, len(ranked))
	records := make([]audit.RecommendRecord, len(ranked))
	lawyerIDs := make([]string, len(ranked))
	for i, rl := range ranked {
		batch[i] = &Offer{
			CaseID:    c.ID,
			LawyerID:  rl.LawyerID,
			Status:    StatusPending,
			Raw:       rl.Score.Raw,
			Fair:      rl.Score.Fair,
			Equity:    rl.Score.Equity,
			SentAt:    now,
			ExpiresAt: now.Add(DefaultTTL),
			UpdatedAt: now,
		}
		records[i] = audit.FromRanked(c.ID, rl, now)
		lawyerIDs[i] = rl.LawyerID
	}

	err := m.run(ctx, func(ctx context.Context, q storage.Querier) error {
		if err := m.store.Create(ctx, q, batch); err != nil {
			return err
		}
		if err := m.sink.WriteRecommend(ctx, q, records); err != nil {
			return err
		}
		// Stamps the ranker's scenario-2 tie-break field (spec §5) so a
		// lawyer offered on this ranking sorts behind a never-offered peer
		// next time, atomically with the offers and audit records above.
		return m.lawyers.UpdateLastOffered(ctx, q, lawyerIDs, now)
	})
	if err != nil {
		return nil, err
	}
	metrics.OfferTransitions.WithLabelValues("none", string(StatusPending)).Add(float64(len(batch)))
	return batch, nil
}

// Interested transitions a pending offer to interested. Only the lawyer
// named on the offer may call this.
func (m *Manager) Interested(ctx context.Context, offerID, actingLawyerID string) (*Offer, error) {
	return m.lawyerTransition(ctx, offerID, actingLawyerID, StatusInterested, audit.LabelAccepted)
}

// Declined transitions a pending offer to declined. Only the lawyer
// named on the offer may call this.
func (m *Manager) Declined(ctx context.Context, offerID, actingLawyerID string) (*Offer, error) {
	return m.lawyerTransition(ctx, offerID, actingLawyerID, StatusDeclined, audit.LabelDeclined)
}

func (m *Manager) lawyerTransition(ctx context.Context, offerID, actingLawyerID string, to Status, label audit.FeedbackLabel) (*Offer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var updated *Offer
	err := m.run(ctx, func(ctx context.Context, q storage.Querier) error {
		current, err := m.store.Get(ctx, q, offerID)
		if err != nil {
			return err
		}
		if current.LawyerID != actingLawyerID {
			return litmatch.Forbidden("lawyer %s may not act on offer %s", actingLawyerID, offerID)
		}
		now := m.clock()
		updated, err = m.store.CompareAndSwapStatus(ctx, q, offerID, StatusPending, to, now)
		if err != nil {
			return err
		}
		return m.sink.WriteFeedback(ctx, q, audit.FeedbackRecord{
			Kind: audit.KindFeedback, CaseID: updated.CaseID, LawyerID: updated.LawyerID,
			Label: label, Raw: updated.Raw, Fair: updated.Fair, Timestamp: now,
		})
	})
	if err != nil {
		return nil, err
	}
	metrics.OfferTransitions.WithLabelValues(string(StatusPending), string(to)).Inc()
	return updated, nil
}

// AcceptContract moves an interested offer to closed and closes every
// other pending/interested offer on the same case, per spec §4.5's
// sibling-close rule. It is the system-triggered counterpart to a
// contract being signed out-of-band, not a lawyer-facing endpoint.
func (m *Manager) AcceptContract(ctx context.Context, offerID string) (*Offer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var accepted *Offer
	err := m.run(ctx, func(ctx context.Context, q storage.Querier) error {
		var err error
		now := m.clock()
		accepted, err = m.store.CompareAndSwapStatus(ctx, q, offerID, StatusInterested, StatusClosed, now)
		if err != nil {
			return err
		}
		if err := m.sink.WriteFeedback(ctx, q, audit.FeedbackRecord{
			Kind: audit.KindFeedback, CaseID: accepted.CaseID, LawyerID: accepted.LawyerID,
			Label: audit.LabelWon, Raw: accepted.Raw, Fair: accepted.Fair, Timestamp: now,
		}); err != nil {
			return err
		}

		closed, err := m.store.CloseSiblings(ctx, q, accepted.CaseID, accepted.ID, now)
		if err != nil {
			return err
		}
		for _, sib := range closed {
			if err := m.sink.WriteFeedback(ctx, q, audit.FeedbackRecord{
				Kind: audit.KindFeedback, CaseID: sib.CaseID, LawyerID: sib.LawyerID,
				Label: audit.LabelLost, Raw: sib.Raw, Fair: sib.Fair, Timestamp: now,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.OfferTransitions.WithLabelValues(string(StatusInterested), string(StatusClosed)).Inc()
	return accepted, nil
}

// ExpirePending batch-transitions due offers to expired, emitting one
// feedback record per offer, atomically. It is idempotent: a second call
// with no newly-due offers returns (0, nil).
func (m *Manager) ExpirePending(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var expired []*Offer
	err := m.run(ctx, func(ctx context.Context, q storage.Querier) error {
		var err error
		now := m.clock()
		expired, err = m.store.ExpirePending(ctx, q, now)
		if err != nil {
			return err
		}
		for _, o := range expired {
			if err := m.sink.WriteFeedback(ctx, q, audit.FeedbackRecord{
				Kind: audit.KindFeedback, CaseID: o.CaseID, LawyerID: o.LawyerID,
				Label: audit.LabelExpired, Raw: o.Raw, Fair: o.Fair, Timestamp: now,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	metrics.OffersExpired.Add(float64(len(expired)))
	return len(expired), nil
}

// ListByCase returns every offer on caseID, authorized against the
// case's resolved owner. requesterClientID and caseOwnerClientID are
// both resolved by the caller (the Offer Manager has no case-ownership
// data of its own).
func (m *Manager) ListByCase(ctx context.Context, caseID, requesterClientID, caseOwnerClientID string) ([]*Offer, error) {
	if requesterClientID != caseOwnerClientID {
		return nil, litmatch.Forbidden("client %s may not view offers for case %s", requesterClientID, caseID)
	}
	var out []*Offer
	err := m.run(ctx, func(ctx context.Context, q storage.Querier) error {
		var err error
		out, err = m.store.ListByCase(ctx, q, caseID)
		return err
	})
	return out, err
}

// ListByLawyer returns a lawyer's own offers, optionally filtered by
// status.
func (m *Manager) ListByLawyer(ctx context.Context, lawyerID string, status *Status) ([]*Offer, error) {
	var out []*Offer
	err := m.run(ctx, func(ctx context.Context, q storage.Querier) error {
		var err error
		out, err = m.store.ListByLawyer(ctx, q, lawyerID, status)
		return err
	})
	return out, err
}
