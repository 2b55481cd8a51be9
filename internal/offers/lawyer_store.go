package offers

import (
	"context"
	"sync"
	"time"

	"github.com/NicholasJacob1990/litgo-match/internal/litmatch"
	"github.com/NicholasJacob1990/litgo-match/internal/storage"
)

// LawyerStore is the narrow write boundary CreateFromRanking uses to stamp
// last_offered_at on every lawyer an offer batch goes out to, in the same
// atomic step as the offer/audit writes. It is deliberately not the full
// lawyer profile store (feature calculation reads Lawyer records from
// whatever owns case/candidate ingestion, out of this package's scope) —
// just the one field the Ranker's tie-break (spec §5) depends on.
type LawyerStore interface {
	UpdateLastOffered(ctx context.Context, q storage.Querier, lawyerIDs []string, at time.Time) error
}

// MemoryLawyerStore is an in-process LawyerStore for tests and the
// single-process deployment profile.
type MemoryLawyerStore struct {
	mu            sync.Mutex
	LastOfferedAt map[string]time.Time
}

func NewMemoryLawyerStore() *MemoryLawyerStore {
	return &MemoryLawyerStore{LastOfferedAt: map[string]time.Time{}}
}

func (s *MemoryLawyerStore) UpdateLastOffered(_ context.Context, _ storage.Querier, lawyerIDs []string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range lawyerIDs {
		s.LastOfferedAt[id] = at
	}
	return nil
}

// PostgresLawyerStore persists last_offered_at to the `lawyers` table.
// Grounded, like PostgresStore, on the pack-sibling
// ashita-ai-akashi/internal/search/outbox.go's inline-SQL style.
type PostgresLawyerStore struct{}

func NewPostgresLawyerStore() *PostgresLawyerStore { return &PostgresLawyerStore{} }

func (s *PostgresLawyerStore) UpdateLastOffered(ctx context.Context, q storage.Querier, lawyerIDs []string, at time.Time) error {
	for _, id := range lawyerIDs {
		_, err := q.Exec(ctx,
			`INSERT INTO lawyers (id, last_offered_at) VALUES ($1, $2)
			 ON CONFLICT (id) DO UPDATE SET last_offered_at = EXCLUDED.last_offered_at`,
			id, at,
		)
		if err != nil {
			return litmatch.PersistenceFailure(err, "update last_offered_at for lawyer %s", id)
		}
	}
	return nil
}
