package audit

import (
	"context"
	"sync"

	"github.com/bytedance/sonic"

	"github.com/NicholasJacob1990/litgo-match/internal/litmatch"
	"github.com/NicholasJacob1990/litgo-match/internal/storage"
)

// Sink is the append-only write side of the audit log. Implementations
// must never drop a record on the paths spec §4.6 calls synchronous:
// a write failure propagates to the caller as litmatch.PersistenceFailure
// instead of being swallowed.
type Sink interface {
	WriteRecommend(ctx context.Context, q storage.Querier, records []RecommendRecord) error
	WriteFeedback(ctx context.Context, q storage.Querier, record FeedbackRecord) error
}

// MemorySink is an in-process Sink for tests and for the single-process
// deployment profile; it ignores the storage.Querier argument since it
// has no real transaction to join.
type MemorySink struct {
	mu         sync.Mutex
	Recommends []RecommendRecord
	Feedbacks  []FeedbackRecord
}

func NewMemorySink() *MemorySink { return &MemorySink{} }

func (s *MemorySink) WriteRecommend(_ context.Context, _ storage.Querier, records []RecommendRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Recommends = append(s.Recommends, records...)
	return nil
}

func (s *MemorySink) WriteFeedback(_ context.Context, _ storage.Querier, record FeedbackRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Feedbacks = append(s.Feedbacks, record)
	return nil
}

// PostgresSink appends audit records to the audit_log table, using the
// sonic codec for the variable-shaped "features"/"delta" payload the way
// the teacher reaches for sonic on every hot JSON path instead of
// encoding/json.
type PostgresSink struct{}

func NewPostgresSink() *PostgresSink { return &PostgresSink{} }

func (s *PostgresSink) WriteRecommend(ctx context.Context, q storage.Querier, records []RecommendRecord) error {
	for _, r := range records {
		payload, err := sonic.Marshal(r)
		if err != nil {
			return litmatch.PersistenceFailure(err, "encode recommend record for case %s lawyer %s", r.CaseID, r.LawyerID)
		}
		if _, err := q.Exec(ctx,
			`INSERT INTO audit_log (kind, case_id, lawyer_id, payload, created_at)
			 VALUES ($1, $2, $3, $4, $5)`,
			KindRecommend, r.CaseID, r.LawyerID, payload, r.Timestamp,
		); err != nil {
			return litmatch.PersistenceFailure(err, "insert recommend record for case %s lawyer %s", r.CaseID, r.LawyerID)
		}
	}
	return nil
}

func (s *PostgresSink) WriteFeedback(ctx context.Context, q storage.Querier, record FeedbackRecord) error {
	payload, err := sonic.Marshal(record)
	if err != nil {
		return litmatch.PersistenceFailure(err, "encode feedback record for case %s lawyer %s", record.CaseID, record.LawyerID)
	}
	if _, err := q.Exec(ctx,
		`INSERT INTO audit_log (kind, case_id, lawyer_id, payload, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		KindFeedback, record.CaseID, record.LawyerID, payload, record.Timestamp,
	); err != nil {
		return litmatch.PersistenceFailure(err, "insert feedback record for case %s lawyer %s", record.CaseID, record.LawyerID)
	}
	return nil
}
