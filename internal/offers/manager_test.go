package offers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/NicholasJacob1990/litgo-match/internal/audit"
	"github.com/NicholasJacob1990/litgo-match/internal/litmatch"
)

func newTestManager() (*Manager, *MemoryStore, *audit.MemorySink) {
	store := NewMemoryStore()
	sink := audit.NewMemorySink()
	return NewInMemory(store, NewMemoryLawyerStore(), sink, nil), store, sink
}

func oneRanking(caseID, lawyerID string) []litmatch.RankedLawyer {
	return []litmatch.RankedLawyer{
		{LawyerID: lawyerID, Score: litmatch.ScoreBreakdown{Raw: 0.8, Fair: 0.75, Equity: 0.5}},
	}
}

func TestCreateFromRankingPersistsOfferAndAuditAtomically(t *testing.T) {
	m, _, sink := newTestManager()
	c := &litmatch.Case{ID: "case_1"}

	created, err := m.CreateFromRanking(context.Background(), c, oneRanking("case_1", "adv_1"))
	if err != nil {
		t.Fatalf("create from ranking failed: %v", err)
	}
	if len(created) != 1 || created[0].Status != StatusPending {
		t.Fatalf("expected one pending offer, got %+v", created)
	}
	if len(sink.Recommends) != 1 || sink.Recommends[0].LawyerID != "adv_1" {
		t.Fatalf("expected one recommend audit record, got %+v", sink.Recommends)
	}
}

func TestCreateFromRankingHonorsCancelledContext(t *testing.T) {
	m, _, sink := newTestManager()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.CreateFromRanking(ctx, &litmatch.Case{ID: "case_1"}, oneRanking("case_1", "adv_1"))
	if err == nil {
		t.Fatalf("expected cancelled context to abort offer creation")
	}
	if len(sink.Recommends) != 0 {
		t.Fatalf("expected no audit records on cancellation, got %+v", sink.Recommends)
	}
}

func TestCreateFromRankingStampsLastOfferedAt(t *testing.T) {
	store := NewMemoryStore()
	lawyers := NewMemoryLawyerStore()
	sink := audit.NewMemorySink()
	m := NewInMemory(store, lawyers, sink, nil)
	fixedNow := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m.clock = func() time.Time { return fixedNow }

	ctx := context.Background()
	if _, err := m.CreateFromRanking(ctx, &litmatch.Case{ID: "case_1"}, oneRanking("case_1", "adv_1")); err != nil {
		t.Fatalf("create from ranking failed: %v", err)
	}

	got, ok := lawyers.LastOfferedAt["adv_1"]
	if !ok || !got.Equal(fixedNow) {
		t.Fatalf("expected last_offered_at stamped to %v, got %v (present=%v)", fixedNow, got, ok)
	}
}

func TestOnlyNamedLawyerMayTransition(t *testing.T) {
	m, _, _ := newTestManager()
	ctx := context.Background()
	created, _ := m.CreateFromRanking(ctx, &litmatch.Case{ID: "case_1"}, oneRanking("case_1", "adv_1"))
	offerID := created[0].ID

	_, err := m.Interested(ctx, offerID, "adv_2")
	var matchErr *litmatch.MatchError
	if !errors.As(err, &matchErr) || matchErr.Kind != litmatch.KindForbidden {
		t.Fatalf("expected Forbidden error for mismatched lawyer, got %v", err)
	}
}

func TestOnlyPendingOfferMayTransition(t *testing.T) {
	m, _, _ := newTestManager()
	ctx := context.Background()
	created, _ := m.CreateFromRanking(ctx, &litmatch.Case{ID: "case_1"}, oneRanking("case_1", "adv_1"))
	offerID := created[0].ID

	if _, err := m.Interested(ctx, offerID, "adv_1"); err != nil {
		t.Fatalf("first transition to interested failed: %v", err)
	}
	_, err := m.Interested(ctx, offerID, "adv_1")
	var matchErr *litmatch.MatchError
	if !errors.As(err, &matchErr) || matchErr.Kind != litmatch.KindOfferNotPending {
		t.Fatalf("expected OfferNotPending on re-transition, got %v", err)
	}
}

func TestAcceptContractClosesSiblingsIdempotently(t *testing.T) {
	m, _, sink := newTestManager()
	ctx := context.Background()
	ranking := []litmatch.RankedLawyer{
		{LawyerID: "adv_1", Score: litmatch.ScoreBreakdown{Raw: 0.9, Fair: 0.85}},
		{LawyerID: "adv_2", Score: litmatch.ScoreBreakdown{Raw: 0.8, Fair: 0.7}},
	}
	created, _ := m.CreateFromRanking(ctx, &litmatch.Case{ID: "case_1"}, ranking)

	winner := created[0]
	if _, err := m.Interested(ctx, winner.ID, winner.LawyerID); err != nil {
		t.Fatalf("interested transition failed: %v", err)
	}
	accepted, err := m.AcceptContract(ctx, winner.ID)
	if err != nil {
		t.Fatalf("accept contract failed: %v", err)
	}
	if accepted.Status != StatusClosed {
		t.Fatalf("expected accepted offer closed, got %s", accepted.Status)
	}

	offers, _ := m.ListByCase(ctx, "case_1", "owner", "owner")
	for _, o := range offers {
		if o.Status != StatusClosed {
			t.Fatalf("expected every offer on the case closed, got %+v", o)
		}
	}

	sibClosed := 0
	for _, fb := range sink.Feedbacks {
		if fb.Label == audit.LabelLost {
			sibClosed++
		}
	}
	if sibClosed != 1 {
		t.Fatalf("expected exactly one sibling-lost audit record, got %d", sibClosed)
	}

	// Idempotence: accepting again finds the offer is no longer
	// interested and reports OfferNotPending rather than re-closing.
	_, err = m.AcceptContract(ctx, winner.ID)
	if err == nil {
		t.Fatalf("expected second AcceptContract call to fail with OfferNotPending")
	}
}

func TestExpirePendingEmitsFeedbackRecord(t *testing.T) {
	store := NewMemoryStore()
	sink := audit.NewMemorySink()
	m := NewInMemory(store, NewMemoryLawyerStore(), sink, nil)
	fixedNow := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m.clock = func() time.Time { return fixedNow }

	ctx := context.Background()
	created, _ := m.CreateFromRanking(ctx, &litmatch.Case{ID: "case_1"}, oneRanking("case_1", "adv_1"))
	// Force the offer past its deadline.
	store.mu.Lock()
	store.byID[created[0].ID].ExpiresAt = fixedNow.Add(-time.Hour)
	store.mu.Unlock()

	count, err := m.ExpirePending(ctx)
	if err != nil {
		t.Fatalf("expire pending failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 offer expired, got %d", count)
	}

	offers, _ := m.ListByLawyer(ctx, "adv_1", nil)
	if len(offers) != 1 || offers[0].Status != StatusExpired {
		t.Fatalf("expected the offer to be expired, got %+v", offers)
	}

	found := false
	for _, fb := range sink.Feedbacks {
		if fb.Label == audit.LabelExpired && fb.LawyerID == "adv_1" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected an expired feedback record, got %+v", sink.Feedbacks)
	}

	// Idempotence: a second call with nothing newly due expires nothing.
	count, err = m.ExpirePending(ctx)
	if err != nil || count != 0 {
		t.Fatalf("expected idempotent second expiration call, got count=%d err=%v", count, err)
	}
}

func TestListByCaseForbidsNonOwner(t *testing.T) {
	m, _, _ := newTestManager()
	ctx := context.Background()
	m.CreateFromRanking(ctx, &litmatch.Case{ID: "case_1"}, oneRanking("case_1", "adv_1"))

	_, err := m.ListByCase(ctx, "case_1", "intruder", "owner")
	var matchErr *litmatch.MatchError
	if !errors.As(err, &matchErr) || matchErr.Kind != litmatch.KindForbidden {
		t.Fatalf("expected Forbidden for non-owner case listing, got %v", err)
	}
}
