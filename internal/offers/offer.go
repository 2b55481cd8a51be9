// Package offers implements the Offer Manager of spec §4.5: it persists
// a ranking as pending offers, drives the state machine, and closes
// sibling offers once one is accepted. Grounded on
// original_source/backend/services/offer_service.py
// (create_offers_from_ranking/update_offer_status/close_other_offers/
// expire_pending_offers) for the exact lifecycle, and on the teacher's
// pack-sibling ashita-ai-akashi/internal/search/outbox.go for the
// pgx transaction shape reused here via internal/storage.
package offers

import "time"

// Status is one state in the offer lifecycle of spec §4.5.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInterested Status = "interested"
	StatusDeclined   Status = "declined"
	StatusExpired    Status = "expired"
	StatusClosed     Status = "closed"
)

// DefaultTTL is the time an offer stays pending before it is eligible
// for expiration.
const DefaultTTL = 24 * time.Hour

// Offer is owned by the Offer Manager; its score fields are a frozen
// snapshot of the score breakdown at creation time, used both for
// sorting an offer list and as the feedback record's {raw, fair}.
type Offer struct {
	ID          string
	CaseID      string
	LawyerID    string
	Status      Status
	Raw         float64
	Fair        float64
	Equity      float64
	SentAt      time.Time
	ExpiresAt   time.Time
	RespondedAt *time.Time
	UpdatedAt   time.Time
}
