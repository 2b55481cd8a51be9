package offers

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/NicholasJacob1990/litgo-match/internal/litmatch"
	"github.com/NicholasJacob1990/litgo-match/internal/storage"
)

// PostgresStore persists offers to the `offers` table. Grounded on the
// pack-sibling ashita-ai-akashi/internal/search/outbox.go's style of
// inline SQL with numbered ($n) placeholders and explicit row scanning rather
// than an ORM.
type PostgresStore struct{}

func NewPostgresStore() *PostgresStore { return &PostgresStore{} }

func (s *PostgresStore) Create(ctx context.Context, q storage.Querier, batch []*Offer) error {
	for _, o := range batch {
		if o.ID == "" {
			o.ID = uuid.NewString()
		}
		row := q.QueryRow(ctx,
			`INSERT INTO offers (id, case_id, lawyer_id, status, raw, fair, equity, sent_at, expires_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $8)
			 ON CONFLICT (case_id, lawyer_id) DO UPDATE
			   SET raw = EXCLUDED.raw, fair = EXCLUDED.fair, equity = EXCLUDED.equity,
			       sent_at = EXCLUDED.sent_at, expires_at = EXCLUDED.expires_at, updated_at = EXCLUDED.sent_at
			 RETURNING id`,
			o.ID, o.CaseID, o.LawyerID, o.Status, o.Raw, o.Fair, o.Equity, o.SentAt, o.ExpiresAt,
		)
		if err := row.Scan(&o.ID); err != nil {
			return litmatch.PersistenceFailure(err, "upsert offer for case %s lawyer %s", o.CaseID, o.LawyerID)
		}
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, q storage.Querier, offerID string) (*Offer, error) {
	row := q.QueryRow(ctx,
		`SELECT id, case_id, lawyer_id, status, raw, fair, equity, sent_at, expires_at, responded_at, updated_at
		 FROM offers WHERE id = $1`, offerID)
	return scanOffer(row)
}

func (s *PostgresStore) ListByCase(ctx context.Context, q storage.Querier, caseID string) ([]*Offer, error) {
	rows, err := q.Query(ctx,
		`SELECT id, case_id, lawyer_id, status, raw, fair, equity, sent_at, expires_at, responded_at, updated_at
		 FROM offers WHERE case_id = $1 ORDER BY fair DESC`, caseID)
	if err != nil {
		return nil, litmatch.PersistenceFailure(err, "list offers for case %s", caseID)
	}
	return scanOffers(rows)
}

func (s *PostgresStore) ListByLawyer(ctx context.Context, q storage.Querier, lawyerID string, status *Status) ([]*Offer, error) {
	var rows pgx.Rows
	var err error
	if status != nil {
		rows, err = q.Query(ctx,
			`SELECT id, case_id, lawyer_id, status, raw, fair, equity, sent_at, expires_at, responded_at, updated_at
			 FROM offers WHERE lawyer_id = $1 AND status = $2 ORDER BY sent_at DESC`, lawyerID, *status)
	} else {
		rows, err = q.Query(ctx,
			`SELECT id, case_id, lawyer_id, status, raw, fair, equity, sent_at, expires_at, responded_at, updated_at
			 FROM offers WHERE lawyer_id = $1 ORDER BY sent_at DESC`, lawyerID)
	}
	if err != nil {
		return nil, litmatch.PersistenceFailure(err, "list offers for lawyer %s", lawyerID)
	}
	return scanOffers(rows)
}

func (s *PostgresStore) CompareAndSwapStatus(ctx context.Context, q storage.Querier, offerID string, from, to Status, at time.Time) (*Offer, error) {
	row := q.QueryRow(ctx,
		`UPDATE offers SET status = $1, responded_at = $2, updated_at = $2
		 WHERE id = $3 AND status = $4
		 RETURNING id, case_id, lawyer_id, status, raw, fair, equity, sent_at, expires_at, responded_at, updated_at`,
		to, at, offerID, from,
	)
	o, err := scanOffer(row)
	if err != nil {
		// pgx.ErrNoRows means either the offer doesn't exist or the CAS
		// predicate didn't match the current status; either way the
		// caller-visible error is the same state-machine violation.
		current, getErr := s.Get(ctx, q, offerID)
		if getErr != nil {
			return nil, getErr
		}
		return nil, litmatch.OfferNotPending("offer %s is %s, not %s", offerID, current.Status, from)
	}
	return o, nil
}

func (s *PostgresStore) CloseSiblings(ctx context.Context, q storage.Querier, caseID, exceptOfferID string, at time.Time) ([]*Offer, error) {
	rows, err := q.Query(ctx,
		`UPDATE offers SET status = $1, updated_at = $2
		 WHERE case_id = $3 AND id != $4 AND status IN ($5, $6)
		 RETURNING id, case_id, lawyer_id, status, raw, fair, equity, sent_at, expires_at, responded_at, updated_at`,
		StatusClosed, at, caseID, exceptOfferID, StatusPending, StatusInterested,
	)
	if err != nil {
		return nil, litmatch.PersistenceFailure(err, "close sibling offers for case %s", caseID)
	}
	return scanOffers(rows)
}

func (s *PostgresStore) ExpirePending(ctx context.Context, q storage.Querier, at time.Time) ([]*Offer, error) {
	rows, err := q.Query(ctx,
		`UPDATE offers SET status = $1, updated_at = $2
		 WHERE status = $3 AND expires_at <= $2
		 RETURNING id, case_id, lawyer_id, status, raw, fair, equity, sent_at, expires_at, responded_at, updated_at`,
		StatusExpired, at, StatusPending,
	)
	if err != nil {
		return nil, litmatch.PersistenceFailure(err, "expire pending offers")
	}
	return scanOffers(rows)
}

func scanOffer(row pgx.Row) (*Offer, error) {
	var o Offer
	if err := row.Scan(&o.ID, &o.CaseID, &o.LawyerID, &o.Status, &o.Raw, &o.Fair, &o.Equity, &o.SentAt, &o.ExpiresAt, &o.RespondedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	return &o, nil
}

func scanOffers(rows pgx.Rows) ([]*Offer, error) {
	defer rows.Close()
	var out []*Offer
	for rows.Next() {
		var o Offer
		if err := rows.Scan(&o.ID, &o.CaseID, &o.LawyerID, &o.Status, &o.Raw, &o.Fair, &o.Equity, &o.SentAt, &o.ExpiresAt, &o.RespondedAt, &o.UpdatedAt); err != nil {
			return nil, litmatch.PersistenceFailure(err, "scan offer row")
		}
		out = append(out, &o)
	}
	if err := rows.Err(); err != nil {
		return nil, litmatch.PersistenceFailure(err, "iterate offer rows")
	}
	return out, nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS lawyers (
	id TEXT PRIMARY KEY,
	last_offered_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS offers (
	id UUID PRIMARY KEY,
	case_id TEXT NOT NULL,
	lawyer_id TEXT NOT NULL,
	status TEXT NOT NULL,
	raw DOUBLE PRECISION NOT NULL,
	fair DOUBLE PRECISION NOT NULL,
	equity DOUBLE PRECISION NOT NULL,
	sent_at TIMESTAMPTZ NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL,
	responded_at TIMESTAMPTZ,
	updated_at TIMESTAMPTZ NOT NULL,
	UNIQUE (case_id, lawyer_id)
);
CREATE INDEX IF NOT EXISTS offers_case_id_idx ON offers (case_id);
CREATE INDEX IF NOT EXISTS offers_lawyer_id_idx ON offers (lawyer_id);
CREATE INDEX IF NOT EXISTS offers_pending_expiry_idx ON offers (status, expires_at) WHERE status = 'pending';

CREATE TABLE IF NOT EXISTS audit_log (
	id BIGSERIAL PRIMARY KEY,
	kind TEXT NOT NULL,
	case_id TEXT NOT NULL,
	lawyer_id TEXT NOT NULL,
	payload JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS audit_log_case_id_idx ON audit_log (case_id);
`

// Migrate applies the lawyers/offers/audit_log schema. It is idempotent.
func Migrate(ctx context.Context, q storage.Querier) error {
	_, err := q.Exec(ctx, schemaDDL)
	return err
}
