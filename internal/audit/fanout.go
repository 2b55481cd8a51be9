package audit

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/NicholasJacob1990/litgo-match/internal/storage"
)

// FanoutSink writes through primary inside the caller's transaction —
// its failure is the one that propagates, per spec §4.6 — then forwards
// the same records to each secondary sink outside that transaction,
// best-effort, for the real-time LTR feature store. A secondary failure
// is logged, never returned.
type FanoutSink struct {
	primary    Sink
	secondary  []Sink
	logger     *zap.Logger
	forwardTTL time.Duration
}

// NewFanout wires primary as the transactional audit sink and secondary
// as additional, non-authoritative forwards (e.g. a StreamSink to the
// audit collector).
func NewFanout(primary Sink, logger *zap.Logger, secondary ...Sink) *FanoutSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FanoutSink{primary: primary, secondary: secondary, logger: logger, forwardTTL: 5 * time.Second}
}

func (f *FanoutSink) WriteRecommend(ctx context.Context, q storage.Querier, records []RecommendRecord) error {
	if err := f.primary.WriteRecommend(ctx, q, records); err != nil {
		return err
	}
	f.forward(func(fctx context.Context, s Sink) error { return s.WriteRecommend(fctx, nil, records) })
	return nil
}

func (f *FanoutSink) WriteFeedback(ctx context.Context, q storage.Querier, record FeedbackRecord) error {
	if err := f.primary.WriteFeedback(ctx, q, record); err != nil {
		return err
	}
	f.forward(func(fctx context.Context, s Sink) error { return s.WriteFeedback(fctx, nil, record) })
	return nil
}

func (f *FanoutSink) forward(fn func(ctx context.Context, s Sink) error) {
	for _, s := range f.secondary {
		fctx, cancel := context.WithTimeout(context.Background(), f.forwardTTL)
		if err := fn(fctx, s); err != nil {
			f.logger.Warn("audit fanout: secondary sink write failed", zap.Error(err))
		}
		cancel()
	}
}
