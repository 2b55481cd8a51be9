package audit

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/NicholasJacob1990/litgo-match/internal/storage"
)

// Collector is the HTTP/3 server side of StreamSink: it accepts the
// forwarded recommend/feedback records and hands them to a Sink of its
// own (normally a PostgresSink pointed at the same audit_log table, or a
// feature-store writer for the LTR pipeline). db is passed through as the
// Querier on every write; the collector has no transaction of its own to
// offer, each record is its own statement.
type Collector struct {
	sink   Sink
	db     storage.Querier
	logger *zap.Logger
}

func NewCollector(sink Sink, db storage.Querier, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{sink: sink, db: db, logger: logger}
}

func (c *Collector) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/audit/recommend", c.handleRecommend)
	mux.HandleFunc("/audit/feedback", c.handleFeedback)
	mux.HandleFunc("/health", c.handleHealth)
}

func (c *Collector) handleRecommend(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	// StreamSink posts one RecommendRecord object per call (see stream.go's
	// WriteRecommend loop), the same per-record shape handleFeedback
	// decodes below — not a batch array.
	var record RecommendRecord
	if err := sonic.Unmarshal(body, &record); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := c.sink.WriteRecommend(r.Context(), c.db, []RecommendRecord{record}); err != nil {
		c.logger.Error("collector: write recommend failed", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (c *Collector) handleFeedback(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var record FeedbackRecord
	if err := sonic.Unmarshal(body, &record); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := c.sink.WriteFeedback(r.Context(), c.db, record); err != nil {
		c.logger.Error("collector: write feedback failed", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (c *Collector) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
