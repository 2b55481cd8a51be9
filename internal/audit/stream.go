package audit

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/quic-go/quic-go/http3"

	"github.com/NicholasJacob1990/litgo-match/internal/litmatch"
	"github.com/NicholasJacob1990/litgo-match/internal/storage"
)

// StreamSink forwards audit records over HTTP/3 to the durable
// cmd/audit-collector process, the way the teacher's
// legal-ai-quic-server.go exposes a POST endpoint behind an http3.Server.
// It never participates in the offers transaction directly — it is meant
// to sit behind a transactionally-committed Sink (e.g. PostgresSink) as
// a secondary, best-effort forward for the real-time LTR feature store.
type StreamSink struct {
	client   *http.Client
	endpoint string
}

// NewStreamSink dials endpoint (e.g. "https://audit-collector:4434") over
// HTTP/3. insecureSkipVerify mirrors the teacher's self-signed
// generateTLSConfig() for same-cluster collector traffic.
func NewStreamSink(endpoint string, insecureSkipVerify bool) *StreamSink {
	return &StreamSink{
		endpoint: endpoint,
		client: &http.Client{
			Transport: &http3.RoundTripper{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: insecureSkipVerify},
			},
			Timeout: 5 * time.Second,
		},
	}
}

func (s *StreamSink) WriteRecommend(ctx context.Context, _ storage.Querier, records []RecommendRecord) error {
	for _, r := range records {
		if err := s.post(ctx, "/audit/recommend", r); err != nil {
			return litmatch.PersistenceFailure(err, "stream recommend record for case %s lawyer %s", r.CaseID, r.LawyerID)
		}
	}
	return nil
}

func (s *StreamSink) WriteFeedback(ctx context.Context, _ storage.Querier, record FeedbackRecord) error {
	if err := s.post(ctx, "/audit/feedback", record); err != nil {
		return litmatch.PersistenceFailure(err, "stream feedback record for case %s lawyer %s", record.CaseID, record.LawyerID)
	}
	return nil
}

func (s *StreamSink) post(ctx context.Context, path string, payload any) error {
	body, err := sonic.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("audit collector returned status %d", resp.StatusCode)
	}
	return nil
}
