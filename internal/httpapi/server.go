// Package httpapi is the gin host for the matchmaking engine, grounded on
// the teacher's unified-rag-service/main.go (service-struct-with-handler-
// methods, gin.New()+Logger()+Recovery(), route groups, ShouldBindJSON)
// and cuda-service-worker.go (c.Param for path ids).
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/NicholasJacob1990/litgo-match/internal/cache"
	"github.com/NicholasJacob1990/litgo-match/internal/feature"
	"github.com/NicholasJacob1990/litgo-match/internal/litmatch"
	"github.com/NicholasJacob1990/litgo-match/internal/observability/metrics"
	"github.com/NicholasJacob1990/litgo-match/internal/offers"
	"github.com/NicholasJacob1990/litgo-match/internal/ranker"
	"github.com/NicholasJacob1990/litgo-match/internal/weights"
)

// Service wires the Ranker, Offer Manager and the two operational controls
// of spec §6 (weight reload, cache invalidation) into gin handlers.
type Service struct {
	ranker       *ranker.Ranker
	offerManager *offers.Manager
	resolver     *weights.Resolver
	staticCache  *cache.StaticFeatureCache
	logger       *zap.Logger
}

// NewService builds the HTTP host over already-constructed engine
// components; cmd/matchd owns their lifecycle (DB pools, Redis clients).
func NewService(r *ranker.Ranker, om *offers.Manager, resolver *weights.Resolver, sc *cache.StaticFeatureCache, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{ranker: r, offerManager: om, resolver: resolver, staticCache: sc, logger: logger}
}

// Router builds the full route table of spec §6.
func (s *Service) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	v1 := r.Group("/v1")
	{
		v1.POST("/cases/:case_id/rank", s.rankHandler)
		v1.POST("/offers/:offer_id/interested", s.interestedHandler)
		v1.POST("/offers/:offer_id/declined", s.declinedHandler)
		v1.GET("/cases/:case_id/offers", s.listCaseOffersHandler)

		admin := v1.Group("/admin")
		{
			admin.POST("/weights/reload", s.reloadWeightsHandler)
			admin.POST("/cache/:lawyer_id/invalidate", s.invalidateCacheHandler)
			admin.POST("/offers/expire", s.expireOffersHandler)
		}
	}

	r.GET("/healthz", s.healthHandler)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	return r
}

// rankRequest is the external DTO for POST /v1/cases/:case_id/rank. Area,
// subarea and complexity are resolved by the caller; this host only ranks
// and persists, it does not own case ingestion.
type rankRequest struct {
	Area             string              `json:"area" binding:"required"`
	Subarea          string              `json:"subarea"`
	UrgencyHours     int                 `json:"urgency_hours"`
	Coords           litmatch.LatLon     `json:"coords"`
	Complexity       litmatch.Complexity `json:"complexity"`
	SummaryEmbedding []float32           `json:"summary_embedding" binding:"required"`
	Candidates       []*litmatch.Lawyer  `json:"candidates" binding:"required"`
	Preset           string              `json:"preset"`
	TopN             int                 `json:"top_n"`
}

func (s *Service) rankHandler(c *gin.Context) {
	caseID := c.Param("case_id")
	var req rankRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	matchCase := &litmatch.Case{
		ID: caseID, Area: req.Area, Subarea: req.Subarea,
		UrgencyHours: req.UrgencyHours, Coords: req.Coords,
		Complexity: req.Complexity, SummaryEmbedding: req.SummaryEmbedding,
	}

	ranked, err := s.ranker.Rank(c.Request.Context(), matchCase, req.Candidates, req.TopN, req.Preset)
	if err != nil {
		s.writeError(c, err)
		return
	}

	created, err := s.offerManager.CreateFromRanking(c.Request.Context(), matchCase, ranked)
	if err != nil {
		s.writeError(c, err)
		return
	}

	out := make([]litmatch.MatchResult, len(ranked))
	for i, rl := range ranked {
		lw := rl.Lawyer
		out[i] = litmatch.MatchResult{
			LawyerID:   rl.LawyerID,
			Raw:        rl.Score.Raw,
			Fair:       rl.Score.Fair,
			Equity:     rl.Score.Equity,
			DistanceKm: feature.HaversineKm(matchCase.Coords.Lat, matchCase.Coords.Lon, lw.GeoLatLon.Lat, lw.GeoLatLon.Lon),
			Features:   rl.Score.Features,
			Delta:      rl.Score.Delta,
		}
	}
	c.JSON(http.StatusOK, gin.H{"results": out, "offers_created": len(created)})
}

func (s *Service) interestedHandler(c *gin.Context) {
	s.transition(c, s.offerManager.Interested)
}

func (s *Service) declinedHandler(c *gin.Context) {
	s.transition(c, s.offerManager.Declined)
}

// transition runs a lawyer-scoped state transition. lawyer_id is trusted
// from the X-Lawyer-ID header set by the gateway; authenticating that
// header is out of scope here (spec §1).
func (s *Service) transition(c *gin.Context, fn func(ctx context.Context, offerID, lawyerID string) (*offers.Offer, error)) {
	offerID := c.Param("offer_id")
	lawyerID := c.GetHeader("X-Lawyer-ID")
	if lawyerID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing X-Lawyer-ID header"})
		return
	}
	o, err := fn(c.Request.Context(), offerID, lawyerID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

// offersListResponse is the external shape of GET /v1/cases/:case_id/offers,
// mirroring offer_service.get_offer_stats plus get_offers_by_case.
type offersListResponse struct {
	CaseID     string          `json:"case_id"`
	Offers     []*offers.Offer `json:"offers"`
	Total      int             `json:"total"`
	Pending    int             `json:"pending"`
	Interested int             `json:"interested"`
}

func (s *Service) listCaseOffersHandler(c *gin.Context) {
	caseID := c.Param("case_id")
	requester := c.GetHeader("X-Client-ID")
	owner := c.Query("owner_client_id")
	out, err := s.offerManager.ListByCase(c.Request.Context(), caseID, requester, owner)
	if err != nil {
		s.writeError(c, err)
		return
	}

	resp := offersListResponse{CaseID: caseID, Offers: out, Total: len(out)}
	for _, o := range out {
		switch o.Status {
		case offers.StatusPending:
			resp.Pending++
		case offers.StatusInterested:
			resp.Interested++
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Service) reloadWeightsHandler(c *gin.Context) {
	w, err := s.resolver.Reload()
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"active_weights": w})
}

func (s *Service) invalidateCacheHandler(c *gin.Context) {
	lawyerID := c.Param("lawyer_id")
	if err := s.staticCache.Invalidate(c.Request.Context(), lawyerID); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"invalidated": lawyerID})
}

func (s *Service) expireOffersHandler(c *gin.Context) {
	count, err := s.offerManager.ExpirePending(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"expired": count})
}

func (s *Service) writeError(c *gin.Context, err error) {
	var matchErr *litmatch.MatchError
	if !errors.As(err, &matchErr) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	status := http.StatusInternalServerError
	switch matchErr.Kind {
	case litmatch.KindInvalidInput:
		status = http.StatusBadRequest
	case litmatch.KindForbidden:
		status = http.StatusForbidden
	case litmatch.KindOfferNotPending:
		status = http.StatusConflict
	case litmatch.KindPersistenceFailure, litmatch.KindCacheUnavailable, litmatch.KindWeightLoadFailure:
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"error": matchErr.Error(), "kind": matchErr.Kind})
}

func (s *Service) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC()})
}
