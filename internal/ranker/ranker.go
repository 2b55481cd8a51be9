// Package ranker orchestrates the Feature Calculator, Weight Resolver and
// Static Feature Cache into the fair, explainable ranking described in
// spec §4.4. Grounded on original_source/algoritmo_match_v2_4/
// algoritmo_match_v2_4_full.py's MatchEngine.rank for the fairness math,
// and on the teacher's legal-recommendation-engine.go
// (findSimilarCases/GenerateRecommendations) for the Go concurrency shape:
// candidates are scored by an errgroup worker pool writing into a
// pre-sized slice by index, never into a shared map.
package ranker

import (
	"context"
	"runtime"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/NicholasJacob1990/litgo-match/internal/cache"
	"github.com/NicholasJacob1990/litgo-match/internal/feature"
	"github.com/NicholasJacob1990/litgo-match/internal/litmatch"
	"github.com/NicholasJacob1990/litgo-match/internal/observability/metrics"
	"github.com/NicholasJacob1990/litgo-match/internal/weights"
)

const (
	minEpsilon  = 0.05
	epsilonFrac = 0.10
	equityBeta  = 0.30
	overloadFloor = 0.05
	diversityTau    = 0.30
	diversityLambda = 0.05
	unknownGroup    = "UNK"
)

var tracer = otel.Tracer("litgo-match/ranker")

var validComplexities = map[litmatch.Complexity]bool{
	litmatch.ComplexityLow:    true,
	litmatch.ComplexityMedium: true,
	litmatch.ComplexityHigh:   true,
}

// validate enforces spec §4.4's InvalidInput preconditions (missing
// required field, empty embedding, negative urgency, unknown complexity)
// before any feature calculation or weight resolution runs, so a rejected
// case never has a side effect.
func validate(c *litmatch.Case) error {
	if c.Area == "" {
		return litmatch.InvalidInput("case %s is missing required field area", c.ID)
	}
	if len(c.SummaryEmbedding) == 0 {
		return litmatch.InvalidInput("case %s has an empty summary embedding", c.ID)
	}
	if c.UrgencyHours < 0 {
		return litmatch.InvalidInput("case %s has negative urgency_hours %d", c.ID, c.UrgencyHours)
	}
	if !validComplexities[c.Complexity] {
		return litmatch.InvalidInput("case %s has unknown complexity %q", c.ID, c.Complexity)
	}
	return nil
}

// Ranker computes the fair, ranked list of lawyers for a case.
type Ranker struct {
	weights *weights.Resolver
	cache   *cache.StaticFeatureCache
	logger  *zap.Logger
}

// New constructs a Ranker over the given weight resolver and static
// feature cache.
func New(w *weights.Resolver, c *cache.StaticFeatureCache, logger *zap.Logger) *Ranker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ranker{weights: w, cache: c, logger: logger}
}

// Rank is the entry point of spec §4.4. It honors ctx cancellation: if ctx
// is done before scoring completes, Rank returns ctx.Err() and the caller
// must not persist any offer or audit record for this call.
func (r *Ranker) Rank(ctx context.Context, c *litmatch.Case, candidates []*litmatch.Lawyer, topN int, preset string) ([]litmatch.RankedLawyer, error) {
	start := time.Now()
	defer func() { metrics.RankDuration.Observe(time.Since(start).Seconds()) }()

	ctx, span := tracer.Start(ctx, "ranker.Rank", trace.WithAttributes(
		attribute.String("case.id", c.ID),
		attribute.Int("candidates", len(candidates)),
		attribute.String("preset", preset),
	))
	defer span.End()

	if err := validate(c); err != nil {
		metrics.RankCalls.WithLabelValues("invalid_input").Inc()
		return nil, err
	}

	if len(candidates) == 0 {
		return nil, nil
	}

	w := r.weights.Resolve(preset, c.Complexity)

	scored := make([]litmatch.RankedLawyer, len(candidates))
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(workerLimit())
	for i, lw := range candidates {
		i, lw := i, lw
		group.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			scored[i] = r.score(gctx, c, lw, w, preset)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		metrics.RankCalls.WithLabelValues("cancelled").Inc()
		return nil, err
	}

	elite := eliteCluster(scored)
	if len(elite) == 0 {
		metrics.RankCalls.WithLabelValues("empty").Inc()
		return nil, nil
	}

	applyFairness(elite)
	sortByFairness(elite)

	if topN > 0 && len(elite) > topN {
		elite = elite[:topN]
	}

	metrics.RankCalls.WithLabelValues("ok").Inc()
	return elite, nil
}

func workerLimit() int {
	n := runtime.GOMAXPROCS(0)
	if n < 1 {
		return 1
	}
	return n
}

// score computes the full feature vector (via cache or full calculation)
// and the per-feature weighted delta for one candidate.
func (r *Ranker) score(ctx context.Context, c *litmatch.Case, lw *litmatch.Lawyer, w litmatch.WeightVector, preset string) litmatch.RankedLawyer {
	_, span := tracer.Start(ctx, "ranker.score", trace.WithAttributes(attribute.String("lawyer.id", lw.ID)))
	defer span.End()

	var fv litmatch.FeatureVector
	if static, hit := r.cache.Get(ctx, lw.ID); hit {
		metrics.CacheRequests.WithLabelValues("hit").Inc()
		a, s, u, cSoft := feature.CalculateDynamic(c, lw)
		fv = litmatch.FeatureVector{A: a, S: s, T: static.T, G: static.G, Q: static.Q, U: u, R: static.R, C: cSoft}
	} else {
		metrics.CacheRequests.WithLabelValues("miss").Inc()
		fv = feature.Calculate(c, lw)
		r.cache.Put(ctx, lw.ID, litmatch.StaticFeatures{T: fv.T, G: fv.G, Q: fv.Q, R: fv.R})
	}

	delta := make(map[string]float64, len(litmatch.FeatureKeys))
	var raw float64
	for _, k := range litmatch.FeatureKeys {
		d := w[k] * fv.Get(k)
		delta[k] = d
		raw += d
	}

	return litmatch.RankedLawyer{
		LawyerID: lw.ID,
		Lawyer:   lw,
		Score: litmatch.ScoreBreakdown{
			Features:      fv,
			Delta:         delta,
			Raw:           raw,
			WeightsUsed:   w,
			Preset:        preset,
			Complexity:    c.Complexity,
			SuccessStatus: lw.KPI.SuccessStatus,
		},
	}
}

// eliteCluster returns candidates within epsilon of the best raw score,
// per spec §4.4 step 4.
func eliteCluster(scored []litmatch.RankedLawyer) []litmatch.RankedLawyer {
	if len(scored) == 0 {
		return nil
	}
	best := scored[0].Score.Raw
	for _, s := range scored[1:] {
		if s.Score.Raw > best {
			best = s.Score.Raw
		}
	}
	eps := minEpsilon
	if frac := epsilonFrac * best; frac > eps {
		eps = frac
	}
	elite := make([]litmatch.RankedLawyer, 0, len(scored))
	for _, s := range scored {
		if s.Score.Raw >= best-eps {
			elite = append(elite, s)
		}
	}
	return elite
}

func equityWeight(k litmatch.KPI) float64 {
	if k.CapacidadeMensal > k.Cases30d {
		return 1 - float64(k.Cases30d)/float64(k.CapacidadeMensal)
	}
	return overloadFloor
}

func groupKey(lw *litmatch.Lawyer) string {
	if lw.Diversity != nil && lw.Diversity.Gender != "" {
		return lw.Diversity.Gender
	}
	return unknownGroup
}

// applyFairness computes equity, diversity boost and fair score in place
// over the elite slice, per spec §4.4 steps 6-8.
func applyFairness(elite []litmatch.RankedLawyer) {
	groupCounts := make(map[string]int, len(elite))
	for _, e := range elite {
		groupCounts[groupKey(e.Lawyer)]++
	}
	rep := make(map[string]float64, len(groupCounts))
	for g, n := range groupCounts {
		rep[g] = float64(n) / float64(len(elite))
	}

	for i := range elite {
		e := &elite[i]
		eq := equityWeight(e.Lawyer.KPI)
		boost := 0.0
		if rep[groupKey(e.Lawyer)] < diversityTau {
			boost = diversityLambda
		}
		e.Score.Equity = eq
		e.Score.DiversityBoost = boost
		e.Score.Fair = (1-equityBeta)*e.Score.Raw + equityBeta*eq + boost
	}
}

// sortByFairness sorts elite by (-fair, last_offered_at, lawyer.id), the
// fully deterministic order of spec §4.4 step 9.
func sortByFairness(elite []litmatch.RankedLawyer) {
	sort.Slice(elite, func(i, j int) bool {
		a, b := elite[i], elite[j]
		if a.Score.Fair != b.Score.Fair {
			return a.Score.Fair > b.Score.Fair
		}
		if !a.Lawyer.LastOfferedAt.Equal(b.Lawyer.LastOfferedAt) {
			return a.Lawyer.LastOfferedAt.Before(b.Lawyer.LastOfferedAt)
		}
		return a.LawyerID < b.LawyerID
	})
}
