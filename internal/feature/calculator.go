// Package feature computes the eight normalized match features (A, S, T,
// G, Q, U, R, C) for a (case, lawyer) pair. Every function here is a pure,
// deterministic function of its inputs — no I/O, no clock, no randomness —
// grounded on original_source/algoritmo_match_v2_4/algoritmo_match_v2_4_full.py's
// FeatureCalc class.
package feature

import (
	"fmt"
	"math"
	"strings"

	"github.com/NicholasJacob1990/litgo-match/internal/litmatch"
)

const geoRadiusKm = 50.0

// successMultiplier scales the Bayesian-smoothed success rate by
// verification status.
var successMultiplier = map[litmatch.SuccessStatus]float64{
	litmatch.StatusVerified:   1.0,
	litmatch.StatusPartial:    0.4,
	litmatch.StatusUnverified: 0.0,
}

func clip01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Calculate derives the full feature vector for one (case, lawyer) pair.
func Calculate(c *litmatch.Case, l *litmatch.Lawyer) litmatch.FeatureVector {
	return litmatch.FeatureVector{
		A: AreaMatch(c, l),
		S: Similarity(c, l),
		T: SuccessRate(c, l),
		G: Geo(c, l),
		Q: Qualification(c, l),
		U: Urgency(c, l),
		R: Review(l),
		C: SoftSkill(l),
	}
}

// CalculateStatic derives only the cache-eligible subset {T, G, Q, R}.
func CalculateStatic(c *litmatch.Case, l *litmatch.Lawyer) litmatch.StaticFeatures {
	return litmatch.StaticFeatures{
		T: SuccessRate(c, l),
		G: Geo(c, l),
		Q: Qualification(c, l),
		R: Review(l),
	}
}

// CalculateDynamic derives only the per-request subset {A, S, U, C} — the
// features a cache hit must still recompute because they depend on the
// specific case or can't be safely memoized.
func CalculateDynamic(c *litmatch.Case, l *litmatch.Lawyer) (a, s, u, cSoft float64) {
	return AreaMatch(c, l), Similarity(c, l), Urgency(c, l), SoftSkill(l)
}

// AreaMatch (A): 1 if the case's area is one of the lawyer's expertise
// tags, else 0.
func AreaMatch(c *litmatch.Case, l *litmatch.Lawyer) float64 {
	for _, tag := range l.TagsExpertise {
		if tag == c.Area {
			return 1
		}
	}
	return 0
}

// Similarity (S): mean cosine similarity between the case embedding and
// the lawyer's historical case embeddings, weighted 1.0/0.8 by outcome
// when outcomes are aligned and non-empty. The result is clipped to [0,1].
func Similarity(c *litmatch.Case, l *litmatch.Lawyer) float64 {
	embeds := l.CasosHistoricosEmbeddings
	if len(embeds) == 0 {
		return 0
	}
	sims := make([]float64, len(embeds))
	for i, e := range embeds {
		sims[i] = cosineSimilarity(c.SummaryEmbedding, e)
	}
	if len(l.CaseOutcomes) == len(sims) {
		var weightedSum, weightTotal float64
		for i, won := range l.CaseOutcomes {
			w := 0.8
			if won {
				w = 1.0
			}
			weightedSum += sims[i] * w
			weightTotal += w
		}
		if weightTotal == 0 {
			return 0
		}
		return clip01(weightedSum / weightTotal)
	}
	var sum float64
	for _, s := range sims {
		sum += s
	}
	return clip01(sum / float64(len(sims)))
}

// SuccessRate (T): Bayesian-smoothed success rate, scaled by verification
// status multiplier.
func SuccessRate(c *litmatch.Case, l *litmatch.Lawyer) float64 {
	const alpha, beta = 1.0, 1.0

	n := float64(l.KPI.Cases30d)
	if n == 0 {
		n = 1
	}

	rate := l.KPI.SuccessRate
	key := fmt.Sprintf("%s/%s", c.Area, c.Subarea)
	if granular, ok := l.KPISubarea[key]; ok {
		rate = granular
	}

	wins := math.Round(rate * n)
	base := (wins + alpha) / (n + alpha + beta)
	mult := successMultiplier[l.KPI.SuccessStatus]
	return clip01(base * mult)
}

// Geo (G): clip(1 - haversine_km/50, 0, 1).
func Geo(c *litmatch.Case, l *litmatch.Lawyer) float64 {
	d := haversine(c.Coords.Lat, c.Coords.Lon, l.GeoLatLon.Lat, l.GeoLatLon.Lon)
	return clip01(1 - d/geoRadiusKm)
}

// Qualification (Q): blended experience, titles, publications, CV score.
func Qualification(c *litmatch.Case, l *litmatch.Lawyer) float64 {
	cv := l.Curriculo

	exp := math.Min(1, float64(cv.AnosExperiencia)/25)

	counts := map[litmatch.PostGradLevel]int{}
	areaLower := strings.ToLower(c.Area)
	for _, pg := range cv.PosGraduacoes {
		if strings.Contains(strings.ToLower(pg.Area), areaLower) {
			counts[pg.Level]++
		}
	}
	cap2 := func(n int) float64 { return math.Min(float64(n), 2) }
	titles := 0.1*cap2(counts[litmatch.LatoSensu])/2 +
		0.2*cap2(counts[litmatch.Mestrado])/2 +
		0.3*cap2(counts[litmatch.Doutorado])/2

	pubs := math.Min(1, math.Log1p(float64(cv.NumPublicacoes))/math.Log1p(10))

	base := 0.4*exp + 0.4*titles + 0.2*pubs
	return 0.8*base + 0.2*l.KPI.CVScore
}

// Urgency (U): clip(1 - tempo_resposta_h/urgency_h, 0, 1); 0 when the case
// carries no urgency signal.
func Urgency(c *litmatch.Case, l *litmatch.Lawyer) float64 {
	if c.UrgencyHours <= 0 {
		return 0
	}
	return clip01(1 - l.KPI.TempoRespostaH/float64(c.UrgencyHours))
}

const (
	trustedReviewMinLen       = 20
	trustedReviewMinTTR       = 0.2
	trustedReviewsForFullTrust = 5
)

// Review (R): trust-weighted average rating. A review is "trusted" when
// its stripped length is >= 20 and its type-token ratio exceeds 0.2.
func Review(l *litmatch.Lawyer) float64 {
	trusted := 0
	for _, text := range l.ReviewTexts {
		if isTrustedReview(text) {
			trusted++
		}
	}
	trust := math.Min(1, float64(trusted)/trustedReviewsForFullTrust)
	return clip01((l.KPI.AvaliacaoMedia / 5) * trust)
}

func isTrustedReview(text string) bool {
	stripped := strings.TrimSpace(text)
	if len(stripped) < trustedReviewMinLen {
		return false
	}
	words := strings.Fields(stripped)
	if len(words) == 0 {
		return false
	}
	unique := make(map[string]struct{}, len(words))
	for _, w := range words {
		unique[strings.ToLower(w)] = struct{}{}
	}
	ttr := float64(len(unique)) / float64(len(words))
	return ttr > trustedReviewMinTTR
}

// SoftSkill (C): clip(kpi_softskill, 0, 1).
func SoftSkill(l *litmatch.Lawyer) float64 {
	return clip01(l.KPISoftSkill)
}
