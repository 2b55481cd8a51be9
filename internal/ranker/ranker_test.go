package ranker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/NicholasJacob1990/litgo-match/internal/cache"
	"github.com/NicholasJacob1990/litgo-match/internal/litmatch"
	"github.com/NicholasJacob1990/litgo-match/internal/weights"
)

func embedding(seed float32) []float32 {
	v := make([]float32, litmatch.EmbeddingDim)
	for i := range v {
		v[i] = seed
	}
	return v
}

func testCase() *litmatch.Case {
	return &litmatch.Case{
		ID:               "case_1",
		Area:             "Trabalhista",
		Subarea:          "Rescisao",
		UrgencyHours:     48,
		Coords:           litmatch.LatLon{Lat: -23.55, Lon: -46.63},
		Complexity:       litmatch.ComplexityMedium,
		SummaryEmbedding: embedding(1),
	}
}

func testLawyer(id string, successRate float64, cases30d int, gender string) *litmatch.Lawyer {
	var diversity *litmatch.Diversity
	if gender != "" {
		diversity = &litmatch.Diversity{Gender: gender}
	}
	return &litmatch.Lawyer{
		ID:            id,
		TagsExpertise: []string{"Trabalhista"},
		GeoLatLon:     litmatch.LatLon{Lat: -23.55, Lon: -46.63},
		Curriculo: litmatch.Curriculo{
			AnosExperiencia: 10,
			NumPublicacoes:  2,
			PosGraduacoes:   []litmatch.PosGraduacao{{Level: litmatch.Mestrado, Area: "Trabalhista"}},
		},
		KPI: litmatch.KPI{
			SuccessRate:      successRate,
			Cases30d:         cases30d,
			CapacidadeMensal: 30,
			AvaliacaoMedia:   4.5,
			TempoRespostaH:   12,
			CVScore:          0.7,
			SuccessStatus:    litmatch.StatusVerified,
		},
		KPISoftSkill:              0.6,
		CasosHistoricosEmbeddings: [][]float32{embedding(1)},
		CaseOutcomes:              []bool{true},
		ReviewTexts:               []string{"Excelente profissional super atencioso e dedicado ao meu caso trabalhista"},
		Diversity:                 diversity,
	}
}

func newTestRanker(t *testing.T) *Ranker {
	t.Helper()
	r := weights.New("", nil)
	c := cache.New(cache.NewInMemory(0), time.Minute, nil)
	return New(r, c, nil)
}

func TestRankReturnsSortedEliteCluster(t *testing.T) {
	rk := newTestRanker(t)
	ctx := context.Background()
	c := testCase()
	candidates := []*litmatch.Lawyer{
		testLawyer("adv_1", 0.95, 5, "F"),
		testLawyer("adv_2", 0.0, 30, "F"),
		testLawyer("adv_3", 0.90, 5, "M"),
	}

	ranked, err := rk.Rank(ctx, c, candidates, 0, "balanced")
	if err != nil {
		t.Fatalf("rank failed: %v", err)
	}
	if len(ranked) == 0 {
		t.Fatalf("expected non-empty elite cluster")
	}
	for i := 1; i < len(ranked); i++ {
		if ranked[i-1].Score.Fair < ranked[i].Score.Fair {
			t.Fatalf("ranked output not sorted by descending fair score at index %d", i)
		}
	}
	for _, rl := range ranked {
		if rl.LawyerID == "adv_2" {
			t.Fatalf("low success-rate lawyer should not survive the elite cluster: %+v", rl)
		}
	}
}

func TestRankTopNTruncates(t *testing.T) {
	rk := newTestRanker(t)
	ctx := context.Background()
	c := testCase()
	candidates := []*litmatch.Lawyer{
		testLawyer("adv_1", 0.9, 5, "F"),
		testLawyer("adv_2", 0.9, 5, "M"),
		testLawyer("adv_3", 0.9, 5, "F"),
	}
	ranked, err := rk.Rank(ctx, c, candidates, 1, "balanced")
	if err != nil {
		t.Fatalf("rank failed: %v", err)
	}
	if len(ranked) != 1 {
		t.Fatalf("expected topN=1 to truncate to a single result, got %d", len(ranked))
	}
}

func TestRankHonorsCancelledContext(t *testing.T) {
	rk := newTestRanker(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := testCase()
	candidates := []*litmatch.Lawyer{testLawyer("adv_1", 0.9, 5, "F")}

	_, err := rk.Rank(ctx, c, candidates, 0, "balanced")
	if err == nil {
		t.Fatalf("expected cancelled context to surface an error")
	}
}

func TestRankDeterministicTieBreakByLawyerID(t *testing.T) {
	rk := newTestRanker(t)
	ctx := context.Background()
	c := testCase()
	// Identical inputs except id -> identical fair score -> identical
	// last_offered_at (zero value) -> must tie-break by lawyer id ascending.
	candidates := []*litmatch.Lawyer{
		testLawyer("adv_b", 0.9, 5, "F"),
		testLawyer("adv_a", 0.9, 5, "F"),
	}
	ranked, err := rk.Rank(ctx, c, candidates, 0, "balanced")
	if err != nil {
		t.Fatalf("rank failed: %v", err)
	}
	if len(ranked) != 2 {
		t.Fatalf("expected both candidates in the elite cluster, got %d", len(ranked))
	}
	if ranked[0].LawyerID != "adv_a" || ranked[1].LawyerID != "adv_b" {
		t.Fatalf("expected deterministic tie-break by ascending lawyer id, got %v then %v",
			ranked[0].LawyerID, ranked[1].LawyerID)
	}
}

func TestRankEmptyCandidates(t *testing.T) {
	rk := newTestRanker(t)
	ranked, err := rk.Rank(context.Background(), testCase(), nil, 0, "balanced")
	if err != nil {
		t.Fatalf("expected no error on empty candidate list, got %v", err)
	}
	if ranked != nil {
		t.Fatalf("expected nil result for empty candidate list, got %v", ranked)
	}
}

func TestRankRejectsInvalidInput(t *testing.T) {
	rk := newTestRanker(t)
	ctx := context.Background()
	candidates := []*litmatch.Lawyer{testLawyer("adv_1", 0.9, 5, "F")}

	cases := map[string]*litmatch.Case{
		"missing area": func() *litmatch.Case {
			c := testCase()
			c.Area = ""
			return c
		}(),
		"empty embedding": func() *litmatch.Case {
			c := testCase()
			c.SummaryEmbedding = nil
			return c
		}(),
		"negative urgency": func() *litmatch.Case {
			c := testCase()
			c.UrgencyHours = -1
			return c
		}(),
		"unknown complexity": func() *litmatch.Case {
			c := testCase()
			c.Complexity = litmatch.Complexity("URGENTISSIMO")
			return c
		}(),
	}

	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := rk.Rank(ctx, c, candidates, 0, "balanced")
			var matchErr *litmatch.MatchError
			if err == nil {
				t.Fatalf("expected InvalidInput error")
			}
			if !errors.As(err, &matchErr) || matchErr.Kind != litmatch.KindInvalidInput {
				t.Fatalf("expected KindInvalidInput, got %v", err)
			}
		})
	}
}

func TestEquityWeightFloorsAtOverload(t *testing.T) {
	l := testLawyer("adv_1", 0.9, 40, "F") // cases30d > capacidade_mensal
	if got := equityWeight(l.KPI); got != overloadFloor {
		t.Fatalf("expected equity weight to floor at %v when overloaded, got %v", overloadFloor, got)
	}
}

func TestDiversityBoostAppliedBelowThreshold(t *testing.T) {
	elite := []litmatch.RankedLawyer{
		{LawyerID: "adv_1", Lawyer: testLawyer("adv_1", 0.9, 5, "F"), Score: litmatch.ScoreBreakdown{Raw: 0.8}},
		{LawyerID: "adv_2", Lawyer: testLawyer("adv_2", 0.9, 5, "F"), Score: litmatch.ScoreBreakdown{Raw: 0.8}},
		{LawyerID: "adv_3", Lawyer: testLawyer("adv_3", 0.9, 5, "F"), Score: litmatch.ScoreBreakdown{Raw: 0.8}},
		{LawyerID: "adv_4", Lawyer: testLawyer("adv_4", 0.9, 5, "M"), Score: litmatch.ScoreBreakdown{Raw: 0.8}},
	}
	applyFairness(elite)
	if elite[3].Score.DiversityBoost != diversityLambda {
		t.Fatalf("expected underrepresented group (1/4=0.25 < tau) to receive the diversity boost, got %+v", elite[3].Score)
	}
	if elite[0].Score.DiversityBoost != 0 {
		t.Fatalf("expected majority group (3/4=0.75 >= tau) to receive no boost, got %+v", elite[0].Score)
	}
}
