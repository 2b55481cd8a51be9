// Package audit implements the append-only, structured event log of
// spec §4.6: one record per recommendation and per offer state change,
// sufficient to reconstruct an LTR training set. Grounded on
// original_source/algoritmo_match_v2_4/algoritmo_match_v2_4_full.py's
// AUDIT_LOGGER (structured logging, one line per event) and on the
// teacher's use of bytedance/sonic for hot-path JSON encoding.
package audit

import (
	"time"

	"github.com/NicholasJacob1990/litgo-match/internal/litmatch"
)

// Kind distinguishes the two record shapes the log carries.
type Kind string

const (
	KindRecommend Kind = "recommend"
	KindFeedback  Kind = "feedback"
)

// FeedbackLabel is the outcome recorded against a prior recommendation.
type FeedbackLabel string

const (
	LabelAccepted FeedbackLabel = "accepted"
	LabelDeclined FeedbackLabel = "declined"
	LabelExpired  FeedbackLabel = "expired"
	LabelWon      FeedbackLabel = "won"
	LabelLost     FeedbackLabel = "lost"
)

// RecommendRecord is emitted once per lawyer in a rank() top-N result.
type RecommendRecord struct {
	Kind          Kind                  `json:"kind"`
	CaseID        string                `json:"case_id"`
	LawyerID      string                `json:"lawyer_id"`
	Features      litmatch.FeatureVector `json:"features"`
	Delta         map[string]float64    `json:"delta"`
	Raw           float64               `json:"raw"`
	Fair          float64               `json:"fair"`
	Equity        float64               `json:"equity"`
	DiversityBoost float64              `json:"diversity_boost"`
	WeightsUsed   litmatch.WeightVector `json:"weights_used"`
	Preset        string                `json:"preset"`
	Complexity    litmatch.Complexity   `json:"complexity"`
	SuccessStatus litmatch.SuccessStatus `json:"success_status"`
	Timestamp     time.Time             `json:"timestamp"`
}

// FromRanked builds the recommend record for one ranked lawyer.
func FromRanked(caseID string, rl litmatch.RankedLawyer, at time.Time) RecommendRecord {
	return RecommendRecord{
		Kind:           KindRecommend,
		CaseID:         caseID,
		LawyerID:       rl.LawyerID,
		Features:       rl.Score.Features,
		Delta:          rl.Score.Delta,
		Raw:            rl.Score.Raw,
		Fair:           rl.Score.Fair,
		Equity:         rl.Score.Equity,
		DiversityBoost: rl.Score.DiversityBoost,
		WeightsUsed:    rl.Score.WeightsUsed,
		Preset:         rl.Score.Preset,
		Complexity:     rl.Score.Complexity,
		SuccessStatus:  rl.Score.SuccessStatus,
		Timestamp:      at,
	}
}

// FeedbackRecord is emitted on every offer state change after pending.
type FeedbackRecord struct {
	Kind      Kind          `json:"kind"`
	CaseID    string        `json:"case_id"`
	LawyerID  string        `json:"lawyer_id"`
	Label     FeedbackLabel `json:"label"`
	Raw       float64       `json:"raw"`
	Fair      float64       `json:"fair"`
	Timestamp time.Time     `json:"timestamp"`
}
