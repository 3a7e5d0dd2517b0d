package breach

import (
	"math"
	"strings"
	"time"

	"github.com/davidleathers/commission-protection-backend/internal/domain/records"
	"github.com/davidleathers/commission-protection-backend/internal/domain/values"
)

const (
	scoreBuyerAgentPresent = 40
	scoreExactBuyerMatch   = 40
	scoreExactSellerMatch  = 25
	scoreRecencyMax        = 20

	// RecencyHorizon is how far back a sale still earns recency points
	RecencyHorizon = 730 * 24 * time.Hour

	// HighConfidenceScore promotes unauthorized purchases to high risk
	HighConfidenceScore = 80
	mediumScore         = 50
)

// DefaultHighRiskLoss is the loss above which a breach is always high risk
var DefaultHighRiskLoss = values.NewMoneyFromInt(10000)

// AgentIdentity holds the strings that identify the contracted agent on a
// public record
type AgentIdentity struct {
	AgentID       string
	DisplayName   string
	LicenseNumber string
}

// Matches reports whether agentText contains any identifying string, ignoring case
func (a AgentIdentity) Matches(agentText string) bool {
	hay := records.NormalizeName(agentText)
	if hay == "" {
		return false
	}
	for _, needle := range []string{a.AgentID, a.DisplayName, a.LicenseNumber} {
		n := records.NormalizeName(needle)
		if n != "" && strings.Contains(hay, n) {
			return true
		}
	}
	return false
}

// IsCandidate holds iff the sale day is inside the window and the buyer's
// agent is known and is not the contracted agent
func IsCandidate(window values.DateWindow, rec records.SaleRecord, identity AgentIdentity) bool {
	if !window.Contains(rec.SaleDate) {
		return false
	}
	if !rec.HasBuyerAgent() {
		return false
	}
	return !identity.Matches(rec.BuyerAgent)
}

// ScoreInput are the signals feeding the auto-detection score
type ScoreInput struct {
	HasBuyerAgent bool
	MatchedParty  records.Party
	SaleDate      time.Time
	ScanDate      time.Time
}

// Score is a 0..100 confidence heuristic, monotonic in each input
func Score(in ScoreInput) int {
	score := 0.0
	if in.HasBuyerAgent {
		score += scoreBuyerAgentPresent
	}
	switch in.MatchedParty {
	case records.PartyBuyer:
		score += scoreExactBuyerMatch
	case records.PartySeller:
		score += scoreExactSellerMatch
	}

	age := values.Day(in.ScanDate).Sub(values.Day(in.SaleDate))
	if age < 0 {
		age = 0
	}
	if age < RecencyHorizon {
		score += scoreRecencyMax * (1 - float64(age)/float64(RecencyHorizon))
	}

	return int(math.Max(0, math.Min(100, math.Round(score))))
}

// ClassifyRisk derives the risk level from loss, type and score
func ClassifyRisk(loss values.Money, typ Type, score int, threshold values.Money) RiskLevel {
	if loss.GreaterThan(threshold) {
		return RiskHigh
	}
	if typ == TypeUnauthorizedPurchase && score >= HighConfidenceScore {
		return RiskHigh
	}
	if score >= mediumScore {
		return RiskMedium
	}
	return RiskLow
}

// Candidate is a classified sale that constitutes a potential breach
type Candidate struct {
	Record        records.SaleRecord `json:"record"`
	Type          Type               `json:"breachType"`
	Score         int                `json:"autoDetectionScore"`
	RiskLevel     RiskLevel          `json:"riskLevel"`
	EstimatedLoss values.Money       `json:"estimatedCommissionLoss"`
}

// Evaluate classifies one record; ok is false when the record is not a candidate
func Evaluate(window values.DateWindow, identity AgentIdentity, rec records.SaleRecord,
	now time.Time, threshold values.Money) (Candidate, bool) {
	if !IsCandidate(window, rec, identity) {
		return Candidate{}, false
	}

	typ := TypeForParty(rec.MatchedParty)
	score := Score(ScoreInput{
		HasBuyerAgent: rec.HasBuyerAgent(),
		MatchedParty:  rec.MatchedParty,
		SaleDate:      rec.SaleDate,
		ScanDate:      now,
	})
	loss := rec.EstimatedLostCommission
	if loss.IsNegative() {
		loss = values.Zero()
	}

	return Candidate{
		Record:        rec,
		Type:          typ,
		Score:         score,
		RiskLevel:     ClassifyRisk(loss, typ, score, threshold),
		EstimatedLoss: loss,
	}, true
}
