package fixtures

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/davidleathers/commission-protection-backend/internal/domain/breach"
	"github.com/davidleathers/commission-protection-backend/internal/domain/contract"
	"github.com/davidleathers/commission-protection-backend/internal/domain/records"
)

// BreachBuilder builds pending public-records breaches
type BreachBuilder struct {
	t          *testing.T
	contractID uuid.UUID
	agentID    string
	clientID   string
	clientName string
	record     records.SaleRecord
	now        time.Time
}

// NewBreachBuilder defaults to the Jane Doe sale on a fresh contract id
func NewBreachBuilder(t *testing.T) *BreachBuilder {
	t.Helper()
	return &BreachBuilder{
		t:          t,
		contractID: uuid.New(),
		agentID:    "agent-1",
		clientID:   "jane-doe",
		clientName: "Jane Doe",
		record:     NewSaleRecordBuilder().Build(),
		now:        time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC),
	}
}

// ForContract copies ownership from an existing contract
func (b *BreachBuilder) ForContract(c *contract.Contract) *BreachBuilder {
	b.contractID = c.ID
	b.agentID = c.AgentID
	b.clientID = c.ClientID
	b.clientName = c.ClientName
	return b
}

func (b *BreachBuilder) WithAgent(agentID string) *BreachBuilder {
	b.agentID = agentID
	return b
}

func (b *BreachBuilder) WithRecord(rec records.SaleRecord) *BreachBuilder {
	b.record = rec
	return b
}

func (b *BreachBuilder) At(now time.Time) *BreachBuilder {
	b.now = now
	return b
}

// Build classifies the record as a high-risk candidate and materializes it
func (b *BreachBuilder) Build() *breach.PotentialBreach {
	b.t.Helper()
	cand := breach.Candidate{
		Record:        b.record,
		Type:          breach.TypeForParty(b.record.MatchedParty),
		Score:         100,
		RiskLevel:     breach.RiskHigh,
		EstimatedLoss: b.record.EstimatedLostCommission,
	}
	evidence := breach.EvidenceList{breach.PropertySaleEvidence{Record: b.record, ScannedAt: b.now}}
	pb, err := breach.NewFromCandidate(b.contractID, b.agentID, b.clientID, b.clientName, cand, evidence, b.now)
	require.NoError(b.t, err)
	return pb
}
