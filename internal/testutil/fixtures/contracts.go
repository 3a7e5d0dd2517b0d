package fixtures

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/davidleathers/commission-protection-backend/internal/domain/contract"
)

// ContractBuilder builds test Contract entities
type ContractBuilder struct {
	t          *testing.T
	agentID    string
	clientName string
	rep        contract.RepresentationType
	start      time.Time
	end        time.Time
	now        time.Time
	address    string
	name       string
	license    string
}

// NewContractBuilder defaults to agent-1 representing buyer Jane Doe for
// the first half of 2024
func NewContractBuilder(t *testing.T) *ContractBuilder {
	t.Helper()
	return &ContractBuilder{
		t:          t,
		agentID:    "agent-1",
		clientName: "Jane Doe",
		rep:        contract.RepresentationBuyer,
		start:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		end:        time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC),
		now:        time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC),
	}
}

func (b *ContractBuilder) WithAgent(agentID string) *ContractBuilder {
	b.agentID = agentID
	return b
}

func (b *ContractBuilder) WithClient(name string) *ContractBuilder {
	b.clientName = name
	return b
}

func (b *ContractBuilder) WithWindow(start, end time.Time) *ContractBuilder {
	b.start = start
	b.end = end
	return b
}

func (b *ContractBuilder) WithRepresentation(rep contract.RepresentationType) *ContractBuilder {
	b.rep = rep
	return b
}

// WithAgentIdentity sets the display name and license stored on the contract
func (b *ContractBuilder) WithAgentIdentity(name, license string) *ContractBuilder {
	b.name = name
	b.license = license
	return b
}

func (b *ContractBuilder) WithAddress(address string) *ContractBuilder {
	b.address = address
	return b
}

// Build creates the contract or fails the test
func (b *ContractBuilder) Build() *contract.Contract {
	b.t.Helper()
	c, err := contract.NewContract(b.agentID, "", b.clientName, b.rep, b.start, b.end, b.now)
	require.NoError(b.t, err)
	c.PropertyAddress = b.address
	c.SetAgentIdentity(b.name, b.license)
	return c
}
