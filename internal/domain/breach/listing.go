package breach

import (
	"time"

	"github.com/davidleathers/commission-protection-backend/internal/domain/contract"
)

// ListItem is a breach as reviewers see it in a listing, together with the
// contract terms it was measured against
type ListItem struct {
	*PotentialBreach
	Contract ContractTerms `json:"contract"`
}

// ContractTerms are the parts of the originating contract a reviewer needs
// to judge a breach without a second lookup
type ContractTerms struct {
	ClientName         string                      `json:"clientName"`
	RepresentationType contract.RepresentationType `json:"representationType"`
	StartDate          time.Time                   `json:"startDate"`
	EndDate            time.Time                   `json:"endDate"`
}
