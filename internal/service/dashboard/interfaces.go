package dashboard

import (
	"context"
	"time"

	"github.com/davidleathers/commission-protection-backend/internal/domain/values"
)

// Service aggregates the agent's landing-page counters
type Service interface {
	Stats(ctx context.Context, agentID string, now time.Time) (*Stats, error)

	// WarnExpiringContracts raises one contract-expiring alert per active
	// contract that ends inside the expiring-soon window
	WarnExpiringContracts(ctx context.Context, now time.Time) (int, error)
}

// Stats is the agent dashboard summary
type Stats struct {
	ActiveContracts     int          `json:"activeContracts"`
	ExpiringSoon        int          `json:"expiringSoon"`
	PotentialBreaches   int          `json:"potentialBreaches"`
	ProtectedCommission values.Money `json:"protectedCommission"`
}
