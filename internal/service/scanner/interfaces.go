// Package scanner searches public sale records for a client across the
// configured providers and normalizes the results.
package scanner

import (
	"context"
	"strings"
	"time"

	"github.com/davidleathers/commission-protection-backend/internal/domain/errors"
	"github.com/davidleathers/commission-protection-backend/internal/domain/records"
	"github.com/davidleathers/commission-protection-backend/internal/domain/values"
	"github.com/davidleathers/commission-protection-backend/internal/service/scanner/providers"
)

// Service defines the public-records scanning interface
type Service interface {
	// Scan queries every selected provider concurrently. Provider failures are
	// reported in the result and never fail the scan.
	Scan(ctx context.Context, req ScanRequest) (*ScanResult, error)
}

// ProviderSelector picks the providers a scan calls
type ProviderSelector interface {
	Select() providers.Selection
}

// ScanRequest identifies the client and the contract window
type ScanRequest struct {
	ClientName      string
	ContractStart   time.Time
	ContractEnd     time.Time
	AgentIdentifier string
}

// Validate checks the client name and window
func (r ScanRequest) Validate() (values.DateWindow, error) {
	if strings.TrimSpace(r.ClientName) == "" {
		return values.DateWindow{}, errors.NewValidationError("MISSING_CLIENT_NAME", "client name is required")
	}
	window, err := values.NewDateWindow(r.ContractStart, r.ContractEnd)
	if err != nil {
		return values.DateWindow{}, errors.NewValidationError("INVALID_CONTRACT_WINDOW", err.Error())
	}
	return window, nil
}

// ProviderStatus of one provider within a scan
type ProviderStatus string

const (
	ProviderOK      ProviderStatus = "ok"
	ProviderPartial ProviderStatus = "partial"
	ProviderFailed  ProviderStatus = "failed"
	ProviderSkipped ProviderStatus = "skipped"
)

// ProviderReport is the outcome of one provider
type ProviderReport struct {
	Name    string         `json:"name"`
	Tier    providers.Tier `json:"tier"`
	Status  ProviderStatus `json:"status"`
	Records int            `json:"records"`
	Error   string         `json:"error,omitempty"`
	Cached  bool           `json:"cached,omitempty"`
}

// MonitoringStatus summarizes provider health for the scan
type MonitoringStatus string

const (
	MonitoringActive      MonitoringStatus = "active"
	MonitoringDegraded    MonitoringStatus = "degraded"
	MonitoringUnavailable MonitoringStatus = "unavailable"
)

// Monitoring tells the caller when the client will next be scanned
type Monitoring struct {
	LastScanned time.Time        `json:"lastScanned"`
	NextScan    time.Time        `json:"nextScan"`
	Status      MonitoringStatus `json:"status"`
}

// ScanResult is the normalized output of one scan
type ScanResult struct {
	Records           []records.SaleRecord `json:"records"`
	TotalRecordsFound int                  `json:"totalRecordsFound"`
	DataSource        string               `json:"dataSource"`
	ProviderReports   []ProviderReport     `json:"providers"`
	Errors            []string             `json:"errors"`
	Monitoring        Monitoring           `json:"monitoring"`
}
