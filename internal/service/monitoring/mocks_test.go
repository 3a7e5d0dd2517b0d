package monitoring

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/davidleathers/commission-protection-backend/internal/domain/breach"
	"github.com/davidleathers/commission-protection-backend/internal/domain/contract"
	"github.com/davidleathers/commission-protection-backend/internal/domain/records"
	"github.com/davidleathers/commission-protection-backend/internal/service/detection"
	"github.com/davidleathers/commission-protection-backend/internal/service/scanner"
)

type mockScanner struct {
	mock.Mock
}

func (m *mockScanner) Scan(ctx context.Context, req scanner.ScanRequest) (*scanner.ScanResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*scanner.ScanResult), args.Error(1)
}

type mockDetector struct {
	mock.Mock
}

func (m *mockDetector) Classify(c *contract.Contract, identity breach.AgentIdentity, recs []records.SaleRecord, now time.Time) []breach.Candidate {
	args := m.Called(c, identity, recs, now)
	return args.Get(0).([]breach.Candidate)
}

func (m *mockDetector) Detect(ctx context.Context, c *contract.Contract, identity breach.AgentIdentity, recs []records.SaleRecord) (*detection.Result, error) {
	args := m.Called(ctx, c, identity, recs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*detection.Result), args.Error(1)
}

func (m *mockDetector) ReconcileOverdueShowings(ctx context.Context, agentID string) (int, error) {
	args := m.Called(ctx, agentID)
	return args.Int(0), args.Error(1)
}
