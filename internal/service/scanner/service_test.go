package scanner

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/davidleathers/commission-protection-backend/internal/domain/errors"
	"github.com/davidleathers/commission-protection-backend/internal/domain/records"
	"github.com/davidleathers/commission-protection-backend/internal/domain/values"
	"github.com/davidleathers/commission-protection-backend/internal/infrastructure/cache"
	"github.com/davidleathers/commission-protection-backend/internal/service/scanner/providers"
)

type fakeProvider struct {
	name       string
	tier       providers.Tier
	configured bool
	records    []records.SaleRecord
	err        error
	block      bool
	calls      int32
}

func (f *fakeProvider) Name() string          { return f.name }
func (f *fakeProvider) Tier() providers.Tier  { return f.tier }
func (f *fakeProvider) Configured() bool      { return f.configured }
func (f *fakeProvider) SearchSales(ctx context.Context, q providers.SearchQuery) ([]records.SaleRecord, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.records, f.err
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func sale(address, buyer, seller string, price int64) records.SaleRecord {
	return records.SaleRecord{
		Source:          "fake",
		PropertyAddress: address,
		BuyerName:       buyer,
		SellerName:      seller,
		BuyerAgent:      "Other Agent",
		SaleDate:        date(2024, 3, 15),
		SalePrice:       values.NewMoneyFromInt(price),
	}
}

func validRequest() ScanRequest {
	return ScanRequest{
		ClientName:      "Jane Doe",
		ContractStart:   date(2024, 1, 1),
		ContractEnd:     date(2024, 6, 30),
		AgentIdentifier: "agent-1",
	}
}

func newTestService(t *testing.T, c cache.Cache, ps ...providers.Provider) (Service, *values.MockClock) {
	t.Helper()
	clock := &values.MockClock{CurrentTime: date(2024, 8, 1)}
	svc := NewService(providers.New(zaptest.NewLogger(t), ps...), c, nil, clock, Config{
		CommissionRate:  values.MustNewCommissionRate(0.03),
		ProviderTimeout: 50 * time.Millisecond,
		CacheTTL:        time.Hour,
	}, zaptest.NewLogger(t))
	return svc, clock
}

func TestScanRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ScanRequest)
		wantErr bool
	}{
		{name: "valid", mutate: func(r *ScanRequest) {}},
		{name: "blank client", mutate: func(r *ScanRequest) { r.ClientName = "   " }, wantErr: true},
		{name: "start equals end", mutate: func(r *ScanRequest) { r.ContractEnd = r.ContractStart }, wantErr: true},
		{name: "start after end", mutate: func(r *ScanRequest) { r.ContractStart = date(2024, 7, 1) }, wantErr: true},
		{name: "missing start", mutate: func(r *ScanRequest) { r.ContractStart = time.Time{} }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(&req)
			_, err := req.Validate()
			if tt.wantErr {
				assert.True(t, errors.IsKind(err, errors.KindValidation))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestService_Scan(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		providers func() []providers.Provider
		validate  func(t *testing.T, res *ScanResult)
	}{
		{
			name: "matches client and estimates commission",
			providers: func() []providers.Provider {
				return []providers.Provider{&fakeProvider{
					name: "county", tier: providers.TierOfficial, configured: true,
					records: []records.SaleRecord{
						sale("123 Main St", "JANE  doe", "John Smith", 500000),
						sale("9 Elm Rd", "Someone Else", "Another", 300000),
						sale("4 Oak Ln", "Bob", "jane doe", 200000),
					},
				}}
			},
			validate: func(t *testing.T, res *ScanResult) {
				require.Equal(t, 2, res.TotalRecordsFound)
				assert.Equal(t, records.PartyBuyer, res.Records[0].MatchedParty)
				assert.Equal(t, int64(15000), res.Records[0].EstimatedLostCommission.IntPart())
				assert.Equal(t, records.PartySeller, res.Records[1].MatchedParty)
				assert.Equal(t, int64(6000), res.Records[1].EstimatedLostCommission.IntPart())
				assert.Equal(t, "county", res.DataSource)
				assert.Equal(t, MonitoringActive, res.Monitoring.Status)
				assert.Empty(t, res.Errors)
			},
		},
		{
			name: "provider failure degrades without aborting",
			providers: func() []providers.Provider {
				return []providers.Provider{
					&fakeProvider{name: "county", tier: providers.TierOfficial, configured: true,
						records: []records.SaleRecord{sale("123 Main St", "Jane Doe", "X", 500000)}},
					&fakeProvider{name: "attom", tier: providers.TierOfficial, configured: true,
						err: &providers.ProviderError{Code: providers.ErrCodeProviderUnavailable, Provider: "attom", Message: "HTTP 503"}},
					&fakeProvider{name: "regrid", tier: providers.TierSecondary, configured: true},
				}
			},
			validate: func(t *testing.T, res *ScanResult) {
				assert.Equal(t, 1, res.TotalRecordsFound)
				assert.Equal(t, MonitoringDegraded, res.Monitoring.Status)
				assert.Equal(t, []string{"provider attom: HTTP 503"}, res.Errors)
				require.Len(t, res.ProviderReports, 3)
				assert.Equal(t, ProviderOK, res.ProviderReports[0].Status)
				assert.Equal(t, ProviderFailed, res.ProviderReports[1].Status)
				assert.Equal(t, ProviderSkipped, res.ProviderReports[2].Status, "secondary is skipped while an official provider is configured")
			},
		},
		{
			name: "partial provider result keeps its records",
			providers: func() []providers.Provider {
				return []providers.Provider{
					&fakeProvider{name: "attom", tier: providers.TierOfficial, configured: true,
						records: []records.SaleRecord{sale("9 Elm Rd", "Jane Doe", "Bob Roe", 400000)},
						err: &providers.ProviderError{Code: providers.ErrCodeProviderUnavailable, Provider: "attom",
							Message: "sellerName search: HTTP 503", Partial: true}},
				}
			},
			validate: func(t *testing.T, res *ScanResult) {
				require.Equal(t, 1, res.TotalRecordsFound)
				assert.Equal(t, "9 Elm Rd", res.Records[0].PropertyAddress)
				assert.Equal(t, "attom", res.DataSource)
				assert.Equal(t, MonitoringDegraded, res.Monitoring.Status)
				assert.Equal(t, []string{"provider attom: sellerName search: HTTP 503"}, res.Errors)
				require.Len(t, res.ProviderReports, 1)
				assert.Equal(t, ProviderPartial, res.ProviderReports[0].Status)
				assert.Equal(t, 1, res.ProviderReports[0].Records)
			},
		},
		{
			name: "records keep provider priority order without dedup",
			providers: func() []providers.Provider {
				return []providers.Provider{
					&fakeProvider{name: "county", tier: providers.TierOfficial, configured: true,
						records: []records.SaleRecord{sale("A St", "Jane Doe", "X", 100000)}},
					&fakeProvider{name: "attom", tier: providers.TierOfficial, configured: true,
						records: []records.SaleRecord{sale("A St", "Jane Doe", "X", 100000), sale("B St", "Jane Doe", "X", 100000)}},
				}
			},
			validate: func(t *testing.T, res *ScanResult) {
				require.Len(t, res.Records, 3)
				assert.Equal(t, "county+attom", res.DataSource)
				assert.Equal(t, "B St", res.Records[2].PropertyAddress)
			},
		},
		{
			name: "nothing configured is unavailable",
			providers: func() []providers.Provider {
				return []providers.Provider{&fakeProvider{name: "county", tier: providers.TierOfficial}}
			},
			validate: func(t *testing.T, res *ScanResult) {
				assert.Equal(t, 0, res.TotalRecordsFound)
				assert.NotNil(t, res.Records)
				assert.Equal(t, "none", res.DataSource)
				assert.Equal(t, MonitoringUnavailable, res.Monitoring.Status)
				require.Len(t, res.ProviderReports, 1)
				assert.Equal(t, ProviderSkipped, res.ProviderReports[0].Status)
				assert.Empty(t, res.Errors, "unconfigured providers are not failures")
			},
		},
		{
			name: "slow provider times out",
			providers: func() []providers.Provider {
				return []providers.Provider{&fakeProvider{name: "county", tier: providers.TierOfficial, configured: true, block: true}}
			},
			validate: func(t *testing.T, res *ScanResult) {
				assert.Equal(t, MonitoringUnavailable, res.Monitoring.Status)
				require.Len(t, res.Errors, 1)
				assert.Contains(t, res.Errors[0], "provider county")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, clock := newTestService(t, nil, tt.providers()...)
			res, err := svc.Scan(ctx, validRequest())
			require.NoError(t, err)
			assert.Equal(t, clock.CurrentTime, res.Monitoring.LastScanned)
			assert.Equal(t, clock.CurrentTime.Add(24*time.Hour), res.Monitoring.NextScan)
			tt.validate(t, res)
		})
	}
}

func TestService_Scan_InvalidRequest(t *testing.T) {
	svc, _ := newTestService(t, nil)
	req := validRequest()
	req.ClientName = ""
	_, err := svc.Scan(context.Background(), req)
	assert.True(t, errors.IsKind(err, errors.KindValidation))
}

func TestService_Scan_CachesProviderResponses(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	c := cache.NewResponseCache(client, zaptest.NewLogger(t))

	p := &fakeProvider{name: "county", tier: providers.TierOfficial, configured: true,
		records: []records.SaleRecord{sale("123 Main St", "Jane Doe", "X", 500000)}}
	svc, _ := newTestService(t, c, p)
	ctx := context.Background()

	first, err := svc.Scan(ctx, validRequest())
	require.NoError(t, err)
	assert.False(t, first.ProviderReports[0].Cached)

	req := validRequest()
	req.ClientName = "  jane   DOE "
	second, err := svc.Scan(ctx, req)
	require.NoError(t, err)
	assert.True(t, second.ProviderReports[0].Cached)
	assert.Equal(t, int32(1), atomic.LoadInt32(&p.calls))
	require.Len(t, second.Records, 1)
	assert.Equal(t, int64(15000), second.Records[0].EstimatedLostCommission.IntPart())
	assert.True(t, mr.Exists("cpb:provider:county:jane doe:2024-01-01..2024-06-30"))

	mr.FastForward(2 * time.Hour)
	_, err = svc.Scan(ctx, validRequest())
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&p.calls), "expired entry triggers a fresh search")
}

func TestService_Scan_PartialResultsAreNotCached(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	c := cache.NewResponseCache(client, zaptest.NewLogger(t))

	p := &fakeProvider{name: "attom", tier: providers.TierOfficial, configured: true,
		records: []records.SaleRecord{sale("9 Elm Rd", "Jane Doe", "X", 400000)},
		err:     &providers.ProviderError{Code: providers.ErrCodeTimeout, Provider: "attom", Message: "sellerName search: request timed out", Partial: true}}
	svc, _ := newTestService(t, c, p)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res, err := svc.Scan(ctx, validRequest())
		require.NoError(t, err)
		assert.False(t, res.ProviderReports[0].Cached)
		assert.Len(t, res.Records, 1)
	}
	assert.Equal(t, int32(2), atomic.LoadInt32(&p.calls))
	assert.False(t, mr.Exists("cpb:provider:attom:jane doe:2024-01-01..2024-06-30"))
}
