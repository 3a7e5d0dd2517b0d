package providers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/davidleathers/commission-protection-backend/internal/domain/records"
	"github.com/davidleathers/commission-protection-backend/internal/infrastructure/config"
)

func testQuery() SearchQuery {
	return SearchQuery{
		PartyName: "Jane Doe",
		Start:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:       time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC),
	}
}

func testConfig(url string) config.ProviderConfig {
	return config.ProviderConfig{BaseURL: url + "/", APIKey: "secret", RateLimitRPS: 100, Timeout: 2 * time.Second}
}

func TestCountyRecorder_SearchSales(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/deeds/search", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "Jane Doe", r.URL.Query().Get("party"))
		assert.Equal(t, "2024-01-01", r.URL.Query().Get("from"))
		assert.Equal(t, "2024-06-30", r.URL.Query().Get("to"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"records":[
			{"documentNumber":"D-1","county":"King","propertyAddress":"123 Main St","grantee":"Jane Doe",
			 "grantor":"John Smith","granteeAgent":"Other Agent","grantorAgent":"","saleDate":"2024-03-15",
			 "recordingDate":"2024-03-20","consideration":"$500,000.00"},
			{"documentNumber":"D-2","grantee":"Jane Doe","saleDate":""}
		]}`))
	}))
	defer srv.Close()

	p := NewCountyRecorder(testConfig(srv.URL), zaptest.NewLogger(t))
	assert.Equal(t, CountyRecorderName, p.Name())
	assert.Equal(t, TierOfficial, p.Tier())

	got, err := p.SearchSales(context.Background(), testQuery())
	require.NoError(t, err)
	require.Len(t, got, 1, "deed without a sale date is dropped")

	rec := got[0]
	assert.Equal(t, CountyRecorderName, rec.Source)
	assert.Equal(t, "123 Main St", rec.PropertyAddress)
	assert.Equal(t, "Jane Doe", rec.BuyerName)
	assert.Equal(t, "John Smith", rec.SellerName)
	assert.Equal(t, "Other Agent", rec.BuyerAgent)
	assert.Equal(t, int64(500000), rec.SalePrice.IntPart())
	assert.Equal(t, "2024-03-15", rec.SaleDate.Format("2006-01-02"))
	require.NotNil(t, rec.RecordingDate)
	assert.True(t, rec.EstimatedLostCommission.IsZero(), "commission is left to the scanner")
}

func TestAttom_SearchSales(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "secret", r.Header.Get("apikey"))
		assert.Equal(t, "2024/01/01", r.URL.Query().Get("startSaleSearchDate"))
		if r.URL.Query().Get("sellerName") != "" {
			_, _ = w.Write([]byte(`{"status":{"code":1,"msg":"SuccessWithoutResult"},"property":[]}`))
			return
		}
		assert.Equal(t, "Jane Doe", r.URL.Query().Get("buyerName"))
		_, _ = w.Write([]byte(`{"status":{"code":0,"msg":"SuccessWithResult","total":1},"property":[
			{"address":{"oneLine":"9 Elm Rd, Springfield"},"area":{"countrysecsubd":"Greene County"},
			 "sale":{"saleTransDate":"2024-02-10","saleRecDate":"2024-02-12","buyerName":"JANE DOE",
			 "sellerName":"Bob Roe","amount":{"saleamt":420000,"saledocnum":"A-77"}},
			 "agent":{"buyerAgentName":"Rival Realty","listingAgentName":"L Agent"}}
		]}`))
	}))
	defer srv.Close()

	p := NewAttom(testConfig(srv.URL), zaptest.NewLogger(t))
	got, err := p.SearchSales(context.Background(), testQuery())
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls), "buyer and seller searches")
	require.Len(t, got, 1)
	assert.Equal(t, "Greene", got[0].County)
	assert.Equal(t, "Rival Realty", got[0].BuyerAgent)
	assert.Equal(t, int64(420000), got[0].SalePrice.IntPart())
	assert.Equal(t, "A-77", got[0].DocumentNumber)
}

func TestAttom_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":{"code":400,"msg":"Invalid Parameter"}}`))
	}))
	defer srv.Close()

	_, err := NewAttom(testConfig(srv.URL), zaptest.NewLogger(t)).SearchSales(context.Background(), testQuery())
	require.Error(t, err)
	assert.Equal(t, ErrCodeInvalidResponse, Code(err))
}

func TestAttom_OneSideFailing(t *testing.T) {
	buyerSide := `{"status":{"code":0,"msg":"SuccessWithResult","total":1},"property":[
		{"address":{"oneLine":"9 Elm Rd"},"sale":{"saleTransDate":"2024-02-10","buyerName":"Jane Doe",
		 "sellerName":"Bob Roe","amount":{"saleamt":420000,"saledocnum":"A-77"}}}
	]}`

	t.Run("seller failure keeps buyer records", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("sellerName") != "" {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			_, _ = w.Write([]byte(buyerSide))
		}))
		defer srv.Close()

		got, err := NewAttom(testConfig(srv.URL), zaptest.NewLogger(t)).SearchSales(context.Background(), testQuery())
		require.Error(t, err)
		assert.True(t, IsPartial(err))
		assert.Equal(t, ErrCodeProviderUnavailable, Code(err))
		assert.Contains(t, err.Error(), "sellerName search")
		require.Len(t, got, 1)
		assert.Equal(t, "A-77", got[0].DocumentNumber)
	})

	t.Run("both sides failing is a plain failure", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		got, err := NewAttom(testConfig(srv.URL), zaptest.NewLogger(t)).SearchSales(context.Background(), testQuery())
		require.Error(t, err)
		assert.False(t, IsPartial(err))
		assert.Nil(t, got)
	})
}

func TestSecondaryProviders_FilterWindowLocally(t *testing.T) {
	t.Run("regrid", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "secret", r.URL.Query().Get("token"))
			assert.Equal(t, "Jane Doe", r.URL.Query().Get("owner"))
			_, _ = w.Write([]byte(`{"parcels":{"features":[
				{"properties":{"fields":{"parcelnumb":"P1","address":"1 Oak St","scity":"Reno","owner":"Jane Doe","saledate":"2024-04-01","saleprice":300000}}},
				{"properties":{"fields":{"parcelnumb":"P2","address":"2 Oak St","owner":"Jane Doe","saledate":"2019-04-01","saleprice":100000}}}
			]}}`))
		}))
		defer srv.Close()

		p := NewRegrid(testConfig(srv.URL), zaptest.NewLogger(t))
		assert.Equal(t, TierSecondary, p.Tier())
		got, err := p.SearchSales(context.Background(), testQuery())
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "1 Oak St, Reno", got[0].PropertyAddress)
		assert.Empty(t, got[0].BuyerAgent)
	})

	t.Run("rentcast", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "secret", r.Header.Get("X-Api-Key"))
			_, _ = w.Write([]byte(`[
				{"id":"r1","formattedAddress":"5 Pine Ave","lastSaleDate":"2024-06-30T00:00:00.000Z","lastSalePrice":250000,"owner":{"names":["Jane Doe"]}},
				{"id":"r2","formattedAddress":"6 Pine Ave","lastSaleDate":"2024-07-01T00:00:00.000Z","lastSalePrice":1,"owner":{"names":["Jane Doe"]}}
			]`))
		}))
		defer srv.Close()

		got, err := NewRentcast(testConfig(srv.URL), zaptest.NewLogger(t)).SearchSales(context.Background(), testQuery())
		require.NoError(t, err)
		require.Len(t, got, 1, "window end is inclusive by day")
		assert.Equal(t, "5 Pine Ave", got[0].PropertyAddress)
		assert.Equal(t, "Jane Doe", got[0].BuyerName)
	})

	t.Run("rentcast co-owners", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`[
				{"id":"r3","formattedAddress":"7 Pine Ave","lastSaleDate":"2024-05-01","lastSalePrice":310000,"owner":{"names":["John Doe","JANE  DOE"]}},
				{"id":"r4","formattedAddress":"8 Pine Ave","lastSaleDate":"2024-05-02","lastSalePrice":320000,"owner":{"names":["Ann Lee","Sam Lee"]}}
			]`))
		}))
		defer srv.Close()

		got, err := NewRentcast(testConfig(srv.URL), zaptest.NewLogger(t)).SearchSales(context.Background(), testQuery())
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "JANE  DOE", got[0].BuyerName, "the matching co-owner is reported alone")
		party, ok := got[0].MatchParty("Jane Doe")
		assert.True(t, ok)
		assert.Equal(t, records.PartyBuyer, party)
		assert.Equal(t, "Ann Lee & Sam Lee", got[1].BuyerName)
	})
}

func TestBaseClient_Errors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantCode string
		retry    bool
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, wantCode: ErrCodeAuthenticationFailed},
		{name: "forbidden", status: http.StatusForbidden, wantCode: ErrCodeAuthenticationFailed},
		{name: "throttled", status: http.StatusTooManyRequests, wantCode: ErrCodeRateLimitExceeded, retry: true},
		{name: "server error", status: http.StatusBadGateway, wantCode: ErrCodeProviderUnavailable, retry: true},
		{name: "bad request", status: http.StatusBadRequest, body: "bad party", wantCode: ErrCodeInvalidRequest},
		{name: "malformed json", status: http.StatusOK, body: `{"records":[`, wantCode: ErrCodeInvalidResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewCountyRecorder(testConfig(srv.URL), zaptest.NewLogger(t)).SearchSales(context.Background(), testQuery())
			require.Error(t, err)

			var pe *ProviderError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, tt.wantCode, pe.Code)
			assert.Equal(t, tt.retry, pe.Retry)
			assert.Equal(t, CountyRecorderName, pe.Provider)
		})
	}
}

func TestBaseClient_NotConfigured(t *testing.T) {
	p := NewRentcast(config.ProviderConfig{BaseURL: "http://127.0.0.1:1"}, nil)
	assert.False(t, p.Configured())

	_, err := p.SearchSales(context.Background(), testQuery())
	assert.Equal(t, ErrCodeNotConfigured, Code(err))
}

func TestBaseClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewCountyRecorder(testConfig(srv.URL), zaptest.NewLogger(t)).SearchSales(ctx, testQuery())
	require.Error(t, err)
	assert.Equal(t, ErrCodeTimeout, Code(err))
}

type stubProvider struct {
	name       string
	tier       Tier
	configured bool
	err        error
	calls      int32
}

func (s *stubProvider) Name() string     { return s.name }
func (s *stubProvider) Tier() Tier       { return s.tier }
func (s *stubProvider) Configured() bool { return s.configured }
func (s *stubProvider) SearchSales(ctx context.Context, q SearchQuery) ([]records.SaleRecord, error) {
	atomic.AddInt32(&s.calls, 1)
	if s.err != nil {
		return nil, s.err
	}
	return []records.SaleRecord{{Source: s.name}}, nil
}

func TestCircuitBreaker(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 2, Timeout: time.Minute})
	cb.now = func() time.Time { return now }

	stub := &stubProvider{name: "stub", configured: true, err: newError("stub", ErrCodeProviderUnavailable, "down", true)}
	p := WithCircuitBreaker(stub, cb)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := p.SearchSales(ctx, testQuery())
		assert.Equal(t, ErrCodeProviderUnavailable, Code(err))
	}
	assert.Equal(t, CircuitOpen, cb.State())

	_, err := p.SearchSales(ctx, testQuery())
	assert.Equal(t, ErrCodeCircuitOpen, Code(err))
	assert.Equal(t, int32(2), atomic.LoadInt32(&stub.calls), "open circuit does not call the vendor")

	t.Run("failed trial reopens", func(t *testing.T) {
		now = now.Add(2 * time.Minute)
		_, err := p.SearchSales(ctx, testQuery())
		assert.Equal(t, ErrCodeProviderUnavailable, Code(err))
		assert.Equal(t, CircuitOpen, cb.State())
	})

	t.Run("successful trial closes", func(t *testing.T) {
		now = now.Add(2 * time.Minute)
		stub.err = nil
		got, err := p.SearchSales(ctx, testQuery())
		require.NoError(t, err)
		assert.Len(t, got, 1)
		assert.Equal(t, CircuitClosed, cb.State())
	})

	t.Run("caller cancellation is not a failure", func(t *testing.T) {
		cb.Reset()
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		for i := 0; i < 3; i++ {
			_ = cb.Execute(cctx, func() error { return context.Canceled })
		}
		assert.Equal(t, CircuitClosed, cb.State())
	})
}

func TestManager_Select(t *testing.T) {
	county := &stubProvider{name: "county", tier: TierOfficial, configured: false}
	attom := &stubProvider{name: "attom", tier: TierOfficial, configured: true}
	regrid := &stubProvider{name: "regrid", tier: TierSecondary, configured: true}
	rentcast := &stubProvider{name: "rentcast", tier: TierSecondary, configured: false}

	t.Run("official preferred", func(t *testing.T) {
		sel := New(zaptest.NewLogger(t), county, attom, regrid, rentcast).Select()
		require.Len(t, sel.Active, 1)
		assert.Equal(t, "attom", sel.Active[0].Name())
		assert.Len(t, sel.Skipped, 3)
		assert.Equal(t, "county", sel.Skipped[0].Name())
	})

	t.Run("secondary fallback", func(t *testing.T) {
		sel := New(nil, county, regrid, rentcast).Select()
		require.Len(t, sel.Active, 1)
		assert.Equal(t, "regrid", sel.Active[0].Name())
		assert.Len(t, sel.Skipped, 2)
	})

	t.Run("nothing configured", func(t *testing.T) {
		sel := New(nil, county, rentcast).Select()
		assert.Empty(t, sel.Active)
		assert.Len(t, sel.Skipped, 2)
	})

	t.Run("default manager wires four vendors", func(t *testing.T) {
		m := NewManager(config.ProvidersConfig{Attom: config.ProviderConfig{APIKey: "k"}}, zaptest.NewLogger(t))
		require.Len(t, m.All(), 4)
		sel := m.Select()
		require.Len(t, sel.Active, 1)
		assert.Equal(t, AttomName, sel.Active[0].Name())
	})
}
