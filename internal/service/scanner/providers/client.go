package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/davidleathers/commission-protection-backend/internal/infrastructure/config"
)

// maxResponseBytes caps how much of a vendor payload is decoded
const maxResponseBytes = 10 << 20

// baseClient holds what every HTTP adapter shares: credentials, an outbound
// rate limiter and a pooled http.Client
type baseClient struct {
	name    string
	tier    Tier
	config  config.ProviderConfig
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

func newBaseClient(name string, tier Tier, cfg config.ProviderConfig, logger *zap.Logger) baseClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 5
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if logger == nil {
		logger = zap.NewNop()
	}

	burst := int(cfg.RateLimitRPS * 2)
	if burst < 1 {
		burst = 1
	}

	return baseClient{
		name:   name,
		tier:   tier,
		config: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), burst),
		logger:  logger.With(zap.String("provider", name)),
	}
}

func (b *baseClient) Name() string { return b.name }

func (b *baseClient) Tier() Tier { return b.tier }

func (b *baseClient) Configured() bool { return b.config.Configured() }

// getJSON waits for the limiter, sends req and decodes a 2xx body into dest
func (b *baseClient) getJSON(ctx context.Context, req *http.Request, dest any) error {
	if !b.Configured() {
		return newError(b.name, ErrCodeNotConfigured, "credentials are not configured", false)
	}
	if err := b.limiter.Wait(ctx); err != nil {
		return newError(b.name, ErrCodeRateLimitExceeded, fmt.Sprintf("rate limiter: %v", err), true)
	}

	req.Header.Set("Accept", "application/json")
	start := time.Now()
	resp, err := b.client.Do(req)
	if err != nil {
		return transportError(b.name, err)
	}
	defer resp.Body.Close()

	b.logger.Debug("provider response",
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return httpError(b.name, resp)
	}

	dec := json.NewDecoder(&limitedReader{r: resp.Body, n: maxResponseBytes})
	if err := dec.Decode(dest); err != nil {
		return newError(b.name, ErrCodeInvalidResponse, fmt.Sprintf("failed to parse response: %v", err), false)
	}
	return nil
}

func (b *baseClient) newRequest(ctx context.Context, path string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.config.BaseURL+path, nil)
	if err != nil {
		return nil, newError(b.name, ErrCodeInvalidRequest, fmt.Sprintf("failed to create request: %v", err), false)
	}
	return req, nil
}
