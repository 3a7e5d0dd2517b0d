package monitoring

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/davidleathers/commission-protection-backend/internal/domain/contract"
	"github.com/davidleathers/commission-protection-backend/internal/service/scanner"
)

func (s *service) RescanActiveContracts(ctx context.Context) (*RescanSummary, error) {
	active, err := s.contracts.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	var scanned, failed, created int64
	tasks := make(chan *contract.Contract, s.config.RescanWorkers*2)

	var wg sync.WaitGroup
	for i := 0; i < s.config.RescanWorkers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			logger := s.logger.With(zap.Int("worker_id", id))
			for c := range tasks {
				n, err := s.rescanContract(ctx, c)
				if err != nil {
					atomic.AddInt64(&failed, 1)
					logger.Warn("contract rescan failed",
						zap.String("contract_id", c.ID.String()),
						zap.String("agent_id", c.AgentID),
						zap.Error(err))
					continue
				}
				atomic.AddInt64(&scanned, 1)
				atomic.AddInt64(&created, int64(n))
			}
		}(i)
	}

feed:
	for _, c := range active {
		select {
		case tasks <- c:
		case <-ctx.Done():
			break feed
		}
	}
	close(tasks)
	wg.Wait()

	summary := &RescanSummary{
		Contracts:   len(active),
		Scanned:     int(scanned),
		Failed:      int(failed),
		NewBreaches: int(created),
	}
	s.logger.Info("active contract rescan complete",
		zap.Int("contracts", summary.Contracts),
		zap.Int("scanned", summary.Scanned),
		zap.Int("failed", summary.Failed),
		zap.Int("new_breaches", summary.NewBreaches),
		zap.Duration("duration", time.Since(start)))

	return summary, ctx.Err()
}

func (s *service) rescanContract(ctx context.Context, c *contract.Contract) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	scan, err := s.scanner.Scan(ctx, scanner.ScanRequest{
		ClientName:      c.ClientName,
		ContractStart:   c.StartDate,
		ContractEnd:     c.EndDate,
		AgentIdentifier: c.AgentID,
	})
	if err != nil {
		return 0, err
	}
	det, err := s.detector.Detect(ctx, c, contractIdentity(c), scan.Records)
	if err != nil {
		return 0, err
	}
	return len(det.Created), nil
}
