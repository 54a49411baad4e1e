package offline

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/planbord/backend/core"
)

const probeTimeout = 5 * time.Second

// Probe determines public-internet reachability with a single lightweight GET
// against a well-known host. It performs no retries; callers decide cadence.
type Probe struct {
	target string
	client *http.Client
	logger core.Logger
}

func NewProbe(target string, logger core.Logger) *Probe {
	return &Probe{
		target: target,
		client: &http.Client{Timeout: probeTimeout},
		logger: logger,
	}
}

// Check returns true only on a 200-class response; any error, timeout or
// other status reads as offline.
func (p *Probe) Check(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.target, nil)
	if err != nil {
		p.logger.Warn(fmt.Sprintf("connectivity check failed: %v", err), err)
		return false
	}

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Warn(fmt.Sprintf("connectivity check failed: %v", err), err)
		return false
	}
	defer func() { _ = resp.Body.Close() }()

	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
