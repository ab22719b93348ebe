package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/vaultswap/vaultswapd/pkg/logging"
)

// Pusher periodically pushes the registry to a remote Prometheus push
// endpoint (Grafana Cloud). Push failures are logged and retried on the
// next interval; the daemon never depends on the push succeeding.
type Pusher struct {
	pusher   *push.Pusher
	interval time.Duration
	log      *logging.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewPusher configures a pusher for the metrics registry. Credentials are
// HTTP basic auth, the shape Grafana Cloud expects.
func NewPusher(m *Metrics, url, username, apiKey string, interval time.Duration) *Pusher {
	return &Pusher{
		pusher: push.New(url, "vaultswapd").
			Gatherer(m.registry).
			BasicAuth(username, apiKey),
		interval: interval,
		log:      logging.Component("metrics-push"),
	}
}

// Start begins the push loop.
func (p *Pusher) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})

	go p.run(ctx)
	p.log.Info("Metrics push started", "interval", p.interval)
}

// Stop halts the push loop after a final push.
func (p *Pusher) Stop() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	<-p.done
}

func (p *Pusher) run(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Final push so the last counter values are not lost.
			if err := p.pusher.Push(); err != nil {
				p.log.Debug("Final metrics push failed", "error", err)
			}
			return
		case <-ticker.C:
			if err := p.pusher.Push(); err != nil {
				p.log.Warn("Metrics push failed", "error", err)
			}
		}
	}
}
