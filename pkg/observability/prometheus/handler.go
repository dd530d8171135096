package prometheus

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fluxorio/filerepo/pkg/concurrency"
	"github.com/fluxorio/filerepo/pkg/reactor"
)

// Handler serves DefaultRegistry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(DefaultRegistry, promhttp.HandlerOpts{})
}

// Watch samples the pool and loop every interval until ctx is done.
// Either may be nil.
func (m *Metrics) Watch(ctx context.Context, interval time.Duration, pool concurrency.WorkerPool, loop *reactor.Reactor) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	sample := func() {
		if pool != nil {
			m.UpdatePool(pool.Stats())
		}
		if loop != nil {
			m.UpdateReactor(loop.Name(), loop.Pending())
		}
	}

	sample()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sample()
		}
	}
}
