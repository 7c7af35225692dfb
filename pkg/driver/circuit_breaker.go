package driver

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/soundprediction/metaexp/pkg/alert"
	"github.com/soundprediction/metaexp/pkg/config"
	"github.com/soundprediction/metaexp/pkg/types"
)

// CircuitBreakerSource wraps a MetaPathSource with circuit breaking logic
type CircuitBreakerSource struct {
	source  MetaPathSource
	cb      *gobreaker.CircuitBreaker
	alerter alert.Alerter
	name    string
}

// NewCircuitBreakerSource creates a new circuit breaker source. A disabled
// config returns source unchanged.
func NewCircuitBreakerSource(source MetaPathSource, cfg config.CircuitBreakerConfig, alerter alert.Alerter, logger *slog.Logger, name string) MetaPathSource {
	if !cfg.Enabled {
		return source
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	st := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    time.Duration(cfg.Interval) * time.Second,
		Timeout:     time.Duration(cfg.Timeout) * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= cfg.ReadyToTripRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
			if to == gobreaker.StateOpen && alerter != nil {
				msg := fmt.Sprintf("Circuit Breaker '%s' changed status from %s to %s. Too many failures detected.", name, from, to)
				if err := alerter.Alert(fmt.Sprintf("URGENT: Circuit Breaker Tripped - %s", name), msg); err != nil {
					logger.Error("failed to send alert", "error", err)
				}
			}
		},
	}

	return &CircuitBreakerSource{
		source:  source,
		cb:      gobreaker.NewCircuitBreaker(st),
		alerter: alerter,
		name:    name,
	}
}

// MetaPaths implements MetaPathSource
func (c *CircuitBreakerSource) MetaPaths(ctx context.Context, startIDs, endIDs []int64, maxLength int) ([]*types.MetaPath, error) {
	resp, err := c.cb.Execute(func() (interface{}, error) {
		return c.source.MetaPaths(ctx, startIDs, endIDs, maxLength)
	})
	if err != nil {
		return nil, err
	}
	return resp.([]*types.MetaPath), nil
}

// State reports the breaker state.
func (c *CircuitBreakerSource) State() gobreaker.State {
	return c.cb.State()
}
