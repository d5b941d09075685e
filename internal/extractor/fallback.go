package extractor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/wasilisafish/proposal-builder/internal/domain"
	"github.com/wasilisafish/proposal-builder/internal/port"
)

// Provider call outcomes reported to the CallObserver.
const (
	OutcomeSuccess       = "success"
	OutcomeError         = "error"
	OutcomeRateLimited   = "rate_limited"
	OutcomeCircuitOpen   = "circuit_open"
	OutcomeNotConfigured = "not_configured"
	OutcomeCanceled      = "canceled"
)

// NamedClient pairs a client with the provider name used in logs and metrics.
type NamedClient struct {
	Name   string
	Client port.ExtractionClient
}

// CallObserver receives one outcome per provider attempt.
type CallObserver func(provider, outcome string)

// BreakerSettings tunes the per-provider circuit breakers.
type BreakerSettings struct {
	ConsecutiveFailures uint32
	OpenTimeout         time.Duration
}

// FallbackClient tries providers in order, skipping those whose circuit is
// open. With a single provider it makes exactly one call and keeps no breaker.
// It implements port.ExtractionClient.
type FallbackClient struct {
	clients  []NamedClient
	breakers []*gobreaker.CircuitBreaker[*port.ExtractionOutput]
	observe  CallObserver
	logger   *slog.Logger
}

// NewFallbackClient creates a FallbackClient from an ordered list of clients.
func NewFallbackClient(clients []NamedClient, settings BreakerSettings, observe CallObserver, logger *slog.Logger) *FallbackClient {
	if settings.ConsecutiveFailures == 0 {
		settings.ConsecutiveFailures = 3
	}
	if settings.OpenTimeout <= 0 {
		settings.OpenTimeout = 60 * time.Second
	}
	if observe == nil {
		observe = func(string, string) {}
	}
	f := &FallbackClient{clients: clients, observe: observe, logger: logger}
	if len(clients) < 2 {
		return f
	}
	f.breakers = make([]*gobreaker.CircuitBreaker[*port.ExtractionOutput], len(clients))
	for i, c := range clients {
		f.breakers[i] = gobreaker.NewCircuitBreaker[*port.ExtractionOutput](gobreaker.Settings{
			Name:        c.Name,
			MaxRequests: 1,
			Timeout:     settings.OpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= settings.ConsecutiveFailures
			},
			IsSuccessful: countsAsHealthy,
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("extractor.FallbackClient: circuit state change",
					"provider", name,
					"from", from.String(),
					"to", to.String(),
				)
			},
		})
	}
	return f
}

// countsAsHealthy keeps caller-side failures from tripping a provider's breaker.
func countsAsHealthy(err error) bool {
	return err == nil ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, domain.ErrServiceConfiguration)
}

// Providers returns the provider names in fallback order.
func (f *FallbackClient) Providers() []string {
	names := make([]string, len(f.clients))
	for i, c := range f.clients {
		names[i] = c.Name
	}
	return names
}

func (f *FallbackClient) Extract(ctx context.Context, input port.ExtractionInput) (*port.ExtractionOutput, error) {
	if len(f.clients) == 0 {
		return nil, &domain.ServiceConfigurationError{Provider: "extractor", Reason: "no providers configured"}
	}
	if f.breakers == nil {
		c := f.clients[0]
		out, err := c.Client.Extract(ctx, input)
		f.observe(c.Name, outcomeOf(err))
		if err != nil {
			return nil, err
		}
		out.Provider = c.Name
		return out, nil
	}

	var lastErr error
	var rateLimits []*RateLimitError
	attempted := 0

	for i, c := range f.clients {
		out, err := f.breakers[i].Execute(func() (*port.ExtractionOutput, error) {
			return c.Client.Extract(ctx, input)
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			f.logger.Info("extractor.FallbackClient: skipping provider", "provider", c.Name, "reason", err.Error())
			f.observe(c.Name, OutcomeCircuitOpen)
			continue
		}
		attempted++
		f.observe(c.Name, outcomeOf(err))
		if err == nil {
			out.Provider = c.Name
			return out, nil
		}
		if ctx.Err() != nil {
			return nil, err
		}

		f.logger.Warn("extractor.FallbackClient: provider failed", "provider", c.Name, "error", err)
		lastErr = err
		var rlErr *RateLimitError
		if errors.As(err, &rlErr) {
			rateLimits = append(rateLimits, rlErr)
		}
	}

	if attempted == 0 {
		return nil, &domain.ServiceUnavailableError{Provider: "all", Cause: fmt.Errorf("all provider circuits open: %w", gobreaker.ErrOpenState)}
	}
	if len(rateLimits) == attempted {
		earliest := rateLimits[0].RetryAfter
		for _, rl := range rateLimits[1:] {
			earliest = min(earliest, rl.RetryAfter)
		}
		return nil, NewRateLimitError("all", errors.New("all providers rate limited"), int(earliest.Seconds()))
	}
	return nil, fmt.Errorf("all providers failed: %w", lastErr)
}

func outcomeOf(err error) string {
	var rlErr *RateLimitError
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.As(err, &rlErr):
		return OutcomeRateLimited
	case errors.Is(err, domain.ErrServiceConfiguration):
		return OutcomeNotConfigured
	case errors.Is(err, context.Canceled):
		return OutcomeCanceled
	default:
		return OutcomeError
	}
}
