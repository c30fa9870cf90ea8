package search

import (
	"context"
	"errors"
	"strings"
	"time"

	"gamefinder/internal/domain"
	"gamefinder/internal/metrics"
)

type providerHealth struct {
	consecutiveFailures int
	lastError           string
	lastSuccessAt       time.Time
	lastFailureAt       time.Time
	lastLatency         time.Duration
	lastTimeout         bool
	lastQuery           string
	lastListingCount    int
	totalRequests       int64
	totalFailures       int64
	timeoutCount        int64
}

func (s *Service) recordProviderResult(name, query string, listings int, err error, latency time.Duration, now time.Time) {
	if s == nil || name == "" {
		return
	}

	s.healthMu.Lock()
	defer s.healthMu.Unlock()

	state := s.health[name]
	if state == nil {
		state = &providerHealth{}
		s.health[name] = state
	}
	state.totalRequests++
	state.lastQuery = query
	if latency > 0 {
		state.lastLatency = latency
		metrics.ProviderRequestDuration.WithLabelValues(name).Observe(latency.Seconds())
	}
	state.lastTimeout = isTimeoutLikeError(err)
	if state.lastTimeout {
		state.timeoutCount++
	}

	if err == nil {
		state.consecutiveFailures = 0
		state.lastError = ""
		state.lastSuccessAt = now
		state.lastListingCount = listings
		metrics.ProviderRequestsTotal.WithLabelValues(name, "ok").Inc()
		metrics.ProviderAvailable.WithLabelValues(name).Set(1)
		return
	}

	state.consecutiveFailures++
	state.totalFailures++
	state.lastFailureAt = now
	state.lastError = err.Error()

	status := "error"
	if state.lastTimeout {
		status = "timeout"
	}
	metrics.ProviderRequestsTotal.WithLabelValues(name, status).Inc()
	metrics.ProviderAvailable.WithLabelValues(name).Set(0)
}

func isTimeoutLikeError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	value := strings.ToLower(err.Error())
	return strings.Contains(value, "timeout") || strings.Contains(value, "deadline exceeded")
}

// ProviderDiagnostics reports per-provider fetch health in registry order.
func (s *Service) ProviderDiagnostics() []domain.ProviderDiagnostics {
	infos := s.Providers()
	if len(infos) == 0 {
		return nil
	}

	s.healthMu.Lock()
	defer s.healthMu.Unlock()

	items := make([]domain.ProviderDiagnostics, 0, len(infos))
	for _, info := range infos {
		item := domain.ProviderDiagnostics{
			Name:         info.Name,
			Label:        info.Label,
			DownloadKind: info.DownloadKind,
			Enabled:      info.Enabled,
		}
		if state := s.health[info.Name]; state != nil {
			item.ConsecutiveFailures = state.consecutiveFailures
			item.LastError = state.lastError
			if !state.lastSuccessAt.IsZero() {
				lastSuccessAt := state.lastSuccessAt
				item.LastSuccessAt = &lastSuccessAt
			}
			if !state.lastFailureAt.IsZero() {
				lastFailureAt := state.lastFailureAt
				item.LastFailureAt = &lastFailureAt
			}
			item.LastLatencyMS = state.lastLatency.Milliseconds()
			item.LastTimeout = state.lastTimeout
			item.LastQuery = state.lastQuery
			item.LastListingCount = state.lastListingCount
			item.TotalRequests = state.totalRequests
			item.TotalFailures = state.totalFailures
			item.TimeoutCount = state.timeoutCount
		}
		items = append(items, item)
	}
	return items
}
