package search

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"gamefinder/internal/domain"
)

// maxConcurrentSources bounds how many catalogs are downloaded at once.
const maxConcurrentSources = 4

type sourceResult struct {
	status domain.ProviderStatus
	items  []domain.Listing
}

// Search fetches every selected catalog concurrently and returns the matching
// listings concatenated in selection order. A failed source is reported in its
// ProviderStatus and does not fail the search.
func (s *Service) Search(ctx context.Context, request domain.SearchRequest) (domain.SearchResponse, error) {
	query := strings.TrimSpace(request.Query)
	if query == "" {
		return domain.SearchResponse{}, ErrInvalidQuery
	}
	selected, err := s.resolveSources(request.Providers)
	if err != nil {
		return domain.SearchResponse{}, err
	}

	startedAt := time.Now()
	results := make([]sourceResult, len(selected))

	sem := semaphore.NewWeighted(maxConcurrentSources)
	var wg sync.WaitGroup
	for i, source := range selected {
		wg.Add(1)
		go func(index int, current Source) {
			defer wg.Done()
			if err := sem.Acquire(ctx, 1); err != nil {
				results[index] = sourceResult{status: domain.ProviderStatus{
					Name:  sourceKey(current),
					Error: "context cancelled",
				}}
				return
			}
			defer sem.Release(1)
			results[index] = s.searchSource(ctx, current, query)
		}(i, source)
	}
	wg.Wait()

	response := domain.SearchResponse{
		Query:     query,
		Items:     make([]domain.Listing, 0),
		Providers: make([]domain.ProviderStatus, 0, len(results)),
	}
	for _, result := range results {
		response.Providers = append(response.Providers, result.status)
		response.Items = append(response.Items, result.items...)
	}
	response.TotalItems = len(response.Items)
	response.Outcome = domain.OutcomeFor(response.TotalItems, response.Providers)
	response.ElapsedMS = time.Since(startedAt).Milliseconds()

	s.logger.Info("search completed",
		slog.String("query", query),
		slog.String("outcome", string(response.Outcome)),
		slog.Int("items", response.TotalItems),
		slog.Int("providers", len(selected)),
		slog.Any("failedProviders", response.FailedProviders()),
		slog.Int64("elapsedMs", response.ElapsedMS),
	)
	return response, nil
}

func (s *Service) searchSource(ctx context.Context, source Source, query string) sourceResult {
	name := sourceKey(source)
	fetchCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	startedAt := time.Now()
	listings, err := source.FetchListings(fetchCtx)
	latency := time.Since(startedAt)
	if err != nil {
		s.recordProviderResult(name, query, 0, err, latency, time.Now())
		s.logger.Warn("catalog fetch failed",
			slog.String("provider", name),
			slog.String("query", query),
			slog.Duration("latency", latency),
			slog.String("error", err.Error()),
		)
		return sourceResult{status: domain.ProviderStatus{Name: name, Error: err.Error()}}
	}

	items := Match(query, listings, source.Descriptor())
	s.recordProviderResult(name, query, len(listings), nil, latency, time.Now())
	return sourceResult{
		status: domain.ProviderStatus{Name: name, OK: true, Count: len(items)},
		items:  items,
	}
}
