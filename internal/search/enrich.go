package search

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"gamefinder/internal/domain"
	"gamefinder/internal/metrics"
	"gamefinder/internal/telemetry"
)

// Enrich attaches metadata to a listing chosen from a search response. The
// lookup key is always recomputed from the title. A title the metadata service
// does not know yields a placeholder record rather than an error.
func (s *Service) Enrich(ctx context.Context, listing domain.Listing) (domain.EnrichedListing, error) {
	listing.Title = strings.TrimSpace(listing.Title)
	if listing.Title == "" {
		return domain.EnrichedListing{}, ErrInvalidListing
	}
	listing.StrippedTitle = Normalize(listing.Title)

	result := domain.EnrichedListing{
		Listing:    listing,
		Disclaimer: domain.DownloadDisclaimer,
	}
	if s.metadata == nil {
		result.Notice = domain.MetadataUnavailableNotice
		metrics.EnrichmentsTotal.WithLabelValues("disabled").Inc()
		return result, nil
	}

	ctx, span := telemetry.Tracer().Start(ctx, "search.Enrich")
	defer span.End()
	span.SetAttributes(
		attribute.String("game.title", listing.StrippedTitle),
		attribute.String("game.source", listing.Source),
	)

	lookupCtx, cancel := context.WithTimeout(ctx, s.enrichTimeout)
	defer cancel()

	record, err := s.metadata.FetchDetails(lookupCtx, listing.StrippedTitle)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		metrics.EnrichmentsTotal.WithLabelValues("not_found").Inc()
		span.SetAttributes(attribute.Bool("game.found", false))
		s.logger.Info("no metadata for listing", slog.String("title", listing.StrippedTitle))
		result.Notice = domain.MetadataUnavailableNotice
		return result, nil
	case err != nil:
		metrics.EnrichmentsTotal.WithLabelValues("error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Warn("metadata lookup failed",
			slog.String("title", listing.StrippedTitle),
			slog.String("error", err.Error()),
		)
		return domain.EnrichedListing{}, err
	}

	metrics.EnrichmentsTotal.WithLabelValues("found").Inc()
	span.SetAttributes(attribute.Bool("game.found", true), attribute.Int64("game.id", record.GameID))
	result.Metadata = &record
	result.MetadataAvailable = true
	if rating, ok := record.DisplayRating(); ok {
		result.DisplayRating = &rating
	}
	return result, nil
}
