package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"gamefinder/internal/domain"
)

var (
	ErrInvalidQuery    = errors.New("query is required")
	ErrNoProviders     = errors.New("no search providers configured")
	ErrUnknownProvider = errors.New("unknown provider")
	ErrInvalidListing  = errors.New("listing title is required")
)

const (
	defaultSourceTimeout = 10 * time.Second
	defaultEnrichTimeout = 15 * time.Second
)

// Source is one catalog provider.
type Source interface {
	Name() string
	Descriptor() domain.SourceDescriptor
	FetchListings(ctx context.Context) ([]domain.RawListing, error)
}

// MetadataClient looks a normalized title up in the metadata service.
// A missing match is reported as domain.ErrNotFound.
type MetadataClient interface {
	FetchDetails(ctx context.Context, title string) (domain.MetadataRecord, error)
}

type Service struct {
	order         []Source
	sources       map[string]Source
	timeout       time.Duration
	enrichTimeout time.Duration
	metadata      MetadataClient
	logger        *slog.Logger
	healthMu      sync.Mutex
	health        map[string]*providerHealth
}

type ServiceOption func(*Service)

func WithMetadata(client MetadataClient) ServiceOption {
	return func(s *Service) {
		s.metadata = client
	}
}

func WithEnrichTimeout(timeout time.Duration) ServiceOption {
	return func(s *Service) {
		if timeout > 0 {
			s.enrichTimeout = timeout
		}
	}
}

func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService registers sources in the given order. timeout bounds each
// source's fetch individually.
func NewService(sources []Source, timeout time.Duration, opts ...ServiceOption) *Service {
	if timeout <= 0 {
		timeout = defaultSourceTimeout
	}
	svc := &Service{
		order:         make([]Source, 0, len(sources)),
		sources:       make(map[string]Source, len(sources)),
		timeout:       timeout,
		enrichTimeout: defaultEnrichTimeout,
		logger:        slog.Default(),
		health:        make(map[string]*providerHealth),
	}
	for _, source := range sources {
		if source == nil {
			continue
		}
		name := sourceKey(source)
		if name == "" {
			continue
		}
		if _, exists := svc.sources[name]; exists {
			continue
		}
		svc.sources[name] = source
		svc.order = append(svc.order, source)
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

func (s *Service) Providers() []domain.ProviderInfo {
	if len(s.order) == 0 {
		return nil
	}
	items := make([]domain.ProviderInfo, 0, len(s.order))
	for _, source := range s.order {
		descriptor := source.Descriptor()
		label := descriptor.Label
		if label == "" {
			label = sourceKey(source)
		}
		items = append(items, domain.ProviderInfo{
			Name:         sourceKey(source),
			Label:        label,
			DownloadKind: descriptor.DownloadKind,
			LogoURL:      descriptor.LogoURL,
			Enabled:      true,
		})
	}
	return items
}

func (s *Service) resolveSources(names []string) ([]Source, error) {
	if len(s.order) == 0 {
		return nil, ErrNoProviders
	}

	selected := make([]Source, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, raw := range names {
		name := strings.ToLower(strings.TrimSpace(raw))
		if name == "" {
			continue
		}
		source, ok := s.sources[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
		}
		if _, exists := seen[name]; exists {
			continue
		}
		seen[name] = struct{}{}
		selected = append(selected, source)
	}
	if len(selected) == 0 {
		return append([]Source(nil), s.order...), nil
	}
	return selected, nil
}

func sourceKey(source Source) string {
	return strings.ToLower(strings.TrimSpace(source.Name()))
}
