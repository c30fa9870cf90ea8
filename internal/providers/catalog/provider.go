package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"gamefinder/internal/domain"
)

const (
	defaultUserAgent = "gamefinder/1.0"
	maxCatalogBytes  = 16 * 1024 * 1024
)

type Config struct {
	Descriptor domain.SourceDescriptor
	UserAgent  string
	Client     *http.Client
}

// Provider is a remote JSON catalog in the hydra "downloads" format.
type Provider struct {
	client     *http.Client
	descriptor domain.SourceDescriptor
	userAgent  string
}

type catalogPayload struct {
	Name      string              `json:"name"`
	Downloads []domain.RawListing `json:"downloads"`
}

func NewProvider(cfg Config) *Provider {
	client := cfg.Client
	if client == nil {
		client = &http.Client{}
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	descriptor := cfg.Descriptor
	descriptor.Name = strings.ToLower(strings.TrimSpace(descriptor.Name))
	descriptor.SourceURL = strings.TrimSpace(descriptor.SourceURL)
	if descriptor.Label == "" {
		descriptor.Label = descriptor.Name
	}
	descriptor.DownloadKind = domain.NormalizeDownloadKind(string(descriptor.DownloadKind))

	return &Provider{
		client:     client,
		descriptor: descriptor,
		userAgent:  userAgent,
	}
}

func (p *Provider) Name() string {
	return p.descriptor.Name
}

func (p *Provider) Descriptor() domain.SourceDescriptor {
	return p.descriptor
}

func (p *Provider) FetchListings(ctx context.Context) ([]domain.RawListing, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.descriptor.SourceURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: invalid source url: %v", domain.ErrFetch, p.descriptor.Name, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", p.userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrFetch, p.descriptor.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: %s: HTTP %d: %s", domain.ErrFetch, p.descriptor.Name, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxCatalogBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: read body: %w", domain.ErrFetch, p.descriptor.Name, err)
	}

	listings, err := parseCatalog(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrFetch, p.descriptor.Name, err)
	}
	return listings, nil
}

func parseCatalog(payload []byte) ([]domain.RawListing, error) {
	var catalog catalogPayload
	if err := json.Unmarshal(payload, &catalog); err != nil {
		return nil, fmt.Errorf("malformed catalog json: %w", err)
	}
	listings := make([]domain.RawListing, 0, len(catalog.Downloads))
	for _, item := range catalog.Downloads {
		item.Title = strings.TrimSpace(item.Title)
		if item.Title == "" {
			continue
		}
		listings = append(listings, item)
	}
	return listings, nil
}
