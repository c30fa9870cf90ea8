package catalog

import (
	"net/http"
	"strings"

	"gamefinder/internal/domain"
)

// Registry is the static provider table, in default search order.
var Registry = []domain.SourceDescriptor{
	{
		Name:         "steamrip",
		Label:        "SteamRIP",
		SourceURL:    "https://hydralinks.cloud/sources/steamrip.json",
		DownloadKind: domain.DownloadDirect,
		LogoURL:      "https://i.imgur.com/Ok00lU7.png",
	},
	{
		Name:         "fitgirl",
		Label:        "FitGirl Repacks",
		SourceURL:    "https://hydralinks.cloud/sources/fitgirl.json",
		DownloadKind: domain.DownloadTorrent,
		LogoURL:      "https://i.imgur.com/RZUbMYs.png",
	},
}

type RegistryOptions struct {
	// Endpoints overrides SourceURL by provider name.
	Endpoints map[string]string
	// Enabled restricts the registry to these names. Empty keeps every provider.
	Enabled   []string
	UserAgent string
	Client    *http.Client
}

// NewProviders builds one Provider per enabled registry entry, keeping
// registry order.
func NewProviders(opts RegistryOptions) []*Provider {
	enabled := make(map[string]struct{}, len(opts.Enabled))
	for _, name := range opts.Enabled {
		key := strings.ToLower(strings.TrimSpace(name))
		if key != "" {
			enabled[key] = struct{}{}
		}
	}

	providers := make([]*Provider, 0, len(Registry))
	for _, descriptor := range Registry {
		if len(enabled) > 0 {
			if _, ok := enabled[descriptor.Name]; !ok {
				continue
			}
		}
		if endpoint := strings.TrimSpace(opts.Endpoints[descriptor.Name]); endpoint != "" {
			descriptor.SourceURL = endpoint
		}
		providers = append(providers, NewProvider(Config{
			Descriptor: descriptor,
			UserAgent:  opts.UserAgent,
			Client:     opts.Client,
		}))
	}
	return providers
}
