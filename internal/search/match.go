package search

import (
	"strings"

	"golang.org/x/text/cases"

	"gamefinder/internal/domain"
	"gamefinder/internal/providers/catalog"
)

// Match keeps the listings whose title contains query, ignoring case, and
// decorates them with the source's download kind and logo. Catalog order is
// preserved.
func Match(query string, listings []domain.RawListing, descriptor domain.SourceDescriptor) []domain.Listing {
	// A Caser carries state and must not be shared across goroutines.
	fold := cases.Fold()
	needle := fold.String(strings.TrimSpace(query))

	matched := make([]domain.Listing, 0)
	if needle == "" {
		return matched
	}
	for _, raw := range listings {
		if !strings.Contains(fold.String(raw.Title), needle) {
			continue
		}
		matched = append(matched, domain.Listing{
			Title:         raw.Title,
			FileSize:      raw.FileSize,
			SizeBytes:     catalog.ParseFileSize(raw.FileSize),
			URIs:          append([]string(nil), raw.URIs...),
			DownloadKind:  descriptor.DownloadKind,
			ProviderLogo:  descriptor.LogoURL,
			Source:        descriptor.Name,
			UploadDate:    raw.UploadDate,
			StrippedTitle: Normalize(raw.Title),
		})
	}
	return matched
}
