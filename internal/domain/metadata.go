package domain

import (
	"math"
	"time"
)

const (
	MetadataUnavailableNotice = "metadata unavailable"
	DownloadDisclaimer        = "Be aware of the risks of downloading from third-party sites"
)

// MetadataRecord is what the metadata service knows about one game.
// TotalRating is on the service's 0-100 scale.
type MetadataRecord struct {
	GameID         int64    `json:"gameId"`
	CoverID        *int64   `json:"coverId,omitempty"`
	Summary        *string  `json:"summary,omitempty"`
	TotalRating    *float64 `json:"totalRating,omitempty"`
	HeaderImageURL *string  `json:"headerImageUrl,omitempty"`
}

// DisplayRating converts TotalRating to a 0-10 scale rounded to one decimal.
func (m MetadataRecord) DisplayRating() (float64, bool) {
	if m.TotalRating == nil {
		return 0, false
	}
	return math.Round(*m.TotalRating) / 10, true
}

type AccessToken struct {
	Value     string    `json:"value"`
	TokenType string    `json:"tokenType,omitempty"`
	ExpiresAt time.Time `json:"expiresAt,omitempty"`
}

// Valid reports whether the token can still be used at now, keeping skew in reserve.
func (t AccessToken) Valid(now time.Time, skew time.Duration) bool {
	if t.Value == "" {
		return false
	}
	if t.ExpiresAt.IsZero() {
		return true
	}
	return now.Add(skew).Before(t.ExpiresAt)
}

// EnrichedListing is a selected listing together with whatever metadata could
// be found for it. Listing data is always present.
type EnrichedListing struct {
	Listing           Listing         `json:"listing"`
	Metadata          *MetadataRecord `json:"metadata,omitempty"`
	MetadataAvailable bool            `json:"metadataAvailable"`
	DisplayRating     *float64        `json:"displayRating,omitempty"`
	Notice            string          `json:"notice,omitempty"`
	Disclaimer        string          `json:"disclaimer"`
}
