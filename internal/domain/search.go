package domain

import "time"

type SearchRequest struct {
	Query     string
	Providers []string
}

type SearchOutcome string

const (
	SearchOutcomeFound       SearchOutcome = "found"
	SearchOutcomeNotFound    SearchOutcome = "not_found"
	SearchOutcomeUnavailable SearchOutcome = "unavailable"
)

type ProviderInfo struct {
	Name         string       `json:"name"`
	Label        string       `json:"label"`
	DownloadKind DownloadKind `json:"downloadKind"`
	LogoURL      string       `json:"logoUrl,omitempty"`
	Enabled      bool         `json:"enabled"`
}

type ProviderStatus struct {
	Name  string `json:"name"`
	OK    bool   `json:"ok"`
	Count int    `json:"count"`
	Error string `json:"error,omitempty"`
}

type ProviderDiagnostics struct {
	Name                string       `json:"name"`
	Label               string       `json:"label"`
	DownloadKind        DownloadKind `json:"downloadKind"`
	Enabled             bool         `json:"enabled"`
	ConsecutiveFailures int          `json:"consecutiveFailures"`
	LastError           string       `json:"lastError,omitempty"`
	LastSuccessAt       *time.Time   `json:"lastSuccessAt,omitempty"`
	LastFailureAt       *time.Time   `json:"lastFailureAt,omitempty"`
	LastLatencyMS       int64        `json:"lastLatencyMs,omitempty"`
	LastTimeout         bool         `json:"lastTimeout,omitempty"`
	LastQuery           string       `json:"lastQuery,omitempty"`
	LastListingCount    int          `json:"lastListingCount,omitempty"`
	TotalRequests       int64        `json:"totalRequests,omitempty"`
	TotalFailures       int64        `json:"totalFailures,omitempty"`
	TimeoutCount        int64        `json:"timeoutCount,omitempty"`
}

type SearchResponse struct {
	Query      string           `json:"query"`
	Outcome    SearchOutcome    `json:"outcome"`
	Items      []Listing        `json:"items"`
	Providers  []ProviderStatus `json:"providers"`
	TotalItems int              `json:"totalItems"`
	ElapsedMS  int64            `json:"elapsedMs"`
}

// FailedProviders lists the names of the providers that did not answer.
func (r SearchResponse) FailedProviders() []string {
	var failed []string
	for _, status := range r.Providers {
		if !status.OK {
			failed = append(failed, status.Name)
		}
	}
	return failed
}

// OutcomeFor classifies a merged search result.
func OutcomeFor(items int, statuses []ProviderStatus) SearchOutcome {
	if items > 0 {
		return SearchOutcomeFound
	}
	for _, status := range statuses {
		if status.OK {
			return SearchOutcomeNotFound
		}
	}
	return SearchOutcomeUnavailable
}
