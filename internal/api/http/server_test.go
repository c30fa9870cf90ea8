package apihttp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"gamefinder/internal/domain"
	"gamefinder/internal/search"
)

type fakeSearchService struct {
	lastRequest domain.SearchRequest
	lastListing domain.Listing
	searchErr   error
	enrichErr   error
	callCount   int
}

func (f *fakeSearchService) Search(ctx context.Context, request domain.SearchRequest) (domain.SearchResponse, error) {
	f.callCount++
	f.lastRequest = request
	if f.searchErr != nil {
		return domain.SearchResponse{}, f.searchErr
	}
	statusName := "steamrip"
	if len(request.Providers) > 0 {
		statusName = request.Providers[0]
	}
	return domain.SearchResponse{
		Query:   request.Query,
		Outcome: domain.SearchOutcomeFound,
		Items: []domain.Listing{
			{Title: request.Query + " Free Download", Source: statusName, DownloadKind: domain.DownloadDirect, StrippedTitle: request.Query},
		},
		Providers:  []domain.ProviderStatus{{Name: statusName, OK: true, Count: 1}},
		TotalItems: 1,
		ElapsedMS:  3,
	}, nil
}

func (f *fakeSearchService) Enrich(ctx context.Context, listing domain.Listing) (domain.EnrichedListing, error) {
	f.lastListing = listing
	if f.enrichErr != nil {
		return domain.EnrichedListing{}, f.enrichErr
	}
	rating := 9.4
	return domain.EnrichedListing{
		Listing:           listing,
		Metadata:          &domain.MetadataRecord{GameID: 119133},
		MetadataAvailable: true,
		DisplayRating:     &rating,
		Disclaimer:        domain.DownloadDisclaimer,
	}, nil
}

func (f *fakeSearchService) Providers() []domain.ProviderInfo {
	return []domain.ProviderInfo{
		{Name: "steamrip", Label: "SteamRIP", DownloadKind: domain.DownloadDirect, Enabled: true},
		{Name: "fitgirl", Label: "FitGirl Repacks", DownloadKind: domain.DownloadTorrent, Enabled: true},
	}
}

func (f *fakeSearchService) ProviderDiagnostics() []domain.ProviderDiagnostics {
	return []domain.ProviderDiagnostics{{Name: "steamrip", Label: "SteamRIP", Enabled: true, TotalRequests: 4}}
}

func newTestHandler(svc SearchService, opts ...ServerOption) http.Handler {
	opts = append([]ServerOption{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	return NewServer(svc, opts...).Handler()
}

func decodeErrorCode(t *testing.T, body io.Reader) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(body).Decode(&payload); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return payload.Error.Code
}

func TestSearchEndpointPassesQueryAndProviders(t *testing.T) {
	svc := &fakeSearchService{}
	handler := newTestHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/search?q=elden+ring&providers=FitGirl,steamrip,fitgirl", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.lastRequest.Query != "elden ring" {
		t.Fatalf("unexpected query %q", svc.lastRequest.Query)
	}
	if got := strings.Join(svc.lastRequest.Providers, ","); got != "fitgirl,steamrip" {
		t.Fatalf("unexpected providers %q", got)
	}
	var response domain.SearchResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if response.Outcome != domain.SearchOutcomeFound || len(response.Items) != 1 || response.Items[0].StrippedTitle != "elden ring" {
		t.Fatalf("unexpected response: %+v", response)
	}
	if rec.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected request id header")
	}
}

func TestSearchEndpointKeepsCallerRequestID(t *testing.T) {
	handler := newTestHandler(&fakeSearchService{})
	req := httptest.NewRequest(http.MethodGet, "/search?q=celeste", nil)
	req.Header.Set(requestIDHeader, "req-42")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get(requestIDHeader); got != "req-42" {
		t.Fatalf("expected caller request id, got %q", got)
	}
}

func TestSearchEndpointValidation(t *testing.T) {
	svc := &fakeSearchService{}
	handler := newTestHandler(svc)

	cases := []struct {
		target string
		method string
		status int
	}{
		{"/search", http.MethodGet, http.StatusBadRequest},
		{"/search?q=%20%20", http.MethodGet, http.StatusBadRequest},
		{"/search?q=" + strings.Repeat("a", maxQueryLength+1), http.MethodGet, http.StatusBadRequest},
		{"/search?q=celeste", http.MethodPost, http.StatusMethodNotAllowed},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.target, nil))
		if rec.Code != tc.status {
			t.Fatalf("%s %s: expected %d, got %d", tc.method, truncate(tc.target, 40), tc.status, rec.Code)
		}
	}
	if svc.callCount != 0 {
		t.Fatalf("invalid requests reached the service %d times", svc.callCount)
	}
}

func TestSearchEndpointMapsServiceErrors(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("%w: nope", search.ErrUnknownProvider), http.StatusBadRequest, "invalid_request"},
		{search.ErrNoProviders, http.StatusServiceUnavailable, "service_unavailable"},
		{errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		handler := newTestHandler(&fakeSearchService{searchErr: tc.err})
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/search?q=celeste&providers=nope", nil))
		if rec.Code != tc.status {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.status, rec.Code)
		}
		if code := decodeErrorCode(t, rec.Body); code != tc.code {
			t.Fatalf("%v: expected code %q, got %q", tc.err, tc.code, code)
		}
	}
}

func TestEnrichEndpoint(t *testing.T) {
	svc := &fakeSearchService{}
	handler := newTestHandler(svc)

	body := `{"title":"Elden Ring Free Download Build 5","fileSize":"48.7 GB","uris":["https://steamrip.com/elden-ring"],"downloadKind":"direct","source":"steamrip","strippedTitle":"Elden Ring"}`
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/search/enrich", strings.NewReader(body)))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.lastListing.Title != "Elden Ring Free Download Build 5" || svc.lastListing.DownloadKind != domain.DownloadDirect {
		t.Fatalf("listing not decoded: %+v", svc.lastListing)
	}
	var enriched domain.EnrichedListing
	if err := json.NewDecoder(rec.Body).Decode(&enriched); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !enriched.MetadataAvailable || enriched.DisplayRating == nil || *enriched.DisplayRating != 9.4 {
		t.Fatalf("unexpected enriched listing: %+v", enriched)
	}
	if enriched.Disclaimer != domain.DownloadDisclaimer {
		t.Fatalf("missing disclaimer")
	}
}

func TestEnrichEndpointErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		body   string
		status int
		code   string
	}{
		{"empty body", nil, ``, http.StatusBadRequest, "invalid_request"},
		{"malformed", nil, `{"title":`, http.StatusBadRequest, "invalid_request"},
		{"unknown field", nil, `{"title":"x","bogus":1}`, http.StatusBadRequest, "invalid_request"},
		{"invalid listing", search.ErrInvalidListing, `{"title":""}`, http.StatusBadRequest, "invalid_request"},
		{"auth", fmt.Errorf("%w: token HTTP 403", domain.ErrAuth), `{"title":"x"}`, http.StatusBadGateway, "auth_failed"},
		{"lookup", fmt.Errorf("%w: games: HTTP 500", domain.ErrLookup), `{"title":"x"}`, http.StatusBadGateway, "lookup_failed"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := newTestHandler(&fakeSearchService{enrichErr: tc.err})
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/search/enrich", strings.NewReader(tc.body)))
			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, rec.Code, rec.Body.String())
			}
			if code := decodeErrorCode(t, rec.Body); code != tc.code {
				t.Fatalf("expected code %q, got %q", tc.code, code)
			}
		})
	}

	handler := newTestHandler(&fakeSearchService{})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/search/enrich", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestProvidersEndpoints(t *testing.T) {
	handler := newTestHandler(&fakeSearchService{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/search/providers", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var providers struct {
		Items []domain.ProviderInfo `json:"items"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&providers); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(providers.Items) != 2 || providers.Items[0].Name != "steamrip" || providers.Items[1].DownloadKind != domain.DownloadTorrent {
		t.Fatalf("unexpected providers: %+v", providers.Items)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/search/providers/health", nil))
	var health struct {
		Items []domain.ProviderDiagnostics `json:"items"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&health); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(health.Items) != 1 || health.Items[0].TotalRequests != 4 {
		t.Fatalf("unexpected diagnostics: %+v", health.Items)
	}
}

func TestProviderTestEndpoint(t *testing.T) {
	svc := &fakeSearchService{}
	handler := newTestHandler(svc)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/search/providers/test?provider=FitGirl", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var payload struct {
		Provider string   `json:"provider"`
		OK       bool     `json:"ok"`
		Count    int      `json:"count"`
		Sample   []string `json:"sample"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Provider != "fitgirl" || !payload.OK || payload.Count != 1 || len(payload.Sample) != 1 {
		t.Fatalf("unexpected payload: %+v", payload)
	}
	if len(svc.lastRequest.Providers) != 1 || svc.lastRequest.Providers[0] != "fitgirl" || svc.lastRequest.Query != "elden ring" {
		t.Fatalf("unexpected request: %+v", svc.lastRequest)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/search/providers/test", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without provider, got %d", rec.Code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	handler := newTestHandler(&fakeSearchService{})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Fatalf("unexpected health response: %d %s", rec.Code, rec.Body.String())
	}
}

func TestAccessLogCarriesSearchContext(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	handler := newTestHandler(&fakeSearchService{}, WithLogger(logger))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/search?q=hades&providers=fitgirl", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var entry map[string]any
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		var candidate map[string]any
		if err := json.Unmarshal(line, &candidate); err != nil {
			t.Fatalf("decode log line %q: %v", line, err)
		}
		if candidate["msg"] == "http request" {
			entry = candidate
		}
	}
	if entry == nil {
		t.Fatalf("no access log line in %q", buf.String())
	}
	selected, _ := entry["selectedProviders"].([]any)
	if len(selected) != 1 || selected[0] != "fitgirl" {
		t.Fatalf("selectedProviders = %v", entry["selectedProviders"])
	}
	if entry["outcome"] != string(domain.SearchOutcomeFound) {
		t.Fatalf("outcome = %v", entry["outcome"])
	}
	if entry["items"] != float64(1) {
		t.Fatalf("items = %v", entry["items"])
	}
	if _, ok := entry["requestId"]; !ok {
		t.Fatal("expected requestId on access log line")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	handler := newTestHandler(&fakeSearchService{})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Fatalf("expected default runtime metrics in scrape output")
	}
}

func TestRateLimitRejectsBurst(t *testing.T) {
	handler := newTestHandler(&fakeSearchService{}, WithRateLimit(0.001, 1))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/search?q=celeste", nil))
	second := httptest.NewRecorder()
	handler.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/search?q=celeste", nil))

	if first.Code != http.StatusOK || second.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 200 then 429, got %d then %d", first.Code, second.Code)
	}
	if second.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}
}

type panickingService struct{ fakeSearchService }

func (p *panickingService) Providers() []domain.ProviderInfo { panic("registry exploded") }

func TestRecoveryMiddlewareReturns500(t *testing.T) {
	handler := newTestHandler(&panickingService{})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/search/providers", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestImageProxyAllowsOnlyKnownHosts(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n" + strings.Repeat("\x00", 16))
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/header.jpg":
			w.Header().Set("Content-Type", "image/jpeg")
			_, _ = w.Write([]byte("jpeg-bytes"))
		case "/logo":
			_, _ = w.Write(png)
		case "/page":
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("<html></html>"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer upstream.Close()
	upstreamURL, _ := url.Parse(upstream.URL)

	handler := newTestHandler(&fakeSearchService{},
		WithImageHosts(upstreamURL.Hostname()),
		WithImageClient(upstream.Client()),
	)

	proxy := func(target string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/search/image?url="+url.QueryEscape(target), nil))
		return rec
	}

	if rec := proxy(upstream.URL + "/header.jpg"); rec.Code != http.StatusOK || rec.Body.String() != "jpeg-bytes" || rec.Header().Get("Content-Type") != "image/jpeg" {
		t.Fatalf("unexpected proxied image: %d %q", rec.Code, rec.Body.String())
	}
	if rec := proxy(upstream.URL + "/logo"); rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "image/png" {
		t.Fatalf("expected sniffed png, got %d %q", rec.Code, rec.Header().Get("Content-Type"))
	}
	if rec := proxy(upstream.URL + "/page"); rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 for non-image, got %d", rec.Code)
	}
	if rec := proxy(upstream.URL + "/missing"); rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 for upstream 404, got %d", rec.Code)
	}
	if rec := proxy("https://evil.example/header.jpg"); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for foreign host, got %d", rec.Code)
	}
	if rec := proxy("file:///etc/passwd"); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for file scheme, got %d", rec.Code)
	}
}

func TestValidateImageURLDefaults(t *testing.T) {
	server := NewServer(&fakeSearchService{})
	for _, raw := range []string{
		"https://cdn.akamai.steamstatic.com/steam/apps/1245620/header.jpg",
		"https://images.igdb.com/igdb/image/upload/t_cover_big/co4jni.jpg",
		"https://i.imgur.com/Ok00lU7.png",
	} {
		u, _ := url.Parse(raw)
		if err := validateImageURL(u, server.imageHosts); err != nil {
			t.Fatalf("expected %s to be allowed: %v", raw, err)
		}
	}
	u, _ := url.Parse("http://127.0.0.1:6379/")
	if err := validateImageURL(u, server.imageHosts); !errors.Is(err, errImageHostNotAllowed) {
		t.Fatalf("expected local address rejected, got %v", err)
	}
}
