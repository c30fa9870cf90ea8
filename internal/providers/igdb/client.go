package igdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"gamefinder/internal/domain"
	"gamefinder/internal/metrics"
)

const (
	defaultBaseURL        = "https://api.igdb.com/v4"
	headerImageTemplate   = "https://cdn.akamai.steamstatic.com/steam/apps/%s/header.jpg"
	steamCategory         = 1
	defaultRequestsPerSec = 4
	maxResponseBytes      = 1 << 20
)

// TokenSource supplies bearer tokens for the API.
type TokenSource interface {
	Token(ctx context.Context) (domain.AccessToken, error)
	Invalidate(ctx context.Context)
}

type Config struct {
	ClientID          string
	BaseURL           string
	Client            *http.Client
	Tokens            TokenSource
	RequestsPerSecond float64
}

type Client struct {
	clientID string
	baseURL  string
	http     *http.Client
	tokens   TokenSource
	limiter  *rate.Limiter
}

type gameRecord struct {
	ID          int64    `json:"id"`
	Cover       *int64   `json:"cover"`
	Summary     *string  `json:"summary"`
	TotalRating *float64 `json:"total_rating"`
}

type externalGameRecord struct {
	ID  int64  `json:"id"`
	UID string `json:"uid"`
}

func NewClient(cfg Config) *Client {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	httpClient := cfg.Client
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = defaultRequestsPerSec
	}
	return &Client{
		clientID: strings.TrimSpace(cfg.ClientID),
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     httpClient,
		tokens:   cfg.Tokens,
		limiter:  rate.NewLimiter(rate.Limit(rps), int(max(1, rps))),
	}
}

// FetchDetails looks title up and resolves its Steam header image. A title
// with no match is domain.ErrNotFound; a game without a Steam entry keeps a
// nil HeaderImageURL.
func (c *Client) FetchDetails(ctx context.Context, title string) (domain.MetadataRecord, error) {
	var games []gameRecord
	query := fmt.Sprintf("search \"%s\"; fields cover,summary,total_rating; limit 1;", escapeSearchTerm(title))
	if err := c.post(ctx, "games", query, &games); err != nil {
		return domain.MetadataRecord{}, err
	}
	if len(games) == 0 {
		return domain.MetadataRecord{}, fmt.Errorf("%w: %q", domain.ErrNotFound, title)
	}
	game := games[0]
	record := domain.MetadataRecord{
		GameID:      game.ID,
		CoverID:     game.Cover,
		Summary:     game.Summary,
		TotalRating: game.TotalRating,
	}

	var external []externalGameRecord
	query = fmt.Sprintf("fields uid; where category = %d & game = %d; limit 1;", steamCategory, game.ID)
	if err := c.post(ctx, "external_games", query, &external); err != nil {
		return domain.MetadataRecord{}, err
	}
	if len(external) > 0 && strings.TrimSpace(external[0].UID) != "" {
		header := fmt.Sprintf(headerImageTemplate, strings.TrimSpace(external[0].UID))
		record.HeaderImageURL = &header
	}
	return record, nil
}

func (c *Client) post(ctx context.Context, endpoint, body string, out any) (err error) {
	startedAt := time.Now()
	status := "ok"
	defer func() {
		if err != nil {
			status = "error"
			if errors.Is(err, domain.ErrAuth) {
				status = "unauthorized"
			}
		}
		metrics.MetadataRequestsTotal.WithLabelValues(endpoint, status).Inc()
		metrics.MetadataRequestDuration.WithLabelValues(endpoint).Observe(time.Since(startedAt).Seconds())
	}()

	if c.tokens == nil {
		return fmt.Errorf("%w: no token source configured", domain.ErrAuth)
	}
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %s: rate limit wait: %w", domain.ErrLookup, endpoint, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+endpoint, strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrLookup, endpoint, err)
	}
	req.Header.Set("Client-ID", c.clientID)
	req.Header.Set("Authorization", "Bearer "+token.Value)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "text/plain")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", domain.ErrLookup, endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		c.tokens.Invalidate(ctx)
		return fmt.Errorf("%w: %s: HTTP 401", domain.ErrAuth, endpoint)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %s: HTTP %d: %s", domain.ErrLookup, endpoint, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(out); err != nil {
		return fmt.Errorf("%w: %s: decode: %v", domain.ErrLookup, endpoint, err)
	}
	return nil
}

// escapeSearchTerm keeps a title inside the quoted search clause.
func escapeSearchTerm(title string) string {
	quoted := strconv.Quote(strings.TrimSpace(title))
	return quoted[1 : len(quoted)-1]
}
