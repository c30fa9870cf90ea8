package twitch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"gamefinder/internal/domain"
)

const defaultTokenURL = "https://id.twitch.tv/oauth2/token"

type Config struct {
	TokenURL string
	Client   *http.Client
}

// Client performs the OAuth client-credentials exchange against Twitch.
type Client struct {
	tokenURL string
	http     *http.Client
	now      func() time.Time
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

func NewClient(cfg Config) *Client {
	tokenURL := strings.TrimSpace(cfg.TokenURL)
	if tokenURL == "" {
		tokenURL = defaultTokenURL
	}
	httpClient := cfg.Client
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		tokenURL: tokenURL,
		http:     httpClient,
		now:      time.Now,
	}
}

// GetToken requests a new app access token. Every call hits the network.
func (c *Client) GetToken(ctx context.Context, clientID, clientSecret string) (domain.AccessToken, error) {
	params := url.Values{
		"client_id":     {clientID},
		"client_secret": {clientSecret},
		"grant_type":    {"client_credentials"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL+"?"+params.Encode(), nil)
	if err != nil {
		return domain.AccessToken{}, fmt.Errorf("%w: build token request: %v", domain.ErrAuth, err)
	}
	req.Header.Set("Accept", "application/json")

	requestedAt := c.now()
	resp, err := c.http.Do(req)
	if err != nil {
		return domain.AccessToken{}, fmt.Errorf("%w: %w", domain.ErrAuth, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.AccessToken{}, fmt.Errorf("%w: token HTTP %d: %s", domain.ErrAuth, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload tokenResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64*1024)).Decode(&payload); err != nil {
		return domain.AccessToken{}, fmt.Errorf("%w: decode token response: %v", domain.ErrAuth, err)
	}
	if strings.TrimSpace(payload.AccessToken) == "" {
		return domain.AccessToken{}, fmt.Errorf("%w: token response has no access_token", domain.ErrAuth)
	}

	token := domain.AccessToken{
		Value:     payload.AccessToken,
		TokenType: payload.TokenType,
	}
	if payload.ExpiresIn > 0 {
		token.ExpiresAt = requestedAt.Add(time.Duration(payload.ExpiresIn) * time.Second)
	}
	return token, nil
}
