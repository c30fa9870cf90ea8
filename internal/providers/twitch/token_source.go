package twitch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"gamefinder/internal/domain"
	"gamefinder/internal/metrics"
)

const (
	defaultExpirySkew     = time.Minute
	defaultRefreshTimeout = 10 * time.Second
)

// Store shares a token between replicas. Implementations report a missing
// token as ok=false with a nil error.
type Store interface {
	Load(ctx context.Context) (domain.AccessToken, bool, error)
	Save(ctx context.Context, token domain.AccessToken) error
	Delete(ctx context.Context) error
}

type tokenFetcher interface {
	GetToken(ctx context.Context, clientID, clientSecret string) (domain.AccessToken, error)
}

type TokenSourceConfig struct {
	ClientID       string
	ClientSecret   string
	Store          Store
	ExpirySkew     time.Duration
	RefreshTimeout time.Duration
	Logger         *slog.Logger
}

// TokenSource caches an access token until shortly before it expires.
// Concurrent callers that find no usable token share a single refresh.
type TokenSource struct {
	fetcher        tokenFetcher
	clientID       string
	clientSecret   string
	store          Store
	skew           time.Duration
	refreshTimeout time.Duration
	logger         *slog.Logger
	now            func() time.Time

	mu     sync.Mutex
	cached domain.AccessToken
	group  singleflight.Group
}

func NewTokenSource(client *Client, cfg TokenSourceConfig) *TokenSource {
	return newTokenSource(client, cfg)
}

func newTokenSource(fetcher tokenFetcher, cfg TokenSourceConfig) *TokenSource {
	skew := cfg.ExpirySkew
	if skew <= 0 {
		skew = defaultExpirySkew
	}
	refreshTimeout := cfg.RefreshTimeout
	if refreshTimeout <= 0 {
		refreshTimeout = defaultRefreshTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &TokenSource{
		fetcher:        fetcher,
		clientID:       cfg.ClientID,
		clientSecret:   cfg.ClientSecret,
		store:          cfg.Store,
		skew:           skew,
		refreshTimeout: refreshTimeout,
		logger:         logger,
		now:            time.Now,
	}
}

// Token returns a usable access token, refreshing it when needed.
func (s *TokenSource) Token(ctx context.Context) (domain.AccessToken, error) {
	if token, ok := s.cachedToken(); ok {
		return token, nil
	}

	ch := s.group.DoChan("token", func() (any, error) {
		// The refresh outlives any single caller so one cancelled request
		// does not fail the others waiting on it.
		refreshCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.refreshTimeout)
		defer cancel()
		return s.refresh(refreshCtx)
	})
	select {
	case <-ctx.Done():
		return domain.AccessToken{}, ctx.Err()
	case result := <-ch:
		if result.Err != nil {
			return domain.AccessToken{}, result.Err
		}
		return result.Val.(domain.AccessToken), nil
	}
}

// Invalidate drops the cached token, e.g. after the API rejected it.
func (s *TokenSource) Invalidate(ctx context.Context) {
	s.mu.Lock()
	s.cached = domain.AccessToken{}
	s.mu.Unlock()
	if s.store == nil {
		return
	}
	if err := s.store.Delete(ctx); err != nil {
		s.logger.Warn("token store delete failed", slog.String("error", err.Error()))
	}
}

func (s *TokenSource) cachedToken() (domain.AccessToken, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cached.Valid(s.now(), s.skew) {
		return s.cached, true
	}
	return domain.AccessToken{}, false
}

func (s *TokenSource) refresh(ctx context.Context) (domain.AccessToken, error) {
	if token, ok := s.cachedToken(); ok {
		return token, nil
	}

	if s.store != nil {
		token, ok, err := s.store.Load(ctx)
		switch {
		case err != nil:
			metrics.TokenRefreshTotal.WithLabelValues("store", "error").Inc()
			s.logger.Warn("token store load failed", slog.String("error", err.Error()))
		case ok && token.Valid(s.now(), s.skew):
			metrics.TokenRefreshTotal.WithLabelValues("store", "ok").Inc()
			s.remember(token)
			return token, nil
		}
	}

	token, err := s.fetcher.GetToken(ctx, s.clientID, s.clientSecret)
	if err != nil {
		metrics.TokenRefreshTotal.WithLabelValues("remote", "error").Inc()
		return domain.AccessToken{}, err
	}
	metrics.TokenRefreshTotal.WithLabelValues("remote", "ok").Inc()
	s.remember(token)

	if s.store != nil {
		if err := s.store.Save(ctx, token); err != nil {
			s.logger.Warn("token store save failed", slog.String("error", err.Error()))
		}
	}
	s.logger.Debug("access token refreshed", slog.Time("expiresAt", token.ExpiresAt))
	return token, nil
}

func (s *TokenSource) remember(token domain.AccessToken) {
	s.mu.Lock()
	s.cached = token
	s.mu.Unlock()
}
