package twitch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gamefinder/internal/domain"
)

func TestGetTokenSendsClientCredentials(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		query := r.URL.Query()
		if query.Get("client_id") != "id-1" || query.Get("client_secret") != "secret-1" || query.Get("grant_type") != "client_credentials" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok-abc","expires_in":5000000,"token_type":"bearer"}`))
	}))
	defer server.Close()

	client := NewClient(Config{TokenURL: server.URL, Client: server.Client()})
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	client.now = func() time.Time { return now }

	token, err := client.GetToken(context.Background(), "id-1", "secret-1")
	if err != nil {
		t.Fatalf("GetToken: %v", err)
	}
	if token.Value != "tok-abc" || token.TokenType != "bearer" {
		t.Fatalf("unexpected token: %+v", token)
	}
	if want := now.Add(5000000 * time.Second); !token.ExpiresAt.Equal(want) {
		t.Fatalf("expected expiry %s, got %s", want, token.ExpiresAt)
	}
}

func TestGetTokenFailuresAreAuthErrors(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"rejected": func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"status":403,"message":"invalid client secret"}`, http.StatusForbidden)
		},
		"missing token": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"expires_in":100}`))
		},
		"malformed": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`not json`))
		},
	}
	for name, handler := range cases {
		t.Run(name, func(t *testing.T) {
			server := httptest.NewServer(handler)
			defer server.Close()
			client := NewClient(Config{TokenURL: server.URL, Client: server.Client()})
			if _, err := client.GetToken(context.Background(), "id", "secret"); !errors.Is(err, domain.ErrAuth) {
				t.Fatalf("expected ErrAuth, got %v", err)
			}
		})
	}
}

func TestGetTokenUnreachableIsAuthError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client := NewClient(Config{TokenURL: url})
	if _, err := client.GetToken(context.Background(), "id", "secret"); !errors.Is(err, domain.ErrAuth) {
		t.Fatalf("expected ErrAuth, got %v", err)
	}
}
