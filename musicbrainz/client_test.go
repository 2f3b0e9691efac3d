package musicbrainz

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/time/rate"
)

func newTestServer(t *testing.T) *Client {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		if r.URL.Query().Get("fmt") != "json" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		switch r.URL.Path {
		case "/isrc/USSM10301234":
			fmt.Fprint(w, `{"isrc":"USSM10301234","recordings":[{"id":"rec-1","title":"Dare You to Move"}]}`)
		case "/isrc/UNKNOWN00000":
			w.WriteHeader(http.StatusNotFound)
		case "/recording/":
			if r.URL.Query().Get("query") == `artist:"TobyMac" AND recording:"Feel It"` {
				fmt.Fprint(w, `{"recordings":[{"id":"rec-2","title":"Feel It","score":100}]}`)
				return
			}
			fmt.Fprint(w, `{"recordings":[{"id":"weak","title":"Something","score":40}]}`)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	t.Cleanup(server.Close)

	client := NewClientWithBaseURL(server.URL + "/")
	client.limiter = rate.NewLimiter(rate.Inf, 1)
	return client
}

func TestNewClient(t *testing.T) {
	client := NewClient()
	if client == nil {
		t.Fatal("Expected client to be created, got nil")
	}

	if client.httpClient == nil {
		t.Error("Expected httpClient to be initialized, got nil")
	}

	if client.userAgent == "" {
		t.Error("Expected userAgent to be set, got empty string")
	}

	if client.baseURL != DefaultBaseURL {
		t.Errorf("Expected base URL %s, got %s", DefaultBaseURL, client.baseURL)
	}
}

func TestGetMusicBrainzIDByISRC(t *testing.T) {
	client := newTestServer(t)
	ctx := context.Background()

	// Test with empty ISRC
	if _, err := client.GetMusicBrainzIDByISRC(ctx, ""); err == nil {
		t.Error("Expected error for empty ISRC, got nil")
	}

	id, err := client.GetMusicBrainzIDByISRC(ctx, "USSM10301234")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if id != "rec-1" {
		t.Errorf("Expected rec-1, got %s", id)
	}

	if _, err := client.GetMusicBrainzIDByISRC(ctx, "UNKNOWN00000"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestGetMusicBrainzIDByArtistAndTitle(t *testing.T) {
	client := newTestServer(t)
	ctx := context.Background()

	// Test with empty parameters
	if _, err := client.GetMusicBrainzIDByArtistAndTitle(ctx, "", "Feel It"); err == nil {
		t.Error("Expected error for empty artist, got nil")
	}
	if _, err := client.GetMusicBrainzIDByArtistAndTitle(ctx, "TobyMac", ""); err == nil {
		t.Error("Expected error for empty title, got nil")
	}

	id, err := client.GetMusicBrainzIDByArtistAndTitle(ctx, "TobyMac", "Feel It")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if id != "rec-2" {
		t.Errorf("Expected rec-2, got %s", id)
	}

	// Low-score hits are not trusted
	if _, err := client.GetMusicBrainzIDByArtistAndTitle(ctx, "Nobody", "Nothing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for weak hits, got %v", err)
	}
}

func TestRateLimitHonorsContext(t *testing.T) {
	client := NewClientWithBaseURL("http://127.0.0.1:0")
	client.limiter = rate.NewLimiter(rate.Every(1e12), 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := client.GetMusicBrainzIDByISRC(ctx, "USSM10301234"); err == nil {
		t.Error("Expected error from cancelled context, got nil")
	}
}
