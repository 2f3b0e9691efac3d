package spotify

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/zmb3/spotify/v2"
	"golang.org/x/oauth2/clientcredentials"
)

func TestNewClientRequiresCredentials(t *testing.T) {
	if _, err := NewClient(context.Background(), "", "secret"); err == nil {
		t.Error("Expected error for missing client ID, got nil")
	}
	if _, err := NewClient(context.Background(), "id", ""); err == nil {
		t.Error("Expected error for missing client secret, got nil")
	}
}

func TestClientRenewsExpiredToken(t *testing.T) {
	var issued atomic.Int32
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := issued.Add(1)
		w.Header().Set("Content-Type", "application/json")
		// Shorter than the oauth2 expiry margin, so every request needs a new token
		fmt.Fprintf(w, `{"access_token":"token-%d","token_type":"bearer","expires_in":1}`, n)
	}))
	defer tokenServer.Close()

	apiServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		want := fmt.Sprintf("Bearer token-%d", issued.Load())
		if got := r.Header.Get("Authorization"); got != want {
			t.Errorf("Expected Authorization %q, got %q", want, got)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"mirror","name":"Journey FM Mirror"}`)
	}))
	defer apiServer.Close()

	ctx := context.Background()
	client, err := newClient(ctx, &clientcredentials.Config{
		ClientID:     "id",
		ClientSecret: "secret",
		TokenURL:     tokenServer.URL,
	}, spotify.WithBaseURL(apiServer.URL+"/"))
	if err != nil {
		t.Fatalf("newClient() error = %v", err)
	}

	for i := 0; i < 2; i++ {
		name, err := client.GetPlaylistName(ctx, "mirror")
		if err != nil {
			t.Fatalf("GetPlaylistName() call %d error = %v", i+1, err)
		}
		if name != "Journey FM Mirror" {
			t.Errorf("Expected name 'Journey FM Mirror', got %s", name)
		}
	}

	if got := issued.Load(); got != 3 {
		t.Errorf("Expected 3 tokens (startup plus one per expired call), got %d", got)
	}
}

func TestNewClientFailsOnRejectedCredentials(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_client"}`, http.StatusUnauthorized)
	}))
	defer tokenServer.Close()

	_, err := newClient(context.Background(), &clientcredentials.Config{
		ClientID:     "id",
		ClientSecret: "wrong",
		TokenURL:     tokenServer.URL,
	})
	if err == nil {
		t.Error("Expected error for rejected credentials, got nil")
	}
}

func TestConvertTrackToSong(t *testing.T) {
	track := spotify.FullTrack{
		SimpleTrack: spotify.SimpleTrack{
			ID:   "track_id",
			Name: "Dare You to Move",
			URI:  "spotify:track:track_id",
			Artists: []spotify.SimpleArtist{
				{Name: "Switchfoot"},
				{Name: "Someone Else"},
			},
		},
		Album:       spotify.SimpleAlbum{Name: "The Beautiful Letdown"},
		ExternalIDs: map[string]string{"isrc": "USSM10301234"},
	}

	song := convertTrackToSong(track)

	if song.ID != "track_id" {
		t.Errorf("Expected ID to be 'track_id', got %s", song.ID)
	}
	if song.Name != "Dare You to Move" {
		t.Errorf("Expected Name to be 'Dare You to Move', got %s", song.Name)
	}
	if song.Artist != "Switchfoot" {
		t.Errorf("Expected first artist 'Switchfoot', got %s", song.Artist)
	}
	if song.Album != "The Beautiful Letdown" {
		t.Errorf("Expected Album to be 'The Beautiful Letdown', got %s", song.Album)
	}
	if song.ISRC != "USSM10301234" {
		t.Errorf("Expected ISRC to be 'USSM10301234', got %s", song.ISRC)
	}
}

func TestConvertTrackWithoutArtists(t *testing.T) {
	song := convertTrackToSong(spotify.FullTrack{SimpleTrack: spotify.SimpleTrack{Name: "Untitled"}})
	if song.Artist != "" {
		t.Errorf("Expected empty artist, got %s", song.Artist)
	}
}
