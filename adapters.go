package main

import (
	"context"

	"github.com/grrywlsn/radioplex/matcher"
	"github.com/grrywlsn/radioplex/plex"
	"github.com/grrywlsn/radioplex/reconcile"
)

// plexLibrary exposes Plex search to the matcher.
type plexLibrary struct {
	client *plex.Client
}

func (l plexLibrary) SearchTracks(ctx context.Context, query string) ([]matcher.Candidate, error) {
	tracks, err := l.client.SearchTracks(ctx, query)
	if err != nil {
		return nil, err
	}

	candidates := make([]matcher.Candidate, len(tracks))
	for i, t := range tracks {
		candidates[i] = matcher.Candidate{ID: t.ID, Artist: t.Artist, Title: t.Title, Album: t.Album}
	}
	return candidates, nil
}

// plexPlaylists exposes Plex playlists to the reconciler.
type plexPlaylists struct {
	client *plex.Client
}

func (p plexPlaylists) FindPlaylist(ctx context.Context, name string) (*reconcile.PlaylistHandle, error) {
	playlist, err := p.client.FindPlaylist(ctx, name)
	if err != nil || playlist == nil {
		return nil, err
	}
	return &reconcile.PlaylistHandle{ID: playlist.ID, Name: playlist.Title}, nil
}

func (p plexPlaylists) PlaylistTrackIDs(ctx context.Context, handle reconcile.PlaylistHandle) ([]string, error) {
	tracks, err := p.client.PlaylistItems(ctx, handle.ID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(tracks))
	for i, t := range tracks {
		ids[i] = t.ID
	}
	return ids, nil
}

func (p plexPlaylists) CreatePlaylist(ctx context.Context, name string, trackIDs []string) (*reconcile.PlaylistHandle, error) {
	playlist, err := p.client.CreatePlaylist(ctx, name, trackIDs)
	if err != nil {
		return nil, err
	}
	return &reconcile.PlaylistHandle{ID: playlist.ID, Name: playlist.Title}, nil
}

func (p plexPlaylists) AddToPlaylist(ctx context.Context, handle reconcile.PlaylistHandle, trackIDs []string) error {
	_, err := p.client.AddItems(ctx, handle.ID, trackIDs)
	return err
}
