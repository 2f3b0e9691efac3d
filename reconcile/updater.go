package reconcile

import (
	"context"
	"fmt"
	"log/slog"
)

// Updater creates and appends to the target playlist. Every error it returns
// wraps ErrPlaylistUpdateFailed.
type Updater struct {
	service PlaylistService
	logger  *slog.Logger
}

// NewUpdater creates an Updater over the media server's playlists.
func NewUpdater(service PlaylistService, logger *slog.Logger) *Updater {
	if logger == nil {
		logger = slog.Default()
	}
	return &Updater{service: service, logger: logger}
}

// State reads the playlist's current contents.
func (u *Updater) State(ctx context.Context, name string) (PlaylistState, error) {
	handle, err := u.service.FindPlaylist(ctx, name)
	if err != nil {
		return PlaylistState{}, fmt.Errorf("%w: find playlist %q: %v", ErrPlaylistUpdateFailed, name, err)
	}
	if handle == nil {
		return PlaylistState{}, nil
	}

	ids, err := u.service.PlaylistTrackIDs(ctx, *handle)
	if err != nil {
		return PlaylistState{}, fmt.Errorf("%w: read playlist %q: %v", ErrPlaylistUpdateFailed, name, err)
	}
	return PlaylistState{Handle: handle, TrackIDs: ids}, nil
}

// EnsurePlaylist returns the named playlist, creating it with seed when it is
// absent. created reports whether seed is already in the playlist.
func (u *Updater) EnsurePlaylist(ctx context.Context, name string, seed []string) (handle PlaylistHandle, created bool, err error) {
	existing, err := u.service.FindPlaylist(ctx, name)
	if err != nil {
		return PlaylistHandle{}, false, fmt.Errorf("%w: find playlist %q: %v", ErrPlaylistUpdateFailed, name, err)
	}
	if existing != nil {
		return *existing, false, nil
	}
	if len(seed) == 0 {
		return PlaylistHandle{}, false, fmt.Errorf("%w: playlist %q does not exist and there is nothing to create it with", ErrPlaylistUpdateFailed, name)
	}

	createdHandle, err := u.service.CreatePlaylist(ctx, name, seed)
	if err != nil {
		return PlaylistHandle{}, false, fmt.Errorf("%w: create playlist %q: %v", ErrPlaylistUpdateFailed, name, err)
	}
	u.logger.Info("created playlist", "playlist", name, "tracks", len(seed))
	return *createdHandle, true, nil
}

// Append adds the tracks to the playlist in one batch, in order.
func (u *Updater) Append(ctx context.Context, handle PlaylistHandle, trackIDs []string) error {
	if len(trackIDs) == 0 {
		return nil
	}
	if err := u.service.AddToPlaylist(ctx, handle, trackIDs); err != nil {
		return fmt.Errorf("%w: append to %q: %v", ErrPlaylistUpdateFailed, handle.Name, err)
	}
	u.logger.Info("appended tracks", "playlist", handle.Name, "tracks", len(trackIDs))
	return nil
}

// Commit writes the batch: append when the playlist exists, otherwise create
// it holding the batch.
func (u *Updater) Commit(ctx context.Context, state PlaylistState, name string, trackIDs []string) error {
	if len(trackIDs) == 0 {
		return nil
	}
	if state.Handle != nil {
		return u.Append(ctx, *state.Handle, trackIDs)
	}

	handle, created, err := u.EnsurePlaylist(ctx, name, trackIDs)
	if err != nil {
		return err
	}
	if created {
		return nil
	}
	// Someone created it since the state was read.
	return u.Append(ctx, handle, trackIDs)
}
