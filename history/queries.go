package history

const insertRunSQL = `INSERT INTO runs (id, run_at, stations, songs_scraped, songs_matched, songs_added, songs_missing, error)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

const insertRunSongSQL = `INSERT INTO run_songs (run_id, kind, position, station, artist, title, track_id)
        VALUES (?, ?, ?, ?, ?, ?, ?)`

const selectRunsSQL = `SELECT id, run_at, stations, songs_scraped, songs_matched, songs_added, songs_missing, error
FROM runs`

const selectRunSongsSQL = `SELECT kind, station, artist, title, track_id
FROM run_songs
WHERE run_id = ?
ORDER BY kind, position`

const statsSQL = `SELECT
    COUNT(*),
    COALESCE(SUM(CASE WHEN error <> '' THEN 1 ELSE 0 END), 0),
    COALESCE(SUM(songs_scraped), 0),
    COALESCE(SUM(songs_added), 0),
    COALESCE(SUM(songs_missing), 0),
    MIN(run_at),
    MAX(run_at)
FROM runs`

const topArtistsSQL = `SELECT MIN(artist), COUNT(*) AS added
FROM run_songs
WHERE kind = 'added'
GROUP BY lower(artist)
ORDER BY added DESC, lower(artist)
LIMIT ?`

const addedDatesSQL = `SELECT s.track_id, MIN(r.run_at)
FROM run_songs s
JOIN runs r ON r.id = s.run_id
WHERE s.kind = 'added' AND s.track_id <> ''
GROUP BY s.track_id`

const upsertMissingSQL = `INSERT INTO missing_songs (key, artist, title, station, isrc, first_seen, last_seen, times_seen, musicbrainz_id)
        VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?)
        ON CONFLICT(key) DO UPDATE SET
            artist=excluded.artist,
            title=excluded.title,
            station=excluded.station,
            isrc=excluded.isrc,
            first_seen=excluded.first_seen,
            last_seen=excluded.last_seen,
            times_seen=1,
            musicbrainz_id=excluded.musicbrainz_id`

const touchMissingSQL = `UPDATE missing_songs
SET last_seen = ?, times_seen = times_seen + 1
WHERE key = ?`

const selectMissingSQL = `SELECT key, artist, title, station, isrc, first_seen, last_seen, times_seen, musicbrainz_id
FROM missing_songs`
