package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/RobertvdLeeuw/spotdl-lean/internal/models"
)

// RecordDownload inserts or replaces the history row for a song.
func (s *Store) RecordDownload(rec models.DownloadRecord) error {
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now()
	}
	query := `
		INSERT INTO downloads (song_id, display_name, path, status, message, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(song_id) DO UPDATE SET
			display_name = excluded.display_name,
			path = excluded.path,
			status = excluded.status,
			message = excluded.message,
			updated_at = excluded.updated_at;
	`
	_, err := s.db.Exec(query, rec.SongID, rec.DisplayName, rec.Path, rec.Status, rec.Message, rec.UpdatedAt)
	return err
}

// GetDownload returns the history row for songID or ErrNotFound.
func (s *Store) GetDownload(songID string) (*models.DownloadRecord, error) {
	var rec models.DownloadRecord
	err := s.db.QueryRow(
		"SELECT song_id, display_name, path, status, message, updated_at FROM downloads WHERE song_id = ?", songID,
	).Scan(&rec.SongID, &rec.DisplayName, &rec.Path, &rec.Status, &rec.Message, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListDownloads returns the most recently updated history rows first.
// A non-positive limit returns every row.
func (s *Store) ListDownloads(limit int) ([]*models.DownloadRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(`
		SELECT song_id, display_name, path, status, message, updated_at
		FROM downloads
		ORDER BY updated_at DESC, song_id
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []*models.DownloadRecord{}
	for rows.Next() {
		var rec models.DownloadRecord
		if err := rows.Scan(&rec.SongID, &rec.DisplayName, &rec.Path, &rec.Status, &rec.Message, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		records = append(records, &rec)
	}
	return records, rows.Err()
}
