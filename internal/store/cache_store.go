package store

import (
	"time"

	"github.com/RobertvdLeeuw/spotdl-lean/internal/models"
)

// SaveCacheEntries upserts metadata cache bodies keyed by request key in a
// single transaction. Each row keeps the entry's fetch time, so re-saving a
// loaded entry does not make it younger.
func (s *Store) SaveCacheEntries(entries map[string]models.CacheEntry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO metadata_cache (cache_key, body, created_at) VALUES (?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET body = excluded.body, created_at = excluded.created_at`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now()
	for key, entry := range entries {
		fetched := entry.FetchedAt
		if fetched.IsZero() {
			fetched = now
		}
		if _, err := stmt.Exec(key, entry.Body, fetched); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// LoadCacheEntries returns cache entries younger than maxAge. A non-positive
// maxAge returns everything.
func (s *Store) LoadCacheEntries(maxAge time.Duration) (map[string]models.CacheEntry, error) {
	query := "SELECT cache_key, body, created_at FROM metadata_cache"
	var args []any
	if maxAge > 0 {
		query += " WHERE created_at >= ?"
		args = append(args, time.Now().Add(-maxAge))
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make(map[string]models.CacheEntry)
	for rows.Next() {
		var (
			key   string
			entry models.CacheEntry
		)
		if err := rows.Scan(&key, &entry.Body, &entry.FetchedAt); err != nil {
			return nil, err
		}
		entries[key] = entry
	}
	return entries, rows.Err()
}

// PruneCache deletes cache rows created before cutoff and returns how many
// were removed.
func (s *Store) PruneCache(cutoff time.Time) (int64, error) {
	res, err := s.db.Exec("DELETE FROM metadata_cache WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
