// Handlers for searching songs and running download batches.

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/RobertvdLeeuw/spotdl-lean/internal/jobs"
	"github.com/RobertvdLeeuw/spotdl-lean/internal/models"
	"github.com/RobertvdLeeuw/spotdl-lean/internal/store"
)

// QueryPayload is the body of the search and download endpoints.
type QueryPayload struct {
	Queries []string `json:"queries"`
}

// SongURL pairs a song with the URL it would be downloaded from. URL is null
// when no match was found.
type SongURL struct {
	Song *models.Song `json:"song"`
	URL  *string      `json:"url"`
}

func decodeQueries(w http.ResponseWriter, r *http.Request) ([]string, bool) {
	var payload QueryPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return nil, false
	}
	if len(payload.Queries) == 0 {
		RespondWithError(w, http.StatusBadRequest, "No queries provided")
		return nil, false
	}
	return payload.Queries, true
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	queries, ok := decodeQueries(w, r)
	if !ok {
		return
	}
	songs, err := s.app.Spotdl().Search(r.Context(), queries)
	if err != nil {
		RespondWithError(w, http.StatusInternalServerError, "Failed to perform search")
		return
	}
	if songs == nil {
		songs = []*models.Song{}
	}
	RespondWithJSON(w, http.StatusOK, songs)
}

func (s *Server) handleGetDownloadURLs(w http.ResponseWriter, r *http.Request) {
	queries, ok := decodeQueries(w, r)
	if !ok {
		return
	}
	sp := s.app.Spotdl()
	songs, err := sp.Search(r.Context(), queries)
	if err != nil {
		RespondWithError(w, http.StatusInternalServerError, "Failed to perform search")
		return
	}
	urls, err := sp.GetDownloadURLs(r.Context(), songs)
	if err != nil {
		RespondWithError(w, http.StatusInternalServerError, "Failed to look up download URLs")
		return
	}

	out := make([]SongURL, len(songs))
	for i, song := range songs {
		out[i] = SongURL{Song: song, URL: urls[i]}
	}
	RespondWithJSON(w, http.StatusOK, out)
}

func (s *Server) handleStartDownload(w http.ResponseWriter, r *http.Request) {
	queries, ok := decodeQueries(w, r)
	if !ok {
		return
	}
	batchID, err := jobs.SubmitDownload(s.app, queries)
	if err != nil {
		RespondWithError(w, http.StatusConflict, err.Error())
		return
	}
	RespondWithJSON(w, http.StatusAccepted, map[string]string{
		"batch_id": batchID,
		"message":  fmt.Sprintf("Downloading %d queries.", len(queries)),
	})
}

func (s *Server) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	RespondWithJSON(w, http.StatusOK, map[string]any{
		"batch_id": s.app.CurrentBatch(),
		"progress": s.app.Spotdl().Progress(),
	})
}

func (s *Server) handleListDownloads(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 100
	}
	records, err := s.store.ListDownloads(limit)
	if err != nil {
		RespondWithError(w, http.StatusInternalServerError, "Failed to retrieve download history")
		return
	}
	if records == nil {
		records = []*models.DownloadRecord{}
	}
	RespondWithJSON(w, http.StatusOK, records)
}

func (s *Server) handleGetDownload(w http.ResponseWriter, r *http.Request) {
	record, err := s.store.GetDownload(chi.URLParam(r, "songID"))
	if errors.Is(err, store.ErrNotFound) {
		RespondWithError(w, http.StatusNotFound, "Download not found")
		return
	}
	if err != nil {
		RespondWithError(w, http.StatusInternalServerError, "Failed to retrieve download")
		return
	}
	RespondWithJSON(w, http.StatusOK, record)
}
