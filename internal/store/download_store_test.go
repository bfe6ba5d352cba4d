package store_test

import (
	"errors"
	"testing"
	"time"

	"github.com/RobertvdLeeuw/spotdl-lean/internal/models"
	"github.com/RobertvdLeeuw/spotdl-lean/internal/store"
	"github.com/RobertvdLeeuw/spotdl-lean/internal/testutil"
)

func TestRecordAndGetDownload(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := store.New(db)

	rec := models.DownloadRecord{
		SongID:      "4uLU6hMCjMI75M1A2tKUQC",
		DisplayName: "Rick Astley - Never Gonna Give You Up",
		Path:        "/music/Rick Astley - Never Gonna Give You Up.mp3",
		Status:      models.DownloadStatusDone,
	}
	if err := s.RecordDownload(rec); err != nil {
		t.Fatalf("RecordDownload failed: %v", err)
	}

	got, err := s.GetDownload(rec.SongID)
	if err != nil {
		t.Fatalf("GetDownload failed: %v", err)
	}
	if got.Path != rec.Path || got.Status != models.DownloadStatusDone {
		t.Errorf("Unexpected record: %+v", got)
	}
	if got.UpdatedAt.IsZero() {
		t.Error("Expected UpdatedAt to be set")
	}
}

func TestRecordDownload_Upserts(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := store.New(db)

	first := models.DownloadRecord{SongID: "id1", DisplayName: "A - B", Status: models.DownloadStatusFailed, Message: "boom"}
	if err := s.RecordDownload(first); err != nil {
		t.Fatalf("RecordDownload failed: %v", err)
	}
	second := models.DownloadRecord{SongID: "id1", DisplayName: "A - B", Path: "/music/A - B.mp3", Status: models.DownloadStatusDone}
	if err := s.RecordDownload(second); err != nil {
		t.Fatalf("RecordDownload failed: %v", err)
	}

	var count int
	db.QueryRow("SELECT COUNT(*) FROM downloads").Scan(&count)
	if count != 1 {
		t.Fatalf("Expected 1 row after upsert, got %d", count)
	}
	got, _ := s.GetDownload("id1")
	if got.Status != models.DownloadStatusDone || got.Message != "" {
		t.Errorf("Expected row to be replaced, got %+v", got)
	}
}

func TestGetDownload_NotFound(t *testing.T) {
	s := store.New(testutil.SetupTestDB(t))

	_, err := s.GetDownload("missing")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestListDownloads(t *testing.T) {
	s := store.New(testutil.SetupTestDB(t))
	base := time.Now().Add(-time.Hour)

	for i, id := range []string{"old", "middle", "new"} {
		rec := models.DownloadRecord{
			SongID:      id,
			DisplayName: id,
			Status:      models.DownloadStatusDone,
			UpdatedAt:   base.Add(time.Duration(i) * time.Minute),
		}
		if err := s.RecordDownload(rec); err != nil {
			t.Fatalf("RecordDownload failed: %v", err)
		}
	}

	all, err := s.ListDownloads(0)
	if err != nil {
		t.Fatalf("ListDownloads failed: %v", err)
	}
	if len(all) != 3 || all[0].SongID != "new" || all[2].SongID != "old" {
		t.Errorf("Expected newest first, got %v", ids(all))
	}

	limited, err := s.ListDownloads(2)
	if err != nil {
		t.Fatalf("ListDownloads failed: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("Expected 2 records, got %d", len(limited))
	}
}

func ids(records []*models.DownloadRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.SongID
	}
	return out
}
