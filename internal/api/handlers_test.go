package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/RobertvdLeeuw/spotdl-lean/internal/jobs"
	"github.com/RobertvdLeeuw/spotdl-lean/internal/models"
	"github.com/RobertvdLeeuw/spotdl-lean/internal/testutil"
)

func doRequest(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHandleGetVersion(t *testing.T) {
	server, _ := testutil.SetupTestServer(t)
	rr := doRequest(t, server.Router(), "GET", "/api/version", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusOK)
	}
	var resp map[string]string
	json.Unmarshal(rr.Body.Bytes(), &resp)
	if resp["version"] != "test" {
		t.Errorf("Expected version 'test', got %q", resp["version"])
	}
}

func TestHandleHealth(t *testing.T) {
	server, _ := testutil.SetupTestServer(t)
	rr := doRequest(t, server.Router(), "GET", "/api/health", nil)
	if rr.Code != http.StatusOK {
		t.Errorf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusOK)
	}
}

func TestHandleListProviders(t *testing.T) {
	server, _ := testutil.SetupTestServer(t)
	rr := doRequest(t, server.Router(), "GET", "/api/providers", nil)

	var list []models.ProviderInfo
	if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil {
		t.Fatalf("Failed to decode providers: %v", err)
	}
	if len(list) != 1 || list[0].ID != "mocktube" {
		t.Errorf("Unexpected providers: %+v", list)
	}
}

func TestHandleJobs(t *testing.T) {
	server, app := testutil.SetupTestServer(t)
	router := server.Router()

	t.Run("Status lists registered jobs", func(t *testing.T) {
		rr := doRequest(t, router, "GET", "/api/jobs/status", nil)
		var statuses []jobs.JobStatus
		json.Unmarshal(rr.Body.Bytes(), &statuses)
		if len(statuses) != 2 {
			t.Fatalf("Expected 2 registered jobs, got %d", len(statuses))
		}
	})

	t.Run("Unknown job", func(t *testing.T) {
		rr := doRequest(t, router, "POST", "/api/jobs/run", map[string]string{"job_id": "nope"})
		if rr.Code != http.StatusNotFound {
			t.Errorf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusNotFound)
		}
	})

	t.Run("Invalid payload", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/api/jobs/run", bytes.NewBufferString("{"))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusBadRequest)
		}
	})

	t.Run("Runs a registered job", func(t *testing.T) {
		rr := doRequest(t, router, "POST", "/api/jobs/run", map[string]string{"job_id": jobs.CachePruneJobID})
		if rr.Code != http.StatusAccepted {
			t.Fatalf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusAccepted)
		}
		app.JobManager().Wait()
	})
}
