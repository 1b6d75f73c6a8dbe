package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"training-progress-service/internal/app"
	"training-progress-service/internal/domain"
	"training-progress-service/internal/infra/memory"
)

func TestStatusEndpoints(t *testing.T) {
	store := memory.NewProgressStore()
	if err := store.Save(t.Context(), "u1", app.KeyCompletedTasks, []byte(`["t-app"]`)); err != nil {
		t.Fatalf("seed: %v", err)
	}
	service := app.NewProgressService(memory.NewLearnerRegistry(),
		memory.NewCatalogRepository(memory.NewStaticCatalogLoader(sampleCatalog()), time.Minute),
		store, "onboarding", app.LearnerOptions{})
	server := httptest.NewServer(newTestMux(service))
	defer server.Close()

	var ledger domain.Ledger
	getJSON(t, server.URL+"/learners/u1/points", http.StatusOK, &ledger)
	if ledger.Available != 500 {
		t.Fatalf("expected 500 points, got %+v", ledger)
	}

	var status domain.RewardStatus
	postJSON(t, server.URL+"/learners/u1/rewards/r-coffee/claim", http.StatusOK, &status)
	if !status.Claimed {
		t.Fatalf("expected claimed, got %+v", status)
	}

	var failure errorPayload
	postJSON(t, server.URL+"/learners/u1/rewards/r-big/claim", http.StatusConflict, &failure)
	if failure.Code != "insufficient_points" {
		t.Fatalf("expected insufficient points, got %+v", failure)
	}
	postJSON(t, server.URL+"/learners/u1/rewards/nope/claim", http.StatusNotFound, &failure)

	var ov domain.Overview
	getJSON(t, server.URL+"/learners/u1/overview", http.StatusOK, &ov)
	if ov.Ledger.Available != 200 || len(ov.Badges) != 1 || !ov.Badges[0].Earned {
		t.Fatalf("unexpected overview %+v", ov)
	}

	var rewards []domain.RewardStatus
	getJSON(t, server.URL+"/learners/u1/rewards", http.StatusOK, &rewards)
	if len(rewards) != 2 || !rewards[0].Claimed || rewards[1].Claimable {
		t.Fatalf("unexpected rewards %+v", rewards)
	}
}

func getJSON(t *testing.T, url string, wantStatus int, dst any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	decodeResponse(t, resp, wantStatus, dst)
}

func postJSON(t *testing.T, url string, wantStatus int, dst any) {
	t.Helper()
	resp, err := http.Post(url, "application/json", nil)
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	decodeResponse(t, resp, wantStatus, dst)
}

func decodeResponse(t *testing.T, resp *http.Response, wantStatus int, dst any) {
	t.Helper()
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		t.Fatalf("expected status %d, got %d", wantStatus, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		t.Fatalf("decode: %v", err)
	}
}
