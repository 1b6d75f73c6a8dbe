package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"training-progress-service/internal/app"
	"training-progress-service/internal/domain"
	"training-progress-service/internal/infra/memory"
)

func TestWebSocketProgressFlow(t *testing.T) {
	server := httptest.NewServer(newTestMux(newTestService()))
	defer server.Close()

	u := "ws" + server.URL[len("http"):] + "/ws?learnerId=u1"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Expect joined event first.
	_, payload := readNext(conn, t, "joined")
	if payload["connectionId"] == "" {
		t.Fatalf("expected connection id, got %v", payload)
	}

	// The application task is gated until its link is opened.
	send(conn, t, "complete", map[string]any{"taskId": "t-app"})
	_, payload = readNext(conn, t, "error")
	if payload["code"] != "gate_not_satisfied" || payload["hint"] == "" {
		t.Fatalf("expected gate error with hint, got %v", payload)
	}

	send(conn, t, "activate", map[string]any{"taskId": "t-app"})
	_, payload = readNext(conn, t, "taskState")
	if payload["active"] != true {
		t.Fatalf("expected active task, got %v", payload)
	}
	send(conn, t, "signal", map[string]any{"type": "link_opened"})
	readNext(conn, t, "taskState")

	send(conn, t, "complete", map[string]any{"taskId": "t-app"})
	seen := map[string]bool{}
	for i := 0; i < 4 && !(seen["taskState"] && seen["event:badge_earned"]); i++ {
		typ, payload := readNext(conn, t, "")
		if typ == "event" {
			typ = "event:" + payload["type"].(string)
		}
		seen[typ] = true
	}
	if !seen["taskState"] || !seen["event:badge_earned"] {
		t.Fatalf("expected taskState and badge event, got %v", seen)
	}

	send(conn, t, "claim", map[string]any{"rewardId": "r-big"})
	_, payload = readNext(conn, t, "error")
	if payload["code"] != "insufficient_points" {
		t.Fatalf("expected insufficient points, got %v", payload)
	}
}

func TestWebSocketRequiresLearner(t *testing.T) {
	server := httptest.NewServer(newTestMux(newTestService()))
	defer server.Close()

	resp, err := http.Get(server.URL + "/ws")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func send(conn *websocket.Conn, t *testing.T, typ string, payload any) {
	t.Helper()
	if err := conn.WriteJSON(map[string]any{"type": typ, "payload": payload}); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

func readNext(conn *websocket.Conn, t *testing.T, expect string) (string, map[string]any) {
	t.Helper()
	var msg struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	if expect != "" && msg.Type != expect {
		t.Fatalf("expected type %s, got %s (%v)", expect, msg.Type, msg.Payload)
	}
	return msg.Type, msg.Payload
}

func newTestMux(service *app.ProgressService) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", NewWSHandler(service, nil).ServeWS)
	NewStatusHandler(service, nil).Register(mux)
	return mux
}

func newTestService() *app.ProgressService {
	catalogs := memory.NewCatalogRepository(memory.NewStaticCatalogLoader(sampleCatalog()), time.Minute)
	return app.NewProgressService(memory.NewLearnerRegistry(), catalogs, memory.NewProgressStore(), "onboarding", app.LearnerOptions{})
}

func sampleCatalog() *domain.Catalog {
	return &domain.Catalog{
		ID: "onboarding",
		Tasks: []domain.Task{
			{ID: "t-app", ModuleID: "m1", Type: domain.TaskApplication, Application: &domain.ApplicationConfig{URL: "https://example.com/apply"}},
		},
		Modules: []domain.Module{{ID: "m1", BadgeID: "b1", TaskIDs: []string{"t-app"}}},
		Badges:  []domain.Badge{{ID: "b1", Points: 500}},
		Rewards: []domain.Reward{
			{ID: "r-coffee", Kind: domain.RewardPoint, PointCost: 300},
			{ID: "r-big", Kind: domain.RewardPoint, PointCost: 1000},
		},
	}
}
