package handlers

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/bablukpik/webrtc-saas-basic-backend/internal/models"
)

func TestStartAndEndCall(t *testing.T) {
	h, router := newTestHandlers(t)
	token := h.generateToken("user-a")

	w := doJSON(t, router, http.MethodPost, "/api/call/start", token, map[string]string{
		"initiator_id":   "user-a",
		"participant_id": "user-b",
		"call_type":      "video",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("start: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	started := decodeBody(t, w)
	callID, _ := started["id"].(string)
	if callID == "" {
		t.Fatal("started call should have an id")
	}
	if started["end_time"] != nil {
		t.Fatalf("fresh call should have no end time, got %v", started["end_time"])
	}

	w = doJSON(t, router, http.MethodPost, "/api/call/end", token, map[string]string{
		"call_id": callID,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("end: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if decodeBody(t, w)["end_time"] == nil {
		t.Fatal("ended call should have an end time")
	}
}

func TestEndUnknownCall(t *testing.T) {
	h, router := newTestHandlers(t)
	token := h.generateToken("user-a")

	w := doJSON(t, router, http.MethodPost, "/api/call/end", token, map[string]string{
		"call_id": "call-nobody-nothing-0",
	})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestStartCallRejectsBadType(t *testing.T) {
	h, router := newTestHandlers(t)
	token := h.generateToken("user-a")

	w := doJSON(t, router, http.MethodPost, "/api/call/start", token, map[string]string{
		"initiator_id":   "user-a",
		"participant_id": "user-b",
		"call_type":      "hologram",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestCallHistoryScopedToUser(t *testing.T) {
	h, router := newTestHandlers(t)

	seed := []models.CallHistory{
		{ID: "call-1", InitiatorID: "user-a", ParticipantID: "user-b", CallType: "video", StartTime: testBase},
		{ID: "call-2", InitiatorID: "user-c", ParticipantID: "user-a", CallType: "audio", StartTime: testBase.Add(time.Minute)},
		{ID: "call-3", InitiatorID: "user-c", ParticipantID: "user-d", CallType: "video", StartTime: testBase.Add(2 * time.Minute)},
	}
	for i := range seed {
		if err := h.db.Create(&seed[i]).Error; err != nil {
			t.Fatalf("seed history: %v", err)
		}
	}

	w := doJSON(t, router, http.MethodGet, "/api/call/history", h.generateToken("user-a"), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("history: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var records []models.CallHistory
	if err := json.Unmarshal(w.Body.Bytes(), &records); err != nil {
		t.Fatalf("unmarshal history: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records for user-a, got %d", len(records))
	}
	// Newest first.
	if records[0].ID != "call-2" || records[1].ID != "call-1" {
		t.Fatalf("unexpected order: %s, %s", records[0].ID, records[1].ID)
	}
}
