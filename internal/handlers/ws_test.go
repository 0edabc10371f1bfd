package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

type wsEnvelope struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

func dialWS(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws?token=" + token
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendWS(t *testing.T, conn *websocket.Conn, msgType string, data any) {
	t.Helper()
	if err := conn.WriteJSON(map[string]any{"type": msgType, "data": data}); err != nil {
		t.Fatalf("write %s: %v", msgType, err)
	}
}

func readWS(t *testing.T, conn *websocket.Conn) wsEnvelope {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var env wsEnvelope
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("read: %v", err)
	}
	return env
}

func registerWS(t *testing.T, conn *websocket.Conn, userID, userName string) {
	t.Helper()
	sendWS(t, conn, "register-user", map[string]string{"user_id": userID, "user_name": userName})
	ack := readWS(t, conn)
	if ack.Type != "user-registered" || ack.Data["success"] != true {
		t.Fatalf("register %s: unexpected ack %+v", userID, ack)
	}
}

func TestWebSocketRequiresToken(t *testing.T) {
	_, router := newTestHandlers(t)
	srv := httptest.NewServer(router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("dial without token should fail")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %+v", resp)
	}

	_, resp, err = websocket.DefaultDialer.Dial(url+"?token=garbage", nil)
	if err == nil {
		t.Fatal("dial with a bad token should fail")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %+v", resp)
	}
}

func TestWebSocketCallFlow(t *testing.T) {
	h, router := newTestHandlers(t)
	srv := httptest.NewServer(router)
	defer srv.Close()

	alice := dialWS(t, srv, h.generateToken("alice"))
	bob := dialWS(t, srv, h.generateToken("bob"))
	registerWS(t, alice, "alice", "Alice")
	registerWS(t, bob, "bob", "Bob")

	sendWS(t, alice, "initiate-call", map[string]any{
		"caller_id":      "alice",
		"caller_name":    "Alice",
		"target_user_id": "bob",
		"offer":          map[string]string{"type": "offer", "sdp": "v=0"},
	})

	incoming := readWS(t, bob)
	if incoming.Type != "incoming-call" || incoming.Data["caller_id"] != "alice" {
		t.Fatalf("unexpected incoming-call: %+v", incoming)
	}
	if incoming.Data["offer"] == nil {
		t.Fatal("offer should reach the callee")
	}

	sendWS(t, bob, "call-accepted", map[string]any{
		"target_user_id": "alice",
		"answer":         map[string]string{"type": "answer", "sdp": "v=0"},
	})
	accepted := readWS(t, alice)
	if accepted.Type != "call-accepted" || accepted.Data["answer"] == nil {
		t.Fatalf("unexpected call-accepted: %+v", accepted)
	}

	sendWS(t, alice, "ice-candidate", map[string]any{
		"target_user_id": "bob",
		"candidate":      map[string]string{"candidate": "candidate:0"},
	})
	candidate := readWS(t, bob)
	if candidate.Type != "ice-candidate" || candidate.Data["user_id"] != "alice" {
		t.Fatalf("unexpected ice-candidate: %+v", candidate)
	}

	sendWS(t, alice, "call-ended", map[string]string{"target_user_id": "bob"})
	ended := readWS(t, bob)
	if ended.Type != "call-ended" {
		t.Fatalf("unexpected message after end: %+v", ended)
	}
}

func TestWebSocketDisconnectNotifiesPeer(t *testing.T) {
	h, router := newTestHandlers(t)
	srv := httptest.NewServer(router)
	defer srv.Close()

	alice := dialWS(t, srv, h.generateToken("alice"))
	bob := dialWS(t, srv, h.generateToken("bob"))
	registerWS(t, alice, "alice", "Alice")
	registerWS(t, bob, "bob", "Bob")

	sendWS(t, alice, "initiate-call", map[string]any{
		"caller_id":      "alice",
		"target_user_id": "bob",
	})
	if msg := readWS(t, bob); msg.Type != "incoming-call" {
		t.Fatalf("expected incoming-call, got %+v", msg)
	}

	// Dropping the caller's socket must end the call for the callee.
	alice.Close()

	ended := readWS(t, bob)
	if ended.Type != "call-ended" {
		t.Fatalf("expected call-ended after peer disconnect, got %+v", ended)
	}
}
