package ws

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/repolink/repolink/internal/app"
	"github.com/repolink/repolink/internal/core"
	"github.com/repolink/repolink/internal/domain"
	"github.com/repolink/repolink/internal/store/memory"
)

type allowAll struct{}

func (allowAll) VerifyAccess(context.Context, string, domain.RoomKey) (bool, error) {
	return true, nil
}

func newTestServer(t *testing.T) (*httptest.Server, *app.Coordinator) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	users := memory.NewUserStore()
	users.Put("tok-alice", domain.User{Handle: "alice", Status: domain.StatusApproved})
	users.Put("tok-bob", domain.User{Handle: "bob", Status: domain.StatusApproved})
	users.Put("tok-carol", domain.User{Handle: "carol", Status: domain.StatusPending})

	coord := &app.Coordinator{
		Registry: app.NewRegistry(),
		Users:    users,
		Access:   allowAll{},
		RoomLog:  memory.NewRoomLog(),
		Policy:   app.DropPolicy{},
	}

	ctl := &Controller{Coord: coord, ReadLimit: 65536, PingPeriod: time.Second}
	r := gin.New()
	r.GET("/ws", func(c *gin.Context) {
		ctl.Handle(context.Background(), c)
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, coord
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readMsg(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var m map[string]any
	if err := conn.ReadJSON(&m); err != nil {
		t.Fatalf("read: %v", err)
	}
	return m
}

func send(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	if err := conn.WriteJSON(v); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func waitStats(t *testing.T, coord *app.Coordinator, conns int) app.Stats {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		s := coord.Stats()
		if s.TotalConnections == conns {
			return s
		}
		if time.Now().After(deadline) {
			t.Fatalf("stats never reached %d connections: %+v", conns, s)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestTwoPeerScenario(t *testing.T) {
	srv, coord := newTestServer(t)

	a := dial(t, srv)
	send(t, a, map[string]any{"type": "join", "token": "tok-alice", "repoUrl": "https://github.com/Owner/Repo.git"})
	joinedA := readMsg(t, a)
	if joinedA["type"] != "joined" || joinedA["githubHandle"] != "alice" {
		t.Fatalf("a joined = %v", joinedA)
	}
	if peers := joinedA["peers"].([]any); len(peers) != 0 {
		t.Fatalf("first joiner saw peers %v", peers)
	}
	aID := joinedA["peerId"].(string)

	// B joins an equivalent spelling of the same repository.
	b := dial(t, srv)
	send(t, b, map[string]any{"type": "join", "token": "tok-bob", "repoUrl": "owner/repo"})
	joinedB := readMsg(t, b)
	peers := joinedB["peers"].([]any)
	if len(peers) != 1 {
		t.Fatalf("b saw peers %v, want exactly a", peers)
	}
	first := peers[0].(map[string]any)
	if first["peerId"] != aID || first["githubHandle"] != "alice" {
		t.Fatalf("b peer list = %v", first)
	}
	bID := joinedB["peerId"].(string)

	joinEvt := readMsg(t, a)
	if joinEvt["type"] != "peer-joined" || joinEvt["peerId"] != bID || joinEvt["githubHandle"] != "bob" {
		t.Fatalf("a notification = %v", joinEvt)
	}

	// Offer, answer and candidate all arrive with the sender stamped.
	send(t, a, map[string]any{"type": "offer", "to": bID, "data": map[string]any{"sdp": "offer-sdp"}})
	offer := readMsg(t, b)
	if offer["type"] != "offer" || offer["from"] != aID {
		t.Fatalf("b offer = %v", offer)
	}
	if offer["data"].(map[string]any)["sdp"] != "offer-sdp" {
		t.Fatalf("offer payload mangled: %v", offer["data"])
	}

	send(t, b, map[string]any{"type": "answer", "to": aID, "data": map[string]any{"sdp": "answer-sdp"}})
	answer := readMsg(t, a)
	if answer["type"] != "answer" || answer["from"] != bID {
		t.Fatalf("a answer = %v", answer)
	}

	send(t, a, map[string]any{"type": "ice-candidate", "to": bID, "data": map[string]any{"candidate": "cand"}})
	cand := readMsg(t, b)
	if cand["type"] != "ice-candidate" || cand["from"] != aID {
		t.Fatalf("b candidate = %v", cand)
	}

	s := waitStats(t, coord, 2)
	if s.TotalRooms != 1 || s.Rooms[0].PeerCount != 2 {
		t.Fatalf("stats = %+v", s)
	}

	// A drops without a leave message; B hears about it anyway.
	_ = a.Close()
	left := readMsg(t, b)
	if left["type"] != "peer-left" || left["peerId"] != aID {
		t.Fatalf("b peer-left = %v", left)
	}

	s = waitStats(t, coord, 1)
	if s.TotalRooms != 1 || s.Rooms[0].PeerCount != 1 {
		t.Fatalf("stats after drop = %+v", s)
	}
}

func TestMalformedInputIsNonFatal(t *testing.T) {
	srv, _ := newTestServer(t)
	conn := dial(t, srv)

	if err := conn.WriteMessage(websocket.TextMessage, []byte("this is not json")); err != nil {
		t.Fatal(err)
	}
	if m := readMsg(t, conn); m["message"] != core.MsgInvalidSignal {
		t.Fatalf("invalid json reply = %v", m)
	}

	send(t, conn, map[string]any{"type": "frobnicate"})
	if m := readMsg(t, conn); m["message"] != core.MsgUnknownType {
		t.Fatalf("unknown type reply = %v", m)
	}

	send(t, conn, map[string]any{"type": "join", "repoUrl": "owner/repo"})
	if m := readMsg(t, conn); m["message"] != core.MsgMissingFields {
		t.Fatalf("missing fields reply = %v", m)
	}

	// The connection survived all of the above.
	send(t, conn, map[string]any{"type": "join", "token": "tok-alice", "repoUrl": "owner/repo"})
	if m := readMsg(t, conn); m["type"] != "joined" {
		t.Fatalf("join after garbage = %v", m)
	}
}

func TestFatalJoinFailuresCloseConnection(t *testing.T) {
	cases := []struct {
		name       string
		token      string
		wantMsg    string
		wantStatus string
	}{
		{"invalid token", "tok-ghost", core.MsgInvalidToken, ""},
		{"not approved", "tok-carol", core.MsgNotApproved, "pending"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv, _ := newTestServer(t)
			conn := dial(t, srv)

			send(t, conn, map[string]any{"type": "join", "token": tc.token, "repoUrl": "owner/repo"})
			m := readMsg(t, conn)
			if m["type"] != "error" || m["message"] != tc.wantMsg {
				t.Fatalf("reply = %v", m)
			}
			if tc.wantStatus != "" && m["status"] != tc.wantStatus {
				t.Fatalf("status = %v, want %s", m["status"], tc.wantStatus)
			}

			_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
			if _, _, err := conn.ReadMessage(); err == nil {
				t.Fatal("connection still open after fatal auth failure")
			}
		})
	}
}

func TestRelayBeforeJoinIsRejected(t *testing.T) {
	srv, coord := newTestServer(t)

	victim := dial(t, srv)
	send(t, victim, map[string]any{"type": "join", "token": "tok-alice", "repoUrl": "owner/repo"})
	joined := readMsg(t, victim)
	victimID := joined["peerId"].(string)

	// A second connection that never sent join tries to signal the
	// victim directly.
	intruder := dial(t, srv)
	send(t, intruder, map[string]any{"type": "offer", "to": victimID, "data": map[string]any{"sdp": "evil"}})

	m := readMsg(t, intruder)
	if m["type"] != "error" || m["message"] != core.MsgUnknownPeer {
		t.Fatalf("reply = %v", m)
	}

	// Nothing reached the victim.
	_ = victim.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	var leaked map[string]any
	if err := victim.ReadJSON(&leaked); err == nil {
		t.Fatalf("victim received %v from an unjoined connection", leaked)
	}

	// The rejection is non-fatal: the intruder can still join properly.
	send(t, intruder, map[string]any{"type": "join", "token": "tok-bob", "repoUrl": "owner/other"})
	if m := readMsg(t, intruder); m["type"] != "joined" {
		t.Fatalf("join after rejected relay = %v", m)
	}
	waitStats(t, coord, 2)
}

func TestRelayToUnknownTarget(t *testing.T) {
	srv, _ := newTestServer(t)
	conn := dial(t, srv)
	send(t, conn, map[string]any{"type": "join", "token": "tok-alice", "repoUrl": "owner/repo"})
	if m := readMsg(t, conn); m["type"] != "joined" {
		t.Fatalf("join = %v", m)
	}

	send(t, conn, map[string]any{"type": "offer", "to": "no-such-peer", "data": "x"})
	m := readMsg(t, conn)
	if m["type"] != "error" || m["message"] != core.MsgTargetNotFound {
		t.Fatalf("reply = %v", m)
	}

	// Non-fatal: the sender can keep signaling.
	send(t, conn, map[string]any{"type": "leave"})
}
