package server

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/gloomgate-dev/gloomgate/pkg/game"
	"github.com/gloomgate-dev/gloomgate/pkg/protocol"
)

func TestBroadcaster_PushesServerTime(t *testing.T) {
	cfg := testConfig()
	cfg.TimestampInterval = 50 * time.Millisecond
	s, ts, _ := newTestServer(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.broadcaster.Run(ctx)

	ws := dial(t, ts)
	resp := recv(t, ws)

	if resp.Header.Identifier != protocol.BroadcastIdentifier {
		t.Errorf("identifier = %+v, want Broadcast/Broadcast", resp.Header.Identifier)
	}
	if resp.Header.StatusCode != protocol.StatusOK {
		t.Errorf("statusCode = %d, want 200", resp.Header.StatusCode)
	}

	var body TimeBroadcast
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		t.Fatalf("body = %s: %v", resp.Body, err)
	}
	if _, err := time.Parse(time.RFC3339, body.Time); err != nil {
		t.Errorf("time = %q, want RFC3339: %v", body.Time, err)
	}
}

func TestBroadcaster_ReapsOrphanedPlayers(t *testing.T) {
	cfg := testConfig()
	cfg.TimestampInterval = 30 * time.Millisecond
	s, ts, store := newTestServer(t, cfg)

	ws := dial(t, ts)
	send(t, ws, "game", "join", game.PlayerRequest{GameID: "g1", Player: game.Player{Name: "alice"}})
	recv(t, ws)
	if store.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", store.Count())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.broadcaster.Run(ctx)

	ws.Close()

	deadline := time.Now().Add(2 * time.Second)
	for store.Count() > 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if store.Count() != 0 {
		t.Errorf("Count() = %d, want 0 after reaping", store.Count())
	}
}
