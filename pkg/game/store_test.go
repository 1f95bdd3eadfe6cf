package game

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/go-test/deep"

	"github.com/gloomgate-dev/gloomgate/pkg/protocol"
)

func header(connID int) *protocol.RequestHeader {
	return &protocol.RequestHeader{SocketID: connID}
}

func joinReq(gameID, name string) PlayerRequest {
	return PlayerRequest{GameID: gameID, Player: Player{Name: name, Health: 10, MaxHealth: 10}}
}

func TestStore_Join_CreatesGame(t *testing.T) {
	s := NewStore(nil)

	g, err := s.Join(joinReq("g1", "alice"), header(1))
	if err != nil {
		t.Fatalf("Join() error: %v", err)
	}

	if g.ID != "g1" {
		t.Errorf("game id = %q, want g1", g.ID)
	}
	if len(g.Players) != 1 || g.Players[0].Name != "alice" || g.Players[0].SocketID != 1 {
		t.Errorf("players = %+v, want alice bound to conn 1", g.Players)
	}
	if s.Count() != 1 {
		t.Errorf("Count() = %d, want 1", s.Count())
	}

	want := seedElements()
	if diff := deep.Equal(g.Elements, want); diff != nil {
		t.Errorf("elements not seeded: %v", diff)
	}
}

func TestStore_Join_Full(t *testing.T) {
	s := NewStore(nil)
	for i := 0; i < MaxPlayers; i++ {
		if _, err := s.Join(joinReq("g1", fmt.Sprintf("p%d", i)), header(i+1)); err != nil {
			t.Fatalf("Join(p%d) error: %v", i, err)
		}
	}

	_, err := s.Join(joinReq("g1", "fifth"), header(99))
	if !errors.Is(err, ErrGameFull) {
		t.Errorf("error = %v, want ErrGameFull", err)
	}
}

func TestStore_Join_ReconnectByName(t *testing.T) {
	s := NewStore(nil)
	if _, err := s.Join(joinReq("g1", "alice"), header(1)); err != nil {
		t.Fatalf("Join() error: %v", err)
	}

	// Same name from a new connection rebinds instead of adding a player,
	// even when the room is otherwise full.
	for i := 0; i < MaxPlayers-1; i++ {
		if _, err := s.Join(joinReq("g1", fmt.Sprintf("p%d", i)), header(i+10)); err != nil {
			t.Fatalf("Join(p%d) error: %v", i, err)
		}
	}

	g, err := s.Join(joinReq("g1", "alice"), header(42))
	if err != nil {
		t.Fatalf("rejoin error: %v", err)
	}
	if len(g.Players) != MaxPlayers {
		t.Fatalf("players = %d, want %d", len(g.Players), MaxPlayers)
	}
	if g.Players[0].Name != "alice" || g.Players[0].SocketID != 42 {
		t.Errorf("players[0] = %+v, want alice rebound to conn 42", g.Players[0])
	}
}

func TestStore_Join_ConcurrentSameGame(t *testing.T) {
	s := NewStore(nil)

	var wg sync.WaitGroup
	errs := make([]error, MaxPlayers)
	for i := 0; i < MaxPlayers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.Join(joinReq("g1", fmt.Sprintf("p%d", i)), header(i+1))
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("Join(p%d) error: %v", i, err)
		}
	}
	if s.Count() != 1 {
		t.Errorf("Count() = %d, want exactly one game", s.Count())
	}
	g, err := s.Get("g1")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if len(g.Players) != MaxPlayers {
		t.Errorf("players = %d, want %d", len(g.Players), MaxPlayers)
	}
}

func TestStore_Leave_RemovesPlayer(t *testing.T) {
	s := NewStore(nil)
	s.Join(joinReq("g1", "alice"), header(1))
	s.Join(joinReq("g1", "bob"), header(2))

	g, err := s.Leave("g1", header(1))
	if err != nil {
		t.Fatalf("Leave() error: %v", err)
	}
	if len(g.Players) != 1 || g.Players[0].Name != "bob" {
		t.Errorf("players = %+v, want only bob", g.Players)
	}
	if s.Count() != 1 {
		t.Errorf("Count() = %d, want 1", s.Count())
	}
}

func TestStore_Leave_LastPlayerRemovesGame(t *testing.T) {
	s := NewStore(nil)
	s.Join(joinReq("g1", "alice"), header(1))

	g, err := s.Leave("g1", header(1))
	if err != nil {
		t.Fatalf("Leave() error: %v", err)
	}
	if len(g.Players) != 0 {
		t.Errorf("players = %+v, want empty", g.Players)
	}
	if s.Count() != 0 {
		t.Errorf("Count() = %d, want 0", s.Count())
	}
	if _, err := s.Get("g1"); !errors.Is(err, ErrGameNotFound) {
		t.Errorf("Get() error = %v, want ErrGameNotFound", err)
	}
}

func TestStore_Leave_UnknownGame(t *testing.T) {
	s := NewStore(nil)
	if _, err := s.Leave("nope", header(1)); !errors.Is(err, ErrGameNotFound) {
		t.Errorf("error = %v, want ErrGameNotFound", err)
	}
}

func TestStore_JoinAfterRemoval(t *testing.T) {
	s := NewStore(nil)
	s.Join(joinReq("g1", "alice"), header(1))
	s.Leave("g1", header(1))

	// The id is reusable once the room is gone; a fresh board is seeded.
	g, err := s.Join(joinReq("g1", "bob"), header(2))
	if err != nil {
		t.Fatalf("Join() error: %v", err)
	}
	if len(g.Players) != 1 || g.Players[0].Name != "bob" {
		t.Errorf("players = %+v, want only bob", g.Players)
	}
	for _, el := range g.Elements {
		if el.Stage != StageEmpty {
			t.Errorf("element %s stage = %v, want Empty", el.Name, el.Stage)
		}
	}
}

func TestStore_UpdatePlayer(t *testing.T) {
	s := NewStore(nil)
	s.Join(joinReq("g1", "alice"), header(1))

	updated := Player{
		SocketID:  1,
		Name:      "alice",
		Health:    4,
		MaxHealth: 10,
		Shield:    2,
		Effects:   []Effect{{Name: "poison", Value: 1}},
	}
	g, err := s.UpdatePlayer(PlayerRequest{GameID: "g1", Player: updated})
	if err != nil {
		t.Fatalf("UpdatePlayer() error: %v", err)
	}
	if diff := deep.Equal(g.Players[0], updated); diff != nil {
		t.Errorf("player not updated: %v", diff)
	}
}

func TestStore_UpdatePlayer_NotFound(t *testing.T) {
	s := NewStore(nil)
	s.Join(joinReq("g1", "alice"), header(1))

	_, err := s.UpdatePlayer(PlayerRequest{GameID: "g1", Player: Player{Name: "mallory"}})
	if !errors.Is(err, ErrPlayerNotFound) {
		t.Errorf("error = %v, want ErrPlayerNotFound", err)
	}

	_, err = s.UpdatePlayer(PlayerRequest{GameID: "nope", Player: Player{Name: "alice"}})
	if !errors.Is(err, ErrGameNotFound) {
		t.Errorf("error = %v, want ErrGameNotFound", err)
	}
}

func TestStore_UpdateElements(t *testing.T) {
	s := NewStore(nil)
	s.Join(joinReq("g1", "alice"), header(1))

	board := []Element{
		{Name: ElementFire, Stage: StageFull},
		{Name: ElementIce, Stage: StageHalf},
	}
	g, err := s.UpdateElements(ElementsRequest{GameID: "g1", Elements: board})
	if err != nil {
		t.Fatalf("UpdateElements() error: %v", err)
	}
	if diff := deep.Equal(g.Elements, board); diff != nil {
		t.Errorf("elements not updated: %v", diff)
	}
}

func TestStore_ReapOrphans(t *testing.T) {
	s := NewStore(nil)
	s.Join(joinReq("g1", "alice"), header(1))
	s.Join(joinReq("g1", "bob"), header(2))
	s.Join(joinReq("g2", "carol"), header(3))

	// Conn 2 and 3 are gone.
	live := map[int]bool{1: true}
	removed := s.ReapOrphans(func(connID int) bool { return live[connID] })

	if removed != 1 {
		t.Errorf("removed = %d, want 1 (g2)", removed)
	}
	g, err := s.Get("g1")
	if err != nil {
		t.Fatalf("Get(g1) error: %v", err)
	}
	if len(g.Players) != 1 || g.Players[0].Name != "alice" {
		t.Errorf("g1 players = %+v, want only alice", g.Players)
	}
	if _, err := s.Get("g2"); !errors.Is(err, ErrGameNotFound) {
		t.Errorf("Get(g2) error = %v, want ErrGameNotFound", err)
	}
}

func TestStore_SnapshotIsolation(t *testing.T) {
	s := NewStore(nil)
	g1, _ := s.Join(joinReq("g1", "alice"), header(1))

	// Mutating a returned snapshot must not leak into the store.
	g1.Players[0].Health = -999
	g1.Elements[0].Stage = StageFull

	g2, err := s.Get("g1")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if g2.Players[0].Health == -999 {
		t.Error("player mutation leaked into store")
	}
	if g2.Elements[0].Stage == StageFull {
		t.Error("element mutation leaked into store")
	}
}

func TestStore_ConcurrentChurn(t *testing.T) {
	s := NewStore(nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			gameID := fmt.Sprintf("g%d", i%2)
			name := fmt.Sprintf("p%d", i)
			for n := 0; n < 50; n++ {
				if _, err := s.Join(joinReq(gameID, name), header(i)); err != nil &&
					!errors.Is(err, ErrGameFull) && !errors.Is(err, ErrGameCreateFailed) {
					t.Errorf("Join: %v", err)
					return
				}
				if _, err := s.Leave(gameID, header(i)); err != nil &&
					!errors.Is(err, ErrGameNotFound) && !errors.Is(err, ErrGameRemoveFailed) {
					t.Errorf("Leave: %v", err)
					return
				}
			}
		}(i)
	}
	wg.Wait()
}
