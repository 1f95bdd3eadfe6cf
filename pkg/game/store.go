package game

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/gloomgate-dev/gloomgate/pkg/protocol"
)

// Sentinel errors for store operations. These surface to clients as 400
// envelopes via the router.
var (
	// ErrGameNotFound is returned when the game id does not exist.
	ErrGameNotFound = errors.New("game: game not found")

	// ErrGameFull is returned when a fifth distinct player tries to join.
	ErrGameFull = errors.New("game: game is already full")

	// ErrGameCreateFailed is returned when room creation loses repeatedly
	// against concurrent removals.
	ErrGameCreateFailed = errors.New("game: game could not be created")

	// ErrGameRemoveFailed signals a concurrency anomaly while removing a
	// room that was expected to exist.
	ErrGameRemoveFailed = errors.New("game: game could not be removed")

	// ErrPlayerNotFound is returned when an update names a player that is
	// not in the game.
	ErrPlayerNotFound = errors.New("game: player not found")
)

// joinAttempts bounds the create/re-read retry loop in Join against
// pathological churn on one game id.
const joinAttempts = 3

// entry is one room slot. Each entry carries its own lock so operations on
// different game ids never block each other; operations on the same id are
// linearized by the entry lock.
type entry struct {
	mu      sync.Mutex
	game    Game
	removed bool // set under mu when the entry leaves the table
}

// Store owns all game rooms. The outer mutex guards only the table itself;
// every read-modify-write of a room happens under that room's entry lock,
// so no caller ever observes a half-applied operation.
type Store struct {
	mu     sync.Mutex
	games  map[string]*entry
	logger *slog.Logger
}

// NewStore creates an empty Store.
func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		games:  make(map[string]*entry),
		logger: logger.With("component", "game_store"),
	}
}

// lookup returns the live entry for id, or nil.
func (s *Store) lookup(id string) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.games[id]
}

// getOrCreate returns the live entry for id, creating and seeding a new
// room if absent. Insert-if-absent under the table lock guarantees two
// near-simultaneous joins for an unseen id end up with exactly one room.
func (s *Store) getOrCreate(id string) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.games[id]; ok {
		return e
	}
	e := &entry{game: Game{ID: id, Elements: seedElements()}}
	s.games[id] = e
	return e
}

// remove deletes e from the table if it is still the entry registered under
// id. The caller must have already marked e.removed under e.mu; taking the
// table lock afterwards keeps lock ordering acyclic.
func (s *Store) remove(id string, e *entry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.games[id] != e {
		return false
	}
	delete(s.games, id)
	return true
}

// Join adds the requesting player to the game, creating the room on first
// contact. Rejoining under an existing name rebinds that player's socket id
// to the joining connection; a fifth distinct name fails with ErrGameFull.
func (s *Store) Join(req PlayerRequest, header *protocol.RequestHeader) (*Game, error) {
	for attempt := 0; attempt < joinAttempts; attempt++ {
		e := s.getOrCreate(req.GameID)

		e.mu.Lock()
		if e.removed {
			// Lost a race against a concurrent removal; re-create.
			e.mu.Unlock()
			continue
		}

		idx := playerIndex(e.game.Players, req.Player.Name)
		if idx < 0 && len(e.game.Players) >= MaxPlayers {
			e.mu.Unlock()
			return nil, ErrGameFull
		}

		player := req.Player
		player.SocketID = header.SocketID
		if idx < 0 {
			e.game.Players = append(e.game.Players, player)
		} else {
			e.game.Players[idx] = player
		}

		g := e.game.clone()
		e.mu.Unlock()

		s.logger.Info("player joined",
			"game_id", req.GameID,
			"player", req.Player.Name,
			"conn_id", header.SocketID,
			"players", len(g.Players))
		return g, nil
	}
	return nil, ErrGameCreateFailed
}

// Leave removes every player bound to the leaving connection and drops the
// room once its player list is empty. The reduced (possibly empty) snapshot
// is returned either way so the remaining players can be notified.
func (s *Store) Leave(gameID string, header *protocol.RequestHeader) (*Game, error) {
	e := s.lookup(gameID)
	if e == nil {
		return nil, ErrGameNotFound
	}

	e.mu.Lock()
	if e.removed {
		e.mu.Unlock()
		return nil, ErrGameNotFound
	}

	kept := e.game.Players[:0:0]
	for _, p := range e.game.Players {
		if p.SocketID != header.SocketID {
			kept = append(kept, p)
		}
	}
	e.game.Players = kept

	empty := len(kept) == 0
	if empty {
		e.removed = true
	}
	g := e.game.clone()
	e.mu.Unlock()

	if empty {
		if !s.remove(gameID, e) {
			return nil, ErrGameRemoveFailed
		}
		s.logger.Info("game removed", "game_id", gameID)
	}

	s.logger.Info("player left",
		"game_id", gameID,
		"conn_id", header.SocketID,
		"players", len(g.Players))
	return g, nil
}

// UpdatePlayer replaces the player matching the request's player name.
func (s *Store) UpdatePlayer(req PlayerRequest) (*Game, error) {
	e := s.lookup(req.GameID)
	if e == nil {
		return nil, ErrGameNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return nil, ErrGameNotFound
	}

	idx := playerIndex(e.game.Players, req.Player.Name)
	if idx < 0 {
		return nil, ErrPlayerNotFound
	}
	e.game.Players[idx] = req.Player

	return e.game.clone(), nil
}

// UpdateElements replaces the room's element board wholesale.
func (s *Store) UpdateElements(req ElementsRequest) (*Game, error) {
	e := s.lookup(req.GameID)
	if e == nil {
		return nil, ErrGameNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return nil, ErrGameNotFound
	}

	e.game.Elements = append([]Element(nil), req.Elements...)

	return e.game.clone(), nil
}

// Get returns a snapshot of the game, or ErrGameNotFound.
func (s *Store) Get(gameID string) (*Game, error) {
	e := s.lookup(gameID)
	if e == nil {
		return nil, ErrGameNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return nil, ErrGameNotFound
	}
	return e.game.clone(), nil
}

// Count returns the number of live rooms.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.games)
}

// ReapOrphans drops every player whose connection is no longer live
// according to the given liveness check, then drops rooms that become
// empty. It runs on every broadcast tick to cover clients that disconnect
// without sending leave. Returns the number of rooms removed.
func (s *Store) ReapOrphans(live func(connID int) bool) int {
	s.mu.Lock()
	snapshot := make(map[string]*entry, len(s.games))
	for id, e := range s.games {
		snapshot[id] = e
	}
	s.mu.Unlock()

	removed := 0
	for id, e := range snapshot {
		e.mu.Lock()
		if e.removed {
			e.mu.Unlock()
			continue
		}

		kept := e.game.Players[:0:0]
		for _, p := range e.game.Players {
			if live(p.SocketID) {
				kept = append(kept, p)
			} else {
				s.logger.Info("reaping orphaned player",
					"game_id", id,
					"player", p.Name,
					"conn_id", p.SocketID)
			}
		}
		e.game.Players = kept

		empty := len(kept) == 0
		if empty {
			e.removed = true
		}
		e.mu.Unlock()

		if empty && s.remove(id, e) {
			removed++
			s.logger.Info("reaped empty game", "game_id", id)
		}
	}
	return removed
}

// playerIndex finds a player by name, the identity key within a game.
func playerIndex(players []Player, name string) int {
	for i, p := range players {
		if p.Name == name {
			return i
		}
	}
	return -1
}
