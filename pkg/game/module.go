package game

import (
	"log/slog"

	"github.com/gloomgate-dev/gloomgate/pkg/protocol"
	"github.com/gloomgate-dev/gloomgate/pkg/rpc"
)

// Module exposes the store over the rpc surface. Every successful operation
// returns the full game snapshot and retargets the response at every player
// in the room, so all clients converge on the same state.
type Module struct {
	store  *Store
	logger *slog.Logger
}

// NewModule creates the game rpc module backed by the given store.
func NewModule(store *Store, logger *slog.Logger) *Module {
	if logger == nil {
		logger = slog.Default()
	}
	return &Module{
		store:  store,
		logger: logger.With("component", "game_module"),
	}
}

// Name implements rpc.Module.
func (m *Module) Name() string { return "game" }

// Register implements rpc.Module.
func (m *Module) Register(reg *rpc.Registry) error {
	for function, fn := range map[string]any{
		"join":            m.Join,
		"leave":           m.Leave,
		"update-player":   m.UpdatePlayer,
		"update-elements": m.UpdateElements,
	} {
		if err := reg.Register(m.Name(), function, fn); err != nil {
			return err
		}
	}
	return nil
}

// Join adds the caller to the requested game and notifies the whole room.
func (m *Module) Join(header *protocol.RequestHeader, req PlayerRequest) (*Game, error) {
	g, err := m.store.Join(req, header)
	if err != nil {
		return nil, err
	}
	header.TargetSockets = g.SocketIDs()
	return g, nil
}

// Leave removes the caller from the game. The remaining players (if any)
// receive the reduced snapshot; the leaver gets it too as confirmation.
func (m *Module) Leave(header *protocol.RequestHeader, req PlayerRequest) (*Game, error) {
	g, err := m.store.Leave(req.GameID, header)
	if err != nil {
		return nil, err
	}
	header.TargetSockets = append(g.SocketIDs(), header.SocketID)
	return g, nil
}

// UpdatePlayer replaces the caller's player snapshot and fans the new game
// state out to the room.
func (m *Module) UpdatePlayer(header *protocol.RequestHeader, req PlayerRequest) (*Game, error) {
	g, err := m.store.UpdatePlayer(req)
	if err != nil {
		return nil, err
	}
	header.TargetSockets = g.SocketIDs()
	return g, nil
}

// UpdateElements replaces the element board and fans the new game state out
// to the room.
func (m *Module) UpdateElements(header *protocol.RequestHeader, req ElementsRequest) (*Game, error) {
	g, err := m.store.UpdateElements(req)
	if err != nil {
		return nil, err
	}
	header.TargetSockets = g.SocketIDs()
	return g, nil
}
