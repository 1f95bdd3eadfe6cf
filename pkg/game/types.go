// Package game owns the shared room state: a concurrently-mutated map of
// games keyed by id, with join/leave/update/reap semantics, plus the rpc
// module exposing those operations to connected clients.
package game

// ElementName identifies one of the six element markers seeded into every
// new game.
type ElementName int

const (
	ElementFire ElementName = iota
	ElementIce
	ElementGround
	ElementAir
	ElementLight
	ElementDark
)

// String returns the element name.
func (n ElementName) String() string {
	switch n {
	case ElementFire:
		return "Fire"
	case ElementIce:
		return "Ice"
	case ElementGround:
		return "Ground"
	case ElementAir:
		return "Air"
	case ElementLight:
		return "Light"
	case ElementDark:
		return "Dark"
	default:
		return "Unknown"
	}
}

// ElementStage is the infusion stage of an element marker.
type ElementStage int

const (
	StageFull ElementStage = iota
	StageHalf
	StageEmpty
)

// String returns the stage name.
func (s ElementStage) String() string {
	switch s {
	case StageFull:
		return "Full"
	case StageHalf:
		return "Half"
	case StageEmpty:
		return "Empty"
	default:
		return "Unknown"
	}
}

// Element is one element marker on the shared board.
type Element struct {
	Name  ElementName  `json:"name"`
	Stage ElementStage `json:"stage"`
}

// Effect is a condition currently applied to a player.
type Effect struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// Player is one participant in a game. The name is the identity key within
// a game; the socket id is rebound on every join so a player can reconnect
// under the same name from a new connection.
type Player struct {
	SocketID       int      `json:"socketId"`
	Name           string   `json:"name"`
	Icon           string   `json:"icon"`
	Health         int      `json:"health"`
	MaxHealth      int      `json:"maxHealth"`
	Experience     int      `json:"experience"`
	Shield         int      `json:"shield"`
	Vengeance      int      `json:"vengeance"`
	VengeanceRange int      `json:"vengeanceRange"`
	AttackBonus    int      `json:"attackBonus"`
	Effects        []Effect `json:"effects"`
}

// Game is one room: an id, up to MaxPlayers players, and the element board.
type Game struct {
	ID       string    `json:"id"`
	Players  []Player  `json:"players"`
	Elements []Element `json:"elements"`
}

// MaxPlayers is the hard cap on distinct player names per game.
const MaxPlayers = 4

// SocketIDs returns the connection ids of every player in the game, in
// player order. Used to fan a response out to the whole room.
func (g *Game) SocketIDs() []int {
	ids := make([]int, 0, len(g.Players))
	for _, p := range g.Players {
		ids = append(ids, p.SocketID)
	}
	return ids
}

// clone returns a deep copy so callers never alias store-owned state.
func (g *Game) clone() *Game {
	out := &Game{ID: g.ID}
	if g.Players != nil {
		out.Players = make([]Player, len(g.Players))
		for i, p := range g.Players {
			out.Players[i] = p
			if p.Effects != nil {
				out.Players[i].Effects = append([]Effect(nil), p.Effects...)
			}
		}
	}
	if g.Elements != nil {
		out.Elements = append([]Element(nil), g.Elements...)
	}
	return out
}

// seedElements returns the six-element board every new game starts with.
func seedElements() []Element {
	return []Element{
		{Name: ElementFire, Stage: StageEmpty},
		{Name: ElementIce, Stage: StageEmpty},
		{Name: ElementGround, Stage: StageEmpty},
		{Name: ElementAir, Stage: StageEmpty},
		{Name: ElementLight, Stage: StageEmpty},
		{Name: ElementDark, Stage: StageEmpty},
	}
}

// PlayerRequest is the body for game.join, game.leave and
// game.update-player. The client sends only its own player snapshot, never
// the full room.
type PlayerRequest struct {
	GameID string `json:"gameId"`
	Player Player `json:"player"`
}

// ElementsRequest is the body for game.update-elements.
type ElementsRequest struct {
	GameID   string    `json:"gameId"`
	Elements []Element `json:"elements"`
}
