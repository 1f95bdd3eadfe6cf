package dummy

import (
	"testing"

	"github.com/gloomgate-dev/gloomgate/pkg/protocol"
	"github.com/gloomgate-dev/gloomgate/pkg/rpc"
)

func TestModule_Register(t *testing.T) {
	reg := rpc.NewRegistry()
	if err := NewModule().Register(reg); err != nil {
		t.Fatalf("Register() error: %v", err)
	}

	for _, function := range []string{"echo", "getownsocketid", "pair"} {
		id := protocol.Identifier{Module: "dummy", Function: function}
		if _, err := reg.Resolve(id); err != nil {
			t.Errorf("Resolve(%s) error: %v", function, err)
		}
	}
}

func TestModule_Echo(t *testing.T) {
	m := NewModule()
	if got := m.Echo("ping"); got != "ping" {
		t.Errorf("Echo() = %q, want ping", got)
	}
}

func TestModule_GetOwnSocketID(t *testing.T) {
	m := NewModule()
	h := &protocol.RequestHeader{SocketID: 17}
	if got := m.GetOwnSocketID(h); got != 17 {
		t.Errorf("GetOwnSocketID() = %d, want 17", got)
	}
}

func TestModule_Pair(t *testing.T) {
	m := NewModule()
	h := &protocol.RequestHeader{SocketID: 1, TargetSockets: []int{1, 2}}

	if got := m.Pair(h, "hi"); got != "hi" {
		t.Errorf("Pair() = %q, want hi", got)
	}
	// The client-addressed targets stay untouched for the router to honor.
	if len(h.TargetSockets) != 2 {
		t.Errorf("targets = %v, want [1 2]", h.TargetSockets)
	}
}
