package membership

import (
	"fmt"
	"testing"
	"time"

	"github.com/skitter-project/skitter/pkg/skerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectPublishesJoinEvent(t *testing.T) {
	table := NewTable()
	defer table.Close()

	sub := table.Subscribe()
	defer table.Unsubscribe(sub)

	id := NodeID{Name: "worker_a", Host: "10.0.0.1"}
	err := table.Connect(id, map[string]string{"role": "worker"}, func(NodeID) error { return nil })
	require.NoError(t, err)

	select {
	case ev := <-sub:
		assert.Equal(t, EventJoin, ev.Type)
		assert.Equal(t, id, ev.Node)
	case <-time.After(time.Second):
		t.Fatal("expected a join event")
	}
}

func TestConnectRejectsDuplicateNode(t *testing.T) {
	table := NewTable()
	defer table.Close()

	id := NodeID{Name: "worker_a", Host: "10.0.0.1"}
	require.NoError(t, table.Connect(id, nil, func(NodeID) error { return nil }))

	err := table.Connect(id, nil, func(NodeID) error { return nil })
	require.Error(t, err)
	assert.ErrorIs(t, err, skerr.ErrAlreadyConnected)
}

// TestHandshakeFailureScenario mirrors the three-node handshake example:
// worker_a succeeds, not_a_worker fails a role check (wrong cookie stand-in),
// unreachable_c times out.
func TestHandshakeFailureScenario(t *testing.T) {
	table := NewTable()
	defer table.Close()

	verify := func(id NodeID) error {
		switch id.Name {
		case "worker_a":
			return nil
		case "not_a_worker":
			return fmt.Errorf("%s: %w", id, skerr.ErrWrongCookie)
		default:
			return fmt.Errorf("%s: %w", id, skerr.ErrTimeout)
		}
	}

	results := table.ConnectMany(
		[]NodeID{{Name: "worker_a"}, {Name: "not_a_worker"}, {Name: "unreachable_c"}},
		func(NodeID) map[string]string { return nil },
		verify,
	)

	assert.NoError(t, results[NodeID{Name: "worker_a"}])
	assert.ErrorIs(t, results[NodeID{Name: "not_a_worker"}], skerr.ErrWrongCookie)
	assert.ErrorIs(t, results[NodeID{Name: "unreachable_c"}], skerr.ErrTimeout)

	_, connected := table.Lookup(NodeID{Name: "worker_a"})
	assert.True(t, connected)
	_, connected = table.Lookup(NodeID{Name: "not_a_worker"})
	assert.False(t, connected)
}

func TestDisconnectUnknownNode(t *testing.T) {
	table := NewTable()
	defer table.Close()
	err := table.Disconnect(NodeID{Name: "ghost"})
	require.Error(t, err)
	assert.ErrorIs(t, err, skerr.ErrNotConnected)
}

func TestLivenessMonitorMarksDownAfterRetries(t *testing.T) {
	m := NewLivenessMonitor()
	assert.True(t, m.Alive())

	var wentDown bool
	for i := 0; i < DefaultRetries; i++ {
		wentDown = m.MissedHeartbeat()
	}
	assert.True(t, wentDown)
	assert.False(t, m.Alive())

	m.Heartbeat()
	assert.True(t, m.Alive())
}
