package transport

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/skitter-project/skitter/pkg/master"
	"github.com/skitter-project/skitter/pkg/membership"
	"github.com/skitter-project/skitter/pkg/skerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBrokerRoutesByExactTagBeforeCatchAll(t *testing.T) {
	b := NewBroker()
	b.On("widget.create", func(ctx context.Context, env *Envelope) (*Envelope, error) {
		return &Envelope{Tag: "widget.created"}, nil
	})
	b.OnAll(func(ctx context.Context, env *Envelope) (*Envelope, error) {
		return &Envelope{Tag: "catch-all"}, nil
	})

	resp, err := b.Handle(context.Background(), &Envelope{Tag: "widget.create"})
	require.NoError(t, err)
	assert.Equal(t, "widget.created", resp.Tag)

	resp, err = b.Handle(context.Background(), &Envelope{Tag: "anything.else"})
	require.NoError(t, err)
	assert.Equal(t, "catch-all", resp.Tag)
}

func TestBrokerUnknownTagIsUnknownName(t *testing.T) {
	b := NewBroker()
	_, err := b.Handle(context.Background(), &Envelope{Tag: "nope"})
	require.Error(t, err)
	assert.ErrorIs(t, err, skerr.ErrUnknownName)
}

func TestBalancerSelectPermanentIsStableForSameKey(t *testing.T) {
	bal := NewBalancer()
	nodes := []membership.NodeID{{Name: "a"}, {Name: "b"}, {Name: "c"}}
	first := bal.SelectPermanent("session-42", nodes)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, bal.SelectPermanent("session-42", nodes))
	}
}

func TestBalancerSelectTransientRoundRobins(t *testing.T) {
	bal := NewBalancer()
	nodes := []membership.NodeID{{Name: "a"}, {Name: "b"}}
	seen := map[string]int{}
	for i := 0; i < 10; i++ {
		seen[bal.SelectTransient(nodes).Name]++
	}
	assert.Equal(t, 5, seen["a"])
	assert.Equal(t, 5, seen["b"])
}

func TestBeaconRejectsBadToken(t *testing.T) {
	m, err := master.NewMaster(&master.Config{NodeID: "m1", BindAddr: "127.0.0.1:0", DataDir: t.TempDir()})
	require.NoError(t, err)

	b := NewBeacon(m)
	req := JoinRequest{NodeName: "worker_a", Host: "10.0.0.1", Token: "not-a-real-token"}
	payload, _ := json.Marshal(req)

	_, err = b.Handle(context.Background(), &Envelope{Tag: TagBeaconJoin, Payload: payload})
	require.Error(t, err)
	assert.ErrorIs(t, err, skerr.ErrWrongCookie)
}

func TestBeaconAcceptsValidToken(t *testing.T) {
	dataDir := t.TempDir()
	m, err := master.NewMaster(&master.Config{NodeID: "m1", BindAddr: "127.0.0.1:0", DataDir: dataDir})
	require.NoError(t, err)
	require.NoError(t, m.Bootstrap())
	defer m.Shutdown()

	require.Eventually(t, m.IsLeader, 2*time.Second, 10*time.Millisecond)

	jt, err := m.Tokens.Generate("worker", time.Minute)
	require.NoError(t, err)

	b := NewBeacon(m)
	req := JoinRequest{NodeName: "worker_a", Host: "10.0.0.1", Token: jt.Token}
	payload, _ := json.Marshal(req)

	resp, err := b.Handle(context.Background(), &Envelope{Tag: TagBeaconJoin, Payload: payload})
	require.NoError(t, err)

	var jr JoinResponse
	require.NoError(t, json.Unmarshal(resp.Payload, &jr))
	assert.True(t, jr.Accepted)
	assert.Equal(t, "worker", jr.Role)

	_, connected := m.Table.Lookup(membership.NodeID{Name: "worker_a", Host: "10.0.0.1"})
	assert.True(t, connected)
}
