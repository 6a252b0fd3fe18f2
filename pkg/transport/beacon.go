package transport

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/skitter-project/skitter/pkg/master"
	"github.com/skitter-project/skitter/pkg/membership"
	"github.com/skitter-project/skitter/pkg/skerr"
)

// Tags for the beacon handshake Envelopes.
const (
	TagBeaconJoin = "beacon.join"
	TagBeaconAck  = "beacon.ack"
)

// JoinRequest is the payload of a TagBeaconJoin envelope: a node asking to
// be admitted to the cluster.
type JoinRequest struct {
	NodeName string            `json:"node_name"`
	Host     string            `json:"host"`
	Tags     map[string]string `json:"tags"`
	Token    string            `json:"token"`
}

// JoinResponse is the payload of a TagBeaconAck envelope.
type JoinResponse struct {
	Accepted bool   `json:"accepted"`
	Role     string `json:"role,omitempty"`
}

// Beacon implements the master side of the join handshake spec.md §4.6
// describes: validate the presented token, then record the node in
// membership via Raft. A bad token or duplicate node name surfaces as
// skerr.ErrWrongCookie / skerr.ErrAlreadyConnected, wrapped with the
// node's name. The role carried by a valid token is returned in the
// JoinResponse; Handle does not check it.
type Beacon struct {
	master *master.Master
}

// NewBeacon builds a beacon backed by m.
func NewBeacon(m *master.Master) *Beacon {
	return &Beacon{master: m}
}

// Handle implements the Handler signature so a Beacon can be registered
// directly on a Broker via On(TagBeaconJoin, beacon.Handle).
func (b *Beacon) Handle(ctx context.Context, env *Envelope) (*Envelope, error) {
	if env.Tag != TagBeaconJoin {
		return nil, fmt.Errorf("beacon: unexpected tag %s: %w", env.Tag, skerr.ErrUnknownName)
	}

	var req JoinRequest
	if err := json.Unmarshal(env.Payload, &req); err != nil {
		return nil, fmt.Errorf("beacon: decode join request: %w", err)
	}

	role, err := b.master.Tokens.Validate(req.Token)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", req.NodeName, skerr.ErrWrongCookie)
	}

	id := membership.NodeID{Name: req.NodeName, Host: req.Host}
	if _, connected := b.master.Table.Lookup(id); connected {
		return nil, fmt.Errorf("%s: %w", req.NodeName, skerr.ErrAlreadyConnected)
	}
	if err := b.master.ConnectNode(id, req.Tags); err != nil {
		return nil, err
	}

	resp := JoinResponse{Accepted: true, Role: role}
	data, err := json.Marshal(resp)
	if err != nil {
		return nil, err
	}
	return &Envelope{Tag: TagBeaconAck, Payload: data}, nil
}

// Join performs the worker/master-side of the handshake against a remote
// beacon: dial addr, send a TagBeaconJoin envelope, and return the parsed
// response.
func Join(ctx context.Context, addr string, req JoinRequest) (*JoinResponse, error) {
	d, err := Dial(addr)
	if err != nil {
		return nil, err
	}
	defer d.Close()

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	resp, err := d.Dispatch(ctx, &Envelope{Tag: TagBeaconJoin, Payload: payload})
	if err != nil {
		return nil, err
	}

	var jr JoinResponse
	if err := json.Unmarshal(resp.Payload, &jr); err != nil {
		return nil, fmt.Errorf("beacon: decode join response: %w", err)
	}
	return &jr, nil
}
