/*
Package transport is the one remote-call surface in skitter: a single
gRPC RPC, Dispatch(Envelope) returns (Envelope), carrying every cross-node
interaction — join handshakes, deploy/destroy commands, and forwarded
dataflow values — tagged so the receiving Broker can route it locally.

# Why one RPC

spec.md §6 describes the wire protocol as a typed request tagged with
(tag, payload); building a dozen protoc-generated RPCs per concern would
bury that simplicity under generated code. A custom encoding.Codec
(codec.go) marshals Envelope with encoding/json instead of protobuf, and
service.go hand-builds the single-method grpc.ServiceDesc a protoc-
generated .pb.go file would otherwise provide.

# Components

  - Envelope: the (tag, payload) wire struct.
  - Dispatcher / NewServer: client and server halves of the Dispatch RPC.
  - Broker: local tag -> Handler multiplexer, registered via On/OnAll.
  - Beacon: the master-side join handshake (pkg/master's token + Raft
    ConnectNode), and the Join helper a node calls to perform its side.
  - Balancer: SelectPermanent/SelectTransient node selection for requests
    that must be routed to a specific cluster node rather than dispatched
    locally.

# See also

  - pkg/master for what a Beacon-validated join actually commits to Raft
  - pkg/router for the per-node worker-selection counterpart to Balancer
*/
package transport
