package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"github.com/skitter-project/skitter/pkg/log"
	"github.com/skitter-project/skitter/pkg/master"
	"github.com/skitter-project/skitter/pkg/metrics"
	"github.com/skitter-project/skitter/pkg/transport"
	"github.com/skitter-project/skitter/pkg/worker"
)

var masterCmd = &cobra.Command{
	Use:   "master",
	Short: "Run a skitter master node",
}

var masterStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Bootstrap or join a master cluster and serve the Dispatch RPC",
	RunE:  runMasterStart,
}

func init() {
	masterCmd.AddCommand(masterStartCmd)
	masterCmd.AddCommand(newStopCmd("./data/skitter.pid"))
	masterCmd.AddCommand(newInfoCmd("127.0.0.1:9090"))

	masterStartCmd.Flags().String("name", "", "this node's name (defaults to $SKITTER_NODE_NAME)")
	masterStartCmd.Flags().String("bind-addr", "127.0.0.1:7070", "Raft + Dispatch RPC bind address")
	masterStartCmd.Flags().String("metrics-addr", "127.0.0.1:9090", "Prometheus /metrics listen address")
	masterStartCmd.Flags().String("working-dir", "./data", "directory for Raft log and bbolt state")
	masterStartCmd.Flags().String("join", "", "address of an existing master to join, empty to bootstrap a new cluster")
	masterStartCmd.Flags().String("cookie", "", "shared join secret (defaults to $SKITTER_COOKIE)")
	masterStartCmd.Flags().String("pid-file", "", "write this node's PID here for a later `master stop` (defaults to <working-dir>/skitter.pid)")
}

func runMasterStart(cmd *cobra.Command, args []string) error {
	name, _ := cmd.Flags().GetString("name")
	bindAddr, _ := cmd.Flags().GetString("bind-addr")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
	workingDir, _ := cmd.Flags().GetString("working-dir")
	joinAddr, _ := cmd.Flags().GetString("join")
	pidFile, _ := cmd.Flags().GetString("pid-file")
	if pidFile == "" {
		pidFile = workingDir + "/skitter.pid"
	}

	if name == "" {
		name = cfgNodeName()
	}

	logger := log.WithComponent("cmd-master")

	m, err := master.NewMaster(&master.Config{NodeID: name, BindAddr: bindAddr, DataDir: workingDir})
	if err != nil {
		return fmt.Errorf("construct master: %w", err)
	}
	m.SetDispatcher(dialDispatch)

	if joinAddr == "" {
		if err := m.Bootstrap(); err != nil {
			return fmt.Errorf("bootstrap: %w", err)
		}
		logger.Info().Str("bind_addr", bindAddr).Msg("bootstrapped new master cluster")
	} else {
		if err := requestAddVoter(joinAddr, name, bindAddr); err != nil {
			return fmt.Errorf("request add voter from %s: %w", joinAddr, err)
		}
		if err := m.JoinAsVoter(); err != nil {
			return fmt.Errorf("join: %w", err)
		}
		logger.Info().Str("join", joinAddr).Msg("joined existing master cluster")
	}

	pool := worker.NewPool()

	broker := transport.NewBroker()
	beacon := transport.NewBeacon(m)
	broker.On(transport.TagBeaconJoin, beacon.Handle)
	broker.On("deploy.request", deployHandler(m, pool))
	broker.On("router.forward", routerForwardHandler(m))
	broker.On("master.add_voter", addVoterHandler(m))
	broker.On("beacon.ping", pingHandler)

	srv := transport.NewServer(broker.Handle, grpc.UnaryInterceptor(transport.LoggingInterceptor()))
	lis, err := net.Listen("tcp", bindAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", bindAddr, err)
	}
	metrics.RegisterComponent("raft", true, "bootstrapped")
	metrics.RegisterComponent("dispatch", true, "serving")
	if err := writePIDFile(pidFile); err != nil {
		logger.Warn().Err(err).Str("pid_file", pidFile).Msg("could not write pid file")
	}
	defer removePIDFile(pidFile)

	reconciler := master.NewReconciler(m)
	reconciler.Start()
	defer reconciler.Stop()

	collector := master.NewCollector(m, pool)
	collector.Start()
	defer collector.Stop()

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		mux.Handle("/healthz", metrics.HealthHandler())
		mux.Handle("/readyz", metrics.ReadyHandler())
		mux.Handle("/livez", metrics.LivenessHandler())
		logger.Info().Str("addr", metricsAddr).Msg("serving metrics")
		if err := http.ListenAndServe(metricsAddr, mux); err != nil {
			logger.Error().Err(err).Msg("metrics server stopped")
		}
	}()

	go func() {
		logger.Info().Str("addr", bindAddr).Msg("serving Dispatch RPC")
		if err := srv.Serve(lis); err != nil {
			logger.Error().Err(err).Msg("dispatch server stopped")
		}
	}()

	waitForSignal()
	logger.Info().Msg("shutting down")
	srv.GracefulStop()
	return m.Shutdown()
}

// pingHandler answers a liveness probe, used by worker nodes running with
// SKITTER_WORKER_SHUTDOWN_WITH_MASTER to detect a dead master.
func pingHandler(ctx context.Context, env *transport.Envelope) (*transport.Envelope, error) {
	return &transport.Envelope{Tag: "beacon.pong"}, nil
}

// deployHandler bridges a transport "deploy.request" Envelope into
// master.Deploy, matching spec.md §4.8's "a deployment request enters the
// master" entrypoint.
func deployHandler(m *master.Master, pool *worker.Pool) transport.Handler {
	return func(ctx context.Context, env *transport.Envelope) (*transport.Envelope, error) {
		var req master.DeployRequest
		if err := json.Unmarshal(env.Payload, &req); err != nil {
			return nil, fmt.Errorf("deploy.request: decode: %w", err)
		}

		_, resp, err := m.Deploy(req, pool)
		if err != nil {
			return nil, err
		}

		payload, err := json.Marshal(resp)
		if err != nil {
			return nil, err
		}
		return &transport.Envelope{Tag: "deploy.response", Payload: payload}, nil
	}
}

// routerForwardHandler bridges a "router.forward" Envelope into
// master.Master.Forward, the server side of pkg/deploy's cross-node
// Destination.Forward hook: m.Forward either dispatches the value into
// this node's own routing table or relays the request on to whichever
// node actually owns the destination.
func routerForwardHandler(m *master.Master) transport.Handler {
	return func(ctx context.Context, env *transport.Envelope) (*transport.Envelope, error) {
		var req master.ForwardRequest
		if err := json.Unmarshal(env.Payload, &req); err != nil {
			return nil, fmt.Errorf("router.forward: decode: %w", err)
		}
		if err := m.Forward(req); err != nil {
			return nil, err
		}
		return &transport.Envelope{Tag: "router.forward.ack"}, nil
	}
}

// dialDispatch is the master.DispatchFunc implementation backed by
// pkg/transport: dial addr, send one envelope, return its payload.
func dialDispatch(addr, tag string, payload []byte) ([]byte, error) {
	d, err := transport.Dial(addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	defer d.Close()
	resp, err := d.Dispatch(context.Background(), &transport.Envelope{Tag: tag, Payload: payload})
	if err != nil {
		return nil, err
	}
	return resp.Payload, nil
}

// addVoterHandler lets a candidate master ask the current leader to admit
// it to the Raft quorum, the RPC half of JoinAsVoter's doc-comment contract.
func addVoterHandler(m *master.Master) transport.Handler {
	return func(ctx context.Context, env *transport.Envelope) (*transport.Envelope, error) {
		var req master.AddVoterRequest
		if err := json.Unmarshal(env.Payload, &req); err != nil {
			return nil, fmt.Errorf("master.add_voter: decode: %w", err)
		}
		if err := m.AddVoter(req.NodeID, req.Address); err != nil {
			return nil, err
		}
		return &transport.Envelope{Tag: "master.add_voter.ack"}, nil
	}
}

// requestAddVoter dials an existing master and asks it to admit
// (nodeID, addr) to the Raft quorum before the local JoinAsVoter call.
func requestAddVoter(leaderAddr, nodeID, addr string) error {
	d, err := transport.Dial(leaderAddr)
	if err != nil {
		return err
	}
	defer d.Close()

	payload, err := json.Marshal(master.AddVoterRequest{NodeID: nodeID, Address: addr})
	if err != nil {
		return err
	}
	_, err = d.Dispatch(context.Background(), &transport.Envelope{Tag: "master.add_voter", Payload: payload})
	return err
}

func waitForSignal() {
	<-sigChan()
}

func sigChan() <-chan os.Signal {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	return sigCh
}

func cfgNodeName() string {
	if v := os.Getenv("SKITTER_NODE_NAME"); v != "" {
		return v
	}
	host, err := os.Hostname()
	if err != nil {
		return "skitter-node"
	}
	return host
}
