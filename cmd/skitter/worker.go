package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"github.com/skitter-project/skitter/pkg/config"
	"github.com/skitter-project/skitter/pkg/deploy"
	"github.com/skitter-project/skitter/pkg/health"
	"github.com/skitter-project/skitter/pkg/log"
	"github.com/skitter-project/skitter/pkg/master"
	"github.com/skitter-project/skitter/pkg/metrics"
	"github.com/skitter-project/skitter/pkg/placement"
	"github.com/skitter-project/skitter/pkg/registry"
	"github.com/skitter-project/skitter/pkg/skerr"
	"github.com/skitter-project/skitter/pkg/transport"
	"github.com/skitter-project/skitter/pkg/worker"
	"github.com/skitter-project/skitter/pkg/workflow"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run a skitter worker node",
}

var workerStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Join a master and serve the Dispatch RPC for components deployed here",
	RunE:  runWorkerStart,
}

func init() {
	workerCmd.AddCommand(workerStartCmd)
	workerCmd.AddCommand(newStopCmd("./skitter-worker.pid"))
	workerCmd.AddCommand(newInfoCmd("127.0.0.1:9091"))

	workerStartCmd.Flags().String("name", "", "this node's name (defaults to $SKITTER_NODE_NAME)")
	workerStartCmd.Flags().String("bind-addr", "127.0.0.1:7071", "Dispatch RPC bind address")
	workerStartCmd.Flags().String("metrics-addr", "127.0.0.1:9091", "Prometheus /metrics listen address")
	workerStartCmd.Flags().String("master", "", "master address to join (defaults to $SKITTER_WORKER_MASTER)")
	workerStartCmd.Flags().String("cookie", "", "join secret presented to the master (defaults to $SKITTER_COOKIE)")
	workerStartCmd.Flags().Bool("shutdown-with-master", false, "exit if the master becomes unreachable")
	workerStartCmd.Flags().String("pid-file", "./skitter-worker.pid", "write this node's PID here for a later `worker stop`")
}

func runWorkerStart(cmd *cobra.Command, args []string) error {
	cfg := config.FromEnv()

	name, _ := cmd.Flags().GetString("name")
	bindAddr, _ := cmd.Flags().GetString("bind-addr")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
	masterAddr, _ := cmd.Flags().GetString("master")
	cookie, _ := cmd.Flags().GetString("cookie")
	shutdownWithMaster, _ := cmd.Flags().GetBool("shutdown-with-master")
	pidFile, _ := cmd.Flags().GetString("pid-file")

	if name == "" {
		name = orDefault(cfg.NodeName, cfgNodeName())
	}
	if masterAddr == "" {
		masterAddr = cfg.WorkerMaster
	}
	if cookie == "" {
		cookie = cfg.Cookie
	}
	if !cmd.Flags().Changed("shutdown-with-master") {
		shutdownWithMaster = cfg.WorkerShutdownWithMaster
	}
	if masterAddr == "" {
		return fmt.Errorf("worker start: --master or %s is required", config.EnvWorkerMaster)
	}

	logger := log.WithComponent("cmd-worker")

	// Host carries the full dial address, not just the bare hostname, so the
	// master can reach this node's Dispatch RPC for deploy fan-out and
	// router forwarding (see pkg/master.Deploy).
	resp, err := transport.Join(context.Background(), masterAddr, transport.JoinRequest{
		NodeName: name,
		Host:     bindAddr,
		Token:    cookie,
	})
	if err != nil {
		return fmt.Errorf("join %s: %w", masterAddr, err)
	}
	logger.Info().Str("master", masterAddr).Str("role", resp.Role).Msg("joined cluster")
	metrics.RegisterComponent("master", true, "joined")

	pool := worker.NewPool()
	reg := registry.New()
	deployments := deploy.NewRegistry()

	broker := transport.NewBroker()
	broker.On("deploy.request", workerDeployHandler(reg, name, masterAddr, pool, deployments))
	broker.On("router.forward", workerForwardHandler(deployments, name))
	broker.On("beacon.ping", pingHandler)
	srv := transport.NewServer(broker.Handle, grpc.UnaryInterceptor(transport.LoggingInterceptor()))
	lis, err := net.Listen("tcp", bindAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", bindAddr, err)
	}
	metrics.RegisterComponent("dispatch", true, "serving")
	if err := writePIDFile(pidFile); err != nil {
		logger.Warn().Err(err).Str("pid_file", pidFile).Msg("could not write pid file")
	}
	defer removePIDFile(pidFile)

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

	shutdownCh := make(chan struct{})
	if shutdownWithMaster {
		go watchMaster(logger, masterAddr, shutdownCh)
	}

	select {
	case <-sigChan():
	case <-shutdownCh:
		logger.Warn().Str("master", masterAddr).Msg("master unreachable, shutting down")
	}
	logger.Info().Msg("shutting down")
	srv.GracefulStop()
	_ = pool.Count() // workers are stopped individually by their deployment's Destroy, not here
	return nil
}

// watchMaster polls the master's Dispatch RPC on an interval and closes
// shutdownCh the moment health.Status considers masterAddr down,
// implementing SKITTER_WORKER_SHUTDOWN_WITH_MASTER.
func watchMaster(logger zerolog.Logger, masterAddr string, shutdownCh chan struct{}) {
	const pollInterval = 5 * time.Second

	checker := transport.NewDispatchChecker(masterAddr, 2*time.Second)
	cfg := health.DefaultConfig()
	cfg.Retries = 3
	status := health.NewStatus()

	for range time.Tick(pollInterval) {
		result := checker.Check(context.Background())
		status.Update(result, cfg)
		metrics.UpdateComponent("master", status.Healthy, result.Message)
		if !status.Healthy {
			logger.Warn().Err(errorOf(result)).Int("consecutive_failures", status.ConsecutiveFailures).Msg("master poll failed")
			if status.ConsecutiveFailures >= cfg.Retries {
				close(shutdownCh)
				return
			}
		}
	}
}

func errorOf(r health.Result) error {
	if r.Healthy || r.Message == "" {
		return nil
	}
	return fmt.Errorf("%s", r.Message)
}

// workerDeployHandler is the worker-node counterpart of cmd/skitter's
// master deployHandler: it resolves and runs a deployment locally but,
// unlike the master, has no Raft placement record to write. Nodes in the
// request placed on a different physical node than this one are skipped by
// deploy.Deploy itself (they're assumed to already be running there); any
// outgoing link to one is relayed to masterAddr's "router.forward" handler,
// which knows every node's address and can reach it directly.
func workerDeployHandler(reg *registry.Registry, nodeID, masterAddr string, pool *worker.Pool, deployments *deploy.Registry) transport.Handler {
	return func(ctx context.Context, env *transport.Envelope) (*transport.Envelope, error) {
		var req placement.Request
		if err := json.Unmarshal(env.Payload, &req); err != nil {
			return nil, fmt.Errorf("deploy.request: decode: %w", err)
		}
		if req.DefaultNode == "" {
			req.DefaultNode = nodeID
		}

		wf, bindings, err := placement.Resolve(reg, req)
		if err != nil {
			return nil, err
		}
		dw, err := deploy.Deploy(wf, bindings, pool, nodeID, workerForwarder(masterAddr, req.Workflow))
		if err != nil {
			return nil, err
		}
		deployments.Store(req.Workflow, dw)

		payload, err := json.Marshal(struct {
			Workflow    string `json:"workflow"`
			NodeID      string `json:"node_id"`
			WorkerCount int    `json:"worker_count"`
		}{Workflow: req.Workflow, NodeID: nodeID, WorkerCount: dw.WorkerCount()})
		if err != nil {
			return nil, err
		}
		return &transport.Envelope{Tag: "deploy.response", Payload: payload}, nil
	}
}

// workerForwarder builds the deploy.Forwarder a worker's own Deploy call
// uses: a worker never dials another worker directly, since it doesn't
// track cluster membership — it always relays through the master, which
// does, and which forwards the request on to whichever node actually owns
// the destination (see master.Master.Forward).
func workerForwarder(masterAddr, workflowName string) deploy.Forwarder {
	return func(node string, to workflow.Endpoint, value any) error {
		payload, err := json.Marshal(master.ForwardRequest{
			Workflow: workflowName, TargetNode: node, Node: to.NodeID, Port: to.Port, Value: value,
		})
		if err != nil {
			return err
		}
		d, err := transport.Dial(masterAddr)
		if err != nil {
			return fmt.Errorf("dial %s: %w", masterAddr, err)
		}
		defer d.Close()
		_, err = d.Dispatch(context.Background(), &transport.Envelope{Tag: "router.forward", Payload: payload})
		return err
	}
}

// workerForwardHandler is the receiving end of a "router.forward" Envelope:
// the master relays a value here once it has resolved this worker as the
// node that actually owns the destination component.
func workerForwardHandler(deployments *deploy.Registry, selfNode string) transport.Handler {
	return func(ctx context.Context, env *transport.Envelope) (*transport.Envelope, error) {
		var req master.ForwardRequest
		if err := json.Unmarshal(env.Payload, &req); err != nil {
			return nil, fmt.Errorf("router.forward: decode: %w", err)
		}
		if req.TargetNode != selfNode {
			return nil, fmt.Errorf("router.forward: %s received a forward addressed to %s: %w", selfNode, req.TargetNode, skerr.ErrNotDistributed)
		}
		dw, ok := deployments.Lookup(req.Workflow)
		if !ok {
			return nil, fmt.Errorf("router.forward: workflow %s not deployed on %s: %w", req.Workflow, selfNode, skerr.ErrNotDistributed)
		}
		if err := dw.Table.Dispatch(workflow.Internal(req.Node, req.Port), req.Value); err != nil {
			return nil, err
		}
		return &transport.Envelope{Tag: "router.forward.ack"}, nil
	}
}

func orDefault(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}
