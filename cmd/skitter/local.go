package main

import (
	"fmt"
	"net"
	"net/http"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"github.com/skitter-project/skitter/pkg/log"
	"github.com/skitter-project/skitter/pkg/master"
	"github.com/skitter-project/skitter/pkg/metrics"
	"github.com/skitter-project/skitter/pkg/transport"
	"github.com/skitter-project/skitter/pkg/worker"
)

var localCmd = &cobra.Command{
	Use:   "local",
	Short: "Run a single-node master+worker pair for local development",
}

var localStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Bootstrap a one-node cluster and serve Dispatch and deploy.request locally",
	RunE:  runLocalStart,
}

func init() {
	localCmd.AddCommand(localStartCmd)
	localCmd.AddCommand(newStopCmd("./data-local/skitter.pid"))
	localCmd.AddCommand(newInfoCmd("127.0.0.1:9090"))

	localStartCmd.Flags().String("name", "local", "this node's name")
	localStartCmd.Flags().String("bind-addr", "127.0.0.1:7070", "Raft + Dispatch RPC bind address")
	localStartCmd.Flags().String("metrics-addr", "127.0.0.1:9090", "Prometheus /metrics listen address")
	localStartCmd.Flags().String("working-dir", "./data-local", "directory for Raft log and bbolt state")
	localStartCmd.Flags().String("pid-file", "", "write this node's PID here for a later `local stop` (defaults to <working-dir>/skitter.pid)")
}

// runLocalStart bootstraps a single-node master and reuses it as the sole
// worker target, so a deploy.request placed against bind-addr is both
// admitted to the cluster and executed on the same process — the "local"
// mode spec.md names alongside master/worker for single-machine development.
func runLocalStart(cmd *cobra.Command, args []string) error {
	name, _ := cmd.Flags().GetString("name")
	bindAddr, _ := cmd.Flags().GetString("bind-addr")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
	workingDir, _ := cmd.Flags().GetString("working-dir")
	pidFile, _ := cmd.Flags().GetString("pid-file")
	if pidFile == "" {
		pidFile = workingDir + "/skitter.pid"
	}

	logger := log.WithComponent("cmd-local")

	m, err := master.NewMaster(&master.Config{NodeID: name, BindAddr: bindAddr, DataDir: workingDir})
	if err != nil {
		return fmt.Errorf("construct master: %w", err)
	}
	m.SetDispatcher(dialDispatch)
	if err := m.Bootstrap(); err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	logger.Info().Str("bind_addr", bindAddr).Msg("bootstrapped local single-node cluster")

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
