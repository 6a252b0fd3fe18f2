package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
)

// writePIDFile records the running process's PID so a later `stop`
// invocation against the same --pid-file can find it, the same
// start/stop pairing the teacher's cmd/warren daemon flags implied.
func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0644)
}

func removePIDFile(path string) {
	if path == "" {
		return
	}
	_ = os.Remove(path)
}

func readPIDFile(path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read pid file %s: %w", path, err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		return 0, fmt.Errorf("parse pid file %s: %w", path, err)
	}
	return pid, nil
}

// newStopCmd builds a `stop` subcommand that signals the process recorded
// in --pid-file to shut down gracefully, mirroring the start command it's
// paired with (masterStartCmd/workerStartCmd/localStartCmd each call
// writePIDFile with the same default path this reads).
func newStopCmd(defaultPIDFile string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Signal a running node (started with the matching start command) to shut down",
		RunE: func(cmd *cobra.Command, args []string) error {
			pidFile, _ := cmd.Flags().GetString("pid-file")
			pid, err := readPIDFile(pidFile)
			if err != nil {
				return err
			}
			if err := syscall.Kill(pid, syscall.SIGTERM); err != nil {
				return fmt.Errorf("signal pid %d: %w", pid, err)
			}
			fmt.Printf("sent SIGTERM to pid %d\n", pid)
			return nil
		},
	}
	cmd.Flags().String("pid-file", defaultPIDFile, "path written by the matching start command")
	return cmd
}

// newInfoCmd builds an `info` subcommand that reports a running node's
// /healthz snapshot, the CLI's read-only counterpart to stop.
func newInfoCmd(defaultMetricsAddr string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info",
		Short: "Print a running node's health snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
			resp, err := http.Get(fmt.Sprintf("http://%s/healthz", metricsAddr))
			if err != nil {
				return fmt.Errorf("query %s: %w", metricsAddr, err)
			}
			defer resp.Body.Close()
			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return err
			}
			fmt.Println(string(body))
			return nil
		},
	}
	cmd.Flags().String("metrics-addr", defaultMetricsAddr, "metrics/health address of the running node")
	return cmd
}
