package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/skitter-project/skitter/pkg/placement"
	"github.com/skitter-project/skitter/pkg/transport"
)

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Deploy a workflow manifest to one or more running master/worker nodes",
}

var deployStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Submit a workflow manifest as a deploy.request",
	RunE:  runDeployStart,
}

func init() {
	deployCmd.AddCommand(deployStartCmd)

	deployStartCmd.Flags().String("addr", "127.0.0.1:7070", "target master or worker Dispatch address")
	deployStartCmd.Flags().String("manifest", "", "path to a JSON workflow manifest (placement.Request shape)")
	deployStartCmd.Flags().String("worker-file", "", "path to a newline-separated list of additional Dispatch addresses to submit the same manifest to")
	_ = deployStartCmd.MarkFlagRequired("manifest")
}

// runDeployStart reads a placement.Request manifest from disk and dispatches
// it as a "deploy.request" Envelope to --addr, and to every address listed
// in --worker-file if given — the CLI side of spec.md's "deploy(workflow)"
// entrypoint. spec.md's original deploy mode ssh-spawns worker processes
// before deploying; that's out of scope here, since every node already
// runs the same skitter binary and joins on its own via `worker start` —
// --worker-file instead fans the same manifest out to nodes already
// running, rolling back (best-effort: dispatching an empty-node manifest
// of the same workflow name) on the first node that rejects it.
func runDeployStart(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("addr")
	manifestPath, _ := cmd.Flags().GetString("manifest")
	workerFile, _ := cmd.Flags().GetString("worker-file")

	req, err := readManifest(manifestPath)
	if err != nil {
		return err
	}

	addrs := []string{addr}
	if workerFile != "" {
		extra, err := readAddrList(workerFile)
		if err != nil {
			return err
		}
		addrs = append(addrs, extra...)
	}

	submitted := make([]string, 0, len(addrs))
	for _, a := range addrs {
		resp, err := submitDeploy(a, req)
		if err != nil {
			rollbackDeploy(req.Workflow, submitted)
			return fmt.Errorf("deploy %s to %s: %w", req.Workflow, a, err)
		}
		submitted = append(submitted, a)
		fmt.Printf("%s: %s\n", a, string(resp.Payload))
	}
	return nil
}

func readManifest(path string) (placement.Request, error) {
	var req placement.Request
	raw, err := os.ReadFile(path)
	if err != nil {
		return req, fmt.Errorf("read manifest %s: %w", path, err)
	}
	if err := json.Unmarshal(raw, &req); err != nil {
		return req, fmt.Errorf("decode manifest %s: %w", path, err)
	}
	return req, nil
}

func readAddrList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read worker file %s: %w", path, err)
	}
	defer f.Close()

	var addrs []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		addrs = append(addrs, line)
	}
	return addrs, scanner.Err()
}

func submitDeploy(addr string, req placement.Request) (*transport.Envelope, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	d, err := transport.Dial(addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	defer d.Close()
	return d.Dispatch(context.Background(), &transport.Envelope{Tag: "deploy.request", Payload: payload})
}

// rollbackDeploy best-effort redeploys workflow as an empty node/link set
// on every address that had already accepted it, since there is no
// separate "undeploy" RPC tag yet.
func rollbackDeploy(workflow string, addrs []string) {
	empty := placement.Request{Workflow: workflow}
	for _, a := range addrs {
		_, _ = submitDeploy(a, empty)
	}
}
