/*
Package log provides structured logging for skitter using zerolog.

The package wraps a single global zerolog.Logger, initialized once via
Init, plus helpers for building component-scoped child loggers.

# Usage

	import "github.com/skitter-project/skitter/pkg/log"

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

	log.Info("skitter master starting")

	deployLog := log.WithComponent("deploy")
	deployLog.Info().Str("workflow", name).Msg("deployment started")

	log.WithNodeID(nodeID).Warn().Err(err).Msg("raft apply failed")

cmd/skitter's --no-log flag sets Config.Output to io.Discard rather than
disabling logging some other way, so callers never need a nil check on
the global Logger.

# Context loggers

	WithComponent(name)   - "component" field, e.g. "deploy", "router", "worker"
	WithNodeID(id)        - "node_id" field
	WithWorkerRef(ref)    - "worker_ref" field, a worker.Ref's String()
	WithComponentRef(ref) - "component_ref" field, a workflow node id

Each returns a zerolog.Logger value with the field already attached;
chain .With() further for additional context before calling .Logger().

# Levels

debug/info/warn/error, set via Config.Level and filtered globally through
zerolog.SetGlobalLevel. Fatal calls os.Exit(1) after logging and is
reserved for startup failures a node cannot recover from (a bad config
file, a Raft bootstrap that can't proceed).
*/
package log
