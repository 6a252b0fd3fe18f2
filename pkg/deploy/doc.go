/*
Package deploy implements the workflow deployment engine described in the
component design: flatten, resolve strategies, deploy, route, prepare — and
the mirror teardown, destroy.

# Pipeline

Deploy runs five steps, in order:

 1. Flatten: nested sub-workflows are expanded into one flat graph of
    component nodes, each id scoped by its enclosing path (pkg/workflow).
 2. Resolve: each node's effective strategy is computed by merging any
    node-level override over the deployment's default strategy for that
    component (strategy.Merge). A node whose resolved strategy is not
    Complete aborts the whole deploy with strategy_incomplete before any
    worker is spawned.
 3. Deploy: each node's resolved strategy deploy hook runs once,
    returning the deployment data and the set of workers to spawn. Nodes
    are visited in map iteration order; no topological ordering is applied,
    so a hook cannot rely on its predecessors having been deployed first.
 4. Route: the routing table is built directly from the flattened link
    list, one entry per (source endpoint, destination) pair.
 5. Prepare: every node that is the destination of at least one route gets
    its resolved strategy prepare hook invoked once, with the slice of
    incoming endpoints as its single argument.

Destroy runs drop_deployment on every node's resolved strategy, then stops
every worker the deploy spawned for it.
*/
package deploy
