// Package workflow builds and validates dataflow graphs of components and
// nested sub-workflows, and exports them as GraphViz DOT for diagnostics.
//
// A Workflow is a set of Nodes (either a leaf ComponentNode or a nested
// WorkflowNode) wired together by Links between Endpoints. Validate checks
// the structural invariants spec.md requires: unique node ids, every
// endpoint resolvable, at most one writer per in-port, and fan-out allowed
// freely on sources. Flatten expands nested sub-workflows into a single
// flat graph with node ids scoped by their containing path, which is what
// the deployment engine actually deploys.
package workflow
