// Package component implements the reactive dataflow component model: ports,
// callbacks, and the capability-checked invocation engine that runs a
// callback against a worker's current state.
//
// A Component is an immutable record of fields, in-ports, out-ports and named
// callbacks. It carries no strategy: a strategy is bound to each workflow
// node at deploy time (pkg/deploy). Capability violations (a callback reading a
// field it did not declare, publishing on a port it cannot write) are
// rejected at construction time, not at call time, so a misdeclared
// component never reaches a worker.
package component
