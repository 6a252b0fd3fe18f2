// Package strategy implements strategy composition: the merge operation
// that lets a child strategy override only the hooks it cares about while
// inheriting the rest from one or more parents, and the completeness check
// that the deployment engine runs before spawning any worker.
//
// A strategy is a record of seven optional hooks, each a component.Callback:
// define, deploy, prepare, send, receive, drop_deployment, drop_invocation.
// Dispatch calls the hook's Fn directly and then applies the same capability
// stripping component.Invoke applies to ordinary component callbacks.
package strategy
