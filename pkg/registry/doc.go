// Package registry is the process-wide registry: a name to Entity map
// (components and strategies alike) whose reads never block. Registration takes a
// lock and installs a fresh copy-on-write snapshot; lookups load an atomic
// pointer, matching spec.md's "reads are lock-free, writes are serialized"
// requirement exactly.
package registry
