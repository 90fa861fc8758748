/*
Package types defines the data structures shared across nodeflow's
scheduler: worker identity and capacity, task descriptors exchanged over
the wire protocol, and the small set of enums both the manager and worker
sides need to agree on.

The node graph's own types (Node, MetaNode, CmdSet, AtomicCmd) live in
their own packages (pkg/node, pkg/command) since they are not exchanged
over the wire. This package holds only what crosses the manager/worker
boundary or identifies a worker.

# Worker identity

A Worker is identified by a UUID-string id, a human name, a status in
{uninitialized, connecting, running, terminated}, a thread capacity, and
the set of task ids currently running on it. WorkerKind distinguishes
Local (child-process) workers from Remote (network) workers purely for
logging and metrics labeling; the scheduling contract is identical.

# Task descriptors

A TaskDescriptor is the opaque-to-the-wire serialization of a Node: enough
information for the worker side to reconstruct an executable task without
either side needing to share Go types directly. See pkg/transport for the
envelope these are carried in.
*/
package types
