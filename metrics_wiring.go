package deferred

// Instrument names recorded against the metrics.Provider configured on a
// Node (see config.go). They live in the root package, not in metrics
// itself, so that metrics stays a dependency-free instrument abstraction
// with no notion of what a Node or a chain tree is.
const (
	instrumentPending = "deferred_pending_nodes"
	instrumentSettled = "deferred_settled_total"
)
