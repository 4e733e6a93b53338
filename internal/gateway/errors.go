package gateway

// TeardownReason classifies why a Connection was torn down. Kept as a
// closed enum rather than sentinel errors: the data plane's hot path must
// classify a failure without allocating (§7 Propagation policy).
type TeardownReason int

const (
	// TeardownClientClosed: the client half reached EOF. Normal, logged at
	// Debug.
	TeardownClientClosed TeardownReason = iota
	// TeardownBackendClosed: the backend half reached EOF unexpectedly.
	// Logged at Warning but cleaned up identically to TeardownClientClosed.
	TeardownBackendClosed
	// TeardownIOError covers any other splice/connect/getsockopt failure.
	TeardownIOError
	// TeardownEpochStale: the connection's bound epoch no longer matches
	// the current epoch; the primary changed underneath it.
	TeardownEpochStale
	// TeardownShutdown: the gateway is shutting down.
	TeardownShutdown
)

func (r TeardownReason) String() string {
	switch r {
	case TeardownClientClosed:
		return "client_closed"
	case TeardownBackendClosed:
		return "backend_closed"
	case TeardownIOError:
		return "io_error"
	case TeardownEpochStale:
		return "epoch_stale"
	case TeardownShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}
