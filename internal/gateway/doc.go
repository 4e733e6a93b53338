// Package gateway implements the TCP data plane: the epoll-based readiness
// substrate, the splice forwarding workers, the accept loop, and the
// epoch-based primary invalidation protocol described by the original
// pg_gateway C program.
package gateway
