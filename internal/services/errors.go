package services

import "errors"

// Typed service errors, mapped to HTTP status codes by the API layer.
// None of these mutate state when returned.
var (
	// ErrClusterNotFound indicates the organization has no cluster record
	ErrClusterNotFound = errors.New("organization has no cluster")

	// ErrClusterExists indicates a provision request hit an existing
	// non-error cluster record
	ErrClusterExists = errors.New("organization already has a cluster")

	// ErrClusterNotReady indicates a mutation was attempted while the
	// cluster is not in the running state
	ErrClusterNotReady = errors.New("cluster is not ready")

	// ErrHAAlreadyEnabled indicates an HA upgrade on an already-HA cluster
	ErrHAAlreadyEnabled = errors.New("cluster already has a highly available control plane")

	// ErrConfirmationRequired indicates a destructive operation was
	// requested without its explicit confirmation flag
	ErrConfirmationRequired = errors.New("operation requires explicit confirmation")

	// ErrPoolNotFound indicates the cluster has no node pool with that ID
	ErrPoolNotFound = errors.New("node pool not found")
)
